package groupingRepository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"FaceGrouping/internal/api/grouping"
	"FaceGrouping/internal/entity"
	contextPkg "FaceGrouping/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type GroupingRunDB struct {
	ID         string    `db:"id"`
	RequestID  string    `db:"request_id"`
	PhotoCount int       `db:"photo_count"`
	GroupCount int       `db:"group_count"`
	Result     string    `db:"result"`
	DurationMS int64     `db:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"`
}

func (d GroupingRunDB) toEntity() entity.GroupingRun {
	return entity.GroupingRun{
		ID:         d.ID,
		RequestID:  d.RequestID,
		PhotoCount: d.PhotoCount,
		GroupCount: d.GroupCount,
		Result:     d.Result,
		DurationMS: d.DurationMS,
		CreatedAt:  d.CreatedAt,
	}
}

func (r *runRepository) CreateRun(c context.Context, run entity.GroupingRun) error {
	requestID := contextPkg.GetRequestID(c)

	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	argsKV := map[string]interface{}{
		"id":          run.ID,
		"request_id":  run.RequestID,
		"photo_count": run.PhotoCount,
		"group_count": run.GroupCount,
		"result":      run.Result,
		"duration_ms": run.DurationMS,
		"created_at":  createdAt.UTC(),
	}

	query, args, err := sqlx.Named(queryCreateRun, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to build SQL query for CreateRun")
		return err
	}
	query = r.q.Rebind(query)

	if _, err := r.q.ExecContext(c, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when creating grouping run")
		return err
	}

	return nil
}

func (r *runRepository) GetRunByID(c context.Context, id string) (entity.GroupingRun, error) {
	requestID := contextPkg.GetRequestID(c)
	var run GroupingRunDB

	query, args, err := sqlx.Named(queryGetRunByID, map[string]interface{}{"id": id})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("GetRunByID named query preparation err")
		return entity.GroupingRun{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.GetContext(c, &run, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.GroupingRun{}, grouping.ErrRunNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"run_id":     id,
			"error":      err.Error(),
		}).Error("Database error when getting grouping run")
		return entity.GroupingRun{}, err
	}

	return run.toEntity(), nil
}

func (r *runRepository) ListRecentRuns(c context.Context, limit int) ([]entity.GroupingRun, error) {
	requestID := contextPkg.GetRequestID(c)
	var rows []GroupingRunDB

	query, args, err := sqlx.Named(queryListRecentRuns, map[string]interface{}{"limit": limit})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("ListRecentRuns named query preparation err")
		return nil, err
	}
	query = r.q.Rebind(query)

	if err := r.q.SelectContext(c, &rows, query, args...); err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Database error when listing grouping runs")
		return nil, err
	}

	runs := make([]entity.GroupingRun, 0, len(rows))
	for _, row := range rows {
		runs = append(runs, row.toEntity())
	}
	return runs, nil
}
