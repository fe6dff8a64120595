package groupingService

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FaceGrouping/internal/api/grouping"
	"FaceGrouping/internal/entity"
	"FaceGrouping/internal/launcher"
	contextPkg "FaceGrouping/pkg/context"
	"FaceGrouping/pkg/s3"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func (s *groupingService) GroupPhotos(ctx context.Context, req grouping.GroupRequest) (grouping.GroupResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)

	if len(req.Photos) < 1 {
		return grouping.GroupResponse{}, grouping.ErrNoPhotos
	}

	paths := make(map[string]string, len(req.Photos))
	for _, photo := range req.Photos {
		local, err := s.resolvePhoto(ctx, photo)
		if err != nil {
			if errors.Is(err, grouping.ErrPhotoNotFound) {
				return grouping.GroupResponse{}, grouping.PhotoNotFound(photo)
			}
			return grouping.GroupResponse{}, err
		}
		paths[photo] = local
	}

	start := time.Now()
	var result grouping.GroupResponse

	err := s.runner.Do(ctx, func(ctx context.Context, ep launcher.Endpoint) error {
		grouper := s.newGrouper(ep, paths)

		groups, err := grouper.GroupPhotos(ctx, req.Photos)
		if err != nil {
			return err
		}

		result = grouping.GroupResponse{
			Status:      "success",
			Groups:      grouper.Describe(ctx, groups),
			TotalGroups: groups.Len(),
			TotalPhotos: len(req.Photos),
		}
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"photos":     len(req.Photos),
			"error":      err.Error(),
		}).Error("Error processing grouping request")
		return grouping.GroupResponse{}, err
	}

	duration := time.Since(start)
	s.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"photos":      result.TotalPhotos,
		"groups":      result.TotalGroups,
		"duration_ms": duration.Milliseconds(),
	}).Info("Grouped photos")

	result.RunID = s.recordRun(ctx, result, duration)

	return result, nil
}

// recordRun stores the result for later lookup. A storage failure does not
// fail the request; the run id is left empty instead.
func (s *groupingService) recordRun(ctx context.Context, result grouping.GroupResponse, duration time.Duration) string {
	requestID := contextPkg.GetRequestID(ctx)

	if s.repository == nil {
		return ""
	}

	runID, err := s.utils.NewULIDFromTimestamp(time.Now())
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to generate run id")
		return ""
	}

	result.RunID = runID
	body, err := jsoniter.Marshal(result)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to encode grouping result")
		return ""
	}

	repo, err := s.repository.NewClient(false)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("Failed to create new client")
		return ""
	}

	err = repo.Runs.CreateRun(ctx, entity.GroupingRun{
		ID:         runID,
		RequestID:  requestID,
		PhotoCount: result.TotalPhotos,
		GroupCount: result.TotalGroups,
		Result:     string(body),
		DurationMS: duration.Milliseconds(),
		CreatedAt:  time.Now(),
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Grouping run not recorded")
		return ""
	}

	return runID
}

func (s *groupingService) AnalyzePhoto(ctx context.Context, req grouping.AnalyzeRequest) (grouping.AnalyzeResponse, error) {
	if req.Photo == "" {
		return grouping.AnalyzeResponse{}, grouping.ErrPhotoPathRequired
	}

	local, err := s.resolvePhoto(ctx, req.Photo)
	if err != nil {
		return grouping.AnalyzeResponse{}, err
	}

	var count int
	err = s.runner.Do(ctx, func(ctx context.Context, ep launcher.Endpoint) error {
		count = s.newGrouper(ep, map[string]string{req.Photo: local}).CountFaces(ctx, req.Photo)
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": contextPkg.GetRequestID(ctx),
			"photo":      req.Photo,
			"error":      err.Error(),
		}).Error("Error analyzing photo")
		return grouping.AnalyzeResponse{}, err
	}

	return grouping.AnalyzeResponse{
		Status:        "success",
		Photo:         req.Photo,
		FaceCount:     count,
		IsFamilyPhoto: count > 1,
	}, nil
}

func (s *groupingService) GetRun(ctx context.Context, id string) (grouping.RunResponse, error) {
	if s.repository == nil {
		return grouping.RunResponse{}, grouping.ErrRunNotFound
	}

	repo, err := s.repository.NewClient(false)
	if err != nil {
		return grouping.RunResponse{}, err
	}

	run, err := repo.Runs.GetRunByID(ctx, id)
	if err != nil {
		return grouping.RunResponse{}, err
	}

	var result grouping.GroupResponse
	if err := jsoniter.UnmarshalFromString(run.Result, &result); err != nil {
		return grouping.RunResponse{}, fmt.Errorf("decode stored run %s: %w", id, err)
	}

	return grouping.RunResponse{
		ID:         run.ID,
		RequestID:  run.RequestID,
		PhotoCount: run.PhotoCount,
		GroupCount: run.GroupCount,
		DurationMS: run.DurationMS,
		CreatedAt:  run.CreatedAt,
		Result:     result,
	}, nil
}

func (s *groupingService) newGrouper(ep launcher.Endpoint, paths map[string]string) *Grouper {
	analyzer := &workerAnalyzer{
		client:  s.deepface,
		baseURL: ep.BaseURL,
		model:   s.opts.Model,
		metric:  s.opts.DistanceMetric,
		paths:   paths,
	}
	return NewGrouper(analyzer, s.cache, s.opts.CacheTTL, s.opts.Threshold, s.log)
}

// resolvePhoto returns the local path for a photo reference, staging s3://
// objects first. Missing photos yield ErrPhotoNotFound.
func (s *groupingService) resolvePhoto(ctx context.Context, photo string) (string, error) {
	if s.utils.IsRemoteRef(photo) {
		if s.s3 == nil {
			return "", grouping.ErrRemotePhotosDisabled
		}
		local, err := s.s3.Stage(ctx, photo)
		switch {
		case errors.Is(err, s3.ErrObjectNotFound):
			return "", grouping.ErrPhotoNotFound
		case errors.Is(err, s3.ErrInvalidRef):
			return "", grouping.ErrInvalidRemotePhoto
		case err != nil:
			return "", err
		}
		return local, nil
	}

	exists, err := s.utils.FileExists(photo)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", grouping.ErrPhotoNotFound
	}
	return photo, nil
}
