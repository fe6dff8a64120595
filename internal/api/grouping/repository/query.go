package groupingRepository

const (
	queryCreateRun = `
		INSERT INTO grouping_runs (
			id,
			request_id,
			photo_count,
			group_count,
			result,
			duration_ms,
			created_at
		) VALUES (
			:id,
			:request_id,
			:photo_count,
			:group_count,
			:result,
			:duration_ms,
			:created_at
		)
	`

	queryGetRunByID = `
		SELECT
			id,
			request_id,
			photo_count,
			group_count,
			result,
			duration_ms,
			created_at
		FROM grouping_runs
		WHERE id = :id
	`

	queryListRecentRuns = `
		SELECT
			id,
			request_id,
			photo_count,
			group_count,
			result,
			duration_ms,
			created_at
		FROM grouping_runs
		ORDER BY created_at DESC, id DESC
		LIMIT :limit
	`
)
