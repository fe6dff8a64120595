package entity

import "time"

// GroupingRun is one completed /group call as stored in grouping_runs.
type GroupingRun struct {
	ID         string    `json:"id"`
	RequestID  string    `json:"request_id"`
	PhotoCount int       `json:"photo_count"`
	GroupCount int       `json:"group_count"`
	Result     string    `json:"-"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
