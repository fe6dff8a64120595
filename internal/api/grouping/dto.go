package grouping

import "time"

type GroupRequest struct {
	Photos []string `json:"photos"`
}

type AnalyzeRequest struct {
	Photo string `json:"photo"`
}

type GroupMetadata struct {
	Photos           []string `json:"photos"`
	FamilyPhotos     int      `json:"family_photos"`
	IndividualPhotos int      `json:"individual_photos"`
	TotalPhotos      int      `json:"total_photos"`
	Members          int      `json:"members"`
}

// GroupResponse keys groups by their numeric id rendered as a string.
type GroupResponse struct {
	Status      string                   `json:"status"`
	Groups      map[string]GroupMetadata `json:"groups"`
	TotalGroups int                      `json:"total_groups"`
	TotalPhotos int                      `json:"total_photos"`
	RunID       string                   `json:"run_id,omitempty"`
}

type AnalyzeResponse struct {
	Status        string `json:"status"`
	Photo         string `json:"photo"`
	FaceCount     int    `json:"face_count"`
	IsFamilyPhoto bool   `json:"is_family_photo"`
}

type RunResponse struct {
	ID         string        `json:"id"`
	RequestID  string        `json:"request_id"`
	PhotoCount int           `json:"photo_count"`
	GroupCount int           `json:"group_count"`
	DurationMS int64         `json:"duration_ms"`
	CreatedAt  time.Time     `json:"created_at"`
	Result     GroupResponse `json:"result"`
}
