package runtime

import (
	"time"

	"FaceGrouping/internal/launcher"
)

const ServiceName = "deepface-grouping"

type HealthResponse struct {
	Status  string                  `json:"status"`
	Service string                  `json:"service"`
	Workers []launcher.WorkerStatus `json:"workers,omitempty"`
}

type StatusResponse struct {
	launcher.Status
	LogSubscribers int    `json:"log_subscribers"`
	LogDropped     uint64 `json:"log_dropped"`
}

type RestartRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=64,printascii"`
}

type RestartResponse struct {
	Message     string    `json:"message"`
	Reason      string    `json:"reason"`
	RequestedBy string    `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}
