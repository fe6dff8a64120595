package entity

import "time"

// WorkerLogLine is one line written by a worker process to stdout or stderr.
type WorkerLogLine struct {
	WorkerID int       `json:"worker_id"`
	PID      int       `json:"pid"`
	Stream   string    `json:"stream"`
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
}
