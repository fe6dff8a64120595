package launcher

import (
	"time"
)

// MetricsCollector receives launcher events.
type MetricsCollector interface {
	// Admission records the outcome of one Do call: ok, timeout, queue_full,
	// cancelled, error or stopped.
	Admission(outcome string)

	// QueueDepth records how many requests are waiting for a slot.
	QueueDepth(depth int)

	// InFlight records how many requests currently hold a slot.
	InFlight(n int)

	// RequestDuration records time spent holding a slot.
	RequestDuration(workerID int, duration time.Duration)

	// WaitDuration records time spent waiting for a slot.
	WaitDuration(duration time.Duration)

	// WorkerRestart records a respawn and why it happened.
	WorkerRestart(workerID int, reason string)

	// WorkerState records a state transition.
	WorkerState(workerID int, state WorkerState)
}

type noopMetricsCollector struct{}

func (n *noopMetricsCollector) Admission(outcome string)                             {}
func (n *noopMetricsCollector) QueueDepth(depth int)                                 {}
func (n *noopMetricsCollector) InFlight(count int)                                   {}
func (n *noopMetricsCollector) RequestDuration(workerID int, duration time.Duration) {}
func (n *noopMetricsCollector) WaitDuration(duration time.Duration)                  {}
func (n *noopMetricsCollector) WorkerRestart(workerID int, reason string)            {}
func (n *noopMetricsCollector) WorkerState(workerID int, state WorkerState)          {}

// NewNoopMetricsCollector creates a collector that drops everything.
func NewNoopMetricsCollector() MetricsCollector {
	return &noopMetricsCollector{}
}
