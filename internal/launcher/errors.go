package launcher

import "errors"

var (
	// ErrQueueFull is returned when the admission queue is at capacity.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrWorkerTimeout is returned when a request outlives the timeout; the
	// worker that served it has been killed and is being replaced.
	ErrWorkerTimeout = errors.New("worker timed out and was restarted")
	// ErrStopped is returned once Stop has been called.
	ErrStopped = errors.New("launcher is stopped")
	// ErrNotStarted is returned by Do before Start.
	ErrNotStarted = errors.New("launcher is not started")
)
