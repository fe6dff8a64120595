package launcher

import (
	"time"
)

// WorkerState is the lifecycle state of one supervised worker process.
type WorkerState int

const (
	// WorkerStateStarting - process spawned, not yet accepting connections
	WorkerStateStarting WorkerState = iota
	// WorkerStateReady - accepting work
	WorkerStateReady
	// WorkerStateRestarting - killed or exited, replacement pending
	WorkerStateRestarting
	// WorkerStateStopped - launcher shut down
	WorkerStateStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStateStarting:
		return "Starting"
	case WorkerStateReady:
		return "Ready"
	case WorkerStateRestarting:
		return "Restarting"
	case WorkerStateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Config describes how workers are spawned and how work is admitted to them.
type Config struct {
	// Command is the worker argv. The tokens {port} and {app} are replaced
	// with the worker port and AppModule.
	Command []string
	// AppModule names the application object the worker serves.
	AppModule string
	// Env is appended to the supervisor environment for every worker.
	Env []string
	// WorkDir is the worker working directory; empty means inherit.
	WorkDir string

	// Host is the loopback host workers bind to.
	Host string
	// BasePort is the port of worker 0; worker i listens on BasePort+i.
	BasePort int
	// Workers is the number of worker processes, one admission slot each.
	Workers int
	// QueueSize bounds the number of requests waiting for a slot.
	QueueSize int

	// Timeout is the per-request limit. Zero disables it.
	Timeout time.Duration
	// ReadyTimeout bounds how long a spawned worker may take to accept TCP.
	ReadyTimeout time.Duration
	// GracePeriod is the SIGTERM to SIGKILL delay used on shutdown.
	GracePeriod time.Duration
	// Unbuffered forwards PYTHONUNBUFFERED=1 to workers.
	Unbuffered bool

	// BackoffBase and BackoffMax bound respawn delays after crashes.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.BasePort == 0 {
		c.BasePort = 5001
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 5 * time.Minute
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 10 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	return c
}

// Endpoint is what a unit of work gets to talk to its worker.
type Endpoint struct {
	WorkerID int
	PID      int
	BaseURL  string
}

// WorkerStatus is a point-in-time view of one worker.
type WorkerStatus struct {
	ID        int           `json:"id"`
	State     string        `json:"state"`
	PID       int           `json:"pid"`
	Address   string        `json:"address"`
	Busy      bool          `json:"busy"`
	Restarts  int           `json:"restarts"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	Uptime    time.Duration `json:"uptime"`
	LastExit  string        `json:"last_exit,omitempty"`
}

// Status aggregates the launcher view.
type Status struct {
	Workers    []WorkerStatus `json:"workers"`
	Ready      int            `json:"ready"`
	Waiting    int            `json:"waiting"`
	InFlight   int            `json:"in_flight"`
	QueueSize  int            `json:"queue_size"`
	Timeout    string         `json:"timeout"`
	AppModule  string         `json:"app_module"`
	Unbuffered bool           `json:"unbuffered"`
}
