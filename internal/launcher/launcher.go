package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"FaceGrouping/internal/entity"

	"github.com/sirupsen/logrus"
)

// crashLoopWindow is how long a worker must stay up for an unexpected exit
// not to count towards respawn backoff.
const crashLoopWindow = 30 * time.Second

// OutputSink receives worker output lines as they are written.
type OutputSink interface {
	Publish(line entity.WorkerLogLine)
}

// Option configures a Launcher.
type Option func(*Launcher)

func WithLogger(logger *logrus.Logger) Option {
	return func(l *Launcher) {
		l.log = logger
	}
}

func WithMetricsCollector(mc MetricsCollector) Option {
	return func(l *Launcher) {
		l.metrics = mc
	}
}

func WithOutputSink(sink OutputSink) Option {
	return func(l *Launcher) {
		l.sink = sink
	}
}

// Launcher supervises a fixed set of worker processes and admits units of
// work to them one at a time per worker.
type Launcher struct {
	cfg     Config
	log     *logrus.Logger
	metrics MetricsCollector
	sink    OutputSink

	slots []*slot
	idle  chan *slot

	waiting  atomic.Int64
	inFlight atomic.Int64

	mu      sync.Mutex
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// slot is one admission slot bound to one worker id. The process behind it
// changes across restarts.
type slot struct {
	id int

	mu            sync.Mutex
	state         WorkerState
	proc          *process
	ready         chan struct{}
	busy          bool
	restarts      int
	lastExit      string
	recycleReason string
}

func New(cfg Config, opts ...Option) *Launcher {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	l := &Launcher{
		cfg:     cfg,
		metrics: NewNoopMetricsCollector(),
		idle:    make(chan *slot, cfg.Workers),
		ctx:     ctx,
		cancel:  cancel,
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.log == nil {
		l.log = logrus.New()
		l.log.SetOutput(io.Discard)
	}

	for i := 0; i < cfg.Workers; i++ {
		s := &slot{
			id:    i,
			state: WorkerStateStarting,
			ready: make(chan struct{}),
		}
		l.slots = append(l.slots, s)
		l.idle <- s
	}

	return l
}

// Config returns the effective configuration.
func (l *Launcher) Config() Config {
	return l.cfg
}

// Start spawns every worker and begins supervising them. It does not wait
// for readiness; use WaitReady for that.
func (l *Launcher) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return ErrStopped
	}
	if l.started {
		return errors.New("launcher already started")
	}
	if len(l.cfg.Command) == 0 {
		return errors.New("worker command is empty")
	}
	l.started = true

	l.log.WithFields(logrus.Fields{
		"workers":    l.cfg.Workers,
		"timeout":    l.cfg.Timeout.String(),
		"queue_size": l.cfg.QueueSize,
		"app_module": l.cfg.AppModule,
		"unbuffered": l.cfg.Unbuffered,
	}).Info("Starting worker supervisor")

	for _, s := range l.slots {
		l.wg.Add(1)
		go l.supervise(s)
	}

	return nil
}

// WaitReady blocks until every worker is ready or ctx ends.
func (l *Launcher) WaitReady(ctx context.Context) error {
	for _, s := range l.slots {
		s.mu.Lock()
		ready := s.ready
		isReady := s.state == WorkerStateReady
		s.mu.Unlock()
		if isReady {
			continue
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		case <-l.ctx.Done():
			return ErrStopped
		}
	}
	return nil
}

// Do admits fn to a worker. fn runs with exclusive use of the worker behind
// the Endpoint it is given. If fn outlives the timeout the worker is killed
// and replaced, and Do returns ErrWorkerTimeout.
func (l *Launcher) Do(ctx context.Context, fn func(ctx context.Context, ep Endpoint) error) error {
	if err := l.checkRunning(); err != nil {
		l.metrics.Admission("stopped")
		return err
	}

	waitStart := time.Now()
	s, err := l.acquire(ctx)
	if err != nil {
		l.metrics.Admission(admissionOutcome(err))
		return err
	}
	defer l.release(s)

	ep, proc, err := l.endpoint(ctx, s)
	if err != nil {
		l.metrics.Admission(admissionOutcome(err))
		return err
	}
	l.metrics.WaitDuration(time.Since(waitStart))

	err = l.run(ctx, s, proc, ep, fn)
	l.metrics.Admission(admissionOutcome(err))
	return err
}

func (l *Launcher) checkRunning() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ErrStopped
	}
	if !l.started {
		return ErrNotStarted
	}
	return nil
}

func (l *Launcher) acquire(ctx context.Context) (*slot, error) {
	select {
	case s := <-l.idle:
		return s, nil
	default:
	}

	depth := l.waiting.Add(1)
	if int(depth) > l.cfg.QueueSize {
		l.waiting.Add(-1)
		l.log.WithFields(logrus.Fields{
			"queue_size": l.cfg.QueueSize,
		}).Warn("Rejecting request, worker queue is full")
		return nil, ErrQueueFull
	}
	l.metrics.QueueDepth(int(depth))
	defer func() {
		l.metrics.QueueDepth(int(l.waiting.Add(-1)))
	}()

	select {
	case s := <-l.idle:
		return s, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.ctx.Done():
		return nil, ErrStopped
	}
}

func (l *Launcher) release(s *slot) {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
	l.idle <- s
}

// endpoint waits for the slot's worker to be ready and marks it busy.
func (l *Launcher) endpoint(ctx context.Context, s *slot) (Endpoint, *process, error) {
	for {
		s.mu.Lock()
		if s.state == WorkerStateReady && s.proc != nil {
			s.busy = true
			proc := s.proc
			s.mu.Unlock()
			return Endpoint{
				WorkerID: s.id,
				PID:      proc.pid,
				BaseURL:  "http://" + proc.addr,
			}, proc, nil
		}
		ready := s.ready
		s.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			return Endpoint{}, nil, ctx.Err()
		case <-l.ctx.Done():
			return Endpoint{}, nil, ErrStopped
		}
	}
}

func (l *Launcher) run(ctx context.Context, s *slot, proc *process, ep Endpoint, fn func(ctx context.Context, ep Endpoint) error) error {
	l.metrics.InFlight(int(l.inFlight.Add(1)))
	defer func() {
		l.metrics.InFlight(int(l.inFlight.Add(-1)))
	}()

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if l.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
	}
	defer cancel()

	start := time.Now()
	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("worker task panicked: %v", r)
			}
		}()
		result <- fn(runCtx, ep)
	}()

	var err error
	select {
	case err = <-result:
	case <-runCtx.Done():
	}
	l.metrics.RequestDuration(s.id, time.Since(start))

	timedOut := l.cfg.Timeout > 0 &&
		errors.Is(runCtx.Err(), context.DeadlineExceeded) &&
		ctx.Err() == nil

	switch {
	case timedOut:
		l.log.WithFields(logrus.Fields{
			"worker":  s.id,
			"pid":     proc.pid,
			"timeout": l.cfg.Timeout.String(),
		}).Error("Request exceeded worker timeout, killing worker")
		l.recycle(s, proc, "timeout", false)
		l.drain(result)
		return ErrWorkerTimeout
	case ctx.Err() != nil:
		l.drain(result)
		return ctx.Err()
	default:
		return err
	}
}

// drain waits a bounded time for an abandoned fn so that the slot is not
// handed out while it still talks to the worker.
func (l *Launcher) drain(result <-chan error) {
	timer := time.NewTimer(l.cfg.GracePeriod)
	defer timer.Stop()
	select {
	case <-result:
	case <-timer.C:
	}
}

// Restart recycles every worker. In-flight requests on a worker fail.
func (l *Launcher) Restart(reason string) error {
	if err := l.checkRunning(); err != nil {
		return err
	}
	if reason == "" {
		reason = "manual"
	}

	for _, s := range l.slots {
		s.mu.Lock()
		proc := s.proc
		s.mu.Unlock()
		if proc != nil {
			l.recycle(s, proc, reason, true)
		}
	}
	return nil
}

// recycle takes proc out of service and kills it; the supervision loop
// spawns the replacement. Only the first caller for a given proc wins.
func (l *Launcher) recycle(s *slot, proc *process, reason string, graceful bool) {
	s.mu.Lock()
	if s.proc != proc || s.state != WorkerStateReady {
		s.mu.Unlock()
		return
	}
	s.recycleReason = reason
	l.setStateLocked(s, WorkerStateRestarting)
	s.mu.Unlock()

	l.log.WithFields(logrus.Fields{
		"worker": s.id,
		"pid":    proc.pid,
		"reason": reason,
	}).Warn("Recycling worker")

	if graceful {
		go proc.terminate(l.cfg.GracePeriod)
		return
	}
	proc.kill()
}

func (l *Launcher) supervise(s *slot) {
	defer l.wg.Done()

	failures := 0
	for {
		if l.ctx.Err() != nil {
			l.setState(s, WorkerStateStopped)
			return
		}

		proc, err := l.spawn(s.id)
		if err == nil {
			if err = proc.waitReady(l.ctx, l.cfg.ReadyTimeout); err != nil {
				proc.kill()
				<-proc.done
			}
		}

		if err != nil {
			if l.ctx.Err() != nil {
				l.setState(s, WorkerStateStopped)
				return
			}

			delay := ExponentialBackoff(failures, l.cfg.BackoffBase, l.cfg.BackoffMax)
			failures++

			s.mu.Lock()
			s.lastExit = err.Error()
			s.restarts++
			s.mu.Unlock()

			l.metrics.WorkerRestart(s.id, "spawn_failed")
			l.log.WithFields(logrus.Fields{
				"worker":   s.id,
				"error":    err.Error(),
				"attempt":  failures,
				"retry_in": delay.String(),
			}).Error("Worker failed to start")

			if !l.sleep(delay) {
				l.setState(s, WorkerStateStopped)
				return
			}
			continue
		}

		s.mu.Lock()
		s.proc = proc
		l.setStateLocked(s, WorkerStateReady)
		s.mu.Unlock()

		l.log.WithFields(logrus.Fields{
			"worker":  s.id,
			"pid":     proc.pid,
			"address": proc.addr,
			"startup": time.Since(proc.startedAt).String(),
		}).Info("Worker ready")

		select {
		case <-proc.done:
		case <-l.ctx.Done():
			l.setState(s, WorkerStateStopped)
			proc.terminate(l.cfg.GracePeriod)
			l.log.WithFields(logrus.Fields{
				"worker": s.id,
				"pid":    proc.pid,
			}).Info("Worker stopped")
			return
		}

		exit := describeExit(proc.exitErr)

		s.mu.Lock()
		reason := s.recycleReason
		s.recycleReason = ""
		s.lastExit = exit
		s.restarts++
		if s.state == WorkerStateReady {
			l.setStateLocked(s, WorkerStateRestarting)
		}
		s.mu.Unlock()

		delay := time.Duration(0)
		if reason == "" {
			reason = "exited"
			if time.Since(proc.startedAt) < crashLoopWindow {
				delay = ExponentialBackoff(failures, l.cfg.BackoffBase, l.cfg.BackoffMax)
				failures++
			} else {
				failures = 0
			}
			l.log.WithFields(logrus.Fields{
				"worker":   s.id,
				"pid":      proc.pid,
				"exit":     exit,
				"retry_in": delay.String(),
			}).Error("Worker exited unexpectedly")
		} else {
			failures = 0
		}

		l.metrics.WorkerRestart(s.id, reason)

		if delay > 0 && !l.sleep(delay) {
			l.setState(s, WorkerStateStopped)
			return
		}
	}
}

func (l *Launcher) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-l.ctx.Done():
		return false
	}
}

func (l *Launcher) setState(s *slot, state WorkerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l.setStateLocked(s, state)
}

// setStateLocked keeps the ready channel in step with the state: closed
// exactly while the slot is Ready.
func (l *Launcher) setStateLocked(s *slot, state WorkerState) {
	if s.state == state {
		return
	}
	wasReady := s.state == WorkerStateReady
	s.state = state

	switch {
	case state == WorkerStateReady:
		close(s.ready)
	case wasReady:
		s.ready = make(chan struct{})
	}

	l.metrics.WorkerState(s.id, state)
}

// Status reports the current state of every worker and the admission layer.
func (l *Launcher) Status() Status {
	st := Status{
		Waiting:    int(l.waiting.Load()),
		InFlight:   int(l.inFlight.Load()),
		QueueSize:  l.cfg.QueueSize,
		Timeout:    l.cfg.Timeout.String(),
		AppModule:  l.cfg.AppModule,
		Unbuffered: l.cfg.Unbuffered,
	}

	for _, s := range l.slots {
		s.mu.Lock()
		ws := WorkerStatus{
			ID:       s.id,
			State:    s.state.String(),
			Busy:     s.busy,
			Restarts: s.restarts,
			LastExit: s.lastExit,
		}
		if s.proc != nil && !s.proc.exited() {
			ws.PID = s.proc.pid
			ws.Address = s.proc.addr
			ws.StartedAt = s.proc.startedAt
			ws.Uptime = time.Since(s.proc.startedAt)
		}
		if s.state == WorkerStateReady {
			st.Ready++
		}
		s.mu.Unlock()
		st.Workers = append(st.Workers, ws)
	}

	return st
}

// Ready reports whether at least one worker accepts work.
func (l *Launcher) Ready() bool {
	for _, s := range l.slots {
		s.mu.Lock()
		ready := s.state == WorkerStateReady
		s.mu.Unlock()
		if ready {
			return true
		}
	}
	return false
}

// Stop terminates every worker and waits for the supervision loops to exit.
func (l *Launcher) Stop(ctx context.Context) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return nil
	}
	l.stopped = true
	l.mu.Unlock()

	l.log.Info("Stopping worker supervisor")
	l.cancel()

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.log.Info("Worker supervisor stopped")
		return nil
	case <-ctx.Done():
		for _, s := range l.slots {
			s.mu.Lock()
			proc := s.proc
			s.mu.Unlock()
			if proc != nil {
				proc.kill()
			}
		}
		return ctx.Err()
	}
}

func admissionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrWorkerTimeout):
		return "timeout"
	case errors.Is(err, ErrQueueFull):
		return "queue_full"
	case errors.Is(err, ErrStopped), errors.Is(err, ErrNotStarted):
		return "stopped"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
