package websocketPkg

import (
	"sync"
	"sync/atomic"

	"FaceGrouping/internal/entity"
)

const (
	defaultBacklog    = 500
	subscriberBufSize = 256
)

// IHub fans worker output out to websocket subscribers.
type IHub interface {
	Publish(line entity.WorkerLogLine)
	Subscribe() (<-chan entity.WorkerLogLine, []entity.WorkerLogLine, func())
	Subscribers() int
	Dropped() uint64
}

type hub struct {
	mu      sync.RWMutex
	backlog []entity.WorkerLogLine
	next    int
	full    bool
	subs    map[chan entity.WorkerLogLine]struct{}
	dropped atomic.Uint64
}

// NewHub keeps the last size lines for late subscribers.
func NewHub(size int) IHub {
	if size <= 0 {
		size = defaultBacklog
	}
	return &hub{
		backlog: make([]entity.WorkerLogLine, size),
		subs:    make(map[chan entity.WorkerLogLine]struct{}),
	}
}

// Publish never blocks; a subscriber that falls behind loses lines.
func (h *hub) Publish(line entity.WorkerLogLine) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.backlog[h.next] = line
	h.next = (h.next + 1) % len(h.backlog)
	if h.next == 0 {
		h.full = true
	}

	for ch := range h.subs {
		select {
		case ch <- line:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe returns a live channel, a copy of the backlog in publish order,
// and a cancel func that closes the channel.
func (h *hub) Subscribe() (<-chan entity.WorkerLogLine, []entity.WorkerLogLine, func()) {
	ch := make(chan entity.WorkerLogLine, subscriberBufSize)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	snapshot := h.snapshotLocked()
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}

	return ch, snapshot, cancel
}

func (h *hub) snapshotLocked() []entity.WorkerLogLine {
	if !h.full {
		return append([]entity.WorkerLogLine(nil), h.backlog[:h.next]...)
	}
	out := make([]entity.WorkerLogLine, 0, len(h.backlog))
	out = append(out, h.backlog[h.next:]...)
	return append(out, h.backlog[:h.next]...)
}

func (h *hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *hub) Dropped() uint64 {
	return h.dropped.Load()
}
