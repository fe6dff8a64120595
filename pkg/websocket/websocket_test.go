package websocketPkg

import (
	"fmt"
	"testing"
	"time"

	"FaceGrouping/internal/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(text string) entity.WorkerLogLine {
	return entity.WorkerLogLine{WorkerID: 0, PID: 42, Stream: "stdout", Text: text, Time: time.Now()}
}

func TestHubBacklogOrder(t *testing.T) {
	h := NewHub(3)
	for i := 1; i <= 5; i++ {
		h.Publish(line(fmt.Sprintf("line %d", i)))
	}

	_, backlog, cancel := h.Subscribe()
	defer cancel()

	require.Len(t, backlog, 3)
	assert.Equal(t, "line 3", backlog[0].Text)
	assert.Equal(t, "line 5", backlog[2].Text)
}

func TestHubPartialBacklog(t *testing.T) {
	h := NewHub(10)
	h.Publish(line("only"))

	_, backlog, cancel := h.Subscribe()
	defer cancel()

	require.Len(t, backlog, 1)
	assert.Equal(t, "only", backlog[0].Text)
}

func TestHubLiveDelivery(t *testing.T) {
	h := NewHub(10)
	ch, _, cancel := h.Subscribe()
	assert.Equal(t, 1, h.Subscribers())

	h.Publish(line("hello"))

	select {
	case got := <-ch:
		assert.Equal(t, "hello", got.Text)
	case <-time.After(time.Second):
		t.Fatal("line not delivered")
	}

	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers())
	_, open := <-ch
	assert.False(t, open)
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub(10)
	_, _, cancel := h.Subscribe()
	defer cancel()

	for i := 0; i < subscriberBufSize+5; i++ {
		h.Publish(line("spam"))
	}

	assert.Equal(t, uint64(5), h.Dropped())
}
