package runtimeHandler

import (
	"time"

	"FaceGrouping/internal/entity"

	"github.com/gofiber/websocket/v2"
)

const (
	logPingInterval  = 30 * time.Second
	logWriteDeadline = 10 * time.Second
)

// StreamLogs sends the buffered worker output followed by live lines, one
// JSON object per message. Client messages are read only to notice closes.
func (h *RuntimeHandler) StreamLogs(c *websocket.Conn) {
	h.log.Info("Worker log stream client connected")
	defer h.log.Info("Worker log stream client disconnected")

	lines, backlog, cancel := h.runtimeService.SubscribeLogs()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.log.Errorf("Worker log stream read error: %v", err)
				}
				return
			}
		}
	}()

	for _, line := range backlog {
		if err := h.writeLine(c, line); err != nil {
			return
		}
	}

	ticker := time.NewTicker(logPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if err := h.writeLine(c, line); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(logWriteDeadline)); err != nil {
				h.log.Errorf("Error sending ping: %v", err)
				return
			}
		}
	}
}

func (h *RuntimeHandler) writeLine(c *websocket.Conn, line entity.WorkerLogLine) error {
	if err := c.SetWriteDeadline(time.Now().Add(logWriteDeadline)); err != nil {
		h.log.Errorf("Error setting write deadline: %v", err)
		return err
	}

	if err := c.WriteJSON(line); err != nil {
		h.log.Errorf("Error writing worker log line: %v", err)
		return err
	}

	return nil
}
