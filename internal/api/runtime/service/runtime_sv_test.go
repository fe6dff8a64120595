package runtimeService

import (
	"context"
	"io"
	"testing"

	"FaceGrouping/internal/entity"
	"FaceGrouping/internal/launcher"
	websocketPkg "FaceGrouping/pkg/websocket"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSupervisor struct {
	ready      bool
	status     launcher.Status
	reasons    []string
	restartErr error
	doCalls    int
}

func (f *fakeSupervisor) Status() launcher.Status { return f.status }
func (f *fakeSupervisor) Ready() bool             { return f.ready }

func (f *fakeSupervisor) Restart(reason string) error {
	f.reasons = append(f.reasons, reason)
	return f.restartErr
}

func (f *fakeSupervisor) Do(ctx context.Context, fn func(ctx context.Context, ep launcher.Endpoint) error) error {
	f.doCalls++
	return fn(ctx, launcher.Endpoint{BaseURL: "http://127.0.0.1:5001"})
}

func newTestService(sup *fakeSupervisor) (IRuntimeService, websocketPkg.IHub) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hub := websocketPkg.NewHub(10)
	return NewRuntimeService(logger, sup, hub), hub
}

func TestHealth(t *testing.T) {
	sup := &fakeSupervisor{
		ready: true,
		status: launcher.Status{Workers: []launcher.WorkerStatus{
			{ID: 0, State: "Restarting", LastExit: "signal: killed"},
		}},
	}
	svc, _ := newTestService(sup)

	res, ok := svc.Health()
	assert.True(t, ok)
	assert.Equal(t, "healthy", res.Status)
	assert.Equal(t, "deepface-grouping", res.Service)
	assert.Empty(t, res.Workers)

	sup.ready = false
	res, ok = svc.Health()
	assert.False(t, ok)
	assert.Equal(t, "degraded", res.Status)
	require.Len(t, res.Workers, 1)
	assert.Equal(t, "Restarting", res.Workers[0].State)
}

func TestStatusIncludesLogHub(t *testing.T) {
	svc, _ := newTestService(&fakeSupervisor{status: launcher.Status{QueueSize: 64, Ready: 1}})

	_, _, cancel := svc.SubscribeLogs()
	defer cancel()

	res := svc.Status()
	assert.Equal(t, 64, res.QueueSize)
	assert.Equal(t, 1, res.Ready)
	assert.Equal(t, 1, res.LogSubscribers)
}

func TestRestart(t *testing.T) {
	sup := &fakeSupervisor{}
	svc, _ := newTestService(sup)
	op := entity.Operator{Subject: "ops", Role: "admin"}

	res, err := svc.Restart(context.Background(), op, "")
	require.NoError(t, err)
	assert.Equal(t, "manual", res.Reason)
	assert.Equal(t, "ops", res.RequestedBy)

	_, err = svc.Restart(context.Background(), op, "model update")
	require.NoError(t, err)
	assert.Equal(t, []string{"manual", "model update"}, sup.reasons)

	sup.restartErr = launcher.ErrStopped
	_, err = svc.Restart(context.Background(), op, "")
	assert.ErrorIs(t, err, launcher.ErrStopped)
}

func TestSubscribeLogsReceivesBacklogAndLive(t *testing.T) {
	svc, hub := newTestService(&fakeSupervisor{})
	hub.Publish(entity.WorkerLogLine{Stream: "stdout", Text: "booting"})

	lines, backlog, cancel := svc.SubscribeLogs()
	defer cancel()
	require.Len(t, backlog, 1)
	assert.Equal(t, "booting", backlog[0].Text)

	hub.Publish(entity.WorkerLogLine{Stream: "stderr", Text: "ready"})
	line := <-lines
	assert.Equal(t, "ready", line.Text)
}

func TestForward(t *testing.T) {
	sup := &fakeSupervisor{}
	svc, _ := newTestService(sup)

	var got string
	err := svc.Forward(context.Background(), func(ctx context.Context, ep launcher.Endpoint) error {
		got = ep.BaseURL
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5001", got)
	assert.Equal(t, 1, sup.doCalls)
}
