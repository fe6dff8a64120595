package runtimeService

import (
	"context"
	"time"

	"FaceGrouping/internal/api/runtime"
	"FaceGrouping/internal/entity"
	"FaceGrouping/internal/launcher"
	contextPkg "FaceGrouping/pkg/context"

	"github.com/sirupsen/logrus"
)

// Health is healthy while at least one worker accepts work.
func (s *runtimeService) Health() (runtime.HealthResponse, bool) {
	if s.supervisor.Ready() {
		return runtime.HealthResponse{
			Status:  "healthy",
			Service: runtime.ServiceName,
		}, true
	}

	return runtime.HealthResponse{
		Status:  "degraded",
		Service: runtime.ServiceName,
		Workers: s.supervisor.Status().Workers,
	}, false
}

func (s *runtimeService) Status() runtime.StatusResponse {
	res := runtime.StatusResponse{Status: s.supervisor.Status()}
	if s.hub != nil {
		res.LogSubscribers = s.hub.Subscribers()
		res.LogDropped = s.hub.Dropped()
	}
	return res
}

func (s *runtimeService) Restart(ctx context.Context, operator entity.Operator, reason string) (runtime.RestartResponse, error) {
	if reason == "" {
		reason = "manual"
	}

	s.log.WithFields(logrus.Fields{
		"request_id": contextPkg.GetRequestID(ctx),
		"operator":   operator.Subject,
		"reason":     reason,
	}).Warn("Worker restart requested")

	if err := s.supervisor.Restart(reason); err != nil {
		return runtime.RestartResponse{}, err
	}

	return runtime.RestartResponse{
		Message:     "Workers are restarting",
		Reason:      reason,
		RequestedBy: operator.Subject,
		RequestedAt: time.Now().UTC(),
	}, nil
}

func (s *runtimeService) SubscribeLogs() (<-chan entity.WorkerLogLine, []entity.WorkerLogLine, func()) {
	return s.hub.Subscribe()
}

// Forward admits fn to a worker exactly like a grouping request.
func (s *runtimeService) Forward(ctx context.Context, fn func(ctx context.Context, ep launcher.Endpoint) error) error {
	return s.supervisor.Do(ctx, fn)
}
