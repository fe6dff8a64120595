package runtimeService

import (
	"context"

	"FaceGrouping/internal/api/runtime"
	"FaceGrouping/internal/entity"
	"FaceGrouping/internal/launcher"
	websocketPkg "FaceGrouping/pkg/websocket"

	"github.com/sirupsen/logrus"
)

type IRuntimeService interface {
	Health() (runtime.HealthResponse, bool)
	Status() runtime.StatusResponse
	Restart(ctx context.Context, operator entity.Operator, reason string) (runtime.RestartResponse, error)
	SubscribeLogs() (<-chan entity.WorkerLogLine, []entity.WorkerLogLine, func())
	Forward(ctx context.Context, fn func(ctx context.Context, ep launcher.Endpoint) error) error
}

// Supervisor is the part of the launcher the runtime API drives.
type Supervisor interface {
	Status() launcher.Status
	Ready() bool
	Restart(reason string) error
	Do(ctx context.Context, fn func(ctx context.Context, ep launcher.Endpoint) error) error
}

type runtimeService struct {
	log        *logrus.Logger
	supervisor Supervisor
	hub        websocketPkg.IHub
}

func NewRuntimeService(
	log *logrus.Logger,
	supervisor Supervisor,
	hub websocketPkg.IHub,
) IRuntimeService {
	return &runtimeService{
		log:        log,
		supervisor: supervisor,
		hub:        hub,
	}
}
