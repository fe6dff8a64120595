package runtimeHandler

import (
	runtimeService "FaceGrouping/internal/api/runtime/service"
	"FaceGrouping/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type RuntimeHandler struct {
	log            *logrus.Logger
	validator      *validator.Validate
	middleware     middleware.Middleware
	runtimeService runtimeService.IRuntimeService
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	runtimeService runtimeService.IRuntimeService,
) *RuntimeHandler {
	return &RuntimeHandler{
		log:            log,
		validator:      validate,
		middleware:     middleware,
		runtimeService: runtimeService,
	}
}

func (h *RuntimeHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Get("/health", h.Health)

	rt := srv.Group("/runtime")
	rt.Get("/status", h.Status)
	rt.Post("/restart", h.middleware.NewTokenMiddleware, h.Restart)
	rt.Use("/logs/ws", h.middleware.NewTokenMiddleware, wsMiddleware)
	rt.Get("/logs/ws", websocket.New(h.StreamLogs))

	srv.All("/worker/*", h.ProxyWorker)
}
