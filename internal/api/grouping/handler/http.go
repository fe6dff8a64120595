package groupingHandler

import (
	groupingService "FaceGrouping/internal/api/grouping/service"
	"FaceGrouping/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type GroupingHandler struct {
	log             *logrus.Logger
	validator       *validator.Validate
	middleware      middleware.Middleware
	groupingService groupingService.IGroupingService
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	groupingService groupingService.IGroupingService,
) *GroupingHandler {
	return &GroupingHandler{
		log:             log,
		validator:       validate,
		middleware:      middleware,
		groupingService: groupingService,
	}
}

func (h *GroupingHandler) Start(srv fiber.Router) {
	srv.Post("/group", h.GroupPhotos)
	srv.Get("/group/:id", h.GetRun)
	srv.Post("/analyze", h.AnalyzePhoto)
}
