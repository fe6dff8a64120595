package groupingHandler

import (
	"context"
	"errors"
	"time"

	"FaceGrouping/internal/api/grouping"
	contextPkg "FaceGrouping/pkg/context"
	"FaceGrouping/pkg/handlerUtil"
	"FaceGrouping/pkg/log"

	"github.com/gofiber/fiber/v2"
)

const readTimeout = 10 * time.Second

// GroupPhotos sets no deadline of its own. The worker timeout is enforced by
// the launcher, which must see it expire to recycle the worker.
func (h *GroupingHandler) GroupPhotos(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithCancel(contextPkg.FromFiberCtx(ctx))
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing group photos request")

	var req grouping.GroupRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.groupingService.GroupPhotos(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "group_photos")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *GroupingHandler) AnalyzePhoto(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithCancel(contextPkg.FromFiberCtx(ctx))
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing analyze photo request")

	var req grouping.AnalyzeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	res, err := h.groupingService.AnalyzePhoto(c, req)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "analyze_photo")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *GroupingHandler) GetRun(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), readTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	id := ctx.Params("id")
	if id == "" {
		return errHandler.HandleValidationError(ctx, requestID,
			errors.New("run ID is required"), ctx.Path())
	}

	run, err := h.groupingService.GetRun(c, id)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_run")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, run)
	}
}
