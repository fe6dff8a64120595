package runtimeHandler

import (
	"context"
	"time"

	"FaceGrouping/internal/api/runtime"
	contextPkg "FaceGrouping/pkg/context"
	"FaceGrouping/pkg/handlerUtil"
	jwtPkg "FaceGrouping/pkg/jwt"
	"FaceGrouping/pkg/log"

	"github.com/gofiber/fiber/v2"
)

func (h *RuntimeHandler) Health(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)

	res, ok := h.runtimeService.Health()
	if !ok {
		return errHandler.HandleSuccess(ctx, fiber.StatusServiceUnavailable, res)
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
}

func (h *RuntimeHandler) Status(ctx *fiber.Ctx) error {
	errHandler := handlerUtil.New(h.log)
	return errHandler.HandleSuccess(ctx, fiber.StatusOK, h.runtimeService.Status())
}

func (h *RuntimeHandler) Restart(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 10*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing restart workers request")

	var req runtime.RestartRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	operator, err := jwtPkg.GetOperator(ctx)
	if err != nil {
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized")
	}

	res, err := h.runtimeService.Restart(c, operator, req.Reason)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "restart_workers")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusAccepted, res)
	}
}
