package runtimeHandler

import (
	"context"

	"FaceGrouping/internal/launcher"
	contextPkg "FaceGrouping/pkg/context"
	"FaceGrouping/pkg/handlerUtil"
	"FaceGrouping/pkg/log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/proxy"
)

// ProxyWorker passes /worker/<path> through to a worker under the same
// admission rules as grouping requests. Like grouping it sets no deadline.
func (h *RuntimeHandler) ProxyWorker(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithCancel(contextPkg.FromFiberCtx(ctx))
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	path := "/" + ctx.Params("*")
	query := string(ctx.Request().URI().QueryString())

	err := h.runtimeService.Forward(c, func(_ context.Context, ep launcher.Endpoint) error {
		target := ep.BaseURL + path
		if query != "" {
			target += "?" + query
		}

		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"worker":     ep.WorkerID,
			"target":     target,
		}).Debug("Forwarding request to worker")

		return proxy.Do(ctx, target)
	})
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "proxy_worker")
	}

	return nil
}
