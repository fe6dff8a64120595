package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const (
	RequestIDKey = "request_id"
	HeaderKey    = "X-Request-ID"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// FromFiberCtx derives a request-scoped context carrying the request ID set by
// the request ID middleware. The parent is the fiber user context so values
// attached upstream survive.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	parent := c.UserContext()
	if parent == nil {
		parent = context.Background()
	}

	requestID, ok := c.Locals(HeaderKey).(string)
	if !ok || requestID == "" {
		requestID = c.Get(HeaderKey)
		if requestID == "" {
			requestID = "unknown"
		}
	}

	return WithRequestID(parent, requestID)
}
