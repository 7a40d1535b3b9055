package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/autoinspect/internal/platform/tracing"
	"github.com/fatflowers/autoinspect/pkg/tool"
)

// TraceMiddleware adds a trace ID to the request context and opens a span
// named after the matched route.
// It reads X-Request-ID if provided by the client; otherwise generates one.
// The trace ID is stored in both gin.Context (key: "traceID") and the request's context.Context.
func TraceMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Request-ID")
		if traceID == "" {
			traceID = tool.NewTraceID()
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := tracing.Start(c.Request.Context(), c.Request.Method+" "+route)
		defer span.End()

		// Attach to gin context and request context
		c.Set("traceID", traceID)
		ctx = context.WithValue(ctx, "traceID", traceID)
		c.Request = c.Request.WithContext(ctx)

		log.Debugw("request started", "trace_id", traceID, "route", route)
		c.Next()
	}
}
