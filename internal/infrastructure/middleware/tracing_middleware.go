package middleware

import (
	"fmt"
	"time"

	"perch/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware opens a span per request and propagates it through
// the request context.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		// Probes and scrapes only add noise to traces
		switch path {
		case "/health", "/ready", "/metrics":
			c.Next()
			return
		}

		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, path)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		span.SetAttributes(
			attribute.String("http.client_ip", c.ClientIP()),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.duration_ms", time.Since(start).Milliseconds()),
		)
		// Auth runs further down the chain, so the viewer is only
		// known once the handlers are done.
		if v, ok := c.Get("viewer_id"); ok {
			span.SetAttributes(tracing.ViewerIDKey.String(fmt.Sprint(v)))
		}

		if c.Writer.Status() >= 400 {
			tracing.SetSpanStatus(ctx, codes.Error, c.Errors.String())
			return
		}
		tracing.SetSpanStatus(ctx, codes.Ok, "")
	}
}
