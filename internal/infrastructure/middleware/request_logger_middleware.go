package middleware

import (
	"context"
	"time"

	"perch/pkg/logger"
	"perch/pkg/utils"

	"github.com/gin-gonic/gin"
)

// RequestLoggingMiddleware logs every request through the context logger,
// tagged with a request ID that is echoed back to the caller.
func RequestLoggingMiddleware(cl *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Probes and scrapes would drown the log
		switch c.Request.URL.Path {
		case "/health", "/ready", "/metrics":
			c.Next()
			return
		}

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}
		c.Writer.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(c.Request.Context(), "request_id", requestID)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		// Auth runs further down the chain, so by now the request context
		// carries the viewer identity when the token was valid.
		cl.LogRequest(c.Request.Context(), c.Request.Method, path, c.Writer.Status(), time.Since(start).Milliseconds())
	}
}
