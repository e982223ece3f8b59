package middleware

import (
	"fmt"
	"time"

	"hospital-inventory/pkg/apperror"
	"hospital-inventory/pkg/logger"
	"hospital-inventory/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-Id"

// RequestLogger tags the request context with a request id and logs completion.
func RequestLogger(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)

		ctx := logg.WithRequestID(c.Request.Context(), reqID)
		ctx = logg.WithFields(ctx, map[string]any{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		})
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		fields := map[string]any{
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if uid := c.GetString(ContextUserID); uid != "" {
			fields["user_id"] = uid
		}
		done := logg.WithFields(c.Request.Context(), fields)
		if c.Writer.Status() >= 500 {
			logg.Warn(done, "request.complete")
			return
		}
		logg.Info(done, "request.complete")
	}
}

// Recovery turns panics into an INTERNAL_ERROR envelope.
func Recovery(logg *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				err := fmt.Errorf("panic: %v", rec)
				ctx := logg.WithFields(c.Request.Context(), map[string]any{"panic": fmt.Sprint(rec)})
				logg.Error(ctx, "panic.recovered", err)
				abortWithError(c, apperror.Wrap(apperror.CodeInternal, err, "panic"))
			}
		}()
		c.Next()
	}
}

// Metrics records request counts and latency by matched route.
func Metrics(m *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Observe(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
