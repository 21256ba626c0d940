package httpapi

import (
	"time"

	"github.com/dmitrijs2005/cookieauth/internal/common"
	"github.com/dmitrijs2005/cookieauth/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextRequestIDKey holds the request id in the gin context.
const ContextRequestIDKey = "request_id"

// RequestID propagates the X-Request-ID header, generating one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.RequestIDHeaderName)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestIDKey, id)
		c.Header(common.RequestIDHeaderName, id)
		c.Next()
	}
}

// RequestLogger logs one line per request after it completes.
func RequestLogger(l logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"request_id", c.GetString(ContextRequestIDKey),
		}
		if uid, ok := c.Get(ContextUserIDKey); ok {
			args = append(args, "user_id", uid)
		}

		switch {
		case c.Writer.Status() >= 500:
			l.Error(c.Request.Context(), "request", args...)
		case c.Writer.Status() >= 400:
			l.Warn(c.Request.Context(), "request", args...)
		default:
			l.Info(c.Request.Context(), "request", args...)
		}
	}
}
