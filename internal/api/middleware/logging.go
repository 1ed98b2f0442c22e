package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Context keys handlers may set to enrich the request log line. The
// decision probe records the domain and the action taken on it, so the
// access log doubles as a decision trail.
const (
	LogDomainKey = "log.domain"
	LogActionKey = "log.action"
)

// SlogRequestLogger logs one line per request once the handler chain has
// run. Server errors log at ERROR and client errors at WARN, so filtering
// the stream by level surfaces API trouble directly.
func SlogRequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if logger == nil {
			c.Next()
			return
		}

		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
			"bytes", c.Writer.Size(),
		}
		if v, ok := c.Get(LogDomainKey); ok {
			attrs = append(attrs, "domain", v)
		}
		if v, ok := c.Get(LogActionKey); ok {
			attrs = append(attrs, "action", v)
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("api request", attrs...)
		case status >= http.StatusBadRequest:
			logger.Warn("api request", attrs...)
		default:
			logger.Info("api request", attrs...)
		}
	}
}
