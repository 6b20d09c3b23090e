package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leaselens/leaselens/internal/infrastructure/logging"
	"github.com/leaselens/leaselens/internal/infrastructure/metrics"
)

// LoggingConfig tunes the request log middleware.
type LoggingConfig struct {
	// SkipPaths are not logged (health probes, metrics scrapes).
	SkipPaths []string

	// SlowThreshold promotes a request to a warning once exceeded.
	SlowThreshold time.Duration
}

// DefaultLoggingConfig skips the probe endpoints and flags requests over
// three seconds.
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/health", "/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// RequestLogging logs one line per request and records the HTTP metrics.
// 5xx responses log at error level, 4xx and slow requests at warn.
// m may be nil.
func RequestLogging(log logging.Logger, m *metrics.Metrics, cfg LoggingConfig) gin.HandlerFunc {
	log = log.Named("http")
	skip := make(map[string]bool, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		// Route template, not the raw path, to bound metric cardinality.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		if m != nil {
			m.RecordHTTPRequest(c.Request.Method, path, status, duration)
		}

		fields := []logging.Field{
			logging.String("method", c.Request.Method),
			logging.String("path", c.Request.URL.Path),
			logging.Int("status", status),
			logging.Duration("duration", duration),
			logging.Int("bytes", c.Writer.Size()),
			logging.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logging.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			log.Error("request failed", fields...)
		case status >= 400:
			log.Warn("request rejected", fields...)
		case cfg.SlowThreshold > 0 && duration > cfg.SlowThreshold:
			log.Warn("slow request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
