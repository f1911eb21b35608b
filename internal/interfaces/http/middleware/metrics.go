package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request count and latency per route template. Unmatched
// routes are folded into a single "unmatched" path label.
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
