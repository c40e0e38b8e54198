package handler

import (
	"net/http"
	"time"

	"book-rental-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// HealthCheck handles GET /health. It pings every dependency so the probe
// catches a broken Postgres or Redis, not just a live process.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status    string `json:"status"`
			LatencyMS int64  `json:"latency_ms"`
			Error     string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			start := time.Now()
			err := checker.Ping(c.Request.Context())
			d := depStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				d.Status = "unhealthy"
				d.Error = err.Error()
				allHealthy = false
			}
			deps[checker.Name()] = d
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
