package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"learnhub.io/notifier/internal/pkg/logger"
)

// Health statuses.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
)

// Health is the body of the probe endpoints.
type Health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// GetLiveness handles GET /health/live.
func (s *Server) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, Health{Status: HealthStatusOK})
}

// GetReadiness handles GET /health/ready. Every registered dependency must
// answer within two seconds.
func (s *Server) GetReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			checks[name] = "error"
			healthy = false
			logger.Warn("readiness check failed", zap.String("check", name), zap.Error(err))
			continue
		}
		checks[name] = HealthStatusOK
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, Health{Status: HealthStatusDegraded, Checks: checks})
		return
	}
	c.JSON(http.StatusOK, Health{Status: HealthStatusOK, Checks: checks})
}
