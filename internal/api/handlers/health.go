package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// HealthCheck 이름 붙은 의존성 확인 (postgres, redis)
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler 하나라도 실패하면 503
type HealthHandler struct {
	checks []HealthCheck
}

func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(gin.H, len(h.checks))
	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[check.Name] = err.Error()
			continue
		}
		results[check.Name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"service": "hadesstar-bot",
		"checks":  results,
	})
}
