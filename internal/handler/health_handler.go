package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exam-practice/internal/database"
	"github.com/stemsi/exam-practice/internal/response"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports whether the backing stores answer.
type HealthHandler struct {
	checks map[string]database.Pinger
}

// NewHealthHandler creates a HealthHandler over the named dependencies.
func NewHealthHandler(checks map[string]database.Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health godoc
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	if status != http.StatusOK {
		c.JSON(status, response.Response{
			Data:     gin.H{"status": "degraded", "checks": results},
			Error:    &response.ErrorBody{Code: response.ErrUnavailable, Message: response.GetMessage(response.ErrUnavailable)},
			Metadata: response.NewMetadata(c),
		})
		return
	}
	response.Success(c, status, gin.H{"status": "ok", "checks": results})
}
