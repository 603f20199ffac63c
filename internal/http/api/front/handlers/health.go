package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports service readiness.
type HealthHandler struct {
	check func(ctx context.Context) error
}

// NewHealthHandler constructs a HealthHandler. A nil check always reports ok.
func NewHealthHandler(check func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{check: check}
}

// Healthz returns ok when the backing store is reachable.
func (h *HealthHandler) Healthz(c *gin.Context) {
	if h.check != nil {
		if errCheck := h.check(c.Request.Context()); errCheck != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
