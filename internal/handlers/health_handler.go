package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"detectx-service/internal/models"
	"detectx-service/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	checker *services.HealthChecker
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker *services.HealthChecker) *HealthHandler {
	return &HealthHandler{
		checker: checker,
	}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready reports the service as ready and includes the last known backend status.
// Live detection can only start once the backend is online.
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, models.ReadyResponse{
		Status:  "ok",
		Backend: h.checker.Status(),
	})
}
