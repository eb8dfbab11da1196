package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"detectx-service/internal/models"
	"detectx-service/internal/services"
)

const backendCheckTimeout = 5 * time.Second

// BackendHandler reports and re-evaluates the detector backend status
type BackendHandler struct {
	checker    *services.HealthChecker
	backendURL string
}

// NewBackendHandler creates a new backend handler
func NewBackendHandler(checker *services.HealthChecker, backendURL string) *BackendHandler {
	return &BackendHandler{
		checker:    checker,
		backendURL: backendURL,
	}
}

// GetBackend returns the last evaluated backend status
func (h *BackendHandler) GetBackend(c *gin.Context) {
	c.JSON(http.StatusOK, models.BackendResponse{
		Status:     h.checker.Status(),
		BackendURL: h.backendURL,
	})
}

// CheckBackend probes the backend again and returns the new status
func (h *BackendHandler) CheckBackend(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), backendCheckTimeout)
	defer cancel()

	c.JSON(http.StatusOK, models.BackendResponse{
		Status:     h.checker.Check(ctx),
		BackendURL: h.backendURL,
	})
}
