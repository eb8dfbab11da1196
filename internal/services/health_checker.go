package services

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"detectx-service/internal/models"
)

// HealthProber probes backend reachability.
type HealthProber interface {
	Health(ctx context.Context) models.BackendStatus
}

// HealthChecker holds the tri-state backend status. It only changes on an explicit Check.
type HealthChecker struct {
	prober HealthProber
	logger *zap.Logger

	mu     sync.RWMutex
	status models.BackendStatus
}

// NewHealthChecker creates a checker in the checking state
func NewHealthChecker(prober HealthProber, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		prober: prober,
		logger: logger,
		status: models.BackendChecking,
	}
}

// Check re-evaluates the backend status and returns the result
func (h *HealthChecker) Check(ctx context.Context) models.BackendStatus {
	h.mu.Lock()
	h.status = models.BackendChecking
	h.mu.Unlock()

	status := h.prober.Health(ctx)
	if status != models.BackendOnline {
		status = models.BackendOffline
	}

	h.mu.Lock()
	h.status = status
	h.mu.Unlock()

	h.logger.Info("Backend status evaluated", zap.String("status", string(status)))
	return status
}

// Status returns the last evaluated status
func (h *HealthChecker) Status() models.BackendStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}
