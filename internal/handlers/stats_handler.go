package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"detectx-service/internal/metrics"
	"detectx-service/internal/models"
	"detectx-service/internal/services"
)

// StatsHandler handles statistics requests
type StatsHandler struct {
	loop    *services.LiveLoop
	metrics *metrics.Metrics
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(loop *services.LiveLoop, m *metrics.Metrics) *StatsHandler {
	return &StatsHandler{
		loop:    loop,
		metrics: m,
	}
}

// GetStats returns service statistics
func (h *StatsHandler) GetStats(c *gin.Context) {
	state := h.loop.Snapshot()

	stats := models.StatsResponse{
		CyclesCompleted:   state.CyclesCompleted,
		CyclesFailed:      state.CyclesFailed,
		TicksSkipped:      state.TicksSkipped,
		AvgResponseTimeMs: h.metrics.AvgResponseTimeMs(),
	}
	if h.metrics != nil {
		stats.UploadsProcessed = int64(h.metrics.UploadsProcessed.Load())
	}

	c.JSON(http.StatusOK, stats)
}
