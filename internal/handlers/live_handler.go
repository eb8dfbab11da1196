package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"detectx-service/internal/metrics"
	"detectx-service/internal/models"
	"detectx-service/internal/services"
)

const (
	startTimeout     = 15 * time.Second
	streamPingPeriod = 30 * time.Second
	streamWriteWait  = 5 * time.Second
)

// CameraLister lists the capture devices available on this host
type CameraLister func() ([]string, error)

// LiveHandler controls the live detection loop and exposes its state
type LiveHandler struct {
	loop     *services.LiveLoop
	cameras  CameraLister
	metrics  *metrics.Metrics
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a new live handler
func NewLiveHandler(loop *services.LiveLoop, cameras CameraLister, m *metrics.Metrics, logger *zap.Logger) *LiveHandler {
	return &LiveHandler{
		loop:    loop,
		cameras: cameras,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// same origin policy as the CORS layer
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Start begins live detection
func (h *LiveHandler) Start(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), startTimeout)
	defer cancel()

	if err := h.loop.Start(ctx); err != nil {
		respondError(c, "Failed to start live detection", err)
		return
	}

	c.JSON(http.StatusOK, h.loop.Snapshot())
}

// Stop ends live detection and releases the camera
func (h *LiveHandler) Stop(c *gin.Context) {
	if err := h.loop.Stop(); err != nil {
		h.logger.Warn("Frame source release reported an error", zap.Error(err))
	}

	c.JSON(http.StatusOK, h.loop.Snapshot())
}

// State returns the current loop state
func (h *LiveHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.loop.Snapshot())
}

// History returns the recent detection results, newest first
func (h *LiveHandler) History(c *gin.Context) {
	c.JSON(http.StatusOK, models.HistoryResponse{
		Capacity: h.loop.HistoryCapacity(),
		Results:  h.loop.History(),
	})
}

// Frame returns the latest annotated frame as JPEG
func (h *LiveHandler) Frame(c *gin.Context) {
	frame := h.loop.LatestOverlay()
	if frame == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: "No frame available",
		})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/jpeg", frame)
}

// Cameras lists capture devices
func (h *LiveHandler) Cameras(c *gin.Context) {
	cameras, err := h.cameras()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to list cameras: " + err.Error(),
		})
		return
	}
	if cameras == nil {
		cameras = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"cameras": cameras})
}

// Stream pushes a state snapshot over a websocket on every loop change
func (h *LiveHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.loop.Subscribe()
	defer unsubscribe()

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	// the client never sends data; reading surfaces close frames and dead peers
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.writeState(conn, h.loop.Snapshot()); err != nil {
		return
	}

	ping := time.NewTicker(streamPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case state, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(streamWriteWait))
				return
			}
			if err := h.writeState(conn, state); err != nil {
				h.logger.Debug("Websocket write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) writeState(conn *websocket.Conn, state models.LoopState) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteWait)); err != nil {
		return err
	}
	return conn.WriteJSON(state)
}
