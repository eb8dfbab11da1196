package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"detectx-service/internal/models"
	"detectx-service/internal/services"
)

// Export sources
const (
	ExportSourceUpload = "upload"
	ExportSourceLive   = "live"
)

// ExportHandler serves detection results as a downloadable JSON document
type ExportHandler struct {
	uploads *services.UploadService
	loop    *services.LiveLoop
	now     func() time.Time
}

// NewExportHandler creates a new export handler
func NewExportHandler(uploads *services.UploadService, loop *services.LiveLoop) *ExportHandler {
	return &ExportHandler{
		uploads: uploads,
		loop:    loop,
		now:     time.Now,
	}
}

// Export returns the last upload result (?source=upload, default) or the current live result (?source=live)
func (h *ExportHandler) Export(c *gin.Context) {
	now := h.now()

	var doc models.ExportDocument
	switch source := c.DefaultQuery("source", ExportSourceUpload); source {
	case ExportSourceUpload:
		last, ok := h.uploads.Last()
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "No detection results to export"})
			return
		}
		doc = services.BuildExport(last.Detections, &last.DataURI, now)

	case ExportSourceLive:
		state := h.loop.Snapshot()
		if state.Current == nil {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "No detection results to export"})
			return
		}
		var image *string
		if frame := h.loop.LatestOverlay(); frame != nil {
			uri := services.JPEGDataURI(frame)
			image = &uri
		}
		doc = services.BuildExport(state.Current.Detections, image, now)

	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Unknown export source: " + source})
		return
	}

	data, err := services.MarshalExport(doc)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: err.Error()})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+services.ExportFileName(now)+`"`)
	c.Data(http.StatusOK, "application/json", data)
}
