package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"detectx-service/internal/models"
	"detectx-service/internal/services"
)

// jsonBodySlack covers the data URI prefix and JSON framing around the base64 payload
const jsonBodySlack = 64 << 10

// DetectHandler handles single image detection requests
type DetectHandler struct {
	uploads  *services.UploadService
	validate *validator.Validate
	maxBytes int64
}

// NewDetectHandler creates a new detect handler
func NewDetectHandler(uploads *services.UploadService, maxBytes int64) *DetectHandler {
	return &DetectHandler{
		uploads:  uploads,
		validate: validator.New(),
		maxBytes: maxBytes,
	}
}

// Detect handles data-URI image detection requests
func (h *DetectHandler) Detect(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, jsonBodyLimit(h.maxBytes))
	}

	var req models.DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
				Error: fmt.Sprintf("Request body exceeds maximum of %d bytes", tooLarge.Limit),
			})
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
		})
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Validation failed: " + err.Error(),
		})
		return
	}

	resp, err := h.uploads.DetectImage(c.Request.Context(), req.Image)
	if err != nil {
		respondError(c, "Failed to detect objects", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// DetectMultipart handles multipart form image uploads
func (h *DetectHandler) DetectMultipart(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: "Failed to get file from form: " + err.Error(),
		})
		return
	}

	if h.maxBytes > 0 && file.Size > h.maxBytes {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxBytes),
		})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to open file: " + err.Error(),
		})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error: "Failed to read file: " + err.Error(),
		})
		return
	}

	resp, err := h.uploads.DetectBytes(c.Request.Context(), data)
	if err != nil {
		respondError(c, "Failed to detect objects", err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// jsonBodyLimit bounds a JSON body carrying a base64 image of at most maxBytes
func jsonBodyLimit(maxBytes int64) int64 {
	return (maxBytes+2)/3*4 + jsonBodySlack
}
