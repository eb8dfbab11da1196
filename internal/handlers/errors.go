package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"detectx-service/internal/models"
	"detectx-service/internal/services"
)

// errorStatus maps service errors to HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrBackendUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, services.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNetworkFailure),
		errors.Is(err, services.ErrMalformedResponse),
		errors.Is(err, services.ErrDetectionRejected):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, msg string, err error) {
	c.JSON(errorStatus(err), models.ErrorResponse{
		Error: msg + ": " + err.Error(),
	})
}
