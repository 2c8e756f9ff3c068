package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/septivank/campus-water-monitor/internal/service"
)

// statusFor maps service failure kinds to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrComputationUndefined):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError records err for the request log and writes {"error": ...}.
// Unclassified failures are not echoed to the client.
func abortWithError(c *gin.Context, err error, extra gin.H) {
	_ = c.Error(err)

	status := statusFor(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		message = "internal server error"
	case http.StatusServiceUnavailable:
		message = "storage temporarily unavailable"
	}

	body := gin.H{"error": message}
	for k, v := range extra {
		body[k] = v
	}
	c.AbortWithStatusJSON(status, body)
}
