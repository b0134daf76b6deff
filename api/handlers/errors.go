package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/media-fetch-go/internal/app"
	"github.com/yourusername/media-fetch-go/internal/domain"
)

// StatusClientClosedRequest is the non-standard status for a request the
// client cancelled
const StatusClientClosedRequest = 499

// statusForKind maps a failure kind to an HTTP status
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrStreamUnavailable:
		return http.StatusNotFound
	case domain.ErrResourceUnavailable:
		return http.StatusUnprocessableEntity
	case domain.ErrTransferFailed, domain.ErrTransferCorrupted, domain.ErrTranscodeFailed:
		return http.StatusBadGateway
	case domain.ErrCancelled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondPipelineError writes the JSON body for a failed fetch
func respondPipelineError(c *gin.Context, err error) {
	kind, ok := domain.KindOf(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(statusForKind(kind), gin.H{
		"error":   err.Error(),
		"kind":    kind,
		"message": kind.UserMessage(),
	})
}

// respondRequestError maps queue and request manager errors to a status
func respondRequestError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrRequestNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrInvalidState), errors.Is(err, app.ErrRequestActive):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
