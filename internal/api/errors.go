package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sponsormatch/internal/models"
)

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidPairing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrAlreadyExpressed),
		errors.Is(err, models.ErrAlreadyAccepted),
		errors.Is(err, models.ErrDuplicateExpression),
		errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrAccessDenied),
		errors.Is(err, models.ErrNotSender),
		errors.Is(err, models.ErrNotReceiver):
		return http.StatusForbidden
	case errors.Is(err, models.ErrReadOnlyConversation):
		return http.StatusLocked
	case errors.Is(err, models.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode is the stable machine-readable name of a domain error.
func errorCode(err error) string {
	codes := []struct {
		target error
		code   string
	}{
		{models.ErrInvalidPairing, "invalid_pairing"},
		{models.ErrAlreadyExpressed, "already_expressed"},
		{models.ErrAlreadyAccepted, "already_accepted"},
		{models.ErrDuplicateExpression, "duplicate_expression"},
		{models.ErrInvalidTransition, "invalid_transition"},
		{models.ErrNotFound, "not_found"},
		{models.ErrAccessDenied, "access_denied"},
		{models.ErrNotSender, "not_sender"},
		{models.ErrNotReceiver, "not_receiver"},
		{models.ErrReadOnlyConversation, "read_only_conversation"},
		{models.ErrPersistence, "persistence_failure"},
	}
	for _, c := range codes {
		if errors.Is(err, c.target) {
			return c.code
		}
	}
	return "internal"
}

// writeError renders err. Already-expressed and already-accepted conflicts
// are flagged as no-ops so clients can show a message instead of a failure.
// Persistence failures are marked retryable.
func (h *handlers) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error(), "code": errorCode(err)}
	switch {
	case errors.Is(err, models.ErrAlreadyExpressed), errors.Is(err, models.ErrAlreadyAccepted):
		body["noop"] = true
	case errors.Is(err, models.ErrAccessDenied):
		body["error"] = "mutual match required"
	case status == http.StatusServiceUnavailable:
		body["retryable"] = true
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, body)
}
