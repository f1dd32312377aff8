package handlers

import (
	"errors"
	"net/http"

	"irrigation_controller/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK      = "ok"
	statusStarted = "started"
	statusStopped = "stopped"
	statusDeleted = "deleted"
	statusReset   = "reset"

	errInvalidBodyPref = "invalid body: "
	errInvalidZoneID   = "invalid zone id"
)

// statusFor maps the service error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrConcurrency),
		errors.Is(err, service.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrConfig):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrHardware):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		if id, ok := operatorID(c); ok {
			fields = append(fields, "operator_id", id)
		}
		if httpCode >= http.StatusInternalServerError {
			h.log.Errorw(logKey, fields...)
		} else {
			h.log.Infow(logKey, fields...)
		}
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// respondServiceError writes err with the status its kind maps to. Messages of known kinds
// are safe to show; anything else is reported generically.
func (h *Handler) respondServiceError(c *gin.Context, logKey, fallback string, err error, kv ...interface{}) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = fallback
	}
	h.logAndJSONError(c, code, msg, logKey, err, kv...)
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
