package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/nouraellm/drugovery/pkg/apperrors"
)

// statusForError maps service errors to an HTTP status and error code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrVersionNotFound):
		return http.StatusNotFound, "version_not_found"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperrors.ErrStaleVersion), errors.Is(err, apperrors.ErrTransient):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeServiceError logs err and writes the matching error response.
// Internal errors are logged at error level and their detail is withheld.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger, action string, fields ...zap.Field) {
	status, code := statusForError(err)
	message := err.Error()

	fields = append(fields, zap.Error(err))
	switch {
	case status == http.StatusServiceUnavailable:
		logger.Warn("Failed to "+action, fields...)
	case status >= http.StatusInternalServerError:
		logger.Error("Failed to "+action, fields...)
		message = "internal server error"
	default:
		logger.Debug("Rejected request to "+action, fields...)
	}

	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeBadRequest writes a 400 with the given code.
func writeBadRequest(w http.ResponseWriter, logger *zap.Logger, code, message string) {
	if err := ErrorResponse(w, http.StatusBadRequest, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// writeData writes data in the success envelope. Data that cannot be
// encoded turns into a 500.
func writeData(w http.ResponseWriter, logger *zap.Logger, status int, data any) {
	if err := WriteJSON(w, status, Envelope{Success: true, Data: data}); err != nil {
		logger.Error("Failed to encode response", zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", "internal server error"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
	}
}
