package httpapi

import (
	"errors"
	"net/http"

	"wisefido-casebook/internal/domain"

	"go.uber.org/zap"
)

// writeError maps the domain error taxonomy to a status and envelope.
// Unexpected errors are logged here and surfaced as a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	if ve, ok := domain.AsValidationError(err); ok {
		res := Fail(ReasonValidationFailed, "validation failed")
		res.Errors = ve.Fields
		writeJSON(w, http.StatusBadRequest, res)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, Fail(ReasonUnauthenticated, "authentication required"))
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, Fail(ReasonInvalidCredentials, "invalid email or password"))
	case errors.Is(err, domain.ErrForbidden):
		writeJSON(w, http.StatusForbidden, Fail(ReasonForbidden, "access denied"))
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail(ReasonNotFound, "not found"))
	case errors.Is(err, domain.ErrDuplicateEmail):
		writeJSON(w, http.StatusBadRequest, Fail(ReasonDuplicateEmail, "email already registered"))
	case errors.Is(err, domain.ErrNoProviderAvailable):
		writeJSON(w, http.StatusBadRequest, Fail(ReasonNoProviderAvailable, "no provider available"))
	default:
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, Fail(ReasonInternalFailure, "internal server error"))
	}
}

// bodyError 请求体无法解析
func bodyError(err error) error {
	if errors.Is(err, errBodyTooLarge) {
		return domain.NewValidationError("body", "request body must be at most 1 MiB")
	}
	return domain.NewValidationError("body", "request body must be valid JSON")
}
