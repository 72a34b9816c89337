package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrUpstreamTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeDomainError renders err without leaking internals; details go to the log.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	requestID := requestIDFromContext(r.Context())

	switch status {
	case http.StatusBadRequest:
		fields := domain.FieldErrors(err)
		if fields == nil {
			fields = []domain.FieldError{}
		}
		writeJSON(w, status, map[string]any{
			"error":  "validation failed",
			"fields": fields,
		})
		return
	case http.StatusNotFound:
		writeJSON(w, status, map[string]string{"error": "not found"})
		return
	}

	slog.Error("request_failed",
		"request_id", requestID,
		"path", r.URL.Path,
		"status", status,
		"error_kind", domain.KindOf(err),
		"error", err,
	)

	switch status {
	case http.StatusGatewayTimeout:
		writeJSON(w, status, map[string]string{"error": "request timed out", "request_id": requestID})
	case http.StatusServiceUnavailable:
		writeJSON(w, status, map[string]string{"error": "upstream service unavailable", "request_id": requestID})
	default:
		writeJSON(w, status, map[string]string{"error": "internal server error", "request_id": requestID})
	}
}
