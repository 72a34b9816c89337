package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

const maxAnalyzeBodyBytes = 1 << 20

func (rt *Router) analyze(w http.ResponseWriter, r *http.Request) {
	requestID := requestIDFromContext(r.Context())

	var payload ports.AnalysisPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBodyBytes))
	if err := decoder.Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid json",
			"fields": []domain.FieldError{{Field: "body", Message: decodeMessage(err)}},
		})
		return
	}
	if payload == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid json",
			"fields": []domain.FieldError{{Field: "body", Message: "request body must be a JSON object"}},
		})
		return
	}

	ctx := r.Context()
	if timeout := rt.cfg.RequestTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report, err := rt.advisor.Analyze(ctx, requestID, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrUpstreamTimeout) {
			err = domain.WrapError(domain.ErrUpstreamTimeout, "analyze", err)
		}
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) listHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := rt.history.Recent(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (rt *Router) exportHistory(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	entries, err := rt.history.Recent(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	filename := fmt.Sprintf("analysis-history-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := rt.exporter.ExportHistory(r.Context(), entries, w); err != nil {
		// Headers may already be flushed; log and abort the body.
		slog.Error("history_export_failed",
			"request_id", requestIDFromContext(r.Context()),
			"error", err,
		)
	}
}

// parseLimit passes 0 through for the default; the use case clamps the rest.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": []domain.FieldError{{Field: "limit", Message: "must be a non-negative integer"}},
		})
		return 0, false
	}
	return limit, true
}

func decodeMessage(err error) string {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)
	case errors.Is(err, io.EOF):
		return "request body is empty"
	default:
		return "request body is not valid JSON"
	}
}
