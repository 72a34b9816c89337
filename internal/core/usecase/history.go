package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

const (
	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 50
)

// HistoryRecorder publishes completed analyses without blocking the response.
type HistoryRecorder struct {
	publisher ports.HistoryPublisher
	observer  ports.AnalysisObserver
	timeout   time.Duration
	wg        sync.WaitGroup
}

func NewHistoryRecorder(publisher ports.HistoryPublisher, observer ports.AnalysisObserver, timeout time.Duration) *HistoryRecorder {
	if observer == nil {
		observer = ports.NoopObserver{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HistoryRecorder{
		publisher: publisher,
		observer:  observer,
		timeout:   timeout,
	}
}

// Record hands the entry to the publisher in the background. Failures are
// logged and counted; they never reach the caller.
func (r *HistoryRecorder) Record(ctx context.Context, entry domain.HistoryEntry) {
	if r == nil || r.publisher == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		err := r.publisher.PublishHistory(pubCtx, entry)
		r.observer.ObserveHistoryPublish(err)
		if err != nil {
			slog.Warn("history_publish_failed", "request_id", entry.RequestID, "error", err)
		}
	}()
}

// Wait blocks until in-flight publishes finish. Used on shutdown.
func (r *HistoryRecorder) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}

// HistoryIngestUseCase persists history events consumed by the worker.
type HistoryIngestUseCase struct {
	store     ports.HistoryStore
	validator ports.EventValidator
}

func NewHistoryIngestUseCase(store ports.HistoryStore, validator ports.EventValidator) *HistoryIngestUseCase {
	return &HistoryIngestUseCase{
		store:     store,
		validator: validator,
	}
}

func (uc *HistoryIngestUseCase) Ingest(ctx context.Context, raw []byte) error {
	if uc.validator != nil {
		if err := uc.validator.ValidateHistoryEvent(raw); err != nil {
			return domain.WrapError(domain.ErrValidation, "validate history event", err)
		}
	}

	var entry domain.HistoryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.WrapError(domain.ErrValidation, "decode history event", err)
	}
	if entry.RequestID == "" {
		return domain.WrapError(domain.ErrValidation, "decode history event", fmt.Errorf("request_id is required"))
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := uc.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// HistoryQueryUseCase serves the recent-history read model.
type HistoryQueryUseCase struct {
	store ports.HistoryStore
}

func NewHistoryQueryUseCase(store ports.HistoryStore) *HistoryQueryUseCase {
	return &HistoryQueryUseCase{store: store}
}

func (uc *HistoryQueryUseCase) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	entries, err := uc.store.Recent(ctx, ClampHistoryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if entries == nil {
		entries = []domain.HistoryEntry{}
	}
	return entries, nil
}

func ClampHistoryLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
