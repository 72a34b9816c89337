package httpadapter

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/config"
	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
	"github.com/kirillkom/homebuyer-advisor/internal/observability/metrics"
)

type advisorFake struct {
	report        *domain.Report
	err           error
	delay         time.Duration
	panicWith     any
	lastRequestID string
	lastPayload   ports.AnalysisPayload
}

func (f *advisorFake) Analyze(ctx context.Context, requestID string, payload ports.AnalysisPayload) (*domain.Report, error) {
	f.lastRequestID = requestID
	f.lastPayload = payload
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.report != nil {
		return f.report, nil
	}
	return &domain.Report{
		RequestID:          requestID,
		TopRecommendations: []domain.Recommendation{},
		AnalysisTimestamp:  time.Now().UTC(),
	}, nil
}

type historyFake struct {
	entries   []domain.HistoryEntry
	err       error
	lastLimit int
}

func (f *historyFake) Recent(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type exporterFake struct {
	exported int
}

func (f *exporterFake) ExportHistory(_ context.Context, entries []domain.HistoryEntry, w io.Writer) error {
	f.exported = len(entries)
	_, err := w.Write([]byte("PK-fake-xlsx"))
	return err
}

func testConfig() config.Config {
	return config.Config{
		ServiceName:           "homebuyer-advisor",
		Version:               "test",
		RequestTimeoutSeconds: 5,
		CORSAllowedOrigins:    "*",
	}
}

func newTestHandler(cfg config.Config, advisor *advisorFake, history *historyFake) http.Handler {
	if advisor == nil {
		advisor = &advisorFake{}
	}
	if history == nil {
		history = &historyFake{}
	}
	return NewRouter(cfg, advisor, history, &exporterFake{}, metrics.NewHTTPServerMetrics(cfg.ServiceName)).Handler()
}
