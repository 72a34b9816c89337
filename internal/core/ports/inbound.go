package ports

import (
	"context"
	"io"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

// AnalysisPayload is the loosely typed request body as decoded from JSON.
type AnalysisPayload map[string]any

// HomeAdvisor is the inbound contract for the full analysis pipeline.
type HomeAdvisor interface {
	Analyze(ctx context.Context, requestID string, payload AnalysisPayload) (*domain.Report, error)
}

// HistoryReader is the inbound read model for recorded requests.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

// HistoryExporter renders recorded requests as a spreadsheet.
type HistoryExporter interface {
	ExportHistory(ctx context.Context, entries []domain.HistoryEntry, w io.Writer) error
}

// HistoryIngestor is the inbound contract for the history worker.
type HistoryIngestor interface {
	Ingest(ctx context.Context, raw []byte) error
}

// ListingIndexService rebuilds the vector index from the warehouse.
type ListingIndexService interface {
	Reindex(ctx context.Context) (int, error)
}
