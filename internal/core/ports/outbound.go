package ports

import (
	"context"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

// Embedder builds vectors for listing descriptions and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ListingSearcher performs semantic search over indexed listings.
type ListingSearcher interface {
	SearchListings(ctx context.Context, queryVector []float32, limit int) ([]domain.Candidate, error)
}

// ListingIndexer upserts listing vectors with their attributes as payload.
type ListingIndexer interface {
	IndexListings(ctx context.Context, listings []domain.Listing, vectors [][]float32) error
}

// ListingWarehouse reads reference data owned by the data warehouse.
type ListingWarehouse interface {
	ListListings(ctx context.Context, afterID string, limit int) ([]domain.Listing, error)
	GetNeighborhood(ctx context.Context, neighborhoodID string) (*domain.Neighborhood, error)
	FindNeighborhoodByGeohash(ctx context.Context, cell string) (*domain.Neighborhood, error)
	GetHazardProfile(ctx context.Context, listingID string) (*domain.HazardProfile, error)
	GetLendingParams(ctx context.Context) (*domain.LendingParams, error)
}

// TextGenerator is the black-box LLM used for notes and summaries.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// NoteWriter produces qualitative pros/cons for one analysis dimension.
type NoteWriter interface {
	WriteNotes(ctx context.Context, dim domain.Dimension, listing domain.Listing, facts map[string]any) (pros, cons []string, err error)
}

// Summarizer writes the short explanatory text for a recommendation.
type Summarizer interface {
	Summarize(ctx context.Context, rec domain.Recommendation, priorities []domain.Priority) (string, error)
}

// HistoryPublisher hands history entries to asynchronous persistence.
type HistoryPublisher interface {
	PublishHistory(ctx context.Context, entry domain.HistoryEntry) error
}

// HistoryStore persists and lists completed request/response pairs.
type HistoryStore interface {
	Append(ctx context.Context, entry domain.HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

// AnalysisObserver receives pipeline measurements.
type AnalysisObserver interface {
	ObserveRetrieval(candidates int, relaxations int)
	ObserveAnalyzer(dim domain.Dimension, outcome string, duration time.Duration)
	ObserveAnalysis(status string, listings int, duration time.Duration)
	ObserveHistoryPublish(err error)
}

type NoopObserver struct{}

func (NoopObserver) ObserveRetrieval(int, int)                               {}
func (NoopObserver) ObserveAnalyzer(domain.Dimension, string, time.Duration) {}
func (NoopObserver) ObserveAnalysis(string, int, time.Duration)              {}
func (NoopObserver) ObserveHistoryPublish(error)                             {}

// EventValidator checks a serialized event against its published contract.
type EventValidator interface {
	ValidateHistoryEvent(raw []byte) error
}
