package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

type embedderFake struct {
	vectors    [][]float32
	err        error
	lastQuery  string
	embedCalls int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.lastQuery = text
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

type searcherFake struct {
	candidates []domain.Candidate
	err        error
	lastLimit  int
}

func (f *searcherFake) SearchListings(_ context.Context, _ []float32, limit int) ([]domain.Candidate, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

type indexerFake struct {
	batches [][]domain.Listing
	err     error
}

func (f *indexerFake) IndexListings(_ context.Context, listings []domain.Listing, _ [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, listings)
	return nil
}

type warehouseFake struct {
	listings        []domain.Listing
	neighborhoods   map[string]*domain.Neighborhood
	byGeohash       map[string]*domain.Neighborhood
	hazards         map[string]*domain.HazardProfile
	hazardErr       map[string]error
	hazardDelays    map[string]time.Duration
	lending         *domain.LendingParams
	lendingErr      error
	neighborhoodErr error
}

func (f *warehouseFake) ListListings(_ context.Context, afterID string, limit int) ([]domain.Listing, error) {
	out := make([]domain.Listing, 0, limit)
	for _, l := range f.listings {
		if l.ID <= afterID {
			continue
		}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *warehouseFake) GetNeighborhood(_ context.Context, id string) (*domain.Neighborhood, error) {
	if f.neighborhoodErr != nil {
		return nil, f.neighborhoodErr
	}
	if n, ok := f.neighborhoods[id]; ok {
		return n, nil
	}
	return nil, domain.ErrNotFound
}

func (f *warehouseFake) FindNeighborhoodByGeohash(_ context.Context, cell string) (*domain.Neighborhood, error) {
	if n, ok := f.byGeohash[cell]; ok {
		return n, nil
	}
	return nil, domain.ErrNotFound
}

func (f *warehouseFake) GetHazardProfile(ctx context.Context, listingID string) (*domain.HazardProfile, error) {
	if d := f.hazardDelays[listingID]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.hazardErr[listingID]; ok {
		return nil, err
	}
	if h, ok := f.hazards[listingID]; ok {
		return h, nil
	}
	return nil, domain.ErrNotFound
}

func (f *warehouseFake) GetLendingParams(context.Context) (*domain.LendingParams, error) {
	if f.lendingErr != nil {
		return nil, f.lendingErr
	}
	return f.lending, nil
}

type noteWriterFake struct {
	pros []string
	cons []string
	err  error
}

func (f *noteWriterFake) WriteNotes(context.Context, domain.Dimension, domain.Listing, map[string]any) ([]string, []string, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.pros, f.cons, nil
}

type summarizerFake struct {
	text string
	err  error
}

func (f *summarizerFake) Summarize(_ context.Context, rec domain.Recommendation, _ []domain.Priority) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text + " " + rec.ListingID, nil
}

type publisherFake struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	err     error
}

func (f *publisherFake) PublishHistory(_ context.Context, entry domain.HistoryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return f.err
}

func (f *publisherFake) published() []domain.HistoryEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.HistoryEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

type historyStoreFake struct {
	entries   []domain.HistoryEntry
	err       error
	lastLimit int
}

func (f *historyStoreFake) Append(_ context.Context, entry domain.HistoryEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *historyStoreFake) Recent(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type validatorFake struct {
	err error
}

func (f *validatorFake) ValidateHistoryEvent([]byte) error { return f.err }

// analyzerFake returns scripted results per listing with optional delays.
type analyzerFake struct {
	dim      domain.Dimension
	scores   map[string]float64
	errs     map[string]error
	delays   map[string]time.Duration
	calls    atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *analyzerFake) Dimension() domain.Dimension { return f.dim }

func (f *analyzerFake) Analyze(ctx context.Context, listing domain.Listing, _ domain.AnalysisRequest) (domain.SubResult, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	if d := f.delays[listing.ID]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return domain.SubResult{}, ctx.Err()
		}
	}
	if err := f.errs[listing.ID]; err != nil {
		return domain.SubResult{}, err
	}
	score := 20.0
	if s, ok := f.scores[listing.ID]; ok {
		score = s
	}
	return domain.SubResult{
		Dimension: f.dim,
		Score:     score,
		MaxScore:  25,
		Pros:      []domain.Observation{{Text: string(f.dim) + " strength"}},
		Cons:      []domain.Observation{},
	}, nil
}

type observerFake struct {
	mu        sync.Mutex
	analyzers map[string]int
	analyses  []string
	published int
	failed    int
}

func (f *observerFake) ObserveRetrieval(int, int) {}

func (f *observerFake) ObserveAnalyzer(dim domain.Dimension, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.analyzers == nil {
		f.analyzers = map[string]int{}
	}
	f.analyzers[string(dim)+":"+outcome]++
}

func (f *observerFake) ObserveAnalysis(status string, _ int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses = append(f.analyses, status)
}

func (f *observerFake) ObserveHistoryPublish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.failed++
		return
	}
	f.published++
}

func floatPtr(v float64) *float64 { return &v }
