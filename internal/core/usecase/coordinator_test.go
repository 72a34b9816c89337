package usecase

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/policy"
)

func fiveListings() []domain.Listing {
	return []domain.Listing{
		{ID: "L1", Price: 400000},
		{ID: "L2", Price: 410000},
		{ID: "L3", Price: 420000},
		{ID: "L4", Price: 430000},
		{ID: "L5", Price: 440000},
	}
}

func threeAnalyzers() (*analyzerFake, *analyzerFake, *analyzerFake) {
	return &analyzerFake{dim: domain.DimensionLocality},
		&analyzerFake{dim: domain.DimensionHazard},
		&analyzerFake{dim: domain.DimensionAffordability}
}

func testCoordinatorPolicy() policy.CoordinatorPolicy {
	return policy.CoordinatorPolicy{
		MaxConcurrent:   6,
		AnalyzerTimeout: 2 * time.Second,
		Budget:          5 * time.Second,
	}
}

func TestPendingRecordMergeIsOrderIndependent(t *testing.T) {
	listing := domain.Listing{ID: "L1"}
	results := map[domain.Dimension]*domain.SubResult{
		domain.DimensionLocality:      {Dimension: domain.DimensionLocality, Score: 18},
		domain.DimensionHazard:        {Dimension: domain.DimensionHazard, Score: 17},
		domain.DimensionAffordability: {Dimension: domain.DimensionAffordability, Score: 10},
	}
	orders := [][]domain.Dimension{
		{domain.DimensionLocality, domain.DimensionHazard, domain.DimensionAffordability},
		{domain.DimensionLocality, domain.DimensionAffordability, domain.DimensionHazard},
		{domain.DimensionHazard, domain.DimensionLocality, domain.DimensionAffordability},
		{domain.DimensionHazard, domain.DimensionAffordability, domain.DimensionLocality},
		{domain.DimensionAffordability, domain.DimensionLocality, domain.DimensionHazard},
		{domain.DimensionAffordability, domain.DimensionHazard, domain.DimensionLocality},
	}

	var want domain.AnalysisRecord
	for i, order := range orders {
		rec := newPendingRecord(listing)
		if rec.status() != domain.RecordPending {
			t.Fatalf("order %d: initial status = %s", i, rec.status())
		}
		for j, dim := range order {
			last := rec.put(dim, results[dim], nil)
			if last != (j == len(order)-1) {
				t.Fatalf("order %d: put(%s) last = %v", i, dim, last)
			}
			if j == 0 && rec.status() != domain.RecordPartiallyComplete {
				t.Fatalf("order %d: status after first put = %s", i, rec.status())
			}
		}
		if !rec.settle("") {
			t.Fatalf("order %d: settle lost", i)
		}
		got := rec.wait()
		if got.Status != domain.RecordComplete {
			t.Fatalf("order %d: status = %s", i, got.Status)
		}
		if i == 0 {
			want = got
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("order %d produced %+v, want %+v", i, got, want)
		}
	}
}

func TestPendingRecordIgnoresDuplicateWrites(t *testing.T) {
	rec := newPendingRecord(domain.Listing{ID: "L1"})
	first := &domain.SubResult{Dimension: domain.DimensionHazard, Score: 20}
	second := &domain.SubResult{Dimension: domain.DimensionHazard, Score: 3}

	rec.put(domain.DimensionHazard, first, nil)
	if rec.put(domain.DimensionHazard, second, nil) {
		t.Fatal("duplicate write must not complete the record")
	}
	if rec.remaining.Load() != 2 {
		t.Fatalf("remaining = %d, want 2", rec.remaining.Load())
	}
	if !rec.settle("budget_exceeded") || rec.settle("budget_exceeded") {
		t.Fatal("settle must succeed exactly once")
	}
	got := rec.wait()
	if got.Hazard == nil || got.Hazard.Score != 20 {
		t.Fatalf("hazard = %+v, want first write", got.Hazard)
	}
	if got.Status != domain.RecordFailed || got.Failures[domain.DimensionLocality] != "budget_exceeded" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestCoordinatorGathersInInputOrder(t *testing.T) {
	loc, haz, aff := threeAnalyzers()
	loc.delays = map[string]time.Duration{"L1": 30 * time.Millisecond, "L2": 10 * time.Millisecond}
	aff.delays = map[string]time.Duration{"L5": 20 * time.Millisecond}
	c := NewCoordinator([]ListingAnalyzer{loc, haz, aff}, testCoordinatorPolicy(), nil)

	records := c.Gather(context.Background(), fiveListings(), domain.AnalysisRequest{})
	if len(records) != 5 {
		t.Fatalf("records = %d, want 5", len(records))
	}
	for i, rec := range records {
		if rec.ListingID() != fiveListings()[i].ID {
			t.Fatalf("record %d = %s", i, rec.ListingID())
		}
		if rec.Status != domain.RecordComplete {
			t.Fatalf("record %s status = %s", rec.ListingID(), rec.Status)
		}
	}
	if loc.calls.Load() != 5 || haz.calls.Load() != 5 || aff.calls.Load() != 5 {
		t.Fatalf("each analyzer must run once per listing")
	}
}

func TestCoordinatorIsolatesSingleAnalyzerFailure(t *testing.T) {
	loc, haz, aff := threeAnalyzers()
	haz.errs = map[string]error{
		"L3": domain.WrapError(domain.ErrDataUnavailable, "hazard profile lookup", errors.New("missing")),
	}
	obs := &observerFake{}
	c := NewCoordinator([]ListingAnalyzer{loc, haz, aff}, testCoordinatorPolicy(), obs)

	records := c.Gather(context.Background(), fiveListings(), domain.AnalysisRequest{})
	for _, rec := range records {
		if rec.ListingID() == "L3" {
			if rec.Status != domain.RecordFailed || rec.Hazard != nil {
				t.Fatalf("L3 = %+v, want failed without hazard", rec)
			}
			if rec.Failures[domain.DimensionHazard] != "data_unavailable" {
				t.Fatalf("L3 failure = %q", rec.Failures[domain.DimensionHazard])
			}
			if rec.Locality == nil || rec.Affordability == nil {
				t.Fatalf("L3 lost healthy dimensions: %+v", rec)
			}
			continue
		}
		if rec.Status != domain.RecordComplete {
			t.Fatalf("%s status = %s", rec.ListingID(), rec.Status)
		}
	}
	if obs.analyzers["hazard:data_unavailable"] != 1 || obs.analyzers["hazard:ok"] != 4 {
		t.Fatalf("unexpected analyzer observations %v", obs.analyzers)
	}
}

func TestCoordinatorAnalyzerTimeout(t *testing.T) {
	loc, haz, aff := threeAnalyzers()
	loc.delays = map[string]time.Duration{"L1": time.Second}
	p := testCoordinatorPolicy()
	p.AnalyzerTimeout = 20 * time.Millisecond
	c := NewCoordinator([]ListingAnalyzer{loc, haz, aff}, p, nil)

	records := c.Gather(context.Background(), fiveListings()[:1], domain.AnalysisRequest{})
	if records[0].Failures[domain.DimensionLocality] != "upstream_timeout" {
		t.Fatalf("failures = %v, want locality upstream_timeout", records[0].Failures)
	}
}

func TestCoordinatorBudgetSettlesPartialRecords(t *testing.T) {
	loc, haz, aff := threeAnalyzers()
	haz.delays = map[string]time.Duration{"L2": 10 * time.Second}
	p := testCoordinatorPolicy()
	p.AnalyzerTimeout = 30 * time.Second
	p.Budget = 50 * time.Millisecond
	c := NewCoordinator([]ListingAnalyzer{loc, haz, aff}, p, nil)

	started := time.Now()
	records := c.Gather(context.Background(), fiveListings(), domain.AnalysisRequest{})
	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("Gather took %s, budget not enforced", elapsed)
	}
	l2 := records[1]
	if l2.Status != domain.RecordFailed || l2.Hazard != nil {
		t.Fatalf("L2 = %+v, want failed without hazard", l2)
	}
	if reason := l2.Failures[domain.DimensionHazard]; reason != missingBudgetReason && reason != "upstream_timeout" {
		t.Fatalf("L2 hazard failure = %q", reason)
	}
	if l2.Locality == nil || l2.Affordability == nil {
		t.Fatalf("L2 lost finished dimensions: %+v", l2)
	}
	if records[0].Status != domain.RecordComplete {
		t.Fatalf("L1 status = %s", records[0].Status)
	}
}

type gaugeAnalyzer struct {
	dim      domain.Dimension
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (g gaugeAnalyzer) Dimension() domain.Dimension { return g.dim }

func (g gaugeAnalyzer) Analyze(context.Context, domain.Listing, domain.AnalysisRequest) (domain.SubResult, error) {
	current := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		peak := g.peak.Load()
		if current <= peak || g.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	return domain.SubResult{Dimension: g.dim, Score: 10, MaxScore: 25}, nil
}

func TestCoordinatorRespectsConcurrencyCeiling(t *testing.T) {
	var inFlight, peak atomic.Int32
	analyzers := []ListingAnalyzer{
		gaugeAnalyzer{dim: domain.DimensionLocality, inFlight: &inFlight, peak: &peak},
		gaugeAnalyzer{dim: domain.DimensionHazard, inFlight: &inFlight, peak: &peak},
		gaugeAnalyzer{dim: domain.DimensionAffordability, inFlight: &inFlight, peak: &peak},
	}
	p := testCoordinatorPolicy()
	p.MaxConcurrent = 2
	c := NewCoordinator(analyzers, p, nil)

	records := c.Gather(context.Background(), fiveListings(), domain.AnalysisRequest{})
	if len(records) != 5 {
		t.Fatalf("records = %d", len(records))
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

type panickingAnalyzer struct{}

func (panickingAnalyzer) Dimension() domain.Dimension { return domain.DimensionLocality }

func (panickingAnalyzer) Analyze(context.Context, domain.Listing, domain.AnalysisRequest) (domain.SubResult, error) {
	panic("boom")
}

func TestCoordinatorRecoversAnalyzerPanic(t *testing.T) {
	_, haz, aff := threeAnalyzers()
	c := NewCoordinator([]ListingAnalyzer{panickingAnalyzer{}, haz, aff}, testCoordinatorPolicy(), nil)

	records := c.Gather(context.Background(), fiveListings()[:1], domain.AnalysisRequest{})
	if records[0].Failures[domain.DimensionLocality] != "internal" {
		t.Fatalf("failures = %v, want locality internal", records[0].Failures)
	}
}

func TestCoordinatorEmptyInput(t *testing.T) {
	c := NewCoordinator(nil, testCoordinatorPolicy(), nil)
	if got := c.Gather(context.Background(), nil, domain.AnalysisRequest{}); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestCoordinatorBudgetFollowsCallerDeadline(t *testing.T) {
	loc, haz, aff := threeAnalyzers()
	haz.delays = map[string]time.Duration{"L1": time.Second}
	p := testCoordinatorPolicy()
	p.AnalyzerTimeout = 30 * time.Second
	c := NewCoordinator([]ListingAnalyzer{loc, haz, aff}, p, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	records := c.Gather(ctx, fiveListings()[:2], domain.AnalysisRequest{})
	if elapsed := time.Since(started); elapsed > 500*time.Millisecond {
		t.Fatalf("Gather took %s, want it to stop before the caller deadline", elapsed)
	}
	if reason := records[0].Failures[domain.DimensionHazard]; reason != missingBudgetReason && reason != "upstream_timeout" {
		t.Fatalf("L1 hazard failure = %q", reason)
	}
	if records[0].Locality == nil || records[0].Affordability == nil {
		t.Fatalf("L1 lost finished dimensions: %+v", records[0])
	}
	if records[1].Status != domain.RecordComplete {
		t.Fatalf("L2 = %+v, want complete", records[1])
	}
}

func TestEffectiveBudgetCapsAtDeadline(t *testing.T) {
	c := NewCoordinator(nil, policy.CoordinatorPolicy{Budget: 5 * time.Second}, nil)

	if got := c.effectiveBudget(context.Background()); got != 5*time.Second {
		t.Fatalf("no deadline: budget = %s, want 5s", got)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got := c.effectiveBudget(ctx)
	if got >= time.Second || got < 800*time.Millisecond {
		t.Fatalf("1s deadline: budget = %s, want just under 1s", got)
	}

	unbounded := NewCoordinator(nil, policy.CoordinatorPolicy{}, nil)
	if got := unbounded.effectiveBudget(ctx); got <= 0 || got >= time.Second {
		t.Fatalf("zero budget with deadline = %s", got)
	}

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	if got := c.effectiveBudget(expired); got <= 0 || got > time.Millisecond {
		t.Fatalf("expired deadline: budget = %s", got)
	}
}

func TestGatherAndRankAreIdempotent(t *testing.T) {
	loc, haz, aff := threeAnalyzers()
	loc.scores = map[string]float64{"L1": 12, "L3": 22}
	loc.delays = map[string]time.Duration{"L2": 15 * time.Millisecond}
	haz.errs = map[string]error{
		"L4": domain.WrapError(domain.ErrDataUnavailable, "hazard profile lookup", errors.New("missing")),
	}
	aff.delays = map[string]time.Duration{"L5": 10 * time.Millisecond}
	c := NewCoordinator([]ListingAnalyzer{loc, haz, aff}, testCoordinatorPolicy(), nil)
	ranker := NewRanker(policy.Default())
	req := domain.AnalysisRequest{Priorities: []domain.Priority{domain.PrioritySafety}}

	run := func() ([]domain.AnalysisRecord, Ranking) {
		records := c.Gather(context.Background(), fiveListings(), req)
		ranking, err := ranker.Rank(records, req.Priorities)
		if err != nil {
			t.Fatalf("Rank() error = %v", err)
		}
		return records, ranking
	}

	firstRecords, firstRanking := run()
	secondRecords, secondRanking := run()
	if !reflect.DeepEqual(firstRecords, secondRecords) {
		t.Fatalf("records differ between runs:\n%+v\n%+v", firstRecords, secondRecords)
	}
	if !reflect.DeepEqual(firstRanking, secondRanking) {
		t.Fatalf("ranking differs between runs:\n%+v\n%+v", firstRanking, secondRanking)
	}
}

func TestCountUnsettledSkipsSettledRecords(t *testing.T) {
	untouched := newPendingRecord(domain.Listing{ID: "L1"})
	partial := newPendingRecord(domain.Listing{ID: "L2"})
	partial.put(domain.DimensionLocality, &domain.SubResult{Score: 10}, nil)
	settled := newPendingRecord(domain.Listing{ID: "L3"})
	settled.put(domain.DimensionHazard, &domain.SubResult{Score: 10}, nil)
	settled.settle(missingBudgetReason)

	pending, partials := countUnsettled([]*pendingRecord{untouched, partial, settled})
	if pending != 1 || partials != 1 {
		t.Fatalf("pending=%d partial=%d, want 1 and 1", pending, partials)
	}
}
