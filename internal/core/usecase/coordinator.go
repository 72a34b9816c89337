package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/policy"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

const (
	outcomeOK           = "ok"
	missingBudgetReason = "budget_exceeded"

	// Share of the caller's remaining time held back for ranking and the response.
	deadlineMarginDivisor = 10
	maxDeadlineMargin     = 250 * time.Millisecond
)

// Coordinator fans every listing out to every analyzer and gathers the
// results into one record per listing.
type Coordinator struct {
	analyzers []ListingAnalyzer
	policy    policy.CoordinatorPolicy
	observer  ports.AnalysisObserver
}

func NewCoordinator(analyzers []ListingAnalyzer, p policy.CoordinatorPolicy, observer ports.AnalysisObserver) *Coordinator {
	if observer == nil {
		observer = ports.NoopObserver{}
	}
	if p.MaxConcurrent <= 0 {
		p.MaxConcurrent = 1
	}
	return &Coordinator{
		analyzers: analyzers,
		policy:    p,
		observer:  observer,
	}
}

// Gather returns one settled record per listing, in input order. It returns
// when every record is settled or the budget expires, whichever comes first.
func (c *Coordinator) Gather(ctx context.Context, listings []domain.Listing, req domain.AnalysisRequest) []domain.AnalysisRecord {
	if len(listings) == 0 {
		return []domain.AnalysisRecord{}
	}

	budget := c.effectiveBudget(ctx)
	budgetCtx := ctx
	if budget > 0 {
		var cancel context.CancelFunc
		budgetCtx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	records := make([]*pendingRecord, len(listings))
	for i, listing := range listings {
		records[i] = newPendingRecord(listing)
	}

	settledCh := make(chan int, len(listings))
	sem := semaphore.NewWeighted(int64(c.policy.MaxConcurrent))

	for i, rec := range records {
		for _, analyzer := range c.analyzers {
			go c.runTask(budgetCtx, sem, analyzer, rec, i, req, settledCh)
		}
		if len(c.analyzers) < len(domain.Dimensions) {
			c.fillUnconfigured(rec, i, settledCh)
		}
	}

	settled := 0
wait:
	for settled < len(records) {
		select {
		case <-settledCh:
			settled++
		case <-budgetCtx.Done():
			break wait
		}
	}

	if settled < len(records) {
		pending, partial := countUnsettled(records)
		slog.Warn("analysis_budget_exceeded",
			"listings", len(records),
			"settled", settled,
			"partial", partial,
			"pending", pending,
			"budget", budget.String(),
		)
		for _, rec := range records {
			rec.settle(missingBudgetReason)
		}
	}

	out := make([]domain.AnalysisRecord, len(records))
	for i, rec := range records {
		out[i] = rec.wait()
	}
	return out
}

func countUnsettled(records []*pendingRecord) (pending, partial int) {
	for _, rec := range records {
		switch rec.status() {
		case domain.RecordPending:
			pending++
		case domain.RecordPartiallyComplete:
			partial++
		}
	}
	return pending, partial
}

// effectiveBudget caps the configured budget so gathering ends a little before
// the caller's deadline. Zero means no budget.
func (c *Coordinator) effectiveBudget(ctx context.Context) time.Duration {
	budget := c.policy.Budget
	deadline, ok := ctx.Deadline()
	if !ok {
		return budget
	}
	remaining := time.Until(deadline)
	margin := min(remaining/deadlineMarginDivisor, maxDeadlineMargin)
	capped := remaining - margin
	if capped <= 0 {
		capped = time.Nanosecond
	}
	if budget <= 0 || capped < budget {
		return capped
	}
	return budget
}

func (c *Coordinator) runTask(
	ctx context.Context,
	sem *semaphore.Weighted,
	analyzer ListingAnalyzer,
	rec *pendingRecord,
	index int,
	req domain.AnalysisRequest,
	settledCh chan<- int,
) {
	dim := analyzer.Dimension()
	started := time.Now()

	result, err := c.invoke(ctx, sem, analyzer, rec.listing, req)
	outcome := outcomeOK
	if err != nil {
		outcome = domain.KindOf(err)
		slog.Warn("analyzer_failed",
			"dimension", string(dim),
			"listing_id", rec.listing.ID,
			"error_kind", outcome,
			"error", err,
		)
	}
	c.observer.ObserveAnalyzer(dim, outcome, time.Since(started))

	if rec.put(dim, result, err) && rec.settle("") {
		settledCh <- index
	}
}

func (c *Coordinator) invoke(
	ctx context.Context,
	sem *semaphore.Weighted,
	analyzer ListingAnalyzer,
	listing domain.Listing,
	req domain.AnalysisRequest,
) (result *domain.SubResult, err error) {
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, domain.WrapError(domain.ErrUpstreamTimeout, "analyzer slot", err)
	}
	defer sem.Release(1)

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = domain.WrapError(domain.ErrInternal, "analyzer panic", fmt.Errorf("%v", r))
		}
	}()

	taskCtx := ctx
	if c.policy.AnalyzerTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, c.policy.AnalyzerTimeout)
		defer cancel()
	}

	res, err := analyzer.Analyze(taskCtx, listing, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !domain.IsKind(err, domain.ErrUpstreamTimeout) {
			err = domain.WrapError(domain.ErrUpstreamTimeout, string(analyzer.Dimension())+" analyze", err)
		}
		return nil, err
	}
	if res.Dimension == "" {
		res.Dimension = analyzer.Dimension()
	}
	if res.MaxScore > 0 {
		res.Score = clamp(res.Score, 0, res.MaxScore)
	}
	return &res, nil
}

// fillUnconfigured marks dimensions without an analyzer as unavailable so the
// record can still settle.
func (c *Coordinator) fillUnconfigured(rec *pendingRecord, index int, settledCh chan<- int) {
	configured := make(map[domain.Dimension]struct{}, len(c.analyzers))
	for _, a := range c.analyzers {
		configured[a.Dimension()] = struct{}{}
	}
	for _, dim := range domain.Dimensions {
		if _, ok := configured[dim]; ok {
			continue
		}
		err := domain.WrapError(domain.ErrDataUnavailable, string(dim)+" analyze", errors.New("analyzer not configured"))
		if rec.put(dim, nil, err) && rec.settle("") {
			settledCh <- index
		}
	}
}
