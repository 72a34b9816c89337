package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

const (
	analysisStatusOK       = "ok"
	analysisStatusEmpty    = "empty"
	analysisStatusFailed   = "failed"
	analysisStatusRejected = "rejected"
)

// AdvisorUseCase runs the full request pipeline: normalize, retrieve,
// analyze, rank, summarize and record.
type AdvisorUseCase struct {
	normalizer  *Normalizer
	retriever   *CandidateRetriever
	coordinator *Coordinator
	ranker      *Ranker
	summarizer  ports.Summarizer
	recorder    *HistoryRecorder
	observer    ports.AnalysisObserver
	now         func() time.Time
}

func NewAdvisorUseCase(
	normalizer *Normalizer,
	retriever *CandidateRetriever,
	coordinator *Coordinator,
	ranker *Ranker,
	summarizer ports.Summarizer,
	recorder *HistoryRecorder,
	observer ports.AnalysisObserver,
) *AdvisorUseCase {
	if observer == nil {
		observer = ports.NoopObserver{}
	}
	return &AdvisorUseCase{
		normalizer:  normalizer,
		retriever:   retriever,
		coordinator: coordinator,
		ranker:      ranker,
		summarizer:  summarizer,
		recorder:    recorder,
		observer:    observer,
		now:         time.Now,
	}
}

func (uc *AdvisorUseCase) Analyze(ctx context.Context, requestID string, payload ports.AnalysisPayload) (*domain.Report, error) {
	started := uc.now()

	req, err := uc.normalizer.Normalize(payload)
	if err != nil {
		uc.observer.ObserveAnalysis(analysisStatusRejected, 0, time.Since(started))
		return nil, err
	}

	retrieval, err := uc.retriever.Retrieve(ctx, req.Criteria)
	if err != nil {
		uc.observer.ObserveAnalysis(analysisStatusFailed, 0, time.Since(started))
		return nil, classifyUpstreamError("retrieve candidates", err)
	}
	uc.observer.ObserveRetrieval(len(retrieval.Listings), len(retrieval.Relaxations))
	slog.Info("candidates_retrieved",
		"request_id", requestID,
		"pool", retrieval.Pool,
		"candidates", len(retrieval.Listings),
		"relaxations", strings.Join(retrieval.Relaxations, ","),
	)

	// Records that missed the deadline come back failed; rank what settled.
	records := uc.coordinator.Gather(ctx, retrieval.Listings, req)

	report := &domain.Report{
		RequestID:          requestID,
		TopRecommendations: []domain.Recommendation{},
		AnalysisTimestamp:  uc.now().UTC(),
	}

	status := analysisStatusOK
	ranking, err := uc.ranker.Rank(records, req.Priorities)
	switch {
	case errors.Is(err, domain.ErrRetrievalEmpty):
		status = analysisStatusEmpty
	case err != nil:
		uc.observer.ObserveAnalysis(analysisStatusFailed, len(records), time.Since(started))
		return nil, domain.WrapError(domain.ErrInternal, "rank listings", err)
	default:
		uc.summarize(ctx, ranking.Top, req.Priorities)
		report.TopRecommendations = ranking.Top
	}
	report.Summary = uc.ranker.Summarize(ranking, req.Criteria, retrieval.Relaxations)

	duration := uc.now().Sub(started)
	uc.observer.ObserveAnalysis(status, len(records), duration)
	slog.Info("analysis_completed",
		"request_id", requestID,
		"listings", len(records),
		"top", len(report.TopRecommendations),
		"recommendation_status", string(report.Summary.RecommendationStatus),
		"duration_ms", duration.Milliseconds(),
	)

	if uc.recorder != nil {
		uc.recorder.Record(ctx, domain.HistoryEntry{
			RequestID:          requestID,
			Timestamp:          report.AnalysisTimestamp,
			SearchCriteria:     req.Criteria,
			FinancialInfo:      req.Financial,
			Priorities:         req.Priorities,
			TopRecommendations: report.TopRecommendations,
			Summary:            report.Summary,
			DurationMS:         duration.Milliseconds(),
			Status:             status,
		})
	}
	return report, nil
}

// summarize fills each recommendation's summary in place, falling back to a
// template when the generator fails or the request deadline has passed.
func (uc *AdvisorUseCase) summarize(ctx context.Context, recs []domain.Recommendation, priorities []domain.Priority) {
	var g errgroup.Group
	for i := range recs {
		g.Go(func() error {
			recs[i].Summary = templateSummary(recs[i], priorities)
			if uc.summarizer == nil || ctx.Err() != nil {
				return nil
			}
			text, err := uc.summarizer.Summarize(ctx, recs[i], priorities)
			if err != nil {
				slog.Warn("summary_generation_failed", "listing_id", recs[i].ListingID, "error", err)
				return nil
			}
			if text = strings.TrimSpace(text); text != "" {
				recs[i].Summary = text
			}
			return nil
		})
	}
	_ = g.Wait()
}

func templateSummary(rec domain.Recommendation, priorities []domain.Priority) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s bed, %s bath home listed at %s with an overall score of %.1f/100 (%s).",
		rec.Address,
		formatCount(rec.Bedrooms),
		formatCount(rec.Bathrooms),
		formatMoney(rec.Price),
		rec.TotalScore,
		rec.Status,
	)
	if len(rec.Pros) > 0 {
		strengths := rec.Pros
		if len(strengths) > 2 {
			strengths = strengths[:2]
		}
		b.WriteString(" Strengths: " + strings.Join(strengths, "; ") + ".")
	}
	if len(rec.MatchedPriorities) > 0 {
		names := make([]string, 0, len(rec.MatchedPriorities))
		for _, p := range rec.MatchedPriorities {
			names = append(names, string(p))
		}
		b.WriteString(" Matches your priorities: " + strings.Join(names, ", ") + ".")
	} else if len(priorities) > 0 {
		b.WriteString(" Does not clearly match your stated priorities.")
	}
	if len(rec.Cons) > 0 {
		b.WriteString(" Watch out for: " + rec.Cons[0] + ".")
	}
	return b.String()
}

func classifyUpstreamError(operation string, err error) error {
	switch {
	case domain.IsKind(err, domain.ErrUpstreamTimeout), domain.IsKind(err, domain.ErrTemporary):
		return fmt.Errorf("%s: %w", operation, err)
	case errors.Is(err, context.DeadlineExceeded):
		return domain.WrapError(domain.ErrUpstreamTimeout, operation, err)
	default:
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
}
