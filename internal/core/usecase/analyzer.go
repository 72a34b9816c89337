package usecase

import (
	"context"
	"errors"
	"math"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

// ListingAnalyzer scores one listing along a single dimension.
type ListingAnalyzer interface {
	Dimension() domain.Dimension
	Analyze(ctx context.Context, listing domain.Listing, req domain.AnalysisRequest) (domain.SubResult, error)
}

// classifyLookupError maps a collaborator failure onto the analyzer error taxonomy.
func classifyLookupError(operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), domain.IsKind(err, domain.ErrUpstreamTimeout):
		return domain.WrapError(domain.ErrUpstreamTimeout, operation, err)
	case domain.IsKind(err, domain.ErrDataUnavailable):
		return err
	default:
		return domain.WrapError(domain.ErrDataUnavailable, operation, err)
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clip01(v float64) float64 {
	return clamp(v, 0, 1)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func pro(text string, tags ...domain.Priority) domain.Observation {
	return domain.Observation{Text: text, Tags: tags}
}

func con(text string) domain.Observation {
	return domain.Observation{Text: text}
}

func textObservations(items []string) []domain.Observation {
	out := make([]domain.Observation, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		out = append(out, domain.Observation{Text: item})
	}
	return out
}
