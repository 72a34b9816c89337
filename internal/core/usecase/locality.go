package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/policy"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

type LocalityAnalyzer struct {
	warehouse ports.ListingWarehouse
	notes     ports.NoteWriter
	policy    policy.LocalityPolicy
	maxScore  float64
}

func NewLocalityAnalyzer(warehouse ports.ListingWarehouse, notes ports.NoteWriter, p policy.Policy) *LocalityAnalyzer {
	return &LocalityAnalyzer{
		warehouse: warehouse,
		notes:     notes,
		policy:    p.Locality,
		maxScore:  p.SubScoreMax,
	}
}

func (a *LocalityAnalyzer) Dimension() domain.Dimension {
	return domain.DimensionLocality
}

type localityMetric struct {
	name       string
	raw        float64
	normalized float64
	weight     float64
}

func (a *LocalityAnalyzer) Analyze(ctx context.Context, listing domain.Listing, _ domain.AnalysisRequest) (domain.SubResult, error) {
	hood, err := a.lookupNeighborhood(ctx, listing)
	if err != nil {
		return domain.SubResult{}, err
	}

	metrics, missing := a.metrics(hood)
	if len(metrics) == 0 {
		return domain.SubResult{}, domain.WrapError(
			domain.ErrDataUnavailable,
			"locality analyze",
			fmt.Errorf("neighborhood %s has no locality metrics", hood.ID),
		)
	}

	var weighted, weightSum float64
	normalized := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		weighted += m.weight * m.normalized
		weightSum += m.weight
		normalized[m.name] = round2(m.normalized)
	}
	score := 0.0
	if weightSum > 0 {
		score = a.maxScore * weighted / weightSum
	}

	result := domain.SubResult{
		Dimension: domain.DimensionLocality,
		Score:     round2(clamp(score, 0, a.maxScore)),
		MaxScore:  a.maxScore,
		Pros:      []domain.Observation{},
		Cons:      []domain.Observation{},
		Details: map[string]any{
			"neighborhood_id":   hood.ID,
			"neighborhood_name": hood.Name,
			"normalized":        normalized,
			"incomplete":        len(missing) > 0,
		},
	}
	for _, m := range metrics {
		result.Pros, result.Cons = appendLocalityObservations(result.Pros, result.Cons, m)
	}
	if len(missing) > 0 {
		result.Notes = append(result.Notes, "incomplete neighborhood data: missing "+strings.Join(missing, ", "))
		result.Cons = append(result.Cons, con("Incomplete neighborhood data"))
	}

	a.appendWrittenNotes(ctx, listing, hood, &result)
	return result, nil
}

func (a *LocalityAnalyzer) lookupNeighborhood(ctx context.Context, listing domain.Listing) (*domain.Neighborhood, error) {
	if listing.NeighborhoodID != "" {
		hood, err := a.warehouse.GetNeighborhood(ctx, listing.NeighborhoodID)
		switch {
		case err == nil && hood != nil:
			return hood, nil
		case err != nil && !domain.IsKind(err, domain.ErrNotFound):
			return nil, classifyLookupError("locality neighborhood lookup", err)
		}
	}

	cell := listing.GeohashCell()
	if cell == "" {
		return nil, domain.WrapError(
			domain.ErrDataUnavailable,
			"locality neighborhood lookup",
			fmt.Errorf("listing %s has no neighborhood reference", listing.ID),
		)
	}
	hood, err := a.warehouse.FindNeighborhoodByGeohash(ctx, cell)
	if err != nil {
		return nil, classifyLookupError("locality geohash lookup", err)
	}
	if hood == nil {
		return nil, domain.WrapError(
			domain.ErrDataUnavailable,
			"locality geohash lookup",
			fmt.Errorf("no neighborhood for cell %s", cell),
		)
	}
	return hood, nil
}

func (a *LocalityAnalyzer) metrics(hood *domain.Neighborhood) ([]localityMetric, []string) {
	metrics := make([]localityMetric, 0, 4)
	missing := make([]string, 0, 4)

	add := func(name string, value *float64, weight float64, normalize func(float64) float64) {
		if value == nil {
			missing = append(missing, name)
			return
		}
		if weight <= 0 {
			return
		}
		metrics = append(metrics, localityMetric{
			name:       name,
			raw:        *value,
			normalized: clip01(normalize(*value)),
			weight:     weight,
		})
	}

	p := a.policy
	add("school_rating", hood.SchoolRating, p.SchoolWeight, func(v float64) float64 {
		return safeRatio(v, p.SchoolRatingMax)
	})
	add("crime_rate", hood.CrimeRate, p.SafetyWeight, func(v float64) float64 {
		return 1 - safeRatio(v, p.CrimeRateCeiling)
	})
	add("amenity_density", hood.AmenityDensity, p.AmenityWeight, func(v float64) float64 {
		return safeRatio(v, p.AmenityDensityMax)
	})
	add("walk_score", hood.WalkScore, p.WalkabilityWeight, func(v float64) float64 {
		return safeRatio(v, p.WalkScoreMax)
	})
	return metrics, missing
}

func appendLocalityObservations(pros, cons []domain.Observation, m localityMetric) ([]domain.Observation, []domain.Observation) {
	strong := m.normalized >= 0.8
	weak := m.normalized <= 0.4
	switch m.name {
	case "school_rating":
		if strong {
			pros = append(pros, pro(fmt.Sprintf("Highly rated schools (%.1f/10)", m.raw), domain.PrioritySchoolDistrict))
		} else if weak {
			cons = append(cons, con(fmt.Sprintf("Below-average school ratings (%.1f/10)", m.raw)))
		}
	case "crime_rate":
		if strong {
			pros = append(pros, pro("Low crime rate", domain.PrioritySafety))
		} else if weak {
			cons = append(cons, con("Elevated crime rate"))
		}
	case "amenity_density":
		if strong {
			pros = append(pros, pro("Plenty of shops, parks and services nearby", domain.PriorityAmenities))
		} else if weak {
			cons = append(cons, con("Limited nearby amenities"))
		}
	case "walk_score":
		if strong {
			pros = append(pros, pro("Highly walkable neighborhood", domain.PriorityWalkability))
		} else if weak {
			cons = append(cons, con("Car-dependent area"))
		}
	}
	return pros, cons
}

func (a *LocalityAnalyzer) appendWrittenNotes(ctx context.Context, listing domain.Listing, hood *domain.Neighborhood, result *domain.SubResult) {
	if a.notes == nil {
		return
	}
	facts := map[string]any{
		"neighborhood": hood.Name,
		"description":  hood.Description,
		"score":        result.Score,
		"max_score":    result.MaxScore,
		"normalized":   result.Details["normalized"],
	}
	pros, cons, err := a.notes.WriteNotes(ctx, domain.DimensionLocality, listing, facts)
	if err != nil {
		slog.Warn("locality_notes_failed", "listing_id", listing.ID, "error", err)
		return
	}
	result.Pros = append(result.Pros, textObservations(pros)...)
	result.Cons = append(result.Cons, textObservations(cons)...)
}

func safeRatio(v, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return v / max
}
