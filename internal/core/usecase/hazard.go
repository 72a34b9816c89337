package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/policy"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

type HazardAnalyzer struct {
	warehouse ports.ListingWarehouse
	notes     ports.NoteWriter
	policy    policy.HazardPolicy
	maxScore  float64
}

func NewHazardAnalyzer(warehouse ports.ListingWarehouse, notes ports.NoteWriter, p policy.Policy) *HazardAnalyzer {
	return &HazardAnalyzer{
		warehouse: warehouse,
		notes:     notes,
		policy:    p.Hazard,
		maxScore:  p.SubScoreMax,
	}
}

func (a *HazardAnalyzer) Dimension() domain.Dimension {
	return domain.DimensionHazard
}

func (a *HazardAnalyzer) Analyze(ctx context.Context, listing domain.Listing, _ domain.AnalysisRequest) (domain.SubResult, error) {
	profile, err := a.warehouse.GetHazardProfile(ctx, listing.ID)
	if err != nil {
		return domain.SubResult{}, classifyLookupError("hazard profile lookup", err)
	}
	if profile == nil || len(profile.Risks) == 0 {
		return domain.SubResult{}, domain.WrapError(
			domain.ErrDataUnavailable,
			"hazard profile lookup",
			fmt.Errorf("listing %s has no hazard profile", listing.ID),
		)
	}

	result := ScoreHazards(profile.Risks, a.policy, a.maxScore)
	a.appendWrittenNotes(ctx, listing, &result)
	return result, nil
}

// ScoreHazards deducts a fixed penalty per elevated category from the maximum
// and floors the result at zero.
func ScoreHazards(risks map[domain.HazardCategory]domain.RiskLevel, p policy.HazardPolicy, maxScore float64) domain.SubResult {
	result := domain.SubResult{
		Dimension: domain.DimensionHazard,
		MaxScore:  maxScore,
		Pros:      []domain.Observation{},
		Cons:      []domain.Observation{},
	}

	levels := make(map[string]string, len(risks))
	var penalty float64
	elevated := 0
	for _, category := range orderedCategories(risks) {
		level := NormalizeRiskLevel(string(risks[category]))
		levels[string(category)] = string(level)

		deduction, known := p.Penalty(level)
		if !known {
			result.Notes = append(result.Notes, fmt.Sprintf("unrecognized %s risk level %q scored as medium", category, risks[category]))
		}
		penalty += deduction
		if deduction > 0 {
			elevated++
			result.Cons = append(result.Cons, con(fmt.Sprintf("%s %s risk", titleWord(string(level)), category)))
		}
		if category == domain.HazardFlood && (level == domain.RiskHigh || level == domain.RiskSevere) {
			result.Cons = append(result.Cons, con("Flood insurance likely required"))
		}
	}

	if elevated == 0 {
		result.Pros = append(result.Pros, pro("Low natural hazard exposure", domain.PriorityLowHazardRisk, domain.PrioritySafety))
	}
	result.Score = round2(clamp(maxScore-penalty, 0, maxScore))
	result.Details = map[string]any{
		"risk_levels":         levels,
		"penalty":             penalty,
		"elevated_categories": elevated,
	}
	return result
}

// NormalizeRiskLevel maps free-form warehouse values onto the ordinal scale.
func NormalizeRiskLevel(raw string) domain.RiskLevel {
	switch strings.ToLower(strings.Join(strings.Fields(raw), " ")) {
	case "none", "no risk", "":
		return domain.RiskNone
	case "low", "minimal", "very low":
		return domain.RiskLow
	case "medium", "moderate":
		return domain.RiskMedium
	case "high", "elevated":
		return domain.RiskHigh
	case "severe", "very high", "extreme":
		return domain.RiskSevere
	default:
		return domain.RiskUnknown
	}
}

// orderedCategories yields the known categories first, then any extra ones by name.
func orderedCategories(risks map[domain.HazardCategory]domain.RiskLevel) []domain.HazardCategory {
	out := make([]domain.HazardCategory, 0, len(risks))
	known := make(map[domain.HazardCategory]struct{}, len(domain.HazardCategories))
	for _, c := range domain.HazardCategories {
		known[c] = struct{}{}
		if _, ok := risks[c]; ok {
			out = append(out, c)
		}
	}
	extra := make([]domain.HazardCategory, 0)
	for c := range risks {
		if _, ok := known[c]; !ok {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (a *HazardAnalyzer) appendWrittenNotes(ctx context.Context, listing domain.Listing, result *domain.SubResult) {
	if a.notes == nil {
		return
	}
	facts := map[string]any{
		"risk_levels": result.Details["risk_levels"],
		"score":       result.Score,
		"max_score":   result.MaxScore,
	}
	pros, cons, err := a.notes.WriteNotes(ctx, domain.DimensionHazard, listing, facts)
	if err != nil {
		slog.Warn("hazard_notes_failed", "listing_id", listing.ID, "error", err)
		return
	}
	result.Pros = append(result.Pros, textObservations(pros)...)
	result.Cons = append(result.Cons, textObservations(cons)...)
}
