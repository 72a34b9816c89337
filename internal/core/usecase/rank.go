package usecase

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/policy"
)

const (
	labelHighlyRecommended = "Highly Recommended"
	labelRecommended       = "Recommended"
	labelCaution           = "Consider with Caution"
	labelNotRecommended    = "Not Recommended"
)

// Ranking holds every scored listing in rank order plus the top slice.
type Ranking struct {
	All []domain.Recommendation
	Top []domain.Recommendation
}

type Ranker struct {
	policy   policy.RankingPolicy
	maxScore float64
}

func NewRanker(p policy.Policy) *Ranker {
	return &Ranker{
		policy:   p.Ranking,
		maxScore: p.SubScoreMax,
	}
}

// Rank scores the records and orders them by total score desc, then price
// asc, then listing id asc. Empty input yields domain.ErrRetrievalEmpty.
func (r *Ranker) Rank(records []domain.AnalysisRecord, priorities []domain.Priority) (Ranking, error) {
	if len(records) == 0 {
		return Ranking{All: []domain.Recommendation{}, Top: []domain.Recommendation{}}, domain.ErrRetrievalEmpty
	}

	seen := make(map[string]struct{}, len(records))
	all := make([]domain.Recommendation, 0, len(records))
	for _, record := range records {
		if _, dup := seen[record.ListingID()]; dup {
			continue
		}
		seen[record.ListingID()] = struct{}{}
		all = append(all, r.score(record, priorities))
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].TotalScore != all[j].TotalScore {
			return all[i].TotalScore > all[j].TotalScore
		}
		if all[i].Price != all[j].Price {
			return all[i].Price < all[j].Price
		}
		return all[i].ListingID < all[j].ListingID
	})

	topN := r.policy.TopN
	if topN <= 0 || topN > len(all) {
		topN = len(all)
	}
	top := make([]domain.Recommendation, topN)
	copy(top, all[:topN])
	return Ranking{All: all, Top: top}, nil
}

func (r *Ranker) score(record domain.AnalysisRecord, priorities []domain.Priority) domain.Recommendation {
	l := record.Listing
	rec := domain.Recommendation{
		ListingID:     l.ID,
		Address:       l.Address,
		Price:         l.Price,
		Bedrooms:      l.Bedrooms,
		Bathrooms:     l.Bathrooms,
		SquareFootage: l.SquareFootage,
		Description:   l.Description,
	}

	var sum float64
	var pros, cons []domain.Observation
	var unavailable []string
	for _, dim := range domain.Dimensions {
		res := record.Result(dim)
		if res == nil {
			unavailable = append(unavailable, fmt.Sprintf("%s analysis unavailable", titleWord(string(dim))))
			continue
		}
		score := round2(res.Score)
		sum += res.Score
		switch dim {
		case domain.DimensionLocality:
			rec.LocalityScore = &score
		case domain.DimensionHazard:
			rec.HazardScore = &score
		case domain.DimensionAffordability:
			rec.AffordabilityScore = &score
			rec.MonthlyPayment = detailFloat(res.Details, "monthly_payment")
			rec.DebtToIncome = detailFloat(res.Details, "debt_to_income")
		}
		pros = append(pros, res.Pros...)
		cons = append(cons, res.Cons...)
	}

	base := 0.0
	if r.maxScore > 0 {
		base = sum * 100 / (float64(len(domain.Dimensions)) * r.maxScore)
	}

	rec.MatchedPriorities = matchPriorities(pros, priorities)
	rec.PriorityBonus = math.Min(r.policy.PriorityBonus*float64(len(rec.MatchedPriorities)), r.policy.PriorityBonusCap)
	rec.TotalScore = round2(clamp(base+rec.PriorityBonus, 0, 100))

	rec.Pros = orderPros(pros, priorities, r.policy.MaxObservations)
	rec.Cons = dedupTexts(append(textObservations(unavailable), cons...), r.policy.MaxObservations)
	rec.Status = r.label(rec.TotalScore)
	return rec
}

func (r *Ranker) label(total float64) string {
	switch {
	case total >= r.policy.HighlyRecommendedAbove:
		return labelHighlyRecommended
	case total >= r.policy.RecommendedThreshold:
		return labelRecommended
	case total >= r.policy.CautionThreshold:
		return labelCaution
	default:
		return labelNotRecommended
	}
}

// matchPriorities returns the requested priorities supported by at least one
// pro, either through its tags or by naming the priority in its text.
func matchPriorities(pros []domain.Observation, priorities []domain.Priority) []domain.Priority {
	matched := make([]domain.Priority, 0, len(priorities))
	for _, p := range priorities {
		for _, obs := range pros {
			if observationSupports(obs, p) {
				matched = append(matched, p)
				break
			}
		}
	}
	return matched
}

func observationSupports(obs domain.Observation, p domain.Priority) bool {
	for _, tag := range obs.Tags {
		if tag == p {
			return true
		}
	}
	return strings.Contains(strings.ToLower(obs.Text), string(p))
}

func orderPros(pros []domain.Observation, priorities []domain.Priority, limit int) []string {
	first := make([]domain.Observation, 0, len(pros))
	rest := make([]domain.Observation, 0, len(pros))
	for _, obs := range pros {
		supports := false
		for _, p := range priorities {
			if observationSupports(obs, p) {
				supports = true
				break
			}
		}
		if supports {
			first = append(first, obs)
		} else {
			rest = append(rest, obs)
		}
	}
	return dedupTexts(append(first, rest...), limit)
}

func dedupTexts(items []domain.Observation, limit int) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, obs := range items {
		text := strings.TrimSpace(obs.Text)
		key := strings.ToLower(text)
		if text == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, text)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func detailFloat(details map[string]any, key string) float64 {
	switch v := details[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

// Summarize builds the report summary from a ranking.
func (r *Ranker) Summarize(ranking Ranking, criteria domain.SearchCriteria, relaxations []string) domain.ReportSummary {
	summary := domain.ReportSummary{
		TotalListings:       len(ranking.All),
		RelaxedConstraints:  relaxations,
		CriteriaSuggestions: []string{},
	}

	caution := 0
	for _, rec := range ranking.All {
		switch {
		case rec.TotalScore >= r.policy.HighlyRecommendedAbove:
			summary.HighlyRecommendedCount++
			summary.RecommendedCount++
		case rec.TotalScore >= r.policy.RecommendedThreshold:
			summary.RecommendedCount++
		case rec.TotalScore >= r.policy.CautionThreshold:
			caution++
		}
	}

	if len(ranking.Top) > 0 {
		var total float64
		for _, rec := range ranking.Top {
			total += rec.TotalScore
		}
		summary.AverageScore = math.Round(total/float64(len(ranking.Top))*10) / 10
	}

	switch {
	case summary.HighlyRecommendedCount > 0:
		summary.RecommendationStatus = domain.StatusExcellent
		summary.GuidanceMessage = fmt.Sprintf("Great news! We found %d highly recommended properties that meet your criteria.", summary.HighlyRecommendedCount)
	case summary.RecommendedCount > 0:
		summary.RecommendationStatus = domain.StatusGood
		summary.GuidanceMessage = fmt.Sprintf("We found %d recommended properties for you. They are solid options that meet most of your criteria.", summary.RecommendedCount)
	case caution > 0:
		summary.RecommendationStatus = domain.StatusCaution
		summary.GuidanceMessage = fmt.Sprintf("No properties met the recommended threshold. Here are the %d best available options; consider adjusting your search criteria.", len(ranking.Top))
	default:
		summary.RecommendationStatus = domain.StatusNone
		summary.GuidanceMessage = "No suitable properties found with your current criteria. Consider adjusting your budget, location preferences, or other requirements and try again."
	}

	summary.CriteriaSuggestions = r.suggestions(ranking.All, criteria)
	return summary
}

func (r *Ranker) suggestions(all []domain.Recommendation, criteria domain.SearchCriteria) []string {
	if len(all) == 0 {
		return []string{
			"Try expanding your search area",
			"Consider increasing your budget",
			"Reduce minimum bedroom/bathroom requirements",
		}
	}

	var total float64
	unaffordable := 0
	for _, rec := range all {
		total += rec.TotalScore
		if rec.AffordabilityScore != nil && *rec.AffordabilityScore == 0 {
			unaffordable++
		}
	}
	avg := total / float64(len(all))

	out := make([]string, 0, 3)
	switch {
	case avg < r.policy.CautionThreshold:
		out = append(out,
			"Consider significantly increasing your budget for better property options",
			"Expand your search to include more neighborhoods",
		)
	case avg < r.policy.RecommendedThreshold:
		if float64(unaffordable) > float64(len(all))*0.5 {
			if criteria.HasPriceCeiling() {
				out = append(out, fmt.Sprintf("Consider lowering your price range to around %s for better affordability", formatMoney(criteria.PriceMax*0.8)))
			}
			out = append(out, "Consider increasing your down payment or reducing monthly debts")
		}
		out = append(out,
			"Look for properties in emerging neighborhoods with good growth potential",
			"Consider slightly older properties that may offer better value",
		)
	default:
		out = append(out, "Your criteria are well balanced; try expanding the search area for more options")
	}
	if len(out) > 3 {
		out = out[:3]
	}
	return out
}
