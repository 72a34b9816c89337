package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/policy"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

// Retrieval is the outcome of one retriever pass.
type Retrieval struct {
	Listings    []domain.Listing
	Relaxations []string
	Pool        int
}

type CandidateRetriever struct {
	embedder ports.Embedder
	searcher ports.ListingSearcher
	policy   policy.RetrievalPolicy
}

func NewCandidateRetriever(
	embedder ports.Embedder,
	searcher ports.ListingSearcher,
	p policy.RetrievalPolicy,
) *CandidateRetriever {
	if p.Limit <= 0 {
		p.Limit = policy.Default().Retrieval.Limit
	}
	if p.Overfetch <= 0 {
		p.Overfetch = 1
	}
	return &CandidateRetriever{
		embedder: embedder,
		searcher: searcher,
		policy:   p,
	}
}

func (r *CandidateRetriever) Retrieve(ctx context.Context, criteria domain.SearchCriteria) (Retrieval, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, BuildSearchQuery(criteria))
	if err != nil {
		return Retrieval{}, fmt.Errorf("embed query: %w", err)
	}

	candidates, err := r.searcher.SearchListings(ctx, queryVector, r.policy.Limit*r.policy.Overfetch)
	if err != nil {
		return Retrieval{}, fmt.Errorf("search listings: %w", err)
	}
	return r.filterWithLadder(candidates, criteria), nil
}

// filterWithLadder applies the hard constraints and, when nothing survives,
// relaxes them cumulatively in ladder order.
func (r *CandidateRetriever) filterWithLadder(candidates []domain.Candidate, criteria domain.SearchCriteria) Retrieval {
	ordered := make([]domain.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Similarity != ordered[j].Similarity {
			return ordered[i].Similarity > ordered[j].Similarity
		}
		return ordered[i].Listing.ID < ordered[j].Listing.ID
	})

	out := Retrieval{Pool: len(ordered)}
	constraints := newHardConstraints(criteria)
	applied := make([]string, 0, len(r.policy.Ladder))

	for step := 0; ; step++ {
		if matched := constraints.filter(ordered, r.policy.Limit); len(matched) > 0 {
			out.Listings = matched
			out.Relaxations = applied
			return out
		}
		if step >= len(r.policy.Ladder) {
			break
		}
		relax := r.policy.Ladder[step]
		constraints = constraints.relax(relax, criteria)
		applied = append(applied, relax.Label())
	}

	out.Listings = []domain.Listing{}
	out.Relaxations = applied
	return out
}

type hardConstraints struct {
	priceMin     float64
	priceMax     float64
	bedroomsMin  float64
	bathroomsMin float64
	propertyType string
}

func newHardConstraints(c domain.SearchCriteria) hardConstraints {
	return hardConstraints{
		priceMin:     c.PriceMin,
		priceMax:     c.PriceMax,
		bedroomsMin:  c.BedroomsMin,
		bathroomsMin: c.BathroomsMin,
		propertyType: strings.ToLower(strings.TrimSpace(c.PropertyType)),
	}
}

// relax widens the price band relative to the original criteria so that
// successive steps do not compound.
func (h hardConstraints) relax(step policy.RelaxStep, original domain.SearchCriteria) hardConstraints {
	switch step.Kind {
	case policy.RelaxBedrooms:
		h.bedroomsMin = 0
	case policy.RelaxBathrooms:
		h.bathroomsMin = 0
	case policy.RelaxPropertyType:
		h.propertyType = ""
	case policy.RelaxPriceBand:
		h.priceMin = original.PriceMin * (1 - step.Widen)
		if h.priceMin < 0 {
			h.priceMin = 0
		}
		if original.HasPriceCeiling() {
			h.priceMax = original.PriceMax * (1 + step.Widen)
		}
	}
	return h
}

func (h hardConstraints) filter(candidates []domain.Candidate, limit int) []domain.Listing {
	out := make([]domain.Listing, 0, limit)
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		l := c.Listing
		if l.ID == "" {
			continue
		}
		if _, dup := seen[l.ID]; dup {
			continue
		}
		if !h.matches(l) {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
		if len(out) == limit {
			break
		}
	}
	return out
}

func (h hardConstraints) matches(l domain.Listing) bool {
	if l.Price < h.priceMin {
		return false
	}
	if h.priceMax > 0 && l.Price > h.priceMax {
		return false
	}
	if l.Bedrooms < h.bedroomsMin {
		return false
	}
	if l.Bathrooms < h.bathroomsMin {
		return false
	}
	if h.propertyType != "" && !strings.EqualFold(strings.TrimSpace(l.PropertyType), h.propertyType) {
		return false
	}
	return true
}

// BuildSearchQuery renders criteria as the natural-language text that is embedded.
func BuildSearchQuery(c domain.SearchCriteria) string {
	parts := make([]string, 0, 5)
	if c.BedroomsMin > 0 {
		parts = append(parts, fmt.Sprintf("%s bedroom", formatCount(c.BedroomsMin)))
	}
	if c.BathroomsMin > 0 {
		parts = append(parts, fmt.Sprintf("%s bathroom", formatCount(c.BathroomsMin)))
	}
	kind := "house"
	if c.PropertyType != "" {
		kind = strings.ToLower(c.PropertyType)
	}
	parts = append(parts, kind)
	if c.HasPriceCeiling() {
		parts = append(parts, "under "+formatMoney(c.PriceMax))
	}
	if c.PriceMin > 0 {
		parts = append(parts, "over "+formatMoney(c.PriceMin))
	}
	if len(c.Keywords) > 0 {
		parts = append(parts, "with features like "+strings.Join(c.Keywords, ", "))
	}
	return "Find a " + strings.Join(parts, " ") + "."
}

func formatCount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

func formatMoney(v float64) string {
	whole := fmt.Sprintf("%.0f", v)
	var b strings.Builder
	b.WriteByte('$')
	for i, ch := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	return b.String()
}
