package domain

type Priority string

const (
	PrioritySafety         Priority = "safety"
	PriorityAffordability  Priority = "affordability"
	PrioritySchoolDistrict Priority = "good school district"
	PriorityLowHazardRisk  Priority = "low hazard risk"
	PriorityWalkability    Priority = "walkability"
	PriorityAmenities      Priority = "amenities"
)

// PriorityVocabulary is the fixed set of accepted priority tags.
var PriorityVocabulary = []Priority{
	PrioritySafety,
	PriorityAffordability,
	PrioritySchoolDistrict,
	PriorityLowHazardRisk,
	PriorityWalkability,
	PriorityAmenities,
}

func ParsePriority(raw string) (Priority, bool) {
	for _, p := range PriorityVocabulary {
		if string(p) == raw {
			return p, true
		}
	}
	return "", false
}

type SearchCriteria struct {
	PriceMin     float64  `json:"price_min"`
	PriceMax     float64  `json:"price_max"`
	BedroomsMin  float64  `json:"bedrooms_min"`
	BathroomsMin float64  `json:"bathrooms_min"`
	Keywords     []string `json:"keywords"`
	PropertyType string   `json:"property_type,omitempty"`
}

// HasPriceCeiling reports whether PriceMax bounds the search.
func (c SearchCriteria) HasPriceCeiling() bool {
	return c.PriceMax > 0
}

type FinancialProfile struct {
	AnnualIncome          float64 `json:"annual_income"`
	DownPaymentPercentage float64 `json:"down_payment_percentage"`
	MonthlyDebts          float64 `json:"monthly_debts"`
}

func (p FinancialProfile) MonthlyIncome() float64 {
	return p.AnnualIncome / 12
}

// AnalysisRequest is the canonical, validated form of one user request.
type AnalysisRequest struct {
	Criteria   SearchCriteria   `json:"search_criteria"`
	Financial  FinancialProfile `json:"user_financial_info"`
	Priorities []Priority       `json:"priorities"`
}

func (r AnalysisRequest) HasPriority(p Priority) bool {
	for _, existing := range r.Priorities {
		if existing == p {
			return true
		}
	}
	return false
}
