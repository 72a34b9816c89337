package domain

import "time"

type Recommendation struct {
	ListingID          string     `json:"listing_id"`
	Address            string     `json:"address"`
	Price              float64    `json:"price"`
	Bedrooms           float64    `json:"bedrooms"`
	Bathrooms          float64    `json:"bathrooms"`
	SquareFootage      float64    `json:"square_footage,omitempty"`
	Description        string     `json:"description,omitempty"`
	TotalScore         float64    `json:"total_score"`
	LocalityScore      *float64   `json:"locality_score"`
	HazardScore        *float64   `json:"hazard_score"`
	AffordabilityScore *float64   `json:"affordability_score"`
	PriorityBonus      float64    `json:"priority_bonus"`
	MatchedPriorities  []Priority `json:"matched_priorities,omitempty"`
	Pros               []string   `json:"pros"`
	Cons               []string   `json:"cons"`
	Summary            string     `json:"summary"`
	Status             string     `json:"status"`
	MonthlyPayment     float64    `json:"monthly_payment,omitempty"`
	DebtToIncome       float64    `json:"debt_to_income,omitempty"`
}

type RecommendationStatus string

const (
	StatusExcellent RecommendationStatus = "excellent"
	StatusGood      RecommendationStatus = "good"
	StatusCaution   RecommendationStatus = "caution"
	StatusNone      RecommendationStatus = "none"
)

type ReportSummary struct {
	TotalListings          int                  `json:"total_listings"`
	RecommendedCount       int                  `json:"recommended_count"`
	AverageScore           float64              `json:"average_score"`
	HighlyRecommendedCount int                  `json:"highly_recommended_count"`
	RecommendationStatus   RecommendationStatus `json:"recommendation_status"`
	GuidanceMessage        string               `json:"guidance_message"`
	RelaxedConstraints     []string             `json:"relaxed_constraints,omitempty"`
	CriteriaSuggestions    []string             `json:"criteria_suggestions"`
}

type Report struct {
	RequestID          string           `json:"request_id"`
	TopRecommendations []Recommendation `json:"top_recommendations"`
	Summary            ReportSummary    `json:"summary"`
	AnalysisTimestamp  time.Time        `json:"analysis_timestamp"`
}
