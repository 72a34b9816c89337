package domain

import "time"

type HistoryEntry struct {
	RequestID          string           `json:"request_id"`
	Timestamp          time.Time        `json:"timestamp"`
	SearchCriteria     SearchCriteria   `json:"search_criteria"`
	FinancialInfo      FinancialProfile `json:"financial_info"`
	Priorities         []Priority       `json:"priorities"`
	TopRecommendations []Recommendation `json:"top_recommendations"`
	Summary            ReportSummary    `json:"summary"`
	DurationMS         int64            `json:"duration_ms"`
	Status             string           `json:"status"`
}
