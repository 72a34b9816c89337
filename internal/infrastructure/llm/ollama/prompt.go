package ollama

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

func buildNotesPrompt(dim domain.Dimension, listing domain.Listing, facts map[string]any) string {
	const maxDescription = 1500
	description := listing.Description
	if len(description) > maxDescription {
		description = description[:maxDescription]
	}
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		factsJSON = []byte("{}")
	}

	return fmt.Sprintf(`You are a real-estate analyst writing %s notes for a home buyer.
Return strict JSON object with keys:
pros (array of short strings), cons (array of short strings).
At most 3 items per list, each under 120 characters. Use only the facts below.
No markdown, no extra keys.

Listing:
address=%s price=%.0f bedrooms=%s bathrooms=%s
%s

Facts:
%s
`, dim, listing.Address, listing.Price, trimNumber(listing.Bedrooms), trimNumber(listing.Bathrooms), description, factsJSON)
}

func buildSummaryPrompt(rec domain.Recommendation, priorities []domain.Priority) string {
	names := make([]string, 0, len(priorities))
	for _, p := range priorities {
		names = append(names, string(p))
	}
	if len(names) == 0 {
		names = append(names, "none stated")
	}

	return fmt.Sprintf(`Write a two-sentence recommendation summary for a home buyer.
Plain text only, no markdown, no lists.

Property: %s, %s bed, %s bath, listed at $%.0f.
Overall score: %.1f/100 (%s).
Buyer priorities: %s.
Strengths: %s.
Concerns: %s.
`,
		rec.Address,
		trimNumber(rec.Bedrooms),
		trimNumber(rec.Bathrooms),
		rec.Price,
		rec.TotalScore,
		rec.Status,
		strings.Join(names, ", "),
		joinOrNone(rec.Pros),
		joinOrNone(rec.Cons),
	)
}

func trimNumber(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", v), "0"), ".")
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, "; ")
}
