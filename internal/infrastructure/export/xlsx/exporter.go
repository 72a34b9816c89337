package xlsx

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

const (
	historySheet         = "History"
	recommendationsSheet = "Recommendations"
)

var historyHeaders = []string{
	"Request ID",
	"Timestamp (UTC)",
	"Status",
	"Duration (ms)",
	"Price Min",
	"Price Max",
	"Bedrooms Min",
	"Bathrooms Min",
	"Keywords",
	"Priorities",
	"Listings Analyzed",
	"Average Score",
	"Recommendation Status",
	"Relaxed Constraints",
}

var recommendationHeaders = []string{
	"Request ID",
	"Rank",
	"Listing ID",
	"Address",
	"Price",
	"Total Score",
	"Locality",
	"Hazard",
	"Affordability",
	"Monthly Payment",
	"Status",
	"Pros",
	"Cons",
}

// Exporter renders analysis history as an XLSX workbook.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) ExportHistory(ctx context.Context, entries []domain.HistoryEntry, w io.Writer) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(recommendationsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := writeRow(f, historySheet, 1, toAny(historyHeaders)); err != nil {
		return err
	}
	if err := writeRow(f, recommendationsSheet, 1, toAny(recommendationHeaders)); err != nil {
		return err
	}

	recRow := 2
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := entry.SearchCriteria
		row := []any{
			entry.RequestID,
			entry.Timestamp.UTC().Format(time.RFC3339),
			entry.Status,
			entry.DurationMS,
			c.PriceMin,
			c.PriceMax,
			c.BedroomsMin,
			c.BathroomsMin,
			strings.Join(c.Keywords, ", "),
			joinPriorities(entry.Priorities),
			entry.Summary.TotalListings,
			entry.Summary.AverageScore,
			string(entry.Summary.RecommendationStatus),
			strings.Join(entry.Summary.RelaxedConstraints, ", "),
		}
		if err := writeRow(f, historySheet, i+2, row); err != nil {
			return err
		}

		for rank, rec := range entry.TopRecommendations {
			row := []any{
				entry.RequestID,
				rank + 1,
				rec.ListingID,
				rec.Address,
				rec.Price,
				rec.TotalScore,
				scoreCell(rec.LocalityScore),
				scoreCell(rec.HazardScore),
				scoreCell(rec.AffordabilityScore),
				rec.MonthlyPayment,
				rec.Status,
				strings.Join(rec.Pros, "; "),
				strings.Join(rec.Cons, "; "),
			}
			if err := writeRow(f, recommendationsSheet, recRow, row); err != nil {
				return err
			}
			recRow++
		}
	}

	_ = f.SetColWidth(historySheet, "A", "B", 26)
	_ = f.SetColWidth(historySheet, "I", "J", 32)
	_ = f.SetColWidth(historySheet, "M", "N", 24)
	_ = f.SetColWidth(recommendationsSheet, "A", "A", 26)
	_ = f.SetColWidth(recommendationsSheet, "D", "D", 32)
	_ = f.SetColWidth(recommendationsSheet, "L", "M", 60)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func scoreCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func joinPriorities(priorities []domain.Priority) string {
	parts := make([]string, 0, len(priorities))
	for _, p := range priorities {
		parts = append(parts, string(p))
	}
	return strings.Join(parts, ", ")
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
