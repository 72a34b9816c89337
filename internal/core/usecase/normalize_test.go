package usecase

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

func fieldSet(err error) map[string]bool {
	out := map[string]bool{}
	for _, f := range domain.FieldErrors(err) {
		out[f.Field] = true
	}
	return out
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	req, err := NewNormalizer().Normalize(map[string]any{
		"search_criteria":     map[string]any{"price_max": 750000.0},
		"user_financial_info": map[string]any{"annual_income": 120000.0},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if req.Criteria.BedroomsMin != 1 || req.Criteria.BathroomsMin != 1 {
		t.Fatalf("unexpected bed/bath defaults: %+v", req.Criteria)
	}
	if req.Financial.DownPaymentPercentage != 20 || req.Financial.MonthlyDebts != 0 {
		t.Fatalf("unexpected financial defaults: %+v", req.Financial)
	}
	if req.Criteria.Keywords == nil || len(req.Criteria.Keywords) != 0 {
		t.Fatalf("expected empty keywords, got %#v", req.Criteria.Keywords)
	}
	if req.Priorities == nil || len(req.Priorities) != 0 {
		t.Fatalf("expected empty priorities, got %#v", req.Priorities)
	}
}

func TestNormalizeCoercesStringsAndKeywords(t *testing.T) {
	req, err := NewNormalizer().Normalize(map[string]any{
		"search_criteria": map[string]any{
			"price_min":     "300,000",
			"price_max":     "750000",
			"bedrooms_min":  "3",
			"bathrooms_min": 2.5,
			"keywords":      "modern kitchen, garage, Modern Kitchen",
		},
		"user_financial_info": map[string]any{
			"annual_income":        "120000",
			"down_payment_percent": 10.0,
		},
		"priorities": []any{"Safety", "good  school district", "safety"},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if req.Criteria.PriceMin != 300000 || req.Criteria.PriceMax != 750000 {
		t.Fatalf("unexpected prices: %+v", req.Criteria)
	}
	if req.Criteria.BedroomsMin != 3 || req.Criteria.BathroomsMin != 2.5 {
		t.Fatalf("unexpected bed/bath: %+v", req.Criteria)
	}
	if len(req.Criteria.Keywords) != 2 || req.Criteria.Keywords[0] != "modern kitchen" || req.Criteria.Keywords[1] != "garage" {
		t.Fatalf("unexpected keywords: %#v", req.Criteria.Keywords)
	}
	if req.Financial.DownPaymentPercentage != 10 {
		t.Fatalf("legacy down payment key ignored: %+v", req.Financial)
	}
	if len(req.Priorities) != 2 || req.Priorities[0] != domain.PrioritySafety || req.Priorities[1] != domain.PrioritySchoolDistrict {
		t.Fatalf("unexpected priorities: %#v", req.Priorities)
	}
}

func TestNormalizePriceInversionNamesBothFields(t *testing.T) {
	_, err := NewNormalizer().Normalize(map[string]any{
		"search_criteria":     map[string]any{"price_min": 900000.0, "price_max": 500000.0},
		"user_financial_info": map[string]any{"annual_income": 120000.0},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := fieldSet(err)
	if !fields["search_criteria.price_min"] || !fields["search_criteria.price_max"] {
		t.Fatalf("expected both price fields, got %v", fields)
	}
}

func TestNormalizeReportsEveryOffendingField(t *testing.T) {
	_, err := NewNormalizer().Normalize(map[string]any{
		"search_criteria": map[string]any{
			"price_max":     "lots",
			"bedrooms_min":  0.0,
			"bathrooms_min": 1.3,
		},
		"user_financial_info": map[string]any{
			"down_payment_percentage": 120.0,
			"monthly_debts":           -1.0,
		},
		"priorities": []any{"ocean view"},
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	want := []string{
		"search_criteria.price_max",
		"search_criteria.bedrooms_min",
		"search_criteria.bathrooms_min",
		"user_financial_info.annual_income",
		"user_financial_info.down_payment_percentage",
		"user_financial_info.monthly_debts",
		"priorities[0]",
	}
	fields := fieldSet(err)
	for _, f := range want {
		if !fields[f] {
			t.Fatalf("missing field %q in %v", f, fields)
		}
	}
}

func TestNormalizeRequiresSearchCriteria(t *testing.T) {
	_, err := NewNormalizer().Normalize(map[string]any{
		"user_financial_info": map[string]any{"annual_income": 1.0},
	})
	if !fieldSet(err)["search_criteria"] {
		t.Fatalf("expected search_criteria error, got %v", err)
	}
}

func TestNormalizeRejectsNonPositiveIncome(t *testing.T) {
	_, err := NewNormalizer().Normalize(map[string]any{
		"search_criteria":     map[string]any{},
		"user_financial_info": map[string]any{"annual_income": 0.0},
	})
	if !fieldSet(err)["user_financial_info.annual_income"] {
		t.Fatalf("expected annual_income error, got %v", err)
	}
}

func TestNormalizeTreatsBlankIncomeAsMissing(t *testing.T) {
	for _, income := range []any{"", "   ", " , ", nil} {
		_, err := NewNormalizer().Normalize(map[string]any{
			"search_criteria":     map[string]any{},
			"user_financial_info": map[string]any{"annual_income": income},
		})
		var found bool
		for _, f := range domain.FieldErrors(err) {
			if f.Field == "user_financial_info.annual_income" && f.Message == "is required" {
				found = true
			}
		}
		if !found {
			t.Fatalf("annual_income=%q: expected required error, got %v", income, err)
		}
	}
}

func TestNormalizeTruncatesLongKeywordOnRuneBoundary(t *testing.T) {
	kw := strings.Repeat("дом ", 30)
	_, err := NewNormalizer().Normalize(map[string]any{
		"search_criteria":     map[string]any{"keywords": []any{kw}},
		"user_financial_info": map[string]any{"annual_income": 120000.0},
	})
	fields := domain.FieldErrors(err)
	if len(fields) != 1 || fields[0].Field != "search_criteria.keywords" {
		t.Fatalf("expected single keywords error, got %v", err)
	}
	if !utf8.ValidString(fields[0].Message) {
		t.Fatalf("message is not valid UTF-8: %q", fields[0].Message)
	}
	if !strings.Contains(fields[0].Message, "дом дом дом дом дом") {
		t.Fatalf("unexpected message: %q", fields[0].Message)
	}
}

func TestNormalizeCountsKeywordLengthInRunes(t *testing.T) {
	kw := strings.Repeat("ж", 60)
	req, err := NewNormalizer().Normalize(map[string]any{
		"search_criteria":     map[string]any{"keywords": []any{kw}},
		"user_financial_info": map[string]any{"annual_income": 120000.0},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(req.Criteria.Keywords) != 1 {
		t.Fatalf("expected keyword kept, got %#v", req.Criteria.Keywords)
	}
}
