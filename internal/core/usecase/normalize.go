package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

const (
	defaultBedroomsMin       = 1
	defaultBathroomsMin      = 1
	defaultDownPaymentPct    = 20
	maxKeywords              = 20
	maxKeywordLength         = 80
	fieldSearchCriteria      = "search_criteria"
	fieldFinancialInfo       = "user_financial_info"
	fieldPriorities          = "priorities"
	fieldPriceMin            = "search_criteria.price_min"
	fieldPriceMax            = "search_criteria.price_max"
	fieldBedroomsMin         = "search_criteria.bedrooms_min"
	fieldBathroomsMin        = "search_criteria.bathrooms_min"
	fieldKeywords            = "search_criteria.keywords"
	fieldPropertyType        = "search_criteria.property_type"
	fieldAnnualIncome        = "user_financial_info.annual_income"
	fieldDownPaymentPct      = "user_financial_info.down_payment_percentage"
	fieldMonthlyDebts        = "user_financial_info.monthly_debts"
	downPaymentPercentLegacy = "down_payment_percent"
)

// Normalizer turns a loosely typed payload into a validated AnalysisRequest.
type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Normalize(payload map[string]any) (domain.AnalysisRequest, error) {
	verr := &domain.ValidationError{}
	var req domain.AnalysisRequest

	criteria, ok := objectField(payload, fieldSearchCriteria, verr, true)
	if ok {
		req.Criteria = normalizeCriteria(criteria, verr)
	}

	financial, _ := objectField(payload, fieldFinancialInfo, verr, false)
	req.Financial = normalizeFinancial(financial, verr)

	req.Priorities = normalizePriorities(payload[fieldPriorities], verr)

	if verr.HasErrors() {
		return domain.AnalysisRequest{}, verr
	}
	return req, nil
}

func normalizeCriteria(raw map[string]any, verr *domain.ValidationError) domain.SearchCriteria {
	c := domain.SearchCriteria{
		BedroomsMin:  defaultBedroomsMin,
		BathroomsMin: defaultBathroomsMin,
		Keywords:     []string{},
	}

	priceMin, hasMin := numberField(raw, "price_min", fieldPriceMin, verr)
	priceMax, hasMax := numberField(raw, "price_max", fieldPriceMax, verr)
	if hasMin {
		if priceMin < 0 {
			verr.Add(fieldPriceMin, "must not be negative")
		}
		c.PriceMin = priceMin
	}
	if hasMax {
		if priceMax <= 0 {
			verr.Add(fieldPriceMax, "must be positive")
		}
		c.PriceMax = priceMax
	}
	if hasMin && hasMax && priceMin > priceMax {
		verr.Add(fieldPriceMin, "price_min (%.2f) must not exceed price_max (%.2f)", priceMin, priceMax)
		verr.Add(fieldPriceMax, "price_max (%.2f) must not be below price_min (%.2f)", priceMax, priceMin)
	}

	if beds, ok := numberField(raw, "bedrooms_min", fieldBedroomsMin, verr); ok {
		switch {
		case beds <= 0:
			verr.Add(fieldBedroomsMin, "must be positive")
		case beds != math.Trunc(beds):
			verr.Add(fieldBedroomsMin, "must be a whole number")
		default:
			c.BedroomsMin = beds
		}
	}
	if baths, ok := numberField(raw, "bathrooms_min", fieldBathroomsMin, verr); ok {
		switch {
		case baths <= 0:
			verr.Add(fieldBathroomsMin, "must be positive")
		case baths*2 != math.Trunc(baths*2):
			verr.Add(fieldBathroomsMin, "must be a multiple of 0.5")
		default:
			c.BathroomsMin = baths
		}
	}

	c.Keywords = normalizeKeywords(raw["keywords"], verr)

	if v, ok := raw["property_type"]; ok && v != nil {
		s, isString := v.(string)
		if !isString {
			verr.Add(fieldPropertyType, "must be a string")
		} else {
			c.PropertyType = strings.TrimSpace(s)
		}
	}
	return c
}

func normalizeFinancial(raw map[string]any, verr *domain.ValidationError) domain.FinancialProfile {
	p := domain.FinancialProfile{
		DownPaymentPercentage: defaultDownPaymentPct,
	}

	income, ok := numberField(raw, "annual_income", fieldAnnualIncome, verr)
	switch {
	case !ok && !hasKey(raw, "annual_income"):
		verr.Add(fieldAnnualIncome, "is required")
	case ok && income <= 0:
		verr.Add(fieldAnnualIncome, "must be positive")
	case ok:
		p.AnnualIncome = income
	}

	key := "down_payment_percentage"
	if !hasKey(raw, key) && hasKey(raw, downPaymentPercentLegacy) {
		key = downPaymentPercentLegacy
	}
	if pct, ok := numberField(raw, key, fieldDownPaymentPct, verr); ok {
		if pct < 0 || pct > 100 {
			verr.Add(fieldDownPaymentPct, "must be within [0, 100]")
		} else {
			p.DownPaymentPercentage = pct
		}
	}

	if debts, ok := numberField(raw, "monthly_debts", fieldMonthlyDebts, verr); ok {
		if debts < 0 {
			verr.Add(fieldMonthlyDebts, "must not be negative")
		} else {
			p.MonthlyDebts = debts
		}
	}
	return p
}

func normalizeKeywords(raw any, verr *domain.ValidationError) []string {
	var items []string
	switch v := raw.(type) {
	case nil:
		return []string{}
	case string:
		items = strings.Split(v, ",")
	case []string:
		items = v
	case []any:
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				verr.Add(fmt.Sprintf("%s[%d]", fieldKeywords, i), "must be a string")
				continue
			}
			items = append(items, s)
		}
	default:
		verr.Add(fieldKeywords, "must be a list of strings")
		return []string{}
	}

	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		kw := strings.Join(strings.Fields(item), " ")
		if kw == "" {
			continue
		}
		if utf8.RuneCountInString(kw) > maxKeywordLength {
			verr.Add(fieldKeywords, "keyword %q exceeds %d characters", truncateRunes(kw, 20)+"...", maxKeywordLength)
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	if len(out) > maxKeywords {
		verr.Add(fieldKeywords, "at most %d keywords are allowed", maxKeywords)
		out = out[:maxKeywords]
	}
	return out
}

func normalizePriorities(raw any, verr *domain.ValidationError) []domain.Priority {
	var items []any
	switch v := raw.(type) {
	case nil:
		return []domain.Priority{}
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	default:
		verr.Add(fieldPriorities, "must be a list of strings")
		return []domain.Priority{}
	}

	out := make([]domain.Priority, 0, len(items))
	seen := make(map[domain.Priority]struct{}, len(items))
	for i, item := range items {
		field := fmt.Sprintf("%s[%d]", fieldPriorities, i)
		s, ok := item.(string)
		if !ok {
			verr.Add(field, "must be a string")
			continue
		}
		p, known := domain.ParsePriority(strings.ToLower(strings.Join(strings.Fields(s), " ")))
		if !known {
			verr.Add(field, "unknown priority %q", s)
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func objectField(payload map[string]any, key string, verr *domain.ValidationError, required bool) (map[string]any, bool) {
	raw, ok := payload[key]
	if !ok || raw == nil {
		if required {
			verr.Add(key, "is required")
		}
		return map[string]any{}, false
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		verr.Add(key, "must be an object")
		return map[string]any{}, false
	}
	return obj, true
}

// hasKey treats null and blank strings as absent.
func hasKey(raw map[string]any, key string) bool {
	v, ok := raw[key]
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(strings.ReplaceAll(s, ",", "")) != ""
	}
	return true
}

// numberField reads a numeric value that may arrive as a JSON number or a numeric string.
func numberField(raw map[string]any, key, field string, verr *domain.ValidationError) (float64, bool) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, false
	}

	var (
		f   float64
		err error
	)
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		f, err = n.Float64()
	case string:
		trimmed := strings.TrimSpace(strings.ReplaceAll(n, ",", ""))
		if trimmed == "" {
			return 0, false
		}
		f, err = strconv.ParseFloat(trimmed, 64)
	default:
		err = fmt.Errorf("unsupported type %T", v)
	}
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		verr.Add(field, "must be a number")
		return 0, false
	}
	return f, true
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
