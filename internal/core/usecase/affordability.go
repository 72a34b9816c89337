package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/policy"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

// Affordability is the deterministic payment breakdown for one listing.
type Affordability struct {
	DownPayment      float64
	LoanAmount       float64
	PrincipalAndInt  float64
	MonthlyTax       float64
	MonthlyInsurance float64
	MonthlyPayment   float64
	MonthlyIncome    float64
	DebtToIncome     float64
	Score            float64
}

// ComputeAffordability amortizes the loan and maps the resulting
// debt-to-income ratio through the policy bands.
func ComputeAffordability(price float64, profile domain.FinancialProfile, lending domain.LendingParams, p policy.AffordabilityPolicy) Affordability {
	out := Affordability{}
	out.DownPayment = price * profile.DownPaymentPercentage / 100
	out.LoanAmount = math.Max(price-out.DownPayment, 0)

	months := float64(lending.LoanTermYears * 12)
	monthlyRate := lending.InterestRatePercent / 100 / 12
	switch {
	case months <= 0 || out.LoanAmount == 0:
		out.PrincipalAndInt = 0
	case monthlyRate == 0:
		out.PrincipalAndInt = out.LoanAmount / months
	default:
		growth := math.Pow(1+monthlyRate, months)
		out.PrincipalAndInt = out.LoanAmount * monthlyRate * growth / (growth - 1)
	}

	out.MonthlyTax = price * lending.PropertyTaxRatePercent / 100 / 12
	out.MonthlyInsurance = lending.InsuranceAnnual / 12
	out.MonthlyPayment = out.PrincipalAndInt + out.MonthlyTax + out.MonthlyInsurance
	out.MonthlyIncome = profile.MonthlyIncome()
	if out.MonthlyIncome > 0 {
		out.DebtToIncome = (profile.MonthlyDebts + out.MonthlyPayment) / out.MonthlyIncome
	} else {
		out.DebtToIncome = math.Inf(1)
	}
	out.Score = p.ScoreFor(out.DebtToIncome)
	return out
}

type AffordabilityAnalyzer struct {
	warehouse ports.ListingWarehouse
	policy    policy.AffordabilityPolicy
	maxScore  float64
}

func NewAffordabilityAnalyzer(warehouse ports.ListingWarehouse, p policy.Policy) *AffordabilityAnalyzer {
	return &AffordabilityAnalyzer{
		warehouse: warehouse,
		policy:    p.Affordability,
		maxScore:  p.SubScoreMax,
	}
}

func (a *AffordabilityAnalyzer) Dimension() domain.Dimension {
	return domain.DimensionAffordability
}

func (a *AffordabilityAnalyzer) Analyze(ctx context.Context, listing domain.Listing, req domain.AnalysisRequest) (domain.SubResult, error) {
	if listing.Price <= 0 {
		return domain.SubResult{}, domain.WrapError(
			domain.ErrDataUnavailable,
			"affordability analyze",
			fmt.Errorf("listing %s has no price", listing.ID),
		)
	}

	var notes []string
	lending := a.policy.DefaultLending
	if a.warehouse != nil {
		params, err := a.warehouse.GetLendingParams(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return domain.SubResult{}, classifyLookupError("affordability lending lookup", ctx.Err())
			}
			notes = append(notes, "lending parameters unavailable, default assumptions applied")
		case params == nil:
			notes = append(notes, "lending parameters unavailable, default assumptions applied")
		default:
			lending = fillLending(*params, a.policy.DefaultLending)
		}
	}

	calc := ComputeAffordability(listing.Price, req.Financial, lending, a.policy)
	result := domain.SubResult{
		Dimension: domain.DimensionAffordability,
		Score:     round2(clamp(calc.Score, 0, a.maxScore)),
		MaxScore:  a.maxScore,
		Pros:      []domain.Observation{},
		Cons:      []domain.Observation{},
		Notes:     notes,
		Details: map[string]any{
			"down_payment":            round2(calc.DownPayment),
			"loan_amount":             round2(calc.LoanAmount),
			"principal_and_interest":  round2(calc.PrincipalAndInt),
			"monthly_tax":             round2(calc.MonthlyTax),
			"monthly_insurance":       round2(calc.MonthlyInsurance),
			"monthly_payment":         round2(calc.MonthlyPayment),
			"interest_rate_percent":   lending.InterestRatePercent,
			"loan_term_years":         lending.LoanTermYears,
			"property_tax_percent":    lending.PropertyTaxRatePercent,
			"insurance_annual_amount": lending.InsuranceAnnual,
		},
	}

	if !math.IsInf(calc.DebtToIncome, 0) {
		result.Details["debt_to_income"] = math.Round(calc.DebtToIncome*10000) / 10000
	}

	a.describeBand(&result, calc)
	if listing.SquareFootage > 0 {
		perSqft := listing.Price / listing.SquareFootage
		result.Details["price_per_sqft"] = round2(perSqft)
		if perSqft < 250 {
			result.Pros = append(result.Pros, pro(fmt.Sprintf("Good value at $%.0f per sq ft", perSqft), domain.PriorityAffordability))
		}
	}
	return result, nil
}

// describeBand words the payment by the policy band it landed in.
func (a *AffordabilityAnalyzer) describeBand(result *domain.SubResult, calc Affordability) {
	payment := formatMoney(calc.MonthlyPayment) + "/month"
	band := a.policy.BandIndex(calc.DebtToIncome)
	last := len(a.policy.Bands) - 1
	switch {
	case band < 0:
		result.Cons = append(result.Cons, con(fmt.Sprintf("Likely unaffordable at about %s (DTI above %.0f%%)", payment, a.policy.Ceiling()*100)))
	case band == 0:
		result.Pros = append(result.Pros, pro(fmt.Sprintf("Comfortably affordable at about %s (DTI %.0f%%)", payment, calc.DebtToIncome*100), domain.PriorityAffordability))
	case band == last:
		result.Cons = append(result.Cons, con(fmt.Sprintf("Stretches the budget at about %s (DTI %.0f%%)", payment, calc.DebtToIncome*100)))
	default:
		result.Pros = append(result.Pros, pro(fmt.Sprintf("Affordable at about %s (DTI %.0f%%)", payment, calc.DebtToIncome*100), domain.PriorityAffordability))
	}
}

func fillLending(p, defaults domain.LendingParams) domain.LendingParams {
	if p.InterestRatePercent < 0 {
		p.InterestRatePercent = defaults.InterestRatePercent
	}
	if p.LoanTermYears <= 0 {
		p.LoanTermYears = defaults.LoanTermYears
	}
	if p.PropertyTaxRatePercent < 0 {
		p.PropertyTaxRatePercent = defaults.PropertyTaxRatePercent
	}
	if p.InsuranceAnnual < 0 {
		p.InsuranceAnnual = defaults.InsuranceAnnual
	}
	return p
}
