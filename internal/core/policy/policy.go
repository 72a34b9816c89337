package policy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

// Policy holds every threshold and weight used by the pipeline.
// Components receive it by value at construction time.
type Policy struct {
	SubScoreMax float64 `yaml:"sub_score_max"`

	Retrieval     RetrievalPolicy     `yaml:"retrieval"`
	Locality      LocalityPolicy      `yaml:"locality"`
	Hazard        HazardPolicy        `yaml:"hazard"`
	Affordability AffordabilityPolicy `yaml:"affordability"`
	Coordinator   CoordinatorPolicy   `yaml:"coordinator"`
	Ranking       RankingPolicy       `yaml:"ranking"`
}

type RelaxKind string

const (
	RelaxBedrooms     RelaxKind = "bedrooms"
	RelaxBathrooms    RelaxKind = "bathrooms"
	RelaxPriceBand    RelaxKind = "price_band"
	RelaxPropertyType RelaxKind = "property_type"
)

type RelaxStep struct {
	Kind  RelaxKind `yaml:"kind"`
	Widen float64   `yaml:"widen,omitempty"`
}

func (s RelaxStep) Label() string {
	if s.Kind == RelaxPriceBand {
		return fmt.Sprintf("%s+%.0f%%", s.Kind, s.Widen*100)
	}
	return string(s.Kind)
}

type RetrievalPolicy struct {
	Limit     int         `yaml:"limit"`
	Overfetch int         `yaml:"overfetch"`
	Ladder    []RelaxStep `yaml:"ladder"`
}

type LocalityPolicy struct {
	SchoolWeight      float64 `yaml:"school_weight"`
	SafetyWeight      float64 `yaml:"safety_weight"`
	AmenityWeight     float64 `yaml:"amenity_weight"`
	WalkabilityWeight float64 `yaml:"walkability_weight"`

	SchoolRatingMax   float64 `yaml:"school_rating_max"`
	CrimeRateCeiling  float64 `yaml:"crime_rate_ceiling"`
	AmenityDensityMax float64 `yaml:"amenity_density_max"`
	WalkScoreMax      float64 `yaml:"walk_score_max"`
}

type HazardPolicy struct {
	Penalties map[domain.RiskLevel]float64 `yaml:"penalties"`
}

// Penalty returns the deduction for one category at the given level.
// Unrecognized levels are charged as medium.
func (h HazardPolicy) Penalty(level domain.RiskLevel) (float64, bool) {
	if p, ok := h.Penalties[level]; ok {
		return p, true
	}
	return h.Penalties[domain.RiskMedium], false
}

type DTIBand struct {
	MaxRatio float64 `yaml:"max_ratio"`
	Score    float64 `yaml:"score"`
}

type AffordabilityPolicy struct {
	Bands          []DTIBand            `yaml:"bands"`
	DefaultLending domain.LendingParams `yaml:"default_lending"`
}

// ScoreFor maps a debt-to-income ratio through the threshold table.
func (a AffordabilityPolicy) ScoreFor(dti float64) float64 {
	if i := a.BandIndex(dti); i >= 0 {
		return a.Bands[i].Score
	}
	return 0
}

// BandIndex returns the first band whose ceiling covers dti, or -1 when the
// ratio is above every band.
func (a AffordabilityPolicy) BandIndex(dti float64) int {
	for i, band := range a.Bands {
		if dti <= band.MaxRatio {
			return i
		}
	}
	return -1
}

// Ceiling is the highest ratio any band accepts.
func (a AffordabilityPolicy) Ceiling() float64 {
	if len(a.Bands) == 0 {
		return 0
	}
	return a.Bands[len(a.Bands)-1].MaxRatio
}

type CoordinatorPolicy struct {
	MaxConcurrent   int           `yaml:"max_concurrent"`
	AnalyzerTimeout time.Duration `yaml:"analyzer_timeout"`
	Budget          time.Duration `yaml:"budget"`
}

type RankingPolicy struct {
	TopN                   int     `yaml:"top_n"`
	PriorityBonus          float64 `yaml:"priority_bonus"`
	PriorityBonusCap       float64 `yaml:"priority_bonus_cap"`
	MaxObservations        int     `yaml:"max_observations"`
	RecommendedThreshold   float64 `yaml:"recommended_threshold"`
	HighlyRecommendedAbove float64 `yaml:"highly_recommended_threshold"`
	CautionThreshold       float64 `yaml:"caution_threshold"`
}

func Default() Policy {
	return Policy{
		SubScoreMax: 25,
		Retrieval: RetrievalPolicy{
			Limit:     15,
			Overfetch: 3,
			Ladder: []RelaxStep{
				{Kind: RelaxBedrooms},
				{Kind: RelaxBathrooms},
				{Kind: RelaxPriceBand, Widen: 0.10},
				{Kind: RelaxPriceBand, Widen: 0.25},
			},
		},
		Locality: LocalityPolicy{
			SchoolWeight:      0.35,
			SafetyWeight:      0.30,
			AmenityWeight:     0.20,
			WalkabilityWeight: 0.15,
			SchoolRatingMax:   10,
			CrimeRateCeiling:  60,
			AmenityDensityMax: 40,
			WalkScoreMax:      100,
		},
		Hazard: HazardPolicy{
			Penalties: map[domain.RiskLevel]float64{
				domain.RiskNone:   0,
				domain.RiskLow:    0,
				domain.RiskMedium: 5,
				domain.RiskHigh:   8,
				domain.RiskSevere: 12,
			},
		},
		Affordability: AffordabilityPolicy{
			Bands: []DTIBand{
				{MaxRatio: 0.28, Score: 25},
				{MaxRatio: 0.36, Score: 18},
				{MaxRatio: 0.43, Score: 10},
			},
			DefaultLending: domain.LendingParams{
				InterestRatePercent:    6.5,
				LoanTermYears:          30,
				PropertyTaxRatePercent: 1.2,
				InsuranceAnnual:        1200,
			},
		},
		Coordinator: CoordinatorPolicy{
			MaxConcurrent:   6,
			AnalyzerTimeout: 45 * time.Second,
			Budget:          240 * time.Second,
		},
		Ranking: RankingPolicy{
			TopN:                   3,
			PriorityBonus:          2,
			PriorityBonusCap:       5,
			MaxObservations:        5,
			RecommendedThreshold:   60,
			HighlyRecommendedAbove: 80,
			CautionThreshold:       40,
		},
	}
}

// LoadFile overlays a YAML policy file on top of Default.
func LoadFile(path string) (Policy, error) {
	p := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p Policy) Validate() error {
	if p.SubScoreMax <= 0 {
		return fmt.Errorf("policy: sub_score_max must be positive")
	}
	if p.Retrieval.Limit <= 0 {
		return fmt.Errorf("policy: retrieval.limit must be positive")
	}
	for i, step := range p.Retrieval.Ladder {
		switch step.Kind {
		case RelaxBedrooms, RelaxBathrooms, RelaxPropertyType:
		case RelaxPriceBand:
			if step.Widen <= 0 {
				return fmt.Errorf("policy: retrieval.ladder[%d] price_band needs positive widen", i)
			}
		default:
			return fmt.Errorf("policy: retrieval.ladder[%d] unknown kind %q", i, step.Kind)
		}
	}
	for i := 1; i < len(p.Affordability.Bands); i++ {
		if p.Affordability.Bands[i].MaxRatio <= p.Affordability.Bands[i-1].MaxRatio {
			return fmt.Errorf("policy: affordability.bands must be sorted by max_ratio")
		}
	}
	for _, band := range p.Affordability.Bands {
		if band.Score < 0 || band.Score > p.SubScoreMax {
			return fmt.Errorf("policy: affordability band score %.2f outside [0, %.2f]", band.Score, p.SubScoreMax)
		}
	}
	if p.Coordinator.MaxConcurrent <= 0 {
		return fmt.Errorf("policy: coordinator.max_concurrent must be positive")
	}
	if p.Ranking.TopN <= 0 {
		return fmt.Errorf("policy: ranking.top_n must be positive")
	}
	return nil
}
