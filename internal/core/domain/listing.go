package domain

import "github.com/mmcloughlin/geohash"

type Listing struct {
	ID             string  `json:"listing_id"`
	Address        string  `json:"address"`
	Price          float64 `json:"price"`
	Bedrooms       float64 `json:"bedrooms"`
	Bathrooms      float64 `json:"bathrooms"`
	SquareFootage  float64 `json:"square_footage,omitempty"`
	Description    string  `json:"description,omitempty"`
	NeighborhoodID string  `json:"neighborhood_id,omitempty"`
	PropertyType   string  `json:"property_type,omitempty"`
	YearBuilt      int     `json:"year_built,omitempty"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
}

func (l Listing) HasLocation() bool {
	return l.Latitude != 0 || l.Longitude != 0
}

// Candidate is a listing returned by similarity search before hard filtering.
type Candidate struct {
	Listing    Listing `json:"listing"`
	Similarity float64 `json:"similarity"`
}

// Neighborhood holds optional locality metrics; nil means not measured.
type Neighborhood struct {
	ID             string   `json:"neighborhood_id"`
	Name           string   `json:"name"`
	Geohash        string   `json:"geohash,omitempty"`
	SchoolRating   *float64 `json:"school_rating,omitempty"`
	CrimeRate      *float64 `json:"crime_rate,omitempty"`
	AmenityDensity *float64 `json:"amenity_density,omitempty"`
	WalkScore      *float64 `json:"walk_score,omitempty"`
	Description    string   `json:"description,omitempty"`
}

type RiskLevel string

const (
	RiskNone    RiskLevel = "none"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskSevere  RiskLevel = "severe"
	RiskUnknown RiskLevel = "unknown"
)

type HazardCategory string

const (
	HazardFlood      HazardCategory = "flood"
	HazardWildfire   HazardCategory = "wildfire"
	HazardEarthquake HazardCategory = "earthquake"
	HazardTornado    HazardCategory = "tornado"
	HazardHurricane  HazardCategory = "hurricane"
)

var HazardCategories = []HazardCategory{
	HazardFlood,
	HazardWildfire,
	HazardEarthquake,
	HazardTornado,
	HazardHurricane,
}

type HazardProfile struct {
	ListingID      string                       `json:"listing_id"`
	NeighborhoodID string                       `json:"neighborhood_id,omitempty"`
	Risks          map[HazardCategory]RiskLevel `json:"risks"`
}

// LendingParams are the externally sourced loan assumptions.
type LendingParams struct {
	InterestRatePercent    float64 `json:"interest_rate_percent" yaml:"interest_rate_percent"`
	LoanTermYears          int     `json:"loan_term_years" yaml:"loan_term_years"`
	PropertyTaxRatePercent float64 `json:"property_tax_rate_percent" yaml:"property_tax_rate_percent"`
	InsuranceAnnual        float64 `json:"insurance_annual" yaml:"insurance_annual"`
}

// GeohashPrecision is the cell size used to key neighborhoods by location.
const GeohashPrecision = 5

// GeohashCell returns the neighborhood-sized geohash cell for the listing location.
func (l Listing) GeohashCell() string {
	if !l.HasLocation() {
		return ""
	}
	return geohash.EncodeWithPrecision(l.Latitude, l.Longitude, GeohashPrecision)
}
