package domain

type Dimension string

const (
	DimensionLocality      Dimension = "locality"
	DimensionHazard        Dimension = "hazard"
	DimensionAffordability Dimension = "affordability"
)

var Dimensions = []Dimension{
	DimensionLocality,
	DimensionHazard,
	DimensionAffordability,
}

type RecordStatus string

const (
	RecordPending           RecordStatus = "pending"
	RecordPartiallyComplete RecordStatus = "partially_complete"
	RecordComplete          RecordStatus = "complete"
	RecordFailed            RecordStatus = "failed"
)

// Observation is a short pro or con, optionally tagged with the priorities it supports.
type Observation struct {
	Text string     `json:"text"`
	Tags []Priority `json:"tags,omitempty"`
}

type SubResult struct {
	Dimension Dimension      `json:"dimension"`
	Score     float64        `json:"score"`
	MaxScore  float64        `json:"max_score"`
	Pros      []Observation  `json:"pros"`
	Cons      []Observation  `json:"cons"`
	Notes     []string       `json:"notes,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// AnalysisRecord is the merged per-listing view handed to the ranker.
type AnalysisRecord struct {
	Listing       Listing              `json:"listing"`
	Locality      *SubResult           `json:"locality,omitempty"`
	Hazard        *SubResult           `json:"hazard,omitempty"`
	Affordability *SubResult           `json:"affordability,omitempty"`
	Failures      map[Dimension]string `json:"failures,omitempty"`
	Status        RecordStatus         `json:"status"`
}

func (r AnalysisRecord) ListingID() string {
	return r.Listing.ID
}

func (r AnalysisRecord) Result(dim Dimension) *SubResult {
	switch dim {
	case DimensionLocality:
		return r.Locality
	case DimensionHazard:
		return r.Hazard
	case DimensionAffordability:
		return r.Affordability
	default:
		return nil
	}
}
