package analysis

// DefaultThreshold is the outlier cutoff used when a request supplies none.
const DefaultThreshold = 0.75

// ConsensusReason is the justification attached to every consensus pick.
const ConsensusReason = "minimum average semantic distance"

// Consensus identifies the center-of-gravity document: the one with the
// minimum mean distance to all others.
type Consensus struct {
	DocumentID   string  `json:"document_id"`
	MeanDistance float64 `json:"mean_distance"`
	Reason       string  `json:"reason"`
}

// Outlier flags a document whose maximum distance to any other document
// exceeds the threshold. A document produces at most one Outlier per request.
type Outlier struct {
	DocumentID  string   `json:"document_id"`
	MaxDistance float64  `json:"max_distance"`
	Severity    Severity `json:"severity"`
	Reason      string   `json:"reason"`
}

// Report is the immutable result of one analysis run. Outliers keep the
// input document order.
type Report struct {
	Distances        Matrix    `json:"distances"`
	Consensus        Consensus `json:"consensus"`
	Outliers         []Outlier `json:"outliers"`
	Threshold        float64   `json:"threshold"`
	DocumentCount    int       `json:"document_count"`
	ComparisonCount  int       `json:"comparison_count"`
	ProcessingTimeMS int64     `json:"processing_time_ms"`
}
