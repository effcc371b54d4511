package analysis

import "fmt"

// Severity labels how far an outlier's distance exceeds the threshold.
type Severity string

const (
	// SeverityLow marks a distance just over the threshold.
	SeverityLow Severity = "low"
	// SeverityMedium marks a distance at least MediumDelta over the threshold.
	SeverityMedium Severity = "medium"
	// SeverityHigh marks a distance at least HighDelta over the threshold.
	SeverityHigh Severity = "high"
)

// SeverityPolicy holds the severity breakpoints as offsets above the
// threshold. Breakpoints are a policy knob, never baked into the classifier.
type SeverityPolicy struct {
	MediumDelta float64
	HighDelta   float64
}

// DefaultSeverityPolicy returns the standard breakpoints: high at
// threshold+0.20, medium at threshold+0.05.
func DefaultSeverityPolicy() SeverityPolicy {
	return SeverityPolicy{MediumDelta: 0.05, HighDelta: 0.20}
}

// Validate checks that the breakpoints are ordered and non-negative.
func (p SeverityPolicy) Validate() error {
	if p.MediumDelta < 0 || p.HighDelta < 0 {
		return fmt.Errorf("severity deltas must be non-negative, got medium=%f high=%f", p.MediumDelta, p.HighDelta)
	}
	if p.MediumDelta > p.HighDelta {
		return fmt.Errorf("medium delta %f exceeds high delta %f", p.MediumDelta, p.HighDelta)
	}
	return nil
}

// Classify maps a triggering distance to a severity tier for the given
// threshold. Callers only invoke this for distances already over the threshold.
func (p SeverityPolicy) Classify(maxDistance, threshold float64) Severity {
	switch {
	case maxDistance >= threshold+p.HighDelta:
		return SeverityHigh
	case maxDistance >= threshold+p.MediumDelta:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
