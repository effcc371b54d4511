package semantic

import (
	"math"

	"github.com/neargravity/semguard/internal/domain/analysis"
)

// locateConsensus picks the center of gravity: the document with the
// smallest arithmetic-mean distance to all others. Exact ties resolve to
// the earliest document in the input order (strict less-than keeps the
// first minimum).
func locateConsensus(m analysis.Matrix) analysis.Consensus {
	n := m.Size()
	ids := m.IDs()

	best := 0
	bestMean := math.MaxFloat64
	for i := 0; i < n; i++ {
		var total float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			total += m.At(i, j)
		}
		mean := total / float64(n-1)
		if mean < bestMean {
			best = i
			bestMean = mean
		}
	}

	return analysis.Consensus{
		DocumentID:   ids[best],
		MeanDistance: bestMean,
		Reason:       analysis.ConsensusReason,
	}
}
