package semantic

import (
	"fmt"

	"github.com/neargravity/semguard/internal/domain/analysis"
)

// classifyOutliers flags documents whose maximum distance to any other
// document strictly exceeds the threshold. The consensus document is never
// flagged: consensus takes precedence over dissent labeling. Output order
// follows the input document order.
func classifyOutliers(
	m analysis.Matrix, consensusID string, threshold float64, policy analysis.SeverityPolicy,
) []analysis.Outlier {
	n := m.Size()
	ids := m.IDs()

	outliers := make([]analysis.Outlier, 0)
	for i := 0; i < n; i++ {
		if ids[i] == consensusID {
			continue
		}

		var maxDist float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if d := m.At(i, j); d > maxDist {
				maxDist = d
			}
		}

		if maxDist <= threshold {
			continue
		}

		outliers = append(outliers, analysis.Outlier{
			DocumentID:  ids[i],
			MaxDistance: maxDist,
			Severity:    policy.Classify(maxDist, threshold),
			Reason:      fmt.Sprintf("semantic distance exceeds threshold of %g", threshold),
		})
	}

	return outliers
}
