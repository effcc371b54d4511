package semantic

import (
	"fmt"
	"math"

	"github.com/neargravity/semguard/internal/domain"
	"github.com/neargravity/semguard/internal/domain/analysis"
)

// buildMatrix computes the complete pairwise cosine-distance matrix.
// All embeddings must share one dimensionality and have a non-zero norm.
// O(N²·D); N is bounded by the service's document limit.
func buildMatrix(docs []domain.Document) (analysis.Matrix, error) {
	dims := len(docs[0].Vector)

	ids := make([]string, len(docs))
	seen := make(map[string]struct{}, len(docs))
	norms := make([]float64, len(docs))

	for i := range docs {
		d := &docs[i]
		if _, ok := seen[d.ID]; ok {
			return analysis.Matrix{}, fmt.Errorf("%w: %q", domain.ErrDuplicateDocument, d.ID)
		}
		seen[d.ID] = struct{}{}
		ids[i] = d.ID

		if len(d.Vector) != dims {
			return analysis.Matrix{}, domain.NewDimensionMismatch(d.ID, dims, len(d.Vector))
		}

		n := norm(d.Vector)
		if n == 0 {
			return analysis.Matrix{}, fmt.Errorf("%w: document %q has a zero-norm vector", domain.ErrDegenerateEmbedding, d.ID)
		}
		norms[i] = n
	}

	upper := make([]float64, 0, len(docs)*(len(docs)-1)/2)
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			upper = append(upper, cosineDistance(docs[i].Vector, docs[j].Vector, norms[i], norms[j]))
		}
	}

	m, err := analysis.NewMatrix(ids, upper)
	if err != nil {
		return analysis.Matrix{}, fmt.Errorf("assemble matrix: %w", err)
	}
	return m, nil
}

// cosineDistance is 1 − (u·v)/(‖u‖·‖v‖), clamped to [0, 2] to guard
// against floating-point overshoot.
func cosineDistance(u, v []float32, normU, normV float64) float64 {
	var dot float64
	for i := range u {
		dot += float64(u[i]) * float64(v[i])
	}

	d := 1 - dot/(normU*normV)
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
