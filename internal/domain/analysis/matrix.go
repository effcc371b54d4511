package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Matrix is the complete pairwise semantic-distance mapping for a document
// set. Symmetric by construction with a zero diagonal, and never mutated
// after construction.
type Matrix struct {
	ids   []string
	index map[string]int
	dist  []float64 // n*n row-major, mirrored across the diagonal
}

// NewMatrix builds a matrix from ordered document ids and the upper-triangle
// distances in row order: (0,1), (0,2) ... (0,n-1), (1,2) ... (n-2,n-1).
// The lower triangle is mirrored so both directions resolve to equal values.
func NewMatrix(ids []string, upper []float64) (Matrix, error) {
	n := len(ids)
	if want := n * (n - 1) / 2; len(upper) != want {
		return Matrix{}, fmt.Errorf("matrix for %d documents needs %d pair distances, got %d", n, want, len(upper))
	}

	index := make(map[string]int, n)
	for i, id := range ids {
		if _, ok := index[id]; ok {
			return Matrix{}, fmt.Errorf("duplicate document id %q", id)
		}
		index[id] = i
	}

	dist := make([]float64, n*n)
	k := 0
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := upper[k]
			k++
			if d < 0 {
				return Matrix{}, fmt.Errorf("negative distance %f for pair (%s, %s)", d, ids[i], ids[j])
			}
			dist[i*n+j] = d
			dist[j*n+i] = d
		}
	}

	ordered := make([]string, n)
	copy(ordered, ids)

	return Matrix{ids: ordered, index: index, dist: dist}, nil
}

// Size returns the number of documents covered by the matrix.
func (m Matrix) Size() int { return len(m.ids) }

// IDs returns the document ids in their original input order.
func (m Matrix) IDs() []string {
	out := make([]string, len(m.ids))
	copy(out, m.ids)
	return out
}

// Comparisons returns the number of distinct pairwise comparisons, N*(N-1)/2.
func (m Matrix) Comparisons() int {
	n := len(m.ids)
	return n * (n - 1) / 2
}

// Distance returns the distance between two documents by id.
// The second return is false when either id is unknown.
func (m Matrix) Distance(a, b string) (float64, bool) {
	i, ok := m.index[a]
	if !ok {
		return 0, false
	}
	j, ok := m.index[b]
	if !ok {
		return 0, false
	}
	return m.dist[i*len(m.ids)+j], true
}

// At returns the distance between documents at positions i and j.
func (m Matrix) At(i, j int) float64 {
	return m.dist[i*len(m.ids)+j]
}

// MarshalJSON serializes the matrix as a directed pair map, "A->B" and
// "B->A" both present with equal values. Self pairs are excluded.
func (m Matrix) MarshalJSON() ([]byte, error) {
	n := len(m.ids)
	pairs := make(map[string]float64, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			pairs[m.ids[i]+"->"+m.ids[j]] = m.dist[i*n+j]
		}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON rebuilds a matrix from the directed pair map. Input order is
// not stored on the wire, so ids come back in sorted order.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var pairs map[string]float64
	if err := json.Unmarshal(data, &pairs); err != nil {
		return err
	}
	if len(pairs) == 0 {
		*m = Matrix{}
		return nil
	}

	seen := make(map[string]struct{})
	for key := range pairs {
		a, b, ok := strings.Cut(key, "->")
		if !ok || a == "" || b == "" {
			return fmt.Errorf("malformed pair key %q", key)
		}
		seen[a] = struct{}{}
		seen[b] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		index[id] = i
	}

	n := len(ids)
	dist := make([]float64, n*n)
	for key, d := range pairs {
		a, b, _ := strings.Cut(key, "->")
		dist[index[a]*n+index[b]] = d
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if dist[i*n+j] != dist[j*n+i] {
				return fmt.Errorf("asymmetric distances for pair (%s, %s)", ids[i], ids[j])
			}
		}
	}

	*m = Matrix{ids: ids, index: index, dist: dist}
	return nil
}
