package semantic

import (
	"fmt"
	"time"

	"github.com/neargravity/semguard/internal/domain"
	"github.com/neargravity/semguard/internal/domain/analysis"
)

// DefaultMaxDocuments bounds the O(N²) pairwise cost per request.
const DefaultMaxDocuments = 50

// Service is the distance/outlier analysis engine. It is a stateless pure
// computation over its inputs: no I/O, no shared state, safe for concurrent
// use across requests.
type Service struct {
	maxDocuments int
	policy       analysis.SeverityPolicy
}

// New creates an analysis engine with default limits and severity policy.
func New() *Service {
	return &Service{
		maxDocuments: DefaultMaxDocuments,
		policy:       analysis.DefaultSeverityPolicy(),
	}
}

// WithMaxDocuments overrides the per-request document limit. Zero disables the limit.
func (s *Service) WithMaxDocuments(n int) *Service {
	s.maxDocuments = n
	return s
}

// WithSeverityPolicy overrides the outlier severity breakpoints.
func (s *Service) WithSeverityPolicy(p analysis.SeverityPolicy) *Service {
	s.policy = p
	return s
}

// Analyze runs the full pipeline over documents that already carry
// embeddings: distance matrix, consensus pick, outlier classification,
// report assembly. Any stage failure aborts the report.
func (s *Service) Analyze(docs []domain.Document, threshold float64) (analysis.Report, error) {
	start := time.Now()

	if threshold < 0 || threshold > 2 {
		return analysis.Report{}, fmt.Errorf("%w: %f is outside [0, 2]", domain.ErrInvalidThreshold, threshold)
	}
	if len(docs) < 2 {
		return analysis.Report{}, fmt.Errorf("%w: got %d, need at least 2", domain.ErrInsufficientDocuments, len(docs))
	}
	if s.maxDocuments > 0 && len(docs) > s.maxDocuments {
		return analysis.Report{}, fmt.Errorf("%w: got %d, limit is %d", domain.ErrTooManyDocuments, len(docs), s.maxDocuments)
	}

	matrix, err := buildMatrix(docs)
	if err != nil {
		return analysis.Report{}, err
	}

	consensus := locateConsensus(matrix)
	outliers := classifyOutliers(matrix, consensus.DocumentID, threshold, s.policy)

	return analysis.Report{
		Distances:        matrix,
		Consensus:        consensus,
		Outliers:         outliers,
		Threshold:        threshold,
		DocumentCount:    len(docs),
		ComparisonCount:  matrix.Comparisons(),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	}, nil
}
