package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neargravity/semguard/internal/domain"
	"github.com/neargravity/semguard/internal/domain/analysis"
	"github.com/neargravity/semguard/internal/logger"
)

// DefaultResultCount is how many search results feed one analysis.
const DefaultResultCount = 5

// Result is one complete guard run: the retrieved documents with their
// display metadata, the analysis report, and the chain receipt when
// recording succeeded.
type Result struct {
	AnalysisID string
	Query      string
	QueryHash  string
	Documents  []domain.Document
	Report     analysis.Report
	Receipt    *Receipt
}

// Service orchestrates a guard run: search, embed, analyze, record.
// The engine itself stays pure; all I/O happens here, before and after it.
type Service struct {
	search           Searcher
	embed            Embedder
	engine           Analyzer
	recorder         Recorder
	resultCount      int
	defaultThreshold float64
}

// New creates a guard service. Recording is disabled until WithRecorder.
func New(search Searcher, embed Embedder, engine Analyzer) *Service {
	return &Service{
		search:           search,
		embed:            embed,
		engine:           engine,
		resultCount:      DefaultResultCount,
		defaultThreshold: analysis.DefaultThreshold,
	}
}

// WithRecorder enables best-effort chain recording of finished reports.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

// WithResultCount overrides how many search results are requested per query.
func (s *Service) WithResultCount(n int) *Service {
	if n > 0 {
		s.resultCount = n
	}
	return s
}

// WithDefaultThreshold overrides the threshold used when a request passes 0.
func (s *Service) WithDefaultThreshold(t float64) *Service {
	if t > 0 {
		s.defaultThreshold = t
	}
	return s
}

// Run executes the full guard flow for a query. threshold 0 means "use the
// configured default"; count <= 0 means the configured result count. Engine
// failures are fatal; recorder failures are logged and skipped, since
// recording is best-effort.
func (s *Service) Run(ctx context.Context, query string, threshold float64, count int) (Result, error) {
	if count <= 0 {
		count = s.resultCount
	}
	docs, err := s.search.Search(ctx, query, count)
	if err != nil {
		return Result{}, fmt.Errorf("web search: %w", err)
	}
	if len(docs) < 2 {
		return Result{}, fmt.Errorf("%w: search returned %d results", domain.ErrInsufficientDocuments, len(docs))
	}

	texts := make([]string, len(docs))
	for i := range docs {
		texts[i] = docs[i].Content()
	}

	batch, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("embed results: %w", err)
	}
	if len(batch.Embeddings) != len(docs) {
		return Result{}, fmt.Errorf("%w: got %d vectors for %d documents",
			domain.ErrEmbeddingProviderError, len(batch.Embeddings), len(docs))
	}
	for i := range docs {
		docs[i].Vector = batch.Embeddings[i]
	}

	if threshold == 0 {
		threshold = s.defaultThreshold
	}

	report, err := s.engine.Analyze(docs, threshold)
	if err != nil {
		return Result{}, fmt.Errorf("analyze: %w", err)
	}

	res := Result{
		AnalysisID: uuid.NewString(),
		Query:      query,
		QueryHash:  hashQuery(query),
		Documents:  docs,
		Report:     report,
	}

	if s.recorder != nil {
		receipt, err := s.recorder.Submit(ctx, res.QueryHash, report)
		if err != nil {
			logger.FromContext(ctx).Warn("chain submission failed",
				zap.String("query_hash", res.QueryHash),
				zap.Error(err),
			)
		} else {
			res.Receipt = &receipt
		}
	}

	return res, nil
}

// hashQuery derives the chain identifier for a query.
func hashQuery(query string) string {
	h := sha256.Sum256([]byte(query))
	return hex.EncodeToString(h[:])
}
