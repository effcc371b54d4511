package guard

import (
	"context"

	"github.com/neargravity/semguard/internal/domain"
	"github.com/neargravity/semguard/internal/domain/analysis"
)

// Searcher retrieves web results for a query.
type Searcher interface {
	Search(ctx context.Context, query string, count int) ([]domain.Document, error)
}

// Embedder vectorizes the result texts in a single provider call.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Analyzer runs the distance/outlier engine over embedded documents.
type Analyzer interface {
	Analyze(docs []domain.Document, threshold float64) (analysis.Report, error)
}

// Receipt describes a chain submission outcome.
type Receipt struct {
	TxHash     string `json:"tx_hash"`
	StorageKey string `json:"storage_key"`
}

// Recorder submits finished reports to the chain. Implementations derive
// the storage key from the identifier.
type Recorder interface {
	Submit(ctx context.Context, identifier string, report analysis.Report) (Receipt, error)
}
