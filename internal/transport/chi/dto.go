package chi

import (
	"github.com/neargravity/semguard/internal/domain"
	"github.com/neargravity/semguard/internal/domain/analysis"
	"github.com/neargravity/semguard/internal/usecase/guard"
)

// ErrorCode identifies an API error class.
type ErrorCode string

const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeInsufficientDocuments  ErrorCode = "insufficient_documents"
	CodeDimensionMismatch      ErrorCode = "dimension_mismatch"
	CodeDegenerateEmbedding    ErrorCode = "degenerate_embedding"
	CodeInvalidThreshold       ErrorCode = "invalid_threshold"
	CodeTooManyDocuments       ErrorCode = "too_many_documents"
	CodeDuplicateDocument      ErrorCode = "duplicate_document"
	CodeNotFound               ErrorCode = "not_found"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeSearchProviderError    ErrorCode = "search_provider_error"
	CodeChainUnavailable       ErrorCode = "chain_unavailable"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// AnalyzeDocument is one pre-embedded document in an analyze request.
type AnalyzeDocument struct {
	ID        string    `json:"id"`
	Content   string    `json:"content,omitempty"`
	Embedding []float32 `json:"embedding"`
}

// AnalyzeRequest carries pre-embedded documents for a direct engine run.
type AnalyzeRequest struct {
	Documents []AnalyzeDocument `json:"documents"`
	Threshold float64           `json:"threshold,omitempty"`
}

// AnalyzeResponse is the engine report with its request-scoped id.
type AnalyzeResponse struct {
	AnalysisID string          `json:"analysis_id"`
	Report     analysis.Report `json:"report"`
}

// GuardRequest triggers the full search-embed-analyze flow.
type GuardRequest struct {
	Query     string  `json:"query"`
	Threshold float64 `json:"threshold,omitempty"`
	Count     int     `json:"count,omitempty"`
}

// GuardDocument is the display view of a retrieved document.
type GuardDocument struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
	URL      string `json:"url,omitempty"`
	Rank     int    `json:"rank"`
	Provider string `json:"provider,omitempty"`
}

// GuardResponse is one complete guard run.
type GuardResponse struct {
	AnalysisID string          `json:"analysis_id"`
	Query      string          `json:"query"`
	QueryHash  string          `json:"query_hash"`
	Documents  []GuardDocument `json:"documents"`
	Report     analysis.Report `json:"report"`
	Receipt    *guard.Receipt  `json:"receipt,omitempty"`
}

// HealthResponse is the aggregated health report.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func documentsFromAnalyze(items []AnalyzeDocument) []domain.Document {
	docs := make([]domain.Document, len(items))
	for i, item := range items {
		docs[i] = domain.Document{
			ID:      item.ID,
			Snippet: item.Content,
			Vector:  item.Embedding,
		}
	}
	return docs
}

func guardDocuments(docs []domain.Document) []GuardDocument {
	out := make([]GuardDocument, len(docs))
	for i, d := range docs {
		out[i] = GuardDocument{
			ID:       d.ID,
			Title:    d.Title,
			Snippet:  d.Snippet,
			URL:      d.URL,
			Rank:     d.Rank,
			Provider: d.Provider,
		}
	}
	return out
}
