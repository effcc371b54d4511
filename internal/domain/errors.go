package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientDocuments signals fewer than two valid embeddings.
	ErrInsufficientDocuments = errors.New("insufficient documents")
	// ErrDimensionMismatch signals embeddings of differing lengths.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrDegenerateEmbedding signals a zero-norm embedding vector.
	ErrDegenerateEmbedding = errors.New("degenerate embedding")
	// ErrInvalidThreshold signals a threshold outside the [0, 2] domain.
	ErrInvalidThreshold = errors.New("invalid threshold")
	// ErrTooManyDocuments signals a request above the configured document limit.
	ErrTooManyDocuments = errors.New("too many documents")
	// ErrDuplicateDocument signals a document id repeated within a request.
	ErrDuplicateDocument = errors.New("duplicate document id")

	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrSearchProviderError signals a search provider failure.
	ErrSearchProviderError = errors.New("search provider error")
	// ErrChainUnavailable signals a chain recorder failure.
	ErrChainUnavailable = errors.New("chain recorder unavailable")
)

// DimensionMismatchError wraps ErrDimensionMismatch with the offending document.
type DimensionMismatchError struct {
	DocumentID string
	Want       int
	Got        int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: document %q has %d dimensions, expected %d",
		ErrDimensionMismatch.Error(), e.DocumentID, e.Got, e.Want)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error for a document.
func NewDimensionMismatch(documentID string, want, got int) error {
	return &DimensionMismatchError{DocumentID: documentID, Want: want, Got: got}
}
