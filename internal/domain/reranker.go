package domain

import "context"

// RerankCandidate represents a chunk candidate for cross-encoder reranking.
type RerankCandidate struct {
	// ID is the unique identifier for the chunk (used to map back results).
	ID string
	// Content is the text content to be scored against the question.
	Content string
	// Score is the initial retrieval similarity (for debugging/logging).
	Score float32
}

// RerankResult represents a reranked chunk with its cross-encoder score.
type RerankResult struct {
	// ID matches the candidate ID for result mapping.
	ID string
	// Score is the cross-encoder relevance score (typically 0.0 to 1.0).
	Score float32
}

// Reranker defines the interface for the optional second-stage relevance
// scorer. Implementations must only reorder: the result set is a subset of
// the candidate IDs passed in, never new ones.
type Reranker interface {
	// Rerank scores candidates against the question.
	// Returns results sorted by score descending.
	// If an error occurs, callers should fall back to the retrieval order.
	Rerank(ctx context.Context, question string, candidates []RerankCandidate) ([]RerankResult, error)

	// ModelName returns the model identifier for logging/debugging.
	ModelName() string
}
