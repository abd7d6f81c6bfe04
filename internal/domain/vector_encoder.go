package domain

import (
	"context"
)

// VectorEncoder defines the interface for generating embeddings. Question
// vectors must live in the same space as stored chunk embeddings, so both
// sides of retrieval share one encoder.
type VectorEncoder interface {
	Encode(ctx context.Context, texts []string) ([][]float32, error)
	Version() string
}
