package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// ContentChunk is an indexed textbook excerpt. Chunks are immutable once
// stored; the answering pipeline only reads them.
type ContentChunk struct {
	ID         uuid.UUID
	SourceFile string
	ClassLevel int // 8..12, 0 when untagged
	Subject    string
	Chapter    string
	Page       int
	Text       string
	Tokens     int
	Embedding  pgvector.Vector
	CreatedAt  time.Time
}

// ChunkFilter narrows retrieval to chunks whose metadata matches every set
// field exactly. A nil field imposes no constraint.
type ChunkFilter struct {
	ClassLevel *int
	Subject    *string
	Chapter    *string
}

// IsZero reports whether no filter field is set.
func (f ChunkFilter) IsZero() bool {
	return f.ClassLevel == nil && f.Subject == nil && f.Chapter == nil
}

// RetrievalCandidate is a chunk found via vector search together with its
// cosine similarity to the question (higher = more similar). Candidates live
// for the duration of one request and are never persisted.
type RetrievalCandidate struct {
	Chunk      ContentChunk
	Similarity float32
}

// ContentRepository defines the operations against the chunk corpus.
type ContentRepository interface {
	// NearestNeighbors returns up to limit chunks ordered by similarity to
	// queryVector (best first), restricted to the filter. An empty result is
	// not an error.
	NearestNeighbors(ctx context.Context, queryVector []float32, filter ChunkFilter, limit int) ([]RetrievalCandidate, error)

	// BulkInsertChunks inserts multiple chunks.
	BulkInsertChunks(ctx context.Context, chunks []ContentChunk) error

	// ExistsByContent reports whether a chunk with the same text and tags
	// already exists. Used for ingest dedupe.
	ExistsByContent(ctx context.Context, text string, classLevel int, subject, chapter string) (bool, error)

	// CountMatching returns the number of chunks the filter matches.
	CountMatching(ctx context.Context, filter ChunkFilter) (int64, error)
}

// TransactionManager defines the interface for handling database transactions.
type TransactionManager interface {
	// RunInTx executes the given function within a transaction.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
