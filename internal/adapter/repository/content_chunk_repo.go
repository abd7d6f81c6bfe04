package repository

import (
	"context"
	"fmt"

	"vedai-backend/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type contentChunkRepository struct {
	pool *pgxpool.Pool
}

// NewContentChunkRepository creates a new ContentRepository backed by
// Postgres + pgvector.
func NewContentChunkRepository(pool *pgxpool.Pool) domain.ContentRepository {
	return &contentChunkRepository{pool: pool}
}

type dbExecutor interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *contentChunkRepository) getExecutor(ctx context.Context) dbExecutor {
	tx := ExtractTx(ctx)
	if tx != nil {
		return tx
	}
	return r.pool
}

// NearestNeighbors runs a cosine nearest-neighbor query with the metadata
// filter applied as an exact-match conjunction. Similarity is reported as
// 1 - cosine distance, so higher means more similar.
func (r *contentChunkRepository) NearestNeighbors(ctx context.Context, queryVector []float32, filter domain.ChunkFilter, limit int) ([]domain.RetrievalCandidate, error) {
	query := `
		SELECT id, source_file, class_level, subject, chapter, page, text, tokens, created_at,
		       1 - (embedding <=> $1) AS similarity
		FROM content_chunks
		WHERE embedding IS NOT NULL
		  AND ($2::int IS NULL OR class_level = $2)
		  AND ($3::text IS NULL OR subject = $3)
		  AND ($4::text IS NULL OR chapter = $4)
		ORDER BY embedding <=> $1
		LIMIT $5
	`
	rows, err := r.getExecutor(ctx).Query(ctx, query,
		pgvector.NewVector(queryVector),
		filter.ClassLevel,
		filter.Subject,
		filter.Chapter,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest neighbors: %w", err)
	}
	defer rows.Close()

	var candidates []domain.RetrievalCandidate
	for rows.Next() {
		var c domain.RetrievalCandidate
		if err := rows.Scan(
			&c.Chunk.ID,
			&c.Chunk.SourceFile,
			&c.Chunk.ClassLevel,
			&c.Chunk.Subject,
			&c.Chunk.Chapter,
			&c.Chunk.Page,
			&c.Chunk.Text,
			&c.Chunk.Tokens,
			&c.Chunk.CreatedAt,
			&c.Similarity,
		); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return candidates, nil
}

func (r *contentChunkRepository) BulkInsertChunks(ctx context.Context, chunks []domain.ContentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(chunks))
	for i, chunk := range chunks {
		rows[i] = []interface{}{
			chunk.ID,
			chunk.SourceFile,
			chunk.ClassLevel,
			chunk.Subject,
			chunk.Chapter,
			chunk.Page,
			chunk.Text,
			chunk.Tokens,
			chunk.Embedding,
			chunk.CreatedAt,
		}
	}

	_, err := r.getExecutor(ctx).CopyFrom(
		ctx,
		pgx.Identifier{"content_chunks"},
		[]string{"id", "source_file", "class_level", "subject", "chapter", "page", "text", "tokens", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}

	return nil
}

// ExistsByContent checks the ingest dedupe key (text, class, subject, chapter).
func (r *contentChunkRepository) ExistsByContent(ctx context.Context, text string, classLevel int, subject, chapter string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM content_chunks
			WHERE text = $1 AND class_level = $2 AND subject = $3 AND chapter = $4
		)
	`
	var exists bool
	if err := r.getExecutor(ctx).QueryRow(ctx, query, text, classLevel, subject, chapter).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check chunk existence: %w", err)
	}
	return exists, nil
}

func (r *contentChunkRepository) CountMatching(ctx context.Context, filter domain.ChunkFilter) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM content_chunks
		WHERE ($1::int IS NULL OR class_level = $1)
		  AND ($2::text IS NULL OR subject = $2)
		  AND ($3::text IS NULL OR chapter = $3)
	`
	var count int64
	if err := r.getExecutor(ctx).QueryRow(ctx, query, filter.ClassLevel, filter.Subject, filter.Chapter).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
