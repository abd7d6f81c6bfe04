package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vedai-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"
)

const embedConcurrency = 4

type IngestChunkInput struct {
	Text   string `json:"text"`
	Page   int    `json:"page"`
	Tokens int    `json:"tokens"`
}

type IngestContentInput struct {
	SourceFile string             `json:"source_file"`
	ClassLevel int                `json:"class"`
	Subject    string             `json:"subject"`
	Chapter    string             `json:"chapter"`
	Chunks     []IngestChunkInput `json:"chunks"`
}

type IngestContentResult struct {
	Inserted int
	Skipped  int
}

// IngestContentUsecase embeds pre-chunked textbook excerpts and stores them.
// Chunks whose (text, class, subject, chapter) combination already exists are
// skipped so re-running an ingest is idempotent.
type IngestContentUsecase interface {
	Ingest(ctx context.Context, input IngestContentInput) (*IngestContentResult, error)
}

type ingestContentUsecase struct {
	contentRepo domain.ContentRepository
	txManager   domain.TransactionManager
	encoder     domain.VectorEncoder
	batchSize   int
	logger      *slog.Logger
}

func NewIngestContentUsecase(
	contentRepo domain.ContentRepository,
	txManager domain.TransactionManager,
	encoder domain.VectorEncoder,
	batchSize int,
	logger *slog.Logger,
) IngestContentUsecase {
	if batchSize <= 0 {
		batchSize = 32
	}
	return &ingestContentUsecase{
		contentRepo: contentRepo,
		txManager:   txManager,
		encoder:     encoder,
		batchSize:   batchSize,
		logger:      logger,
	}
}

func (u *ingestContentUsecase) Ingest(ctx context.Context, input IngestContentInput) (*IngestContentResult, error) {
	if strings.TrimSpace(input.SourceFile) == "" {
		return nil, fmt.Errorf("source_file is required")
	}
	if len(input.Chunks) == 0 {
		return nil, fmt.Errorf("at least one chunk is required")
	}
	if input.ClassLevel != 0 && (input.ClassLevel < 8 || input.ClassLevel > 12) {
		return nil, fmt.Errorf("class must be between 8 and 12")
	}

	fresh := make([]IngestChunkInput, 0, len(input.Chunks))
	skipped := 0
	for _, chunk := range input.Chunks {
		text := strings.TrimSpace(chunk.Text)
		if text == "" {
			skipped++
			continue
		}
		exists, err := u.contentRepo.ExistsByContent(ctx, text, input.ClassLevel, input.Subject, input.Chapter)
		if err != nil {
			return nil, fmt.Errorf("failed to check for duplicate chunk: %w", err)
		}
		if exists {
			skipped++
			continue
		}
		chunk.Text = text
		fresh = append(fresh, chunk)
	}

	if len(fresh) == 0 {
		u.logger.Info("ingest_all_duplicates",
			slog.String("source_file", input.SourceFile),
			slog.Int("skipped", skipped),
		)
		return &IngestContentResult{Skipped: skipped}, nil
	}

	embeddings := make([][]float32, len(fresh))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for start := 0; start < len(fresh); start += u.batchSize {
		end := start + u.batchSize
		if end > len(fresh) {
			end = len(fresh)
		}
		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = fresh[i].Text
			}
			vectors, err := retryTransient(gctx, embedAttempts, retryBase, func() ([][]float32, error) {
				return u.encoder.Encode(gctx, texts)
			})
			if err != nil {
				return fmt.Errorf("failed to embed chunk batch at offset %d: %w", start, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("encoder returned %d vectors for %d texts", len(vectors), len(texts))
			}
			copy(embeddings[start:end], vectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now()
	rows := make([]domain.ContentChunk, len(fresh))
	for i, chunk := range fresh {
		rows[i] = domain.ContentChunk{
			ID:         uuid.New(),
			SourceFile: input.SourceFile,
			ClassLevel: input.ClassLevel,
			Subject:    input.Subject,
			Chapter:    input.Chapter,
			Page:       chunk.Page,
			Text:       chunk.Text,
			Tokens:     chunk.Tokens,
			Embedding:  pgvector.NewVector(embeddings[i]),
			CreatedAt:  now,
		}
	}

	err := u.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		return u.contentRepo.BulkInsertChunks(txCtx, rows)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	u.logger.Info("ingest_completed",
		slog.String("source_file", input.SourceFile),
		slog.Int("inserted", len(rows)),
		slog.Int("skipped", skipped),
	)
	return &IngestContentResult{Inserted: len(rows), Skipped: skipped}, nil
}
