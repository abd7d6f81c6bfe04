package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vedai-backend/internal/domain"
)

const (
	embedAttempts  = 2
	searchAttempts = 2
	retryBase      = 200 * time.Millisecond
)

type RetrieveChunksInput struct {
	Question string
	Filter   domain.ChunkFilter
}

type RetrieveChunksOutput struct {
	Candidates []domain.RetrievalCandidate
}

// RetrieveChunksUsecase embeds a question and finds the nearest content
// chunks matching the caller's filter, ordered by similarity descending.
type RetrieveChunksUsecase interface {
	Execute(ctx context.Context, input RetrieveChunksInput) (*RetrieveChunksOutput, error)
}

type retrieveChunksUsecase struct {
	contentRepo domain.ContentRepository
	encoder     domain.VectorEncoder
	searchLimit int
	logger      *slog.Logger
}

func NewRetrieveChunksUsecase(
	contentRepo domain.ContentRepository,
	encoder domain.VectorEncoder,
	searchLimit int,
	logger *slog.Logger,
) RetrieveChunksUsecase {
	if searchLimit <= 0 {
		searchLimit = 50
	}
	return &retrieveChunksUsecase{
		contentRepo: contentRepo,
		encoder:     encoder,
		searchLimit: searchLimit,
		logger:      logger,
	}
}

func (u *retrieveChunksUsecase) Execute(ctx context.Context, input RetrieveChunksInput) (*RetrieveChunksOutput, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	vectors, err := retryTransient(ctx, embedAttempts, retryBase, func() ([][]float32, error) {
		return u.encoder.Encode(ctx, []string{question})
	})
	if err != nil {
		u.logger.Error("question_embedding_failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("encoder returned %d vectors for a single question", len(vectors))
	}
	queryVector := vectors[0]

	candidates, err := retryTransient(ctx, searchAttempts, retryBase, func() ([]domain.RetrievalCandidate, error) {
		return u.contentRepo.NearestNeighbors(ctx, queryVector, input.Filter, u.searchLimit)
	})
	if err != nil {
		u.logger.Error("nearest_neighbor_search_failed",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to search content chunks: %w", err)
	}

	var best float32
	if len(candidates) > 0 {
		best = candidates[0].Similarity
	}
	u.logger.Info("retrieval_completed",
		slog.Int("candidate_count", len(candidates)),
		slog.Float64("best_similarity", float64(best)),
		slog.Bool("filtered", !input.Filter.IsZero()),
	)

	return &RetrieveChunksOutput{Candidates: candidates}, nil
}
