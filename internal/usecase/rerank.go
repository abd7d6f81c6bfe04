package usecase

import (
	"context"
	"log/slog"
	"time"

	"vedai-backend/internal/domain"
)

// SelectCandidates picks the final candidates that feed the prompt. With a
// reranker it reorders the retrieved set by cross-encoder relevance before
// truncating to topK; without one (or when reranking fails) it keeps the
// similarity order. The returned bool reports whether reranking was applied.
//
// Reranking never introduces chunks that were not retrieved: results whose ID
// is unknown are discarded, and retrieved candidates the reranker did not
// score keep their original relative order at the tail.
func SelectCandidates(
	ctx context.Context,
	reranker domain.Reranker,
	question string,
	candidates []domain.RetrievalCandidate,
	topK int,
	timeout time.Duration,
	logger *slog.Logger,
) ([]domain.RetrievalCandidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}
	if topK <= 0 {
		topK = len(candidates)
	}

	if reranker == nil {
		return truncateCandidates(candidates, topK), false
	}

	rerankInput := make([]domain.RerankCandidate, len(candidates))
	for i, c := range candidates {
		rerankInput[i] = domain.RerankCandidate{
			ID:      c.Chunk.ID.String(),
			Content: c.Chunk.Text,
			Score:   c.Similarity,
		}
	}

	rctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	results, err := reranker.Rerank(rctx, question, rerankInput)
	if err != nil {
		logger.Warn("reranking_failed_using_similarity_order",
			slog.String("model", reranker.ModelName()),
			slog.String("error", err.Error()),
		)
		return truncateCandidates(candidates, topK), false
	}

	byID := make(map[string]domain.RetrievalCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.Chunk.ID.String()] = c
	}

	picked := make(map[string]bool, len(results))
	ordered := make([]domain.RetrievalCandidate, 0, len(candidates))
	for _, r := range results {
		c, ok := byID[r.ID]
		if !ok || picked[r.ID] {
			continue
		}
		picked[r.ID] = true
		ordered = append(ordered, c)
	}
	for _, c := range candidates {
		if !picked[c.Chunk.ID.String()] {
			ordered = append(ordered, c)
		}
	}

	logger.Info("reranking_completed",
		slog.String("model", reranker.ModelName()),
		slog.Int("scored_count", len(results)),
	)

	return truncateCandidates(ordered, topK), true
}

func truncateCandidates(candidates []domain.RetrievalCandidate, topK int) []domain.RetrievalCandidate {
	if len(candidates) <= topK {
		return candidates
	}
	return candidates[:topK]
}
