package usecase

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"vedai-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSelectCandidates_NoRerankerKeepsSimilarityOrder(t *testing.T) {
	candidates := makeCandidates("a", "b", "c")

	selected, reranked := SelectCandidates(context.Background(), nil, "q", candidates, 2, time.Second, slog.Default())

	assert.False(t, reranked)
	require.Len(t, selected, 2)
	assert.Equal(t, candidates[0].Chunk.ID, selected[0].Chunk.ID)
	assert.Equal(t, candidates[1].Chunk.ID, selected[1].Chunk.ID)
}

func TestSelectCandidates_RerankerReorders(t *testing.T) {
	candidates := makeCandidates("a", "b", "c")
	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "q", mock.MatchedBy(func(input []domain.RerankCandidate) bool {
		// Candidates carry their retrieval similarity into the rerank call.
		return len(input) == 3 &&
			input[0].ID == candidates[0].Chunk.ID.String() &&
			input[0].Content == candidates[0].Chunk.Text &&
			input[0].Score == candidates[0].Similarity
	})).Return([]domain.RerankResult{
		{ID: candidates[2].Chunk.ID.String(), Score: 0.99},
		{ID: candidates[0].Chunk.ID.String(), Score: 0.42},
		{ID: candidates[1].Chunk.ID.String(), Score: 0.10},
	}, nil)

	selected, reranked := SelectCandidates(context.Background(), reranker, "q", candidates, 3, time.Second, slog.Default())

	assert.True(t, reranked)
	require.Len(t, selected, 3)
	assert.Equal(t, candidates[2].Chunk.ID, selected[0].Chunk.ID)
	assert.Equal(t, candidates[0].Chunk.ID, selected[1].Chunk.ID)
	assert.Equal(t, candidates[1].Chunk.ID, selected[2].Chunk.ID)
	reranker.AssertExpectations(t)
}

func TestSelectCandidates_DiscardsUnknownIDs(t *testing.T) {
	candidates := makeCandidates("a", "b")
	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "q", mock.Anything).Return([]domain.RerankResult{
		{ID: "not-a-retrieved-chunk", Score: 1.0},
		{ID: candidates[1].Chunk.ID.String(), Score: 0.9},
	}, nil)

	selected, reranked := SelectCandidates(context.Background(), reranker, "q", candidates, 10, time.Second, slog.Default())

	assert.True(t, reranked)
	require.Len(t, selected, 2)
	assert.Equal(t, candidates[1].Chunk.ID, selected[0].Chunk.ID)
	// Unscored retrieved candidates keep their place at the tail.
	assert.Equal(t, candidates[0].Chunk.ID, selected[1].Chunk.ID)
}

func TestSelectCandidates_FallsBackOnRerankerError(t *testing.T) {
	candidates := makeCandidates("a", "b", "c")
	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "q", mock.Anything).Return(nil, errors.New("reranker down"))

	selected, reranked := SelectCandidates(context.Background(), reranker, "q", candidates, 2, time.Second, slog.Default())

	assert.False(t, reranked)
	require.Len(t, selected, 2)
	assert.Equal(t, candidates[0].Chunk.ID, selected[0].Chunk.ID)
}

func TestSelectCandidates_TruncatesAfterRerank(t *testing.T) {
	candidates := makeCandidates("a", "b", "c", "d")
	reranker := new(mockReranker)
	reranker.On("Rerank", mock.Anything, "q", mock.Anything).Return([]domain.RerankResult{
		{ID: candidates[3].Chunk.ID.String(), Score: 0.9},
		{ID: candidates[2].Chunk.ID.String(), Score: 0.8},
		{ID: candidates[1].Chunk.ID.String(), Score: 0.7},
		{ID: candidates[0].Chunk.ID.String(), Score: 0.6},
	}, nil)

	selected, _ := SelectCandidates(context.Background(), reranker, "q", candidates, 2, time.Second, slog.Default())

	require.Len(t, selected, 2)
	assert.Equal(t, candidates[3].Chunk.ID, selected[0].Chunk.ID)
	assert.Equal(t, candidates[2].Chunk.ID, selected[1].Chunk.ID)
}

func TestSelectCandidates_EmptyInput(t *testing.T) {
	selected, reranked := SelectCandidates(context.Background(), nil, "q", nil, 5, time.Second, slog.Default())

	assert.Nil(t, selected)
	assert.False(t, reranked)
}
