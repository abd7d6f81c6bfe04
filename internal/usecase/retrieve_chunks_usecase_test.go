package usecase

import (
	"context"
	"log/slog"
	"testing"

	"vedai-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestRetrieveChunks_PassesFilterAndLimit(t *testing.T) {
	encoder := new(mockVectorEncoder)
	repo := new(mockContentRepository)
	vector := []float32{0.1, 0.2, 0.3}
	filter := domain.ChunkFilter{
		ClassLevel: intPtr(10),
		Subject:    strPtr("Science"),
		Chapter:    strPtr("Life Processes"),
	}
	candidates := makeCandidates("a", "b")

	encoder.On("Encode", mock.Anything, []string{"how do plants breathe"}).Return([][]float32{vector}, nil)
	repo.On("NearestNeighbors", mock.Anything, vector, filter, 50).Return(candidates, nil)

	uc := NewRetrieveChunksUsecase(repo, encoder, 50, slog.Default())
	out, err := uc.Execute(context.Background(), RetrieveChunksInput{
		Question: "how do plants breathe",
		Filter:   filter,
	})

	require.NoError(t, err)
	assert.Equal(t, candidates, out.Candidates)
	encoder.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestRetrieveChunks_EmptyResultIsNotAnError(t *testing.T) {
	encoder := new(mockVectorEncoder)
	repo := new(mockContentRepository)
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.5}}, nil)
	repo.On("NearestNeighbors", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return([]domain.RetrievalCandidate{}, nil)

	uc := NewRetrieveChunksUsecase(repo, encoder, 50, slog.Default())
	out, err := uc.Execute(context.Background(), RetrieveChunksInput{Question: "q"})

	require.NoError(t, err)
	assert.Empty(t, out.Candidates)
}

func TestRetrieveChunks_RetriesTransientEmbedFailure(t *testing.T) {
	encoder := new(mockVectorEncoder)
	repo := new(mockContentRepository)
	encoder.On("Encode", mock.Anything, mock.Anything).
		Return(nil, &domain.UpstreamStatusError{Endpoint: "embed", StatusCode: 503, Body: "busy"}).Once()
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.5}}, nil).Once()
	repo.On("NearestNeighbors", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(makeCandidates("a"), nil)

	uc := NewRetrieveChunksUsecase(repo, encoder, 50, slog.Default())
	out, err := uc.Execute(context.Background(), RetrieveChunksInput{Question: "q"})

	require.NoError(t, err)
	assert.Len(t, out.Candidates, 1)
	encoder.AssertExpectations(t)
}

func TestRetrieveChunks_PermanentEmbedFailureNotRetried(t *testing.T) {
	encoder := new(mockVectorEncoder)
	repo := new(mockContentRepository)
	encoder.On("Encode", mock.Anything, mock.Anything).
		Return(nil, &domain.UpstreamStatusError{Endpoint: "embed", StatusCode: 400, Body: "bad input"}).Once()

	uc := NewRetrieveChunksUsecase(repo, encoder, 50, slog.Default())
	_, err := uc.Execute(context.Background(), RetrieveChunksInput{Question: "q"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed question")
	encoder.AssertExpectations(t)
	repo.AssertNotCalled(t, "NearestNeighbors", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRetrieveChunks_RejectsBlankQuestion(t *testing.T) {
	uc := NewRetrieveChunksUsecase(new(mockContentRepository), new(mockVectorEncoder), 50, slog.Default())

	_, err := uc.Execute(context.Background(), RetrieveChunksInput{Question: "   "})

	assert.Error(t, err)
}

func TestRetrieveChunks_WrongVectorCount(t *testing.T) {
	encoder := new(mockVectorEncoder)
	encoder.On("Encode", mock.Anything, mock.Anything).Return([][]float32{{0.1}, {0.2}}, nil)

	uc := NewRetrieveChunksUsecase(new(mockContentRepository), encoder, 50, slog.Default())
	_, err := uc.Execute(context.Background(), RetrieveChunksInput{Question: "q"})

	assert.Error(t, err)
}
