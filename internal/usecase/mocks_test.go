package usecase

import (
	"context"

	"vedai-backend/internal/domain"

	"github.com/stretchr/testify/mock"
)

type mockContentRepository struct {
	mock.Mock
}

func (m *mockContentRepository) NearestNeighbors(ctx context.Context, queryVector []float32, filter domain.ChunkFilter, limit int) ([]domain.RetrievalCandidate, error) {
	args := m.Called(ctx, queryVector, filter, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetrievalCandidate), args.Error(1)
}

func (m *mockContentRepository) BulkInsertChunks(ctx context.Context, chunks []domain.ContentChunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *mockContentRepository) ExistsByContent(ctx context.Context, text string, classLevel int, subject, chapter string) (bool, error) {
	args := m.Called(ctx, text, classLevel, subject, chapter)
	return args.Bool(0), args.Error(1)
}

func (m *mockContentRepository) CountMatching(ctx context.Context, filter domain.ChunkFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type mockVectorEncoder struct {
	mock.Mock
}

func (m *mockVectorEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *mockVectorEncoder) Version() string {
	return "mock-encoder"
}

type mockLLMClient struct {
	mock.Mock
}

func (m *mockLLMClient) Generate(ctx context.Context, prompt string, maxTokens int) (*domain.LLMResponse, error) {
	args := m.Called(ctx, prompt, maxTokens)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LLMResponse), args.Error(1)
}

func (m *mockLLMClient) Version() string {
	return "mock-llm"
}

type mockReranker struct {
	mock.Mock
}

func (m *mockReranker) Rerank(ctx context.Context, question string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	args := m.Called(ctx, question, candidates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RerankResult), args.Error(1)
}

func (m *mockReranker) ModelName() string {
	return "mock-reranker"
}

type mockTransactionManager struct {
	mock.Mock
}

func (m *mockTransactionManager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Error(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

type mockRetrieveUsecase struct {
	mock.Mock
}

func (m *mockRetrieveUsecase) Execute(ctx context.Context, input RetrieveChunksInput) (*RetrieveChunksOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RetrieveChunksOutput), args.Error(1)
}
