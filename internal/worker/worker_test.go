package worker

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"vedai-backend/internal/domain"
	"vedai-backend/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockJobRepo struct {
	mock.Mock
}

func (m *mockJobRepo) Enqueue(ctx context.Context, job *domain.IngestJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockJobRepo) AcquireNextJob(ctx context.Context) (*domain.IngestJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.IngestJob), args.Error(1)
}

func (m *mockJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error {
	args := m.Called(ctx, id, status, errorMessage)
	return args.Error(0)
}

type mockIngestUsecase struct {
	mock.Mock
}

func (m *mockIngestUsecase) Ingest(ctx context.Context, input usecase.IngestContentInput) (*usecase.IngestContentResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.IngestContentResult), args.Error(1)
}

func ingestJob() *domain.IngestJob {
	return &domain.IngestJob{
		ID:      uuid.New(),
		JobType: domain.JobTypeIngestChunks,
		Payload: map[string]interface{}{
			"source_file": "science_10.pdf",
			"class":       float64(10), // JSON numbers decode as float64
			"subject":     "Science",
			"chapter":     "Life Processes",
			"chunks": []interface{}{
				map[string]interface{}{"text": "chunk one", "page": float64(3), "tokens": float64(80)},
			},
		},
		Status: domain.JobStatusProcessing,
	}
}

func TestProcessNextJob_CompletesIngestJob(t *testing.T) {
	jobRepo := new(mockJobRepo)
	ingestUsecase := new(mockIngestUsecase)
	job := ingestJob()

	jobRepo.On("AcquireNextJob", mock.Anything).Return(job, nil)
	ingestUsecase.On("Ingest", mock.Anything, mock.MatchedBy(func(input usecase.IngestContentInput) bool {
		return input.SourceFile == "science_10.pdf" &&
			input.ClassLevel == 10 &&
			input.Subject == "Science" &&
			len(input.Chunks) == 1 &&
			input.Chunks[0].Text == "chunk one" &&
			input.Chunks[0].Page == 3
	})).Return(&usecase.IngestContentResult{Inserted: 1}, nil)
	jobRepo.On("UpdateStatus", mock.Anything, job.ID, domain.JobStatusCompleted, (*string)(nil)).Return(nil)

	w := NewJobWorker(jobRepo, ingestUsecase, slog.Default())
	processed, err := w.processNextJob(context.Background())

	require.NoError(t, err)
	assert.True(t, processed)
	jobRepo.AssertExpectations(t)
	ingestUsecase.AssertExpectations(t)
}

func TestProcessNextJob_MarksJobFailedOnError(t *testing.T) {
	jobRepo := new(mockJobRepo)
	ingestUsecase := new(mockIngestUsecase)
	job := ingestJob()

	jobRepo.On("AcquireNextJob", mock.Anything).Return(job, nil)
	ingestUsecase.On("Ingest", mock.Anything, mock.Anything).Return(nil, assert.AnError)
	jobRepo.On("UpdateStatus", mock.Anything, job.ID, domain.JobStatusFailed, mock.MatchedBy(func(msg *string) bool {
		return msg != nil && *msg != ""
	})).Return(nil)

	w := NewJobWorker(jobRepo, ingestUsecase, slog.Default())
	processed, err := w.processNextJob(context.Background())

	require.NoError(t, err)
	assert.True(t, processed)
	jobRepo.AssertExpectations(t)
}

func TestProcessNextJob_EmptyQueue(t *testing.T) {
	jobRepo := new(mockJobRepo)
	jobRepo.On("AcquireNextJob", mock.Anything).Return(nil, nil)

	w := NewJobWorker(jobRepo, new(mockIngestUsecase), slog.Default())
	processed, err := w.processNextJob(context.Background())

	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessNextJob_UnknownJobTypeFails(t *testing.T) {
	jobRepo := new(mockJobRepo)
	job := ingestJob()
	job.JobType = "reindex_corpus"

	jobRepo.On("AcquireNextJob", mock.Anything).Return(job, nil)
	jobRepo.On("UpdateStatus", mock.Anything, job.ID, domain.JobStatusFailed, mock.Anything).Return(nil)

	w := NewJobWorker(jobRepo, new(mockIngestUsecase), slog.Default())
	processed, err := w.processNextJob(context.Background())

	require.NoError(t, err)
	assert.True(t, processed)
	jobRepo.AssertExpectations(t)
}

func TestWorker_StartStop(t *testing.T) {
	jobRepo := new(mockJobRepo)
	jobRepo.On("AcquireNextJob", mock.Anything).Return(nil, nil).Maybe()

	w := NewJobWorker(jobRepo, new(mockIngestUsecase), slog.Default())
	w.Start(context.Background())
	time.Sleep(250 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop in time")
	}
}
