package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const JobTypeIngestChunks = "ingest_chunks"

const (
	JobStatusNew        = "new"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IngestJob is a queued unit of ingest work, persisted so that chunk
// embedding and insertion survive restarts and never block the HTTP path.
type IngestJob struct {
	ID           uuid.UUID
	JobType      string // "ingest_chunks"
	Payload      map[string]interface{}
	Status       string // "new", "processing", "completed", "failed"
	ErrorMessage *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IngestJobRepository defines the persistent job queue operations.
type IngestJobRepository interface {
	Enqueue(ctx context.Context, job *IngestJob) error
	// AcquireNextJob atomically claims the oldest 'new' job and marks it
	// 'processing'. Returns nil, nil when the queue is empty.
	AcquireNextJob(ctx context.Context) (*IngestJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, errorMessage *string) error
}
