package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"vedai-backend/internal/domain"
	"vedai-backend/internal/usecase"
)

const (
	pollInterval   = 100 * time.Millisecond
	jobTimeout     = 120 * time.Second
	initialBackoff = 1 * time.Second
	maxBackoff     = 5 * time.Minute
)

// JobWorker polls the ingest job queue and runs jobs one at a time. Queue
// errors back the poll loop off exponentially up to maxBackoff; a successful
// poll resets the interval.
type JobWorker struct {
	jobRepo       domain.IngestJobRepository
	ingestUsecase usecase.IngestContentUsecase
	logger        *slog.Logger
	stopChan      chan struct{}
	doneChan      chan struct{}
}

func NewJobWorker(
	jobRepo domain.IngestJobRepository,
	ingestUsecase usecase.IngestContentUsecase,
	logger *slog.Logger,
) *JobWorker {
	return &JobWorker{
		jobRepo:       jobRepo,
		ingestUsecase: ingestUsecase,
		logger:        logger,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

func (w *JobWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

func (w *JobWorker) Stop() {
	close(w.stopChan)
	<-w.doneChan
}

func (w *JobWorker) run(ctx context.Context) {
	defer close(w.doneChan)
	w.logger.Info("job_worker_started")

	interval := pollInterval
	for {
		select {
		case <-w.stopChan:
			w.logger.Info("job_worker_stopped")
			return
		case <-ctx.Done():
			w.logger.Info("job_worker_context_cancelled")
			return
		case <-time.After(interval):
		}

		processed, err := w.processNextJob(ctx)
		if err != nil {
			if interval < initialBackoff {
				interval = initialBackoff
			} else {
				interval *= 2
				if interval > maxBackoff {
					interval = maxBackoff
				}
			}
			w.logger.Error("job_queue_poll_failed",
				slog.String("error", err.Error()),
				slog.Duration("next_poll_in", interval),
			)
			continue
		}
		interval = pollInterval
		if processed {
			// Drain the queue without waiting a full poll cycle.
			interval = 0
		}
	}
}

// processNextJob claims at most one job. The bool reports whether a job was
// found; the error covers queue access only, job failures are recorded on the
// job row instead.
func (w *JobWorker) processNextJob(ctx context.Context) (bool, error) {
	job, err := w.jobRepo.AcquireNextJob(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	w.logger.Info("job_processing_started",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", job.JobType),
	)

	jobErr := w.executeJob(jobCtx, job)
	if jobErr != nil {
		w.logger.Error("job_processing_failed",
			slog.String("job_id", job.ID.String()),
			slog.String("error", jobErr.Error()),
		)
		message := jobErr.Error()
		if err := w.jobRepo.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, &message); err != nil {
			return true, fmt.Errorf("failed to mark job %s failed: %w", job.ID, err)
		}
		return true, nil
	}

	if err := w.jobRepo.UpdateStatus(ctx, job.ID, domain.JobStatusCompleted, nil); err != nil {
		return true, fmt.Errorf("failed to mark job %s completed: %w", job.ID, err)
	}
	w.logger.Info("job_processing_completed", slog.String("job_id", job.ID.String()))
	return true, nil
}

func (w *JobWorker) executeJob(ctx context.Context, job *domain.IngestJob) error {
	switch job.JobType {
	case domain.JobTypeIngestChunks:
		input, err := decodeIngestPayload(job.Payload)
		if err != nil {
			return err
		}
		_, err = w.ingestUsecase.Ingest(ctx, *input)
		return err
	default:
		return fmt.Errorf("unknown job type: %s", job.JobType)
	}
}

func decodeIngestPayload(payload map[string]interface{}) (*usecase.IngestContentInput, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job payload: %w", err)
	}
	var input usecase.IngestContentInput
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, fmt.Errorf("failed to decode ingest payload: %w", err)
	}
	return &input, nil
}
