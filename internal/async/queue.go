package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-extractor/internal/ingest"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one receipt file waiting for extraction.
type Job struct {
	ID          uuid.UUID
	Path        string
	UserID      *int64
	SubmittedAt time.Time
	RequestID   string
}

// NewJob stamps a job for path with a fresh ID.
func NewJob(path string, userID *int64) Job {
	return Job{ID: uuid.New(), Path: path, UserID: userID, SubmittedAt: time.Now()}
}

// Ingestor is the work the queue performs for each job.
type Ingestor interface {
	IngestPath(ctx context.Context, path string, userID *int64) (ingest.IngestionResult, error)
}

// ResultFunc receives the outcome of every processed job.
type ResultFunc func(job Job, res ingest.IngestionResult, err error)

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
