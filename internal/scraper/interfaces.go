package scraper

import (
	"context"
	"errors"
)

// ErrJobNotFound is returned by stores when a job ID is unknown.
var ErrJobNotFound = errors.New("job not found")

// JobStore persists job and page metadata.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errText string, counters JobCounters) error
	RecordPage(ctx context.Context, page PageRecord) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	ListPages(ctx context.Context, jobID string) ([]PageRecord, error)
	MarkCanceled(ctx context.Context, jobID string) (Job, error)
}

// Archive writes raw page HTML and returns a URI for later retrieval.
type Archive interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes job completion events to a message bus.
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for crawl jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
	Len() int
}

// Hasher computes digests for archived content.
type Hasher interface {
	Hash(data []byte) string
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
