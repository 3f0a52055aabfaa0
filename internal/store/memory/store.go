// Package memory provides an in-memory job store for development/testing.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagemill/pagemill/internal/scraper"
)

// Store keeps jobs and page records in process memory.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]scraper.Job
	pages map[string][]scraper.PageRecord
}

// New constructs a Store.
func New() *Store {
	return &Store{
		jobs:  make(map[string]scraper.Job),
		pages: make(map[string][]scraper.PageRecord),
	}
}

// CreateJob stores a new job in ready status.
func (s *Store) CreateJob(_ context.Context, job scraper.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status and counters for a job.
func (s *Store) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status scraper.JobStatus,
	errText string,
	counters scraper.JobCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("update %s: %w", jobID, scraper.ErrJobNotFound)
	}
	// A canceled job stays canceled even if a worker finishes it later.
	if job.Status.Terminal() {
		return nil
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	now := time.Now().UTC()
	if status == scraper.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.Terminal() {
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// RecordPage appends a page row for a job.
func (s *Store) RecordPage(_ context.Context, page scraper.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[page.JobID]; !ok {
		return fmt.Errorf("record page for %s: %w", page.JobID, scraper.ErrJobNotFound)
	}
	s.pages[page.JobID] = append(s.pages[page.JobID], page)
	return nil
}

// GetJob fetches a job by ID.
func (s *Store) GetJob(_ context.Context, jobID string) (scraper.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scraper.Job{}, fmt.Errorf("get %s: %w", jobID, scraper.ErrJobNotFound)
	}
	return job, nil
}

// ListPages returns all recorded pages for a job in crawl order.
func (s *Store) ListPages(_ context.Context, jobID string) ([]scraper.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, fmt.Errorf("list pages for %s: %w", jobID, scraper.ErrJobNotFound)
	}
	pages := s.pages[jobID]
	out := make([]scraper.PageRecord, len(pages))
	copy(out, pages)
	return out, nil
}

// MarkCanceled flips a non-terminal job to canceled. Canceling a job that
// already finished is a no-op and returns the job as-is.
func (s *Store) MarkCanceled(_ context.Context, jobID string) (scraper.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return scraper.Job{}, fmt.Errorf("cancel %s: %w", jobID, scraper.ErrJobNotFound)
	}
	if job.Status.Terminal() {
		return job, nil
	}
	job.Status = scraper.JobStatusCanceled
	job.Finished = pointerTime(time.Now().UTC())
	s.jobs[jobID] = job
	return job, nil
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
