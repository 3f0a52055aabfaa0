package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/pagemill/pagemill/internal/scraper"
)

func TestStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	job := scraper.Job{ID: "job-1", Status: scraper.JobStatusReady}

	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.CreateJob(ctx, job); err == nil {
		t.Fatal("expected duplicate job error")
	}
	if err := store.UpdateJobStatus(ctx, job.ID, scraper.JobStatusRunning, "", scraper.JobCounters{}); err != nil {
		t.Fatalf("UpdateJobStatus running error = %v", err)
	}
	record := scraper.PageRecord{JobID: job.ID, Seq: 0, Result: scraper.PageResult{URL: "https://example.com"}}
	if err := store.RecordPage(ctx, record); err != nil {
		t.Fatalf("RecordPage() error = %v", err)
	}
	pages, err := store.ListPages(ctx, job.ID)
	if err != nil || len(pages) != 1 {
		t.Fatalf("ListPages() unexpected result: pages=%v err=%v", pages, err)
	}
	pages[0].Result.URL = "modified"
	if store.pages[job.ID][0].Result.URL != "https://example.com" {
		t.Fatal("expected ListPages to return a copy")
	}

	err = store.UpdateJobStatus(
		ctx,
		job.ID,
		scraper.JobStatusCompleted,
		"",
		scraper.JobCounters{PagesOK: 1},
	)
	if err != nil {
		t.Fatalf("UpdateJobStatus completed error = %v", err)
	}
	final, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if final.Status != scraper.JobStatusCompleted || final.Started == nil || final.Finished == nil {
		t.Fatalf("expected timestamps set, got %+v", final)
	}
	if final.Counters.PagesOK != 1 {
		t.Fatalf("expected counters to persist, got %+v", final)
	}
}

func TestStoreNotFound(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()

	if _, err := store.GetJob(ctx, "missing"); !errors.Is(err, scraper.ErrJobNotFound) {
		t.Fatalf("GetJob() error = %v, want ErrJobNotFound", err)
	}
	if err := store.UpdateJobStatus(ctx, "missing", scraper.JobStatusRunning, "", scraper.JobCounters{}); !errors.Is(err, scraper.ErrJobNotFound) {
		t.Fatalf("UpdateJobStatus() error = %v, want ErrJobNotFound", err)
	}
	if err := store.RecordPage(ctx, scraper.PageRecord{JobID: "missing"}); !errors.Is(err, scraper.ErrJobNotFound) {
		t.Fatalf("RecordPage() error = %v, want ErrJobNotFound", err)
	}
	if _, err := store.ListPages(ctx, "missing"); !errors.Is(err, scraper.ErrJobNotFound) {
		t.Fatalf("ListPages() error = %v, want ErrJobNotFound", err)
	}
	if _, err := store.MarkCanceled(ctx, "missing"); !errors.Is(err, scraper.ErrJobNotFound) {
		t.Fatalf("MarkCanceled() error = %v, want ErrJobNotFound", err)
	}
}

func TestStoreCancel(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	if err := store.CreateJob(ctx, scraper.Job{ID: "job-1", Status: scraper.JobStatusReady}); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	job, err := store.MarkCanceled(ctx, "job-1")
	if err != nil {
		t.Fatalf("MarkCanceled() error = %v", err)
	}
	if job.Status != scraper.JobStatusCanceled || job.Finished == nil {
		t.Fatalf("expected canceled job with finish time, got %+v", job)
	}

	// A worker finishing later must not overwrite the cancellation.
	if err := store.UpdateJobStatus(ctx, "job-1", scraper.JobStatusCompleted, "", scraper.JobCounters{PagesOK: 2}); err != nil {
		t.Fatalf("UpdateJobStatus() error = %v", err)
	}
	job, err = store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if job.Status != scraper.JobStatusCanceled {
		t.Fatalf("expected status to stay canceled, got %s", job.Status)
	}

	// Canceling again is a no-op.
	again, err := store.MarkCanceled(ctx, "job-1")
	if err != nil {
		t.Fatalf("MarkCanceled() second call error = %v", err)
	}
	if again.Status != scraper.JobStatusCanceled {
		t.Fatalf("expected canceled, got %s", again.Status)
	}
}
