package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pagemill/pagemill/internal/scraper"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := New(1)
	result := make(chan scraper.QueueItem, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	item := scraper.QueueItem{JobID: "job-1"}
	if err := q.Enqueue(context.Background(), item); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.JobID != "job-1" {
			t.Fatalf("expected job-1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueFull(t *testing.T) {
	t.Parallel()

	q := New(1)
	if err := q.Enqueue(context.Background(), scraper.QueueItem{JobID: "primed"}); err != nil {
		t.Fatalf("failed to prime queue: %v", err)
	}
	if got := q.Len(); got != 1 {
		t.Fatalf("expected backlog 1, got %d", got)
	}
	if err := q.Enqueue(context.Background(), scraper.QueueItem{JobID: "overflow"}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestQueueDequeueCancelation(t *testing.T) {
	t.Parallel()

	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := New(1)
	q.Close()
	if _, err := q.Dequeue(context.Background()); err == nil || err.Error() != "queue closed" {
		t.Fatalf("expected queue closed error, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}
