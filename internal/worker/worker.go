// Package worker implements the crawl job execution pool.
package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pagemill/pagemill/internal/metrics"
	"github.com/pagemill/pagemill/internal/scraper"
)

// Config controls Pool behavior.
type Config struct {
	Workers       int
	ContentType   string
	ArchivePrefix string
}

// Runner executes one crawl. *scraper.Crawler satisfies it.
type Runner interface {
	Crawl(ctx context.Context, req scraper.CrawlRequest) (scraper.CrawlResult, error)
}

// RunnerFactory builds a Runner whose pages flow into the given sink.
type RunnerFactory func(sink scraper.PageSink) Runner

// Pool consumes queue items and executes crawls on a fixed set of workers.
type Pool struct {
	queue     scraper.Queue
	store     scraper.JobStore
	archive   scraper.Archive
	publisher scraper.Publisher
	hasher    scraper.Hasher
	clock     scraper.Clock
	newRunner RunnerFactory
	cfg       Config
	logger    *zap.Logger

	mu      sync.Mutex
	running map[string]context.CancelFunc
}

// New constructs a Pool.
func New(
	queue scraper.Queue,
	store scraper.JobStore,
	archive scraper.Archive,
	publisher scraper.Publisher,
	hasher scraper.Hasher,
	clock scraper.Clock,
	newRunner RunnerFactory,
	cfg Config,
	logger *zap.Logger,
) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		queue:     queue,
		store:     store,
		archive:   archive,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		newRunner: newRunner,
		cfg:       cfg,
		logger:    logger,
		running:   make(map[string]context.CancelFunc),
	}
}

// Run blocks, consuming queue items until the context finishes.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.loop(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) loop(ctx context.Context, id int) {
	for {
		item, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error("queue dequeue failed", zap.Int("worker", id), zap.Error(err))
			continue
		}
		metrics.SetQueueDepth(p.queue.Len())
		p.processJob(ctx, item)
	}
}

// Cancel stops a running crawl. It reports whether a crawl was running for
// the job; marking the store row canceled is the caller's responsibility.
func (p *Pool) Cancel(jobID string) bool {
	p.mu.Lock()
	cancel, ok := p.running[jobID]
	p.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (p *Pool) processJob(ctx context.Context, item scraper.QueueItem) {
	job, err := p.store.GetJob(ctx, item.JobID)
	if err != nil {
		p.logger.Error("job lookup failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	// Canceled while still in the queue.
	if job.Status.Terminal() {
		p.logger.Info("skipping terminal job", zap.String("job_id", item.JobID), zap.String("status", string(job.Status)))
		return
	}

	if err := p.store.UpdateJobStatus(ctx, item.JobID, scraper.JobStatusRunning, "", scraper.JobCounters{}); err != nil {
		p.logger.Error("job status update failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}

	metrics.IncActiveCrawls()
	defer metrics.DecActiveCrawls()

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.register(item.JobID, cancel)
	defer p.unregister(item.JobID)

	sink := &jobSink{pool: p, jobID: item.JobID}
	_, crawlErr := p.newRunner(sink).Crawl(jobCtx, item.Request)

	counters := scraper.JobCounters{PagesOK: sink.ok, PagesFailed: sink.failed}
	status, errText := finalStatus(jobCtx, crawlErr)
	if err := p.store.UpdateJobStatus(ctx, item.JobID, status, errText, counters); err != nil {
		p.logger.Error("final job status update failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
	metrics.ObserveCrawl(string(status))

	p.publishCompletion(ctx, item, status, counters)

	p.logger.Info("job finished",
		zap.String("job_id", item.JobID),
		zap.String("status", string(status)),
		zap.Int("pages_ok", counters.PagesOK),
		zap.Int("pages_failed", counters.PagesFailed),
	)
}

func (p *Pool) register(jobID string, cancel context.CancelFunc) {
	p.mu.Lock()
	p.running[jobID] = cancel
	p.mu.Unlock()
}

func (p *Pool) unregister(jobID string) {
	p.mu.Lock()
	delete(p.running, jobID)
	p.mu.Unlock()
}

// finalStatus maps the crawl outcome to a job status. Per-page failures do
// not fail the job; only a crawl that could not run at all does.
func finalStatus(ctx context.Context, err error) (scraper.JobStatus, string) {
	switch {
	case ctx.Err() != nil:
		return scraper.JobStatusCanceled, "crawl canceled"
	case err != nil:
		return scraper.JobStatusFailed, err.Error()
	default:
		return scraper.JobStatusCompleted, ""
	}
}

func (p *Pool) publishCompletion(
	ctx context.Context,
	item scraper.QueueItem,
	status scraper.JobStatus,
	counters scraper.JobCounters,
) {
	if p.publisher == nil {
		return
	}
	payload := map[string]any{
		"job_id":       item.JobID,
		"seed_url":     item.Request.SeedURL,
		"status":       string(status),
		"pages_ok":     counters.PagesOK,
		"pages_failed": counters.PagesFailed,
		"finished_at":  p.clock.Now().Format(time.RFC3339),
	}
	if _, err := p.publisher.Publish(ctx, payload); err != nil {
		p.logger.Warn("completion publish failed", zap.String("job_id", item.JobID), zap.Error(err))
	}
}

func (p *Pool) buildArchivePath(jobID string, seq int, hash string) string {
	prefix := strings.Trim(p.cfg.ArchivePrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%04d-%s.html", jobID, seq, hash)
	}
	return fmt.Sprintf("%s/%s/%04d-%s.html", prefix, jobID, seq, hash)
}

// jobSink persists each page the crawler emits. A crawl runs on one worker,
// so the counters need no locking.
type jobSink struct {
	pool   *Pool
	jobID  string
	seq    int
	ok     int
	failed int
}

func (s *jobSink) Record(ctx context.Context, page scraper.Page, result scraper.PageResult) error {
	rec := scraper.PageRecord{
		JobID:  s.jobID,
		Seq:    s.seq,
		Result: result,
	}
	if result.Status == scraper.StatusOK {
		s.ok++
	} else {
		s.failed++
	}

	if result.Status == scraper.StatusOK && page.HTML != "" && s.pool.archive != nil {
		hash := s.pool.hasher.Hash([]byte(page.HTML))
		rec.ContentHash = hash
		path := s.pool.buildArchivePath(s.jobID, s.seq, hash)
		uri, err := s.pool.archive.Put(ctx, path, s.pool.cfg.ContentType, []byte(page.HTML))
		if err != nil {
			// Archiving is best-effort; the extracted text is already safe.
			s.pool.logger.Warn("page archive failed",
				zap.String("job_id", s.jobID),
				zap.String("url", result.URL),
				zap.Error(err),
			)
		} else {
			rec.ArchiveURI = uri
		}
	}
	s.seq++

	metrics.ObservePage(result.URL, string(result.Status), result.Duration)

	if err := s.pool.store.RecordPage(ctx, rec); err != nil {
		return fmt.Errorf("record page: %w", err)
	}
	return nil
}
