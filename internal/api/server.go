// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/metrics"
	"github.com/pagemill/pagemill/internal/scraper"
)

// CrawlFunc runs one synchronous crawl.
type CrawlFunc func(ctx context.Context, req scraper.CrawlRequest) (scraper.CrawlResult, error)

// Canceler stops a running crawl job. *worker.Pool satisfies it.
type Canceler interface {
	Cancel(jobID string) bool
}

// Server wires HTTP handlers to the job store, queue and crawler.
type Server struct {
	router   chi.Router
	store    scraper.JobStore
	queue    scraper.Queue
	canceler Canceler
	crawl    CrawlFunc
	idGen    scraper.IDGenerator
	clock    scraper.Clock
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	store scraper.JobStore,
	queue scraper.Queue,
	canceler Canceler,
	crawl CrawlFunc,
	idGen scraper.IDGenerator,
	clock scraper.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:    store,
		queue:    queue,
		canceler: canceler,
		crawl:    crawl,
		idGen:    idGen,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout()))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scrape", s.scrape)
		r.Route("/crawls", func(r chi.Router) {
			r.Post("/", s.submitCrawl)
			r.Route("/{job_id}", func(r chi.Router) {
				r.Get("/", s.getJob)
				r.Get("/result", s.getJobResult)
				r.Post("/cancel", s.cancelJob)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// The in-memory dependencies are always ready; a Postgres-backed
	// deployment surfaces connection failures on first use.
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequestBody struct {
	URL      string `json:"url"`
	MaxPages *int   `json:"max_pages"`
}

// scrapeItem is one element of the synchronous scrape response: text for
// fetched pages, error for failed ones.
type scrapeItem struct {
	URL   string `json:"url"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseCrawlRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := scraper.ParseReportFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.crawl(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		writeError(w, status, err.Error())
		return
	}

	if format != scraper.FormatJSON {
		rendered, err := scraper.RenderReport(result, format)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		contentType := "text/plain; charset=utf-8"
		if format == scraper.FormatMarkdown {
			contentType = "text/markdown; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(rendered)); err != nil {
			s.logger.Error("report write failed", zap.Error(err))
		}
		return
	}

	items := make([]scrapeItem, 0, len(result.Pages))
	for _, page := range result.Pages {
		if page.Status == scraper.StatusFailed {
			items = append(items, scrapeItem{URL: page.URL, Error: page.Error})
			continue
		}
		items = append(items, scrapeItem{URL: page.URL, Text: page.Text})
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseCrawlRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate job id: %v", err))
		return
	}
	now := s.clock.Now()
	job := scraper.Job{
		ID:        jobID,
		Status:    scraper.JobStatusReady,
		Request:   req,
		Submitted: now,
	}
	if err := s.store.CreateJob(r.Context(), job); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("create job: %v", err))
		return
	}

	item := scraper.QueueItem{JobID: jobID, Request: req, Submitted: now.Unix()}
	if err := s.queue.Enqueue(r.Context(), item); err != nil {
		// The row exists but nothing will run it; mark it failed so the
		// client is not left polling a job that never starts.
		if uerr := s.store.UpdateJobStatus(
			r.Context(), jobID, scraper.JobStatusFailed, "queue full", scraper.JobCounters{},
		); uerr != nil {
			s.logger.Error("job status update failed", zap.String("job_id", jobID), zap.Error(uerr))
		}
		writeError(w, http.StatusServiceUnavailable, "crawl queue is full")
		return
	}
	metrics.SetQueueDepth(s.queue.Len())

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": jobID,
		"status": string(scraper.JobStatusReady),
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) getJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.store.GetJob(r.Context(), jobID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	pages, err := s.store.ListPages(r.Context(), jobID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scraper.JobResult{Job: job, Pages: pages})
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.store.MarkCanceled(r.Context(), jobID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if s.canceler != nil {
		s.canceler.Cancel(jobID)
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id": jobID,
		"status": string(job.Status),
	})
}

// parseCrawlRequest builds a validated CrawlRequest from the JSON body,
// applying the configured default and ceiling for max_pages.
func (s *Server) parseCrawlRequest(r *http.Request) (scraper.CrawlRequest, error) {
	var body crawlRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return scraper.CrawlRequest{}, errors.New("invalid JSON body")
	}
	if body.URL == "" {
		return scraper.CrawlRequest{}, errors.New("url is required")
	}
	maxPages := s.cfg.Scraper.MaxPagesDefault
	if body.MaxPages != nil {
		maxPages = *body.MaxPages
	}
	if maxPages < 1 {
		return scraper.CrawlRequest{}, errors.New("max_pages must be >= 1")
	}
	if maxPages > s.cfg.Scraper.MaxPagesLimit {
		return scraper.CrawlRequest{}, fmt.Errorf("max_pages must be <= %d", s.cfg.Scraper.MaxPagesLimit)
	}
	return scraper.CrawlRequest{SeedURL: body.URL, MaxPages: maxPages}, nil
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, scraper.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}
