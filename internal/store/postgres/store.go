// Package postgres provides a Postgres-backed job store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pagemill/pagemill/internal/scraper"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists jobs and page rows in Postgres.
type Store struct {
	pool querier
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Schema is the DDL for the job store tables.
const Schema = `
CREATE TABLE IF NOT EXISTS crawl_jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	seed_url      TEXT NOT NULL,
	max_pages     INTEGER NOT NULL,
	submitted_at  TIMESTAMPTZ NOT NULL,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ,
	error_text    TEXT NOT NULL DEFAULT '',
	pages_ok      INTEGER NOT NULL DEFAULT 0,
	pages_failed  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS crawl_pages (
	job_id        TEXT NOT NULL REFERENCES crawl_jobs(id),
	seq           INTEGER NOT NULL,
	url           TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	page_text     TEXT NOT NULL DEFAULT '',
	links         JSONB NOT NULL DEFAULT '[]',
	detected_tech JSONB NOT NULL DEFAULT '[]',
	status        TEXT NOT NULL,
	error_text    TEXT NOT NULL DEFAULT '',
	fetched_at    TIMESTAMPTZ NOT NULL,
	duration_ms   BIGINT NOT NULL DEFAULT 0,
	content_hash  TEXT NOT NULL DEFAULT '',
	archive_uri   TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (job_id, seq)
);
`

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

var terminalStatuses = []string{
	string(scraper.JobStatusCompleted),
	string(scraper.JobStatusFailed),
	string(scraper.JobStatusCanceled),
}

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, job scraper.Job) error {
	query := `
INSERT INTO crawl_jobs (id, status, seed_url, max_pages, submitted_at, error_text, pages_ok, pages_failed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, query,
		job.ID,
		string(job.Status),
		job.Request.SeedURL,
		job.Request.MaxPages,
		job.Submitted,
		job.ErrorText,
		job.Counters.PagesOK,
		job.Counters.PagesFailed,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus moves a non-terminal job to the given status and stores
// the counters. Terminal rows are left untouched so a late-finishing worker
// cannot overwrite a cancellation.
func (s *Store) UpdateJobStatus(
	ctx context.Context,
	jobID string,
	status scraper.JobStatus,
	errText string,
	counters scraper.JobCounters,
) error {
	query := `
UPDATE crawl_jobs
SET status = $2,
    error_text = $3,
    pages_ok = $4,
    pages_failed = $5,
    started_at = CASE WHEN $2 = 'running' THEN COALESCE(started_at, $6) ELSE started_at END,
    finished_at = CASE WHEN $2 = ANY($7) THEN $6 ELSE finished_at END
WHERE id = $1 AND NOT (status = ANY($7))`
	tag, err := s.pool.Exec(ctx, query,
		jobID,
		string(status),
		errText,
		counters.PagesOK,
		counters.PagesFailed,
		time.Now().UTC(),
		terminalStatuses,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the job is already terminal (fine) or it does not exist.
		if _, err := s.GetJob(ctx, jobID); err != nil {
			return err
		}
	}
	return nil
}

// RecordPage inserts one page row for a job.
func (s *Store) RecordPage(ctx context.Context, page scraper.PageRecord) error {
	linksJSON, err := json.Marshal(emptySlice(page.Result.Links))
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	techJSON, err := json.Marshal(emptySlice(page.Result.DetectedTech))
	if err != nil {
		return fmt.Errorf("marshal detected tech: %w", err)
	}
	query := `
INSERT INTO crawl_pages (
	job_id, seq, url, title, page_text, links, detected_tech,
	status, error_text, fetched_at, duration_ms, content_hash, archive_uri
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	_, err = s.pool.Exec(ctx, query,
		page.JobID,
		page.Seq,
		page.Result.URL,
		page.Result.Title,
		page.Result.Text,
		linksJSON,
		techJSON,
		string(page.Result.Status),
		page.Result.Error,
		page.Result.FetchedAt,
		page.Result.Duration.Milliseconds(),
		page.ContentHash,
		page.ArchiveURI,
	)
	if err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// GetJob fetches a job row by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (scraper.Job, error) {
	query := `
SELECT id, status, seed_url, max_pages, submitted_at, started_at, finished_at, error_text, pages_ok, pages_failed
FROM crawl_jobs WHERE id = $1`
	var (
		job      scraper.Job
		status   string
		started  *time.Time
		finished *time.Time
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&status,
		&job.Request.SeedURL,
		&job.Request.MaxPages,
		&job.Submitted,
		&started,
		&finished,
		&job.ErrorText,
		&job.Counters.PagesOK,
		&job.Counters.PagesFailed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return scraper.Job{}, fmt.Errorf("get %s: %w", jobID, scraper.ErrJobNotFound)
	}
	if err != nil {
		return scraper.Job{}, fmt.Errorf("select job: %w", err)
	}
	job.Status = scraper.JobStatus(status)
	job.Started = started
	job.Finished = finished
	return job, nil
}

// ListPages returns all page rows for a job in crawl order.
func (s *Store) ListPages(ctx context.Context, jobID string) ([]scraper.PageRecord, error) {
	query := `
SELECT job_id, seq, url, title, page_text, links, detected_tech,
       status, error_text, fetched_at, duration_ms, content_hash, archive_uri
FROM crawl_pages WHERE job_id = $1 ORDER BY seq`
	rows, err := s.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("select pages: %w", err)
	}
	defer rows.Close()

	var pages []scraper.PageRecord
	for rows.Next() {
		var (
			rec        scraper.PageRecord
			status     string
			linksJSON  []byte
			techJSON   []byte
			durationMs int64
		)
		err := rows.Scan(
			&rec.JobID,
			&rec.Seq,
			&rec.Result.URL,
			&rec.Result.Title,
			&rec.Result.Text,
			&linksJSON,
			&techJSON,
			&status,
			&rec.Result.Error,
			&rec.Result.FetchedAt,
			&durationMs,
			&rec.ContentHash,
			&rec.ArchiveURI,
		)
		if err != nil {
			return nil, fmt.Errorf("scan page: %w", err)
		}
		if err := json.Unmarshal(linksJSON, &rec.Result.Links); err != nil {
			return nil, fmt.Errorf("unmarshal links: %w", err)
		}
		if err := json.Unmarshal(techJSON, &rec.Result.DetectedTech); err != nil {
			return nil, fmt.Errorf("unmarshal detected tech: %w", err)
		}
		rec.Result.Status = scraper.FetchStatus(status)
		rec.Result.Duration = time.Duration(durationMs) * time.Millisecond
		pages = append(pages, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pages: %w", err)
	}
	return pages, nil
}

// MarkCanceled flips a non-terminal job to canceled and returns the row.
func (s *Store) MarkCanceled(ctx context.Context, jobID string) (scraper.Job, error) {
	query := `
UPDATE crawl_jobs
SET status = $2, finished_at = $3
WHERE id = $1 AND NOT (status = ANY($4))`
	_, err := s.pool.Exec(ctx, query,
		jobID,
		string(scraper.JobStatusCanceled),
		time.Now().UTC(),
		terminalStatuses,
	)
	if err != nil {
		return scraper.Job{}, fmt.Errorf("cancel job: %w", err)
	}
	return s.GetJob(ctx, jobID)
}

func emptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
