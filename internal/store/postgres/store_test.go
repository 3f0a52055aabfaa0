package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/pagemill/pagemill/internal/scraper"
)

func TestCreateJobInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	job := scraper.Job{
		ID:        "job-1",
		Status:    scraper.JobStatusReady,
		Request:   scraper.CrawlRequest{SeedURL: "https://example.com", MaxPages: 3},
		Submitted: now,
	}

	mock.ExpectExec("INSERT INTO crawl_jobs").
		WithArgs("job-1", "ready", "https://example.com", 3, now, "", 0, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobStatusTouchesRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE crawl_jobs").
		WithArgs("job-1", "running", "", 0, 0, pgxmock.AnyArg(), terminalStatuses).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = store.UpdateJobStatus(context.Background(), "job-1", scraper.JobStatusRunning, "", scraper.JobCounters{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobStatusMissingJob(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE crawl_jobs").
		WithArgs("missing", "completed", "", 1, 0, pgxmock.AnyArg(), terminalStatuses).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT id, status").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	err = store.UpdateJobStatus(
		context.Background(),
		"missing",
		scraper.JobStatusCompleted,
		"",
		scraper.JobCounters{PagesOK: 1},
	)
	require.ErrorIs(t, err, scraper.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPageInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rec := scraper.PageRecord{
		JobID: "job-1",
		Seq:   0,
		Result: scraper.PageResult{
			URL:          "https://example.com/",
			Title:        "Example",
			Text:         "Hello",
			Links:        []string{"https://example.com/about"},
			DetectedTech: []string{"React"},
			Status:       scraper.StatusOK,
			FetchedAt:    now,
			Duration:     1500 * time.Millisecond,
		},
		ContentHash: "abc123",
		ArchiveURI:  "gs://bucket/pages/job-1/0.html",
	}

	mock.ExpectExec("INSERT INTO crawl_pages").
		WithArgs(
			"job-1",
			0,
			"https://example.com/",
			"Example",
			"Hello",
			[]byte(`["https://example.com/about"]`),
			[]byte(`["React"]`),
			"ok",
			"",
			now,
			int64(1500),
			"abc123",
			"gs://bucket/pages/job-1/0.html",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.RecordPage(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, status").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, scraper.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPagesScansRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewWithPool(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"job_id", "seq", "url", "title", "page_text", "links", "detected_tech",
		"status", "error_text", "fetched_at", "duration_ms", "content_hash", "archive_uri",
	}).AddRow(
		"job-1", 0, "https://example.com/", "Example", "Hello",
		[]byte(`["https://example.com/about"]`), []byte(`[]`),
		"ok", "", now, int64(1500), "abc123", "",
	).AddRow(
		"job-1", 1, "https://example.com/about", "", "",
		[]byte(`[]`), []byte(`[]`),
		"failed", "navigation timeout", now, int64(15000), "", "",
	)

	mock.ExpectQuery("SELECT job_id, seq").
		WithArgs("job-1").
		WillReturnRows(rows)

	pages, err := store.ListPages(context.Background(), "job-1")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	require.Equal(t, "https://example.com/", pages[0].Result.URL)
	require.Equal(t, []string{"https://example.com/about"}, pages[0].Result.Links)
	require.Equal(t, 1500*time.Millisecond, pages[0].Result.Duration)
	require.Equal(t, scraper.StatusFailed, pages[1].Result.Status)
	require.Equal(t, "navigation timeout", pages[1].Result.Error)
	require.NoError(t, mock.ExpectationsWereMet())
}
