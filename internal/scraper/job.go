package scraper

import "time"

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values persisted in the job store. A job is ready until a
// worker picks it up, running while the crawl executes, and lands in
// exactly one terminal state.
const (
	JobStatusReady     JobStatus = "ready"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether the status is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// Job is the metadata persisted for each submitted crawl request.
type Job struct {
	ID        string       `json:"id"`
	Status    JobStatus    `json:"status"`
	Request   CrawlRequest `json:"request"`
	Submitted time.Time    `json:"submitted_at"`
	Started   *time.Time   `json:"started_at,omitempty"`
	Finished  *time.Time   `json:"finished_at,omitempty"`
	ErrorText string       `json:"error_text,omitempty"`
	Counters  JobCounters  `json:"counters"`
}

// JobCounters tracks per-job page stats.
type JobCounters struct {
	PagesOK     int `json:"pages_ok"`
	PagesFailed int `json:"pages_failed"`
}

// PageRecord is persisted for each page a job visits. Seq preserves
// crawl order; ArchiveURI points at the raw HTML when archiving is on.
type PageRecord struct {
	JobID       string     `json:"job_id"`
	Seq         int        `json:"seq"`
	Result      PageResult `json:"result"`
	ContentHash string     `json:"content_hash,omitempty"`
	ArchiveURI  string     `json:"archive_uri,omitempty"`
}

// JobResult is returned by the API result endpoint.
type JobResult struct {
	Job   Job          `json:"job"`
	Pages []PageRecord `json:"pages"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Request   CrawlRequest
	Submitted int64
}
