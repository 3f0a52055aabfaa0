// Package scraper implements the multi-page text scraper: a headless
// browser session, a same-origin link frontier, and the text aggregation
// that ties them together.
package scraper

import (
	"errors"
	"time"
)

// FetchStatus marks whether a page was fetched and extracted successfully.
type FetchStatus string

// Fetch status values recorded on each PageResult.
const (
	StatusOK     FetchStatus = "ok"
	StatusFailed FetchStatus = "failed"
)

// ErrSessionStart indicates the browser session could not be created.
// It is the only error that aborts a crawl before any page is fetched.
var ErrSessionStart = errors.New("browser session start failed")

// CrawlRequest is the immutable input to a crawl.
type CrawlRequest struct {
	SeedURL  string `json:"url"`
	MaxPages int    `json:"max_pages"`
}

// PageResult records the outcome for a single fetched page. It is created
// once per frontier entry and never mutated afterwards.
type PageResult struct {
	URL          string        `json:"url"`
	Title        string        `json:"title,omitempty"`
	Text         string        `json:"text"`
	Links        []string      `json:"links,omitempty"`
	DetectedTech []string      `json:"detected_tech,omitempty"`
	Status       FetchStatus   `json:"status"`
	Error        string        `json:"error,omitempty"`
	FetchedAt    time.Time     `json:"fetched_at"`
	Duration     time.Duration `json:"duration_ns"`
}

// CrawlResult is the ordered sequence of page results, in fetch order.
// It is owned solely by the caller once the crawl completes.
type CrawlResult struct {
	SeedURL string       `json:"seed_url"`
	Pages   []PageResult `json:"pages"`
}

// Page is the raw outcome of a single navigation, before extraction.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	HTML       string
	Duration   time.Duration
	Rendered   bool
}

// ExtractedContent holds everything the aggregator pulls out of one page.
type ExtractedContent struct {
	Title      string
	Text       string
	Links      []string
	ScriptSrcs []string
}
