package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// StaticConfig controls the JS-free fetch path.
type StaticConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// StaticFetcher fetches pages over plain HTTP via colly, without executing
// JavaScript. It serves sites that render server-side and the probe phase
// of the auto engine.
type StaticFetcher struct {
	base   *colly.Collector
	logger *zap.Logger
}

// NewStaticFetcher constructs a configured colly-backed fetcher.
func NewStaticFetcher(cfg StaticConfig, logger *zap.Logger) *StaticFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.IgnoreRobotsTxt(),
	}
	base := colly.NewCollector(opts...)
	base.AllowURLRevisit = true // the frontier owns dedup, not the collector
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &StaticFetcher{base: base, logger: logger}
}

// Fetch retrieves a single page. Non-2xx responses and transport errors
// are returned as errors for the orchestrator to record.
func (f *StaticFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	collector := f.base.Clone()
	resultCh := make(chan staticResult, 1)
	var once sync.Once
	send := func(res staticResult) {
		once.Do(func() { resultCh <- res })
	}

	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		send(staticResult{page: Page{
			URL:        rawURL,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			HTML:       string(r.Body),
			Duration:   time.Since(start),
		}})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		if r != nil && r.StatusCode != 0 {
			err = fmt.Errorf("status %d: %w", r.StatusCode, err)
		}
		send(staticResult{err: err})
	})

	if err := collector.Visit(rawURL); err != nil {
		return Page{}, fmt.Errorf("visit %s: %w", rawURL, err)
	}
	collector.Wait()

	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	select {
	case res := <-resultCh:
		if res.err != nil {
			return Page{}, fmt.Errorf("fetch %s: %w", rawURL, res.err)
		}
		return res.page, nil
	default:
		return Page{}, fmt.Errorf("fetch %s: no response produced", rawURL)
	}
}

// Close is a no-op; colly holds no external process.
func (f *StaticFetcher) Close() {}

type staticResult struct {
	page Page
	err  error
}
