package scraper

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Engine selects how pages are fetched.
type Engine string

// Supported fetch engines.
const (
	// EngineBrowser drives headless Chrome for every page (default).
	EngineBrowser Engine = "browser"
	// EngineStatic fetches over plain HTTP without executing JavaScript.
	EngineStatic Engine = "static"
	// EngineAuto probes statically and promotes to the browser when the
	// render heuristic fires.
	EngineAuto Engine = "auto"
)

// crawlState tracks the lifecycle of one crawl invocation.
type crawlState string

const (
	stateReady     crawlState = "ready"
	stateRunning   crawlState = "running"
	stateCompleted crawlState = "completed"
	stateFailed    crawlState = "failed"
)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// Fetcher retrieves one page. Both the headless Session and the
// StaticFetcher satisfy it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
	Close()
}

// PageSink receives each page as it is processed. Implementations archive
// raw HTML or persist results; a nil sink is valid.
type PageSink interface {
	Record(ctx context.Context, page Page, result PageResult) error
}

// Config holds per-crawler settings shared across crawl invocations.
type Config struct {
	UserAgent    string
	Engine       Engine
	NavTimeout   time.Duration
	SettleDelay  time.Duration
	FetchDelay   time.Duration
	MinHTMLBytes int
}

// Crawler runs crawls: frontier supplies the next URL, the fetch engine
// renders it, extraction harvests text and links, and discovered links
// flow back into the frontier until the budget is spent.
type Crawler struct {
	cfg    Config
	clock  Clock
	sink   PageSink
	logger *zap.Logger

	// Fetcher factories, replaceable in tests.
	newBrowser func(SessionConfig, *zap.Logger) (Fetcher, error)
	newStatic  func(StaticConfig, *zap.Logger) Fetcher
}

// New constructs a Crawler. sink may be nil.
func New(cfg Config, clock Clock, sink PageSink, logger *zap.Logger) *Crawler {
	if cfg.Engine == "" {
		cfg.Engine = EngineBrowser
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{
		cfg:    cfg,
		clock:  clock,
		sink:   sink,
		logger: logger,
		newBrowser: func(sc SessionConfig, l *zap.Logger) (Fetcher, error) {
			return NewSession(sc, l)
		},
		newStatic: func(sc StaticConfig, l *zap.Logger) Fetcher {
			return NewStaticFetcher(sc, l)
		},
	}
}

// Crawl executes one crawl: READY -> RUNNING -> COMPLETED, or FAILED when
// the fetch engine cannot be opened at all. Per-page failures are recorded
// and never abort the crawl. The session is torn down on every path,
// including cancellation.
func (c *Crawler) Crawl(ctx context.Context, req CrawlRequest) (CrawlResult, error) {
	if req.MaxPages < 1 {
		return CrawlResult{}, fmt.Errorf("max_pages must be >= 1, got %d", req.MaxPages)
	}
	seed, err := NormalizeURL(EnsureScheme(req.SeedURL))
	if err != nil {
		return CrawlResult{}, fmt.Errorf("seed url: %w", err)
	}
	seedURL, err := url.Parse(seed)
	if err != nil {
		return CrawlResult{}, fmt.Errorf("seed url: %w", err)
	}

	state := stateReady
	frontier := NewFrontier(seedURL, req.MaxPages)

	primary, promoted, heuristic, err := c.openFetchers()
	if err != nil {
		state = stateFailed
		c.logger.Error("crawl failed to start",
			zap.String("seed", seed),
			zap.String("state", string(state)),
			zap.Error(err),
		)
		return CrawlResult{}, err
	}
	defer primary.Close()
	if promoted != nil {
		defer promoted.Close()
	}

	state = stateRunning
	c.logger.Info("crawl started",
		zap.String("seed", seed),
		zap.Int("max_pages", req.MaxPages),
		zap.String("engine", string(c.cfg.Engine)),
	)

	limiter := c.fetchLimiter()
	result := CrawlResult{SeedURL: seed}

	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("crawl canceled: %w", err)
		}
		current, ok := frontier.Next()
		if !ok {
			break
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return result, fmt.Errorf("crawl canceled: %w", err)
			}
		}

		page, pageResult := c.processURL(ctx, current, primary, promoted, heuristic)
		frontier.MarkFetched()
		result.Pages = append(result.Pages, pageResult)
		if pageResult.Status == StatusOK {
			frontier.Offer(pageResult.Links)
		}
		c.recordPage(ctx, page, pageResult)
	}

	state = stateCompleted
	c.logger.Info("crawl finished",
		zap.String("seed", seed),
		zap.String("state", string(state)),
		zap.Int("pages", len(result.Pages)),
		zap.Int("discarded_queue", frontier.QueueLen()),
	)
	return result, nil
}

// processURL fetches and extracts one page. Every failure mode degrades to
// a failed PageResult with empty text.
func (c *Crawler) processURL(
	ctx context.Context,
	current string,
	primary, promoted Fetcher,
	heuristic *RenderHeuristic,
) (Page, PageResult) {
	page, err := primary.Fetch(ctx, current)
	if err == nil && promoted != nil && heuristic.NeedsRender(page.HTML) {
		c.logger.Debug("promoting to browser render", zap.String("url", current))
		page, err = promoted.Fetch(ctx, current)
	}
	if err == nil && page.StatusCode >= 400 {
		err = fmt.Errorf("http status %d", page.StatusCode)
	}
	if err != nil {
		c.logger.Warn("page fetch failed", zap.String("url", current), zap.Error(err))
		return page, c.failedResult(current, err)
	}

	content, err := ExtractPage(current, page.HTML)
	if err != nil {
		c.logger.Warn("page extraction failed", zap.String("url", current), zap.Error(err))
		return page, c.failedResult(current, err)
	}

	return page, PageResult{
		URL:          current,
		Title:        content.Title,
		Text:         content.Text,
		Links:        content.Links,
		DetectedTech: DetectTech(page.HTML, content.ScriptSrcs),
		Status:       StatusOK,
		FetchedAt:    c.clock.Now(),
		Duration:     page.Duration,
	}
}

func (c *Crawler) failedResult(current string, err error) PageResult {
	return PageResult{
		URL:       current,
		Text:      "",
		Status:    StatusFailed,
		Error:     err.Error(),
		FetchedAt: c.clock.Now(),
	}
}

func (c *Crawler) recordPage(ctx context.Context, page Page, result PageResult) {
	if c.sink == nil {
		return
	}
	if err := c.sink.Record(ctx, page, result); err != nil {
		c.logger.Warn("page sink failed", zap.String("url", result.URL), zap.Error(err))
	}
}

// openFetchers builds the fetcher(s) for the configured engine. The
// returned promoted fetcher and heuristic are non-nil only in auto mode.
func (c *Crawler) openFetchers() (primary, promoted Fetcher, heuristic *RenderHeuristic, err error) {
	sessionCfg := SessionConfig{
		UserAgent:   c.cfg.UserAgent,
		NavTimeout:  c.cfg.NavTimeout,
		SettleDelay: c.cfg.SettleDelay,
	}
	staticCfg := StaticConfig{
		UserAgent: c.cfg.UserAgent,
		Timeout:   c.cfg.NavTimeout,
	}

	switch c.cfg.Engine {
	case EngineStatic:
		return c.newStatic(staticCfg, c.logger), nil, nil, nil
	case EngineAuto:
		browser, berr := c.newBrowser(sessionCfg, c.logger)
		if berr != nil {
			return nil, nil, nil, berr
		}
		return c.newStatic(staticCfg, c.logger), browser, NewRenderHeuristic(c.cfg.MinHTMLBytes), nil
	default:
		browser, berr := c.newBrowser(sessionCfg, c.logger)
		if berr != nil {
			return nil, nil, nil, berr
		}
		return browser, nil, nil, nil
	}
}

func (c *Crawler) fetchLimiter() *rate.Limiter {
	if c.cfg.FetchDelay <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(c.cfg.FetchDelay), 1)
}
