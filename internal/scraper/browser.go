package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// SessionConfig controls the headless browser session.
type SessionConfig struct {
	UserAgent   string
	NavTimeout  time.Duration
	SettleDelay time.Duration
}

// Session owns a single headless Chrome instance. One session serves one
// crawl: pages are navigated sequentially in tabs derived from the shared
// browser context, and Close tears the process down exactly once.
type Session struct {
	cfg           SessionConfig
	logger        *zap.Logger
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	closeOnce     sync.Once
}

// NewSession launches headless Chrome and warms up the browser context.
// A failure here is fatal for the whole crawl and wraps ErrSessionStart.
func NewSession(cfg SessionConfig, logger *zap.Logger) (*Session, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 15 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: chromedp warmup: %v", ErrSessionStart, err)
	}

	return &Session{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Fetch navigates to the URL in a fresh tab, waits for the page to settle
// (body ready plus a fixed delay so async scripts finish), and returns the
// rendered DOM. Navigation errors and timeouts surface as errors; the
// caller records them as failed pages and continues.
func (s *Session) Fetch(ctx context.Context, rawURL string) (Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.cfg.NavTimeout)
	defer cancelTask()

	stopForward := forwardCancel(ctx, cancelTask)
	defer stopForward()

	meta := newResponseMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	var (
		html     string
		finalURL string
	)
	start := time.Now()
	tasks := chromedp.Tasks{
		network.Enable(),
		s.userAgentAction(),
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return Page{}, fmt.Errorf("navigate %s: %w", rawURL, err)
	}

	status, responseURL := meta.snapshot(rawURL, finalURL)
	return Page{
		URL:        rawURL,
		FinalURL:   responseURL,
		StatusCode: status,
		HTML:       html,
		Duration:   time.Since(start),
		Rendered:   true,
	}, nil
}

func (s *Session) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if s.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(s.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// Close shuts down the browser and its allocator. Safe to call more than
// once; only the first call releases the process.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.browserCancel()
		s.allocCancel()
	})
}

// responseMeta captures the main document response from CDP events. Chrome
// emits responses for every subresource; only the document counts.
type responseMeta struct {
	mu     sync.Mutex
	status int
	url    string
}

func newResponseMeta() *responseMeta {
	return &responseMeta{}
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot(requestURL, finalURL string) (int, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.url
	switch {
	case u != "":
	case finalURL != "":
		u = finalURL
	default:
		u = requestURL
	}
	status := m.status
	if status == 0 {
		status = 200
	}
	return status, u
}

// forwardCancel propagates caller cancellation into the chromedp task
// context, which otherwise only observes its own timeout.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
