package scraper

import (
	"net/url"
	"sync"
)

// Frontier holds the FIFO queue of URLs pending a visit and the set of
// normalized URLs already seen. It enforces the same-origin filter and the
// page budget. All methods are safe for concurrent use; a single crawl is
// sequential, but parallel crawls may share a frontier through a mutex.
type Frontier struct {
	mu       sync.Mutex
	seedHost *url.URL
	queue    []string
	seen     map[string]struct{}
	fetched  int
	maxPages int
}

// NewFrontier creates a frontier seeded with the given URL. The seed must
// already be normalized; maxPages is the total page budget (>= 1).
func NewFrontier(seed *url.URL, maxPages int) *Frontier {
	f := &Frontier{
		seedHost: seed,
		seen:     make(map[string]struct{}),
		maxPages: maxPages,
	}
	normalized := seed.String()
	f.queue = append(f.queue, normalized)
	f.seen[normalized] = struct{}{}
	return f
}

// Next pops the next URL in discovery order. It returns false when the
// queue is empty or the page budget is exhausted; queued entries beyond
// the budget are simply never handed out.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetched >= f.maxPages || len(f.queue) == 0 {
		return "", false
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, true
}

// MarkFetched counts a page against the budget. Failed fetches count too:
// the budget bounds attempts, not successes.
func (f *Frontier) MarkFetched() {
	f.mu.Lock()
	f.fetched++
	f.mu.Unlock()
}

// Offer enqueues candidate URLs in the order given. Candidates are
// normalized first; cross-origin URLs, already-seen URLs, and anything
// beyond the remaining budget are discarded.
func (f *Frontier) Offer(candidates []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, raw := range candidates {
		normalized, err := NormalizeURL(raw)
		if err != nil {
			continue
		}
		parsed, err := url.Parse(normalized)
		if err != nil {
			continue
		}
		if !sameHost(f.seedHost, parsed) {
			continue
		}
		if _, ok := f.seen[normalized]; ok {
			continue
		}
		if len(f.queue)+f.fetched >= f.maxPages {
			return
		}
		f.seen[normalized] = struct{}{}
		f.queue = append(f.queue, normalized)
	}
}

// Remaining reports how many more pages the budget allows.
func (f *Frontier) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxPages - f.fetched
}

// QueueLen reports the number of URLs still waiting in the queue.
func (f *Frontier) QueueLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}
