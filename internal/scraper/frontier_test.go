package scraper

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestFrontier(t *testing.T, seed string, maxPages int) *Frontier {
	t.Helper()
	normalized, err := NormalizeURL(seed)
	require.NoError(t, err)
	u, err := url.Parse(normalized)
	require.NoError(t, err)
	return NewFrontier(u, maxPages)
}

func TestFrontier_SeedIsFirst(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", 3)
	next, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/", next)
}

func TestFrontier_FIFOAcrossPages(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", 10)
	_, _ = f.Next()
	f.MarkFetched()

	// Page 1's links land before page 2's links.
	f.Offer([]string{"https://example.com/a", "https://example.com/b"})
	f.Offer([]string{"https://example.com/c"})

	var order []string
	for {
		next, ok := f.Next()
		if !ok {
			break
		}
		f.MarkFetched()
		order = append(order, next)
	}
	require.Equal(t, []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}, order)
}

func TestFrontier_DedupAfterNormalization(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", 10)
	_, _ = f.Next()
	f.MarkFetched()

	f.Offer([]string{
		"https://example.com/about",
		"HTTPS://EXAMPLE.COM/about/",
		"https://example.com:443/about#team",
	})
	require.Equal(t, 1, f.QueueLen())
}

func TestFrontier_SeedNeverRevisited(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", 10)
	_, _ = f.Next()
	f.MarkFetched()

	f.Offer([]string{"https://example.com/", "https://example.com"})
	require.Equal(t, 0, f.QueueLen())
}

func TestFrontier_CrossOriginDiscarded(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", 10)
	_, _ = f.Next()
	f.MarkFetched()

	f.Offer([]string{
		"https://other.com/page",
		"https://sub.example.com/page",
		"https://example.com/ok",
	})
	next, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/ok", next)
	require.Equal(t, 0, f.QueueLen())
}

func TestFrontier_BudgetStopsNext(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", 2)
	_, _ = f.Next()
	f.MarkFetched()
	f.Offer([]string{"https://example.com/a", "https://example.com/b", "https://example.com/c"})

	_, ok := f.Next()
	require.True(t, ok)
	f.MarkFetched()

	// Budget spent: Next refuses even though links were offered.
	_, ok = f.Next()
	require.False(t, ok)
	require.Equal(t, 0, f.Remaining())
}

func TestFrontier_OfferCappedByBudget(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", 3)
	_, _ = f.Next()
	f.MarkFetched()

	var links []string
	for i := 0; i < 10; i++ {
		links = append(links, fmt.Sprintf("https://example.com/p%d", i))
	}
	f.Offer(links)
	// 1 fetched + at most 2 queued.
	require.Equal(t, 2, f.QueueLen())
}

func TestFrontier_MaxPagesOne(t *testing.T) {
	t.Parallel()

	f := newTestFrontier(t, "https://example.com/", 1)
	next, ok := f.Next()
	require.True(t, ok)
	require.Equal(t, "https://example.com/", next)
	f.MarkFetched()
	f.Offer([]string{"https://example.com/a"})

	_, ok = f.Next()
	require.False(t, ok)
}
