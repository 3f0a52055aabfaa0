package scraper

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectTech_MatchesSignatures(t *testing.T) {
	t.Parallel()

	html := `<html><body>
		<div id="root"></div>
		<script src="https://www.googletagmanager.com/gtm.js"></script>
	</body></html>`
	tech := DetectTech(html, []string{"/static/react-dom.production.min.js"})

	require.Contains(t, tech, "React")
	require.Contains(t, tech, "Google Tag Manager")
}

func TestDetectTech_SortedAndDeduplicated(t *testing.T) {
	t.Parallel()

	html := `<div id="root" data-reactroot></div><script src="wp-content/x.js"></script>`
	tech := DetectTech(html, nil)

	require.Equal(t, []string{"React", "WordPress"}, tech)
}

func TestDetectTech_NoMatches(t *testing.T) {
	t.Parallel()

	require.Empty(t, DetectTech("<p>plain page</p>", nil))
}

func TestRenderHeuristic_SPAMarkers(t *testing.T) {
	t.Parallel()

	h := NewRenderHeuristic(100)
	big := strings.Repeat("x", 200)

	require.True(t, h.NeedsRender(`<div id="__next"></div>`+big))
	require.True(t, h.NeedsRender(`<div id="root"></div>`+big))
	require.False(t, h.NeedsRender(`<p>server rendered content</p>`+big))
}

func TestRenderHeuristic_ThinHTML(t *testing.T) {
	t.Parallel()

	h := NewRenderHeuristic(100)
	require.True(t, h.NeedsRender("<p>tiny</p>"))
	require.True(t, h.NeedsRender(""))
}

func TestRenderHeuristic_NilReceiver(t *testing.T) {
	t.Parallel()

	var h *RenderHeuristic
	require.False(t, h.NeedsRender(""))
}
