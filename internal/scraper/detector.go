package scraper

import (
	"regexp"
	"sort"
	"strings"
)

// techSignatures maps a technology name to regexp patterns matched against
// the lowercased page HTML and script URLs. Patterns are deliberately
// loose; this is a hint surface, not a fingerprint database.
var techSignatures = map[string][]string{
	// Frontend
	"React":        {`id=['"]root['"]`, `react-dom`, `data-reactroot`},
	"Next.js":      {`id=['"]__next['"]`, `_next/static`},
	"Vue.js":       {`vue(\.runtime)?\.js`, `__nuxt`},
	"Angular":      {`ng-version`},
	"Svelte":       {`svelte`},
	"jQuery":       {`jquery.*\.js`},
	"Bootstrap":    {`bootstrap.*\.css`, `bootstrap.*\.js`},
	"Tailwind CSS": {`tailwind.*\.css`},
	"Gatsby":       {`id=['"]___gatsby['"]`},
	"Vuetify":      {`vuetify\.min\.js`},

	// Backend hints visible in markup
	"Django":    {`csrftoken`},
	"Rails":     {`_rails_session`},
	"Laravel":   {`laravel_session`},
	"ASP.NET":   {`__viewstate`, `aspnet`},
	"WordPress": {`wp-content`},
	"Drupal":    {`drupal-settings-json`},
	"Shopify":   {`cdn\.shopify\.com`},
	"Wix":       {`wixstatic\.com`},
	"Magento":   {`mage/cookies\.js`},

	// Analytics / tooling
	"Google Analytics":   {`gtag\.js`, `ga\.js`},
	"Google Tag Manager": {`googletagmanager\.com`},
	"Hotjar":             {`hotjar`},
	"Facebook Pixel":     {`fbq\(`},
	"Stripe":             {`js\.stripe\.com`},
	"Cloudflare":         {`cdn-cgi/`},
	"Webpack":            {`webpack`},
	"GraphQL":            {`graphql`},
}

var compiledSignatures = compileSignatures()

func compileSignatures() map[string][]*regexp.Regexp {
	out := make(map[string][]*regexp.Regexp, len(techSignatures))
	for tech, patterns := range techSignatures {
		res := make([]*regexp.Regexp, 0, len(patterns))
		for _, p := range patterns {
			res = append(res, regexp.MustCompile(p))
		}
		out[tech] = res
	}
	return out
}

// DetectTech matches technology signatures against the page HTML and its
// script URLs and returns a sorted, deduplicated list of names.
func DetectTech(rawHTML string, scriptSrcs []string) []string {
	sources := make([]string, 0, len(scriptSrcs)+1)
	sources = append(sources, strings.ToLower(rawHTML))
	for _, src := range scriptSrcs {
		sources = append(sources, strings.ToLower(src))
	}

	detected := make(map[string]struct{})
	for tech, patterns := range compiledSignatures {
		for _, re := range patterns {
			if matchesAny(re, sources) {
				detected[tech] = struct{}{}
				break
			}
		}
	}

	names := make([]string, 0, len(detected))
	for tech := range detected {
		names = append(names, tech)
	}
	sort.Strings(names)
	return names
}

func matchesAny(re *regexp.Regexp, sources []string) bool {
	for _, s := range sources {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// RenderHeuristic decides when a statically fetched page needs a headless
// render pass: thin HTML or SPA mount-point markers are the usual tells.
type RenderHeuristic struct {
	MinHTMLBytes int
}

// NewRenderHeuristic creates a heuristic with the configured threshold.
func NewRenderHeuristic(minBytes int) *RenderHeuristic {
	if minBytes <= 0 {
		minBytes = 2048
	}
	return &RenderHeuristic{MinHTMLBytes: minBytes}
}

var spaMarkers = []string{
	`id="__next"`,
	`id="root"`,
	`id="app"`,
	`id="___gatsby"`,
	`data-reactroot`,
	`window.__apollo_state__`,
}

// NeedsRender reports whether the raw HTML looks like a client-rendered
// shell that warrants promotion to the browser engine.
func (h *RenderHeuristic) NeedsRender(rawHTML string) bool {
	if h == nil {
		return false
	}
	if len(rawHTML) == 0 {
		return true
	}
	lower := strings.ToLower(rawHTML)
	for _, marker := range spaMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return len(rawHTML) < h.MinHTMLBytes
}
