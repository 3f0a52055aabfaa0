package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Tags whose subtrees carry no readable content. Mirrors the noise list
// used by the extraction pipeline: chrome, scripts, and form controls.
var noiseSelector = "script, style, noscript, iframe, header, footer, nav, form, button"

// Elements that introduce a line break in reading order.
var blockTags = map[string]struct{}{
	"p": {}, "h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"li": {}, "ul": {}, "ol": {}, "blockquote": {}, "pre": {},
	"div": {}, "section": {}, "article": {}, "main": {}, "aside": {},
	"table": {}, "tr": {}, "br": {}, "hr": {},
}

var (
	spaceRuns   = regexp.MustCompile(`[ \t\r\f]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// ExtractPage parses rendered HTML and returns the normalized visible text,
// outbound links resolved to absolute HTTP(S) URLs in markup order, script
// sources, and the page title. It holds no crawl state and has no side
// effects.
func ExtractPage(pageURL string, rawHTML string) (ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ExtractedContent{}, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return ExtractedContent{}, fmt.Errorf("parse page url: %w", err)
	}

	content := ExtractedContent{
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
		Links:      extractLinks(doc, base),
		ScriptSrcs: extractScriptSrcs(doc),
	}

	// Script sources are harvested above; now drop everything that is not
	// readable content before walking the tree.
	doc.Find(noiseSelector).Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var sb strings.Builder
	for _, node := range root.Nodes {
		writeNodeText(&sb, node)
	}
	content.Text = normalizeText(sb.String())
	return content, nil
}

// extractLinks returns absolute outbound URLs in the order they appear in
// the markup. Relative hrefs are resolved against the page URL; schemes
// other than HTTP(S) (mailto, javascript:, tel) are discarded.
func extractLinks(doc *goquery.Document, base *url.URL) []string {
	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		links = append(links, abs.String())
	})
	return links
}

func extractScriptSrcs(doc *goquery.Document) []string {
	var srcs []string
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok && strings.TrimSpace(src) != "" {
			srcs = append(srcs, strings.TrimSpace(src))
		}
	})
	return srcs
}

// writeNodeText walks the DOM in document order, emitting text nodes and
// inserting newlines at block-element boundaries so reading order survives.
func writeNodeText(sb *strings.Builder, n *html.Node) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	if n.Type != html.ElementNode && n.Type != html.DocumentNode {
		return
	}
	_, block := blockTags[n.Data]
	if block {
		sb.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNodeText(sb, c)
	}
	if block {
		sb.WriteByte('\n')
	}
}

// normalizeText collapses horizontal whitespace runs within lines, trims
// each line, and reduces runs of blank lines to a single blank line.
func normalizeText(raw string) string {
	raw = spaceRuns.ReplaceAllString(raw, " ")
	lines := strings.Split(raw, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	out := strings.Join(lines, "\n")
	out = newlineRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
