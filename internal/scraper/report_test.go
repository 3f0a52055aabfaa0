package scraper

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleResult() CrawlResult {
	return CrawlResult{
		SeedURL: "https://example.com/",
		Pages: []PageResult{
			{
				URL:          "https://example.com/",
				Title:        "Home",
				Text:         "Welcome to Acme",
				DetectedTech: []string{"React"},
				Status:       StatusOK,
			},
			{
				URL:    "https://example.com/broken",
				Status: StatusFailed,
				Error:  "http status 500",
			},
		},
	}
}

func TestParseReportFormat(t *testing.T) {
	t.Parallel()

	format, err := ParseReportFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	format, err = ParseReportFormat(" Markdown ")
	require.NoError(t, err)
	require.Equal(t, FormatMarkdown, format)

	_, err = ParseReportFormat("xml")
	require.Error(t, err)
}

func TestRenderReport_JSON(t *testing.T) {
	t.Parallel()

	out, err := RenderReport(sampleResult(), FormatJSON)
	require.NoError(t, err)

	var decoded CrawlResult
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Pages, 2)
	require.Equal(t, "https://example.com/", decoded.Pages[0].URL)
}

func TestRenderReport_Markdown(t *testing.T) {
	t.Parallel()

	out, err := RenderReport(sampleResult(), FormatMarkdown)
	require.NoError(t, err)

	require.Contains(t, out, "# https://example.com/")
	require.Contains(t, out, "## Home")
	require.Contains(t, out, "**Detected Tech:** React")
	require.Contains(t, out, "Welcome to Acme")
	require.Contains(t, out, "_fetch failed: http status 500_")
}

func TestRenderReport_Text(t *testing.T) {
	t.Parallel()

	out, err := RenderReport(sampleResult(), FormatText)
	require.NoError(t, err)

	require.Contains(t, out, "URL: https://example.com/")
	require.Contains(t, out, "Detected Tech: React")
	require.Contains(t, out, "Welcome to Acme")
	require.Contains(t, out, "Error: http status 500")
}
