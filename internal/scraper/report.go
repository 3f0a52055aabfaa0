package scraper

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ReportFormat selects how a CrawlResult is rendered for output.
type ReportFormat string

// Supported report formats.
const (
	FormatJSON     ReportFormat = "json"
	FormatMarkdown ReportFormat = "markdown"
	FormatText     ReportFormat = "text"
)

// ParseReportFormat validates a user-supplied format string; the empty
// string defaults to JSON.
func ParseReportFormat(raw string) (ReportFormat, error) {
	switch ReportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown:
		return FormatMarkdown, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q", raw)
	}
}

// RenderReport formats a crawl result in the requested format.
func RenderReport(result CrawlResult, format ReportFormat) (string, error) {
	switch format {
	case FormatMarkdown:
		return renderMarkdown(result), nil
	case FormatText:
		return renderText(result), nil
	case FormatJSON, "":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal result: %w", err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("unknown report format %q", format)
	}
}

func renderMarkdown(result CrawlResult) string {
	var sb strings.Builder
	for _, page := range result.Pages {
		fmt.Fprintf(&sb, "# %s\n\n", page.URL)
		if page.Status == StatusFailed {
			fmt.Fprintf(&sb, "_fetch failed: %s_\n\n---\n\n", page.Error)
			continue
		}
		if page.Title != "" {
			fmt.Fprintf(&sb, "## %s\n\n", page.Title)
		}
		if len(page.DetectedTech) > 0 {
			fmt.Fprintf(&sb, "**Detected Tech:** %s\n\n", strings.Join(page.DetectedTech, ", "))
		}
		sb.WriteString(page.Text)
		sb.WriteString("\n\n---\n\n")
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func renderText(result CrawlResult) string {
	var sb strings.Builder
	for _, page := range result.Pages {
		fmt.Fprintf(&sb, "URL: %s\n", page.URL)
		if page.Status == StatusFailed {
			fmt.Fprintf(&sb, "Error: %s\n", page.Error)
		} else {
			if len(page.DetectedTech) > 0 {
				fmt.Fprintf(&sb, "Detected Tech: %s\n", strings.Join(page.DetectedTech, ", "))
			}
			sb.WriteString("\nContent:\n")
			sb.WriteString(page.Text)
			sb.WriteByte('\n')
		}
		sb.WriteString("\n" + strings.Repeat("=", 50) + "\n\n")
	}
	return strings.TrimSpace(sb.String())
}
