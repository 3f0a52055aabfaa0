package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pagemill/pagemill/internal/clock/system"
	"github.com/pagemill/pagemill/internal/logging"
	"github.com/pagemill/pagemill/internal/scraper"
)

func newScrapeCmd() *cobra.Command {
	var (
		maxPages int
		format   string
	)
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Crawl a site once and print the extracted text",
		Long: `Runs a single crawl starting from the given URL and prints the result to
stdout. A bare domain is treated as https://<domain>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pages := maxPages
			if pages == 0 {
				pages = cfg.Scraper.MaxPagesDefault
			}
			if pages < 1 || pages > cfg.Scraper.MaxPagesLimit {
				return fmt.Errorf("max-pages must be between 1 and %d", cfg.Scraper.MaxPagesLimit)
			}
			reportFormat, err := scraper.ParseReportFormat(format)
			if err != nil {
				return err
			}

			crawler := scraper.New(cfg.Scraper.CrawlerConfig(), system.New(), nil, logging.L)
			result, err := crawler.Crawl(cmd.Context(), scraper.CrawlRequest{
				SeedURL:  args[0],
				MaxPages: pages,
			})
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}

			out, err := scraper.RenderReport(result, reportFormat)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "page budget for the crawl (default from config)")
	cmd.Flags().StringVar(&format, "format", "text", "output format: json, markdown or text")
	return cmd
}
