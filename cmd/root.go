// Package cmd defines the CLI commands for the pagemill executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pagemill",
		Short: "Multi-page website text scraper",
		Long: `pagemill crawls a website starting from a seed URL, follows same-origin
links breadth-first up to a page budget, and extracts the readable text
from each rendered page. It runs either as a one-shot CLI scrape or as an
HTTP service with an async job queue.`,

		// Config and logging are ready before any subcommand runs.
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			loaded, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg = loaded
			if err := logging.InitLogger(cfg.Logging.Development); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (env vars use the PAGEMILL_ prefix)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScrapeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		logging.L.Error("command failed", zap.Error(err))
		os.Exit(1)
	}
}
