package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for webgrab.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webgrab",
		Short: "Polite single-site web crawler and scraper",
		Long: `webgrab crawls one website at a time, honoring robots.txt and per-host
request delays, and extracts each page's title, text, links, and metadata.

Crawls snapshot their progress periodically and pause cleanly on Ctrl-C or
when the page budget runs out, so they can always be resumed later with
'webgrab resume'. Collected pages can be exported to JSON, CSV, plain text,
or Markdown, and searched afterwards with 'webgrab search'.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file path (default: config.yaml if present)")
	cmd.PersistentFlags().String("loglevel", "info", "Log level (debug, info, warn, error, fatal)")

	// Add subcommands
	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewResumeCmd())
	cmd.AddCommand(NewScrapeCmd())
	cmd.AddCommand(NewScrapeAllCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
