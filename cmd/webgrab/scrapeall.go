package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"webgrab/pkg/export"
	"webgrab/pkg/scrape"
)

// NewScrapeAllCmd creates the scrape-all command.
func NewScrapeAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape-all <url-list-file>",
		Short: "Scrape a list of URLs concurrently",
		Long: `Scrape-all reads one URL per line from a file (blank lines and lines
starting with # are skipped) and scrapes them concurrently. Requests to
the same host are still spaced by the configured delay, and per-URL
failures are reported at the end rather than stopping the batch.

Examples:
  webgrab scrape-all urls.txt

  # Eight pages in flight at once
  webgrab scrape-all --concurrency 8 urls.txt`,
		Args: cobra.ExactArgs(1),
		RunE: runScrapeAllCmd,
	}

	cmd.Flags().IntP("concurrency", "n", 0, "Number of pages to scrape in parallel (overrides config)")

	return cmd
}

func runScrapeAllCmd(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
		a.cfg.ScrapeConcurrency = v
	}

	scraper := scrape.NewScraper(a.cfg, a.fetcher, a.robots, a.limiter, a.extractor, a.log.WithField("component", "scrape"))
	result, err := scraper.ScrapeAll(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Scraped %d pages in %s (%d failed)\n",
		len(result.Documents), result.Elapsed.Round(time.Millisecond), len(result.Failed))
	for url, category := range result.Failed {
		fmt.Printf("  failed: %s (%s)\n", url, category)
	}

	if len(result.Documents) > 0 && len(a.cfg.ExportFormats) > 0 {
		formats, err := a.exportFormats()
		if err != nil {
			return err
		}
		exporter, err := export.NewExporter(a.cfg.ExportsDir, a.log.WithField("component", "export"))
		if err != nil {
			return err
		}
		paths, err := exporter.Export("scrape_"+result.SessionID, result.Documents, formats)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println("Exported:", p)
		}
	}
	return nil
}
