package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"webgrab/pkg/export"
	"webgrab/pkg/models"
	"webgrab/pkg/scrape"
	"webgrab/pkg/state"
	"webgrab/pkg/utils"
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <url>",
		Short: "Fetch and extract a single page",
		Long: `Scrape fetches one URL, extracts its title, text, links, and metadata,
and saves the result. robots.txt and the per-host delay still apply.

Examples:
  webgrab scrape https://example.com/pricing

  # Print the extracted text
  webgrab scrape --text https://example.com/pricing`,
		Args: cobra.ExactArgs(1),
		RunE: runScrapeCmd,
	}

	cmd.Flags().Bool("text", false, "Print the extracted page text")

	return cmd
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	printText, _ := cmd.Flags().GetBool("text")

	scraper := scrape.NewScraper(a.cfg, a.fetcher, a.robots, a.limiter, a.extractor, a.log.WithField("component", "scrape"))

	jobID, err := state.JobIDForSeed(args[0])
	if err != nil {
		return err
	}
	resultsDir := filepath.Join(a.cfg.ResultsDir, utils.SanitizeFilename(jobID))

	doc, err := scraper.Scrape(cmd.Context(), args[0], resultsDir)
	if err != nil {
		return err
	}

	fmt.Println("URL:   ", doc.URL)
	fmt.Println("Title: ", doc.Title)
	fmt.Printf("Links:  %d\n", len(doc.Links))
	if desc, ok := doc.Metadata["description"]; ok {
		fmt.Println("Desc:  ", desc)
	}
	if printText {
		fmt.Println()
		fmt.Println(doc.Text)
	}

	// A single-page scrape still produces exports if formats are configured
	if len(a.cfg.ExportFormats) > 0 {
		formats, err := a.exportFormats()
		if err != nil {
			return err
		}
		exporter, err := export.NewExporter(a.cfg.ExportsDir, a.log.WithField("component", "export"))
		if err != nil {
			return err
		}
		paths, err := exporter.Export(jobID, []*models.Document{doc}, formats)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println("Exported:", p)
		}
	}
	return nil
}
