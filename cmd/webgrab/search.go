package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"webgrab/pkg/search"
	"webgrab/pkg/state"
	"webgrab/pkg/utils"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the text of previously crawled or scraped pages",
		Long: `Search scans the saved results for a substring and prints each match
with surrounding context. By default all saved results are searched;
use --site to restrict to one crawl.

Examples:
  webgrab search "error code 429"

  # Only pages from one crawl, case-sensitive
  webgrab search --site https://example.com --case-sensitive TLS

  # Save a report of the matches
  webgrab search --report matches.txt "deprecated"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearchCmd,
	}

	cmd.Flags().StringP("site", "s", "", "Restrict the search to one crawl's results (seed URL)")
	cmd.Flags().String("host", "", "Only match documents from this host")
	cmd.Flags().Bool("case-sensitive", false, "Match case exactly")
	cmd.Flags().Int("max-per-page", 0, "Cap matches reported per page (0 = all)")
	cmd.Flags().String("report", "", "Write a plain-text report of the matches to this file")

	return cmd
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	query := args[0]

	resultsDir := a.cfg.ResultsDir
	if site, _ := cmd.Flags().GetString("site"); site != "" {
		jobID, err := state.JobIDForSeed(site)
		if err != nil {
			return err
		}
		resultsDir = filepath.Join(resultsDir, utils.SanitizeFilename(jobID))
	}

	host, _ := cmd.Flags().GetString("host")
	caseSensitive, _ := cmd.Flags().GetBool("case-sensitive")
	maxPerPage, _ := cmd.Flags().GetInt("max-per-page")

	searcher := search.NewSearcher(resultsDir, a.log.WithField("component", "search"))
	matches, err := searcher.Search(query, search.Options{
		CaseSensitive: caseSensitive,
		Host:          host,
		MaxPerPage:    maxPerPage,
	})
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		fmt.Printf("No matches for %q\n", query)
		return nil
	}
	fmt.Printf("%d matches for %q:\n\n", len(matches), query)
	for i, m := range matches {
		fmt.Printf("%d. %s\n", i+1, m.URL)
		fmt.Printf("   %s\n\n", m.Snippet)
	}

	if reportPath, _ := cmd.Flags().GetString("report"); reportPath != "" {
		if err := search.WriteReport(reportPath, query, matches); err != nil {
			return err
		}
		fmt.Println("Report written:", reportPath)
	}
	return nil
}
