package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"webgrab/pkg/models"
	"webgrab/pkg/state"
	"webgrab/pkg/storage"
)

// NewReportCmd creates the report command.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <seed-url>",
		Short: "Summarize the outcome of a crawl",
		Long: `Report prints a per-URL summary of a crawl from its visited database:
how many pages succeeded, failed, or were skipped by policy, and why.

Examples:
  webgrab report https://example.com

  # Include every visited URL, not just the totals
  webgrab report --urls https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runReportCmd,
	}

	cmd.Flags().Bool("urls", false, "List every visited URL with its outcome")

	return cmd
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	listURLs, _ := cmd.Flags().GetBool("urls")

	jobID, err := state.JobIDForSeed(args[0])
	if err != nil {
		return err
	}

	store, err := storage.NewBadgerStore(cmd.Context(), a.cfg.StateDir, jobID, false, a.log.WithField("component", "storage"))
	if err != nil {
		return fmt.Errorf("no crawl data found for '%s': %w", args[0], err)
	}
	defer store.Close()

	var (
		total     int
		byStatus  = map[models.FetchStatus]int{}
		byError   = map[string]int{}
		statusRow []string
	)
	err = store.Each(func(rec *models.VisitedRecord) error {
		total++
		byStatus[rec.Status]++
		if rec.ErrorType != "" {
			byError[rec.ErrorType]++
		}
		if listURLs {
			line := fmt.Sprintf("  [%s] %s", rec.Status, rec.URL)
			if rec.StatusCode > 0 {
				line += fmt.Sprintf(" (%d)", rec.StatusCode)
			}
			if rec.ErrorType != "" {
				line += " " + rec.ErrorType
			}
			statusRow = append(statusRow, line)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Crawl report for %s\n\n", args[0])
	fmt.Printf("Visited URLs: %d\n", total)
	fmt.Printf("  success: %d\n", byStatus[models.FetchStatusSuccess])
	fmt.Printf("  error:   %d\n", byStatus[models.FetchStatusError])
	fmt.Printf("  skipped: %d\n", byStatus[models.FetchStatusSkipped])
	if len(byError) > 0 {
		fmt.Println("\nError breakdown:")
		for category, n := range byError {
			fmt.Printf("  %s: %d\n", category, n)
		}
	}
	if listURLs {
		fmt.Println("\nURLs:")
		for _, line := range statusRow {
			fmt.Println(line)
		}
	}

	// Show snapshot status if one exists
	states, err := state.NewStore(a.cfg.StateDir, a.log.WithField("component", "state"))
	if err == nil {
		if snap, loadErr := states.Load(jobID); loadErr == nil {
			fmt.Printf("\nJob status: %s (%d pending, last saved %s)\n",
				snap.Job.Status, len(snap.Frontier), snap.SavedAt.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}
