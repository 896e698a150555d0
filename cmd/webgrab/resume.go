package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"webgrab/pkg/crawl"
	"webgrab/pkg/models"
	"webgrab/pkg/state"
	"webgrab/pkg/storage"
	"webgrab/pkg/utils"
)

// NewResumeCmd creates the resume command.
func NewResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <seed-url>",
		Short: "Resume a paused crawl from its last snapshot",
		Long: `Resume reloads the snapshot saved when a crawl paused (page budget,
Ctrl-C, or an explicit pause) and continues from exactly where it
stopped: pending URLs keep their order and visited URLs are not fetched
again.

Examples:
  # Continue a paused crawl
  webgrab resume https://example.com

  # Continue with a bigger budget and no prompting
  webgrab resume --max-pages 1000 --yes https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runResumeCmd,
	}

	cmd.Flags().IntP("max-pages", "p", 0, "New page budget (overrides the snapshot's)")
	cmd.Flags().BoolP("yes", "y", false, "Continue automatically when the page budget is reached")

	return cmd
}

func runResumeCmd(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}
	autoContinue, _ := cmd.Flags().GetBool("yes")

	jobID, err := state.JobIDForSeed(args[0])
	if err != nil {
		return err
	}

	states, err := state.NewStore(a.cfg.StateDir, a.log.WithField("component", "state"))
	if err != nil {
		return err
	}
	snap, err := states.Load(jobID)
	if err != nil {
		if errors.Is(err, utils.ErrSnapshotNotFound) {
			return fmt.Errorf("no saved crawl found for '%s'; start one with: webgrab crawl %s", args[0], args[0])
		}
		return err
	}
	if snap.Job.Status == models.JobStatusCompleted {
		fmt.Println("Crawl already completed. Start over with: webgrab crawl", snap.Job.SeedURL)
		return nil
	}

	if v, _ := cmd.Flags().GetInt("max-pages"); v > 0 {
		snap.Job.MaxPages = v
	}

	ctx := cmd.Context()
	store, err := storage.NewBadgerStore(ctx, a.cfg.StateDir, jobID, false, a.log.WithField("component", "storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	orch, err := crawl.NewOrchestratorFromSnapshot(snap, a.cfg, crawl.Deps{
		Fetcher:   a.fetcher,
		Robots:    a.robots,
		Limiter:   a.limiter,
		Store:     store,
		States:    states,
		Extractor: a.extractor,
	}, a.log.WithField("component", "crawl"))
	if err != nil {
		return err
	}

	return driveCrawl(ctx, a, orch, store, autoContinue)
}
