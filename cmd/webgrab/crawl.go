package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"webgrab/pkg/crawl"
	"webgrab/pkg/export"
	"webgrab/pkg/models"
	"webgrab/pkg/state"
	"webgrab/pkg/storage"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a website starting from a seed URL",
		Long: `Crawl starts a breadth-first crawl of a single website. Only pages on
the seed's host are visited (plus any whitelisted URLs), robots.txt is
honored, and requests to the host are spaced by the configured delay.

The crawl pauses with a saved snapshot when the page budget is reached,
on Ctrl-C, or when 'pause' is requested; continue it later with
'webgrab resume'. When the budget is hit you are asked whether to keep
going; pass --yes to continue automatically.

Examples:
  # Crawl with defaults (100 pages, 2s delay)
  webgrab crawl https://example.com

  # Larger budget, keep going without prompting
  webgrab crawl --max-pages 500 --yes https://example.com

  # Exclude admin pages
  webgrab crawl --blacklist '*/admin/*' https://example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().IntP("max-pages", "p", 0, "Page budget before pausing (overrides config)")
	cmd.Flags().DurationP("delay", "d", 0, "Minimum delay between requests to the host (overrides config)")
	cmd.Flags().StringSlice("blacklist", nil, "Wildcard URL patterns to exclude (repeatable)")
	cmd.Flags().StringSlice("whitelist", nil, "Wildcard URL patterns to require (repeatable)")
	cmd.Flags().BoolP("yes", "y", false, "Continue automatically when the page budget is reached")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd)
	if err != nil {
		return err
	}

	if v, _ := cmd.Flags().GetInt("max-pages"); v > 0 {
		a.cfg.MaxPages = v
	}
	if v, _ := cmd.Flags().GetDuration("delay"); v > 0 {
		a.cfg.CrawlDelay = v
	}
	if v, _ := cmd.Flags().GetStringSlice("blacklist"); len(v) > 0 {
		a.cfg.Blacklist = append(a.cfg.Blacklist, v...)
	}
	if v, _ := cmd.Flags().GetStringSlice("whitelist"); len(v) > 0 {
		a.cfg.Whitelist = append(a.cfg.Whitelist, v...)
	}
	autoContinue, _ := cmd.Flags().GetBool("yes")

	job, err := crawl.JobFromConfig(args[0], a.cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	states, err := state.NewStore(a.cfg.StateDir, a.log.WithField("component", "state"))
	if err != nil {
		return err
	}

	// A fresh crawl discards any previous visited database for this job
	store, err := storage.NewBadgerStore(ctx, a.cfg.StateDir, job.ID, true, a.log.WithField("component", "storage"))
	if err != nil {
		return err
	}
	defer store.Close()

	orch, err := crawl.NewOrchestrator(job, a.cfg, crawl.Deps{
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

// driveCrawl runs the orchestrator, handling signals, the page-budget
// prompt, and the final export. Shared by crawl and resume.
func driveCrawl(ctx context.Context, a *app, orch *crawl.Orchestrator, store storage.VisitedStore, autoContinue bool) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First signal pauses gracefully; second aborts
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			a.log.Warn("Signal received, pausing crawl (press again to abort)")
			orch.RequestPause()
		case <-runCtx.Done():
			return
		}
		select {
		case <-sigCh:
			a.log.Warn("Second signal received, aborting")
			cancel()
		case <-runCtx.Done():
		}
	}()

	gcCtx, gcCancel := context.WithCancel(runCtx)
	defer gcCancel()
	go store.RunGC(gcCtx, 5*time.Minute)

	for {
		err := orch.Run(runCtx)
		if err == nil {
			break
		}
		if !errors.Is(err, crawl.ErrBudgetReached) {
			return err
		}

		c := orch.Counters()
		fmt.Printf("\nPage budget reached: %d pages fetched (%d errors, %d skipped).\n",
			c.PagesFetched, c.PagesErrored, c.PagesSkipped)
		if !autoContinue && !promptYes(fmt.Sprintf("Continue crawling for another %d pages? [y/N]: ", a.cfg.MaxPages)) {
			break
		}
		orch.RaiseBudget(a.cfg.MaxPages)
	}

	if orch.Status() == models.JobStatusPaused {
		fmt.Println("\nCrawl paused. Continue later with: webgrab resume " + orch.Job().SeedURL)
	}

	return exportCrawl(a, orch)
}

// exportCrawl renders everything gathered so far (including pages from
// earlier runs of a resumed crawl) in the configured formats.
func exportCrawl(a *app, orch *crawl.Orchestrator) error {
	docs, err := export.ReadResults(orch.ResultsDir())
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		a.log.Info("No documents to export")
		return nil
	}

	formats, err := a.exportFormats()
	if err != nil {
		return err
	}

	exporter, err := export.NewExporter(a.cfg.ExportsDir, a.log.WithField("component", "export"))
	if err != nil {
		return err
	}
	paths, err := exporter.Export(orch.Job().ID, docs, formats)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println("Exported:", p)
	}
	return nil
}

// promptYes asks a yes/no question on stdin and defaults to no.
func promptYes(question string) bool {
	fmt.Print(question)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
