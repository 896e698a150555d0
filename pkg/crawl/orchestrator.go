package crawl

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"webgrab/pkg/config"
	"webgrab/pkg/export"
	"webgrab/pkg/extract"
	"webgrab/pkg/fetch"
	"webgrab/pkg/frontier"
	"webgrab/pkg/models"
	"webgrab/pkg/parse"
	"webgrab/pkg/state"
	"webgrab/pkg/storage"
	"webgrab/pkg/utils"
)

// Deps bundles the collaborators an Orchestrator drives. All fields are
// required except Robots (nil disables robots checks, equivalent to
// respect_robots_txt: false).
type Deps struct {
	Fetcher   *fetch.Fetcher
	Robots    *fetch.RobotsPolicy
	Limiter   *fetch.RateLimiter
	Store     storage.VisitedStore
	States    *state.Store
	Extractor *extract.Extractor
}

// Orchestrator runs the crawl loop for one job: dequeue, politeness
// checks, fetch, extract, enqueue discovered links, record the outcome.
// The loop is single-threaded; pause and budget checks happen only at
// loop boundaries so a snapshot always captures a consistent state.
type Orchestrator struct {
	job      *models.CrawlJob
	cfg      *config.Settings
	deps     Deps
	frontier *frontier.Frontier
	log      *logrus.Entry

	pauseRequested atomic.Bool

	mu       sync.Mutex
	counters models.CrawlCounters
	docs     []*models.Document

	pagesSinceSnapshot int
}

// ErrBudgetReached is returned by Run when the page budget is hit; the
// crawl is paused with a snapshot and can be resumed with a raised budget.
var ErrBudgetReached = utils.ErrPageBudgetReached

// NewOrchestrator builds an orchestrator for a fresh crawl of job.
func NewOrchestrator(job *models.CrawlJob, cfg *config.Settings, deps Deps, logger *logrus.Entry) (*Orchestrator, error) {
	fr, err := frontier.New(job.ScopeHost, job.Blacklist, job.Whitelist, logger.WithField("component", "frontier"))
	if err != nil {
		return nil, fmt.Errorf("building frontier: %w", err)
	}

	o := &Orchestrator{
		job:      job,
		cfg:      cfg,
		deps:     deps,
		frontier: fr,
		log:      logger,
	}

	queued, err := fr.Enqueue(job.SeedURL, 0)
	if err != nil {
		return nil, fmt.Errorf("enqueueing seed: %w", err)
	}
	if !queued {
		return nil, fmt.Errorf("%w: seed URL '%s' rejected by its own filters", utils.ErrConfigValidation, job.SeedURL)
	}
	job.Status = models.JobStatusIdle
	return o, nil
}

// NewOrchestratorFromSnapshot rebuilds an orchestrator from a saved
// snapshot so the crawl continues where it paused.
func NewOrchestratorFromSnapshot(snap *models.CrawlSnapshot, cfg *config.Settings, deps Deps, logger *logrus.Entry) (*Orchestrator, error) {
	job := snap.Job // copy
	fr, err := frontier.New(job.ScopeHost, job.Blacklist, job.Whitelist, logger.WithField("component", "frontier"))
	if err != nil {
		return nil, fmt.Errorf("building frontier: %w", err)
	}
	fr.Restore(snap.Frontier, snap.Visited)

	o := &Orchestrator{
		job:      &job,
		cfg:      cfg,
		deps:     deps,
		frontier: fr,
		counters: snap.Counters,
		log:      logger,
	}
	logger.WithFields(logrus.Fields{
		"job_id":        job.ID,
		"frontier":      fr.QueueLen(),
		"visited":       fr.VisitedLen(),
		"pages_fetched": snap.Counters.PagesFetched,
	}).Info("Crawl restored from snapshot")
	return o, nil
}

// RequestPause asks the crawl loop to stop at the next loop boundary.
// Safe to call from any goroutine (typically a signal handler).
func (o *Orchestrator) RequestPause() {
	o.pauseRequested.Store(true)
}

// RaiseBudget adds n pages to the job's budget, for continuing past a
// budget pause.
func (o *Orchestrator) RaiseBudget(n int) {
	o.job.MaxPages += n
	o.job.UpdatedAt = time.Now()
}

// Status returns the job's current lifecycle state.
func (o *Orchestrator) Status() models.JobStatus {
	return o.job.Status
}

// Job returns a copy of the job being crawled.
func (o *Orchestrator) Job() models.CrawlJob {
	return *o.job
}

// Counters returns a copy of the progress counters.
func (o *Orchestrator) Counters() models.CrawlCounters {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters
}

// Documents returns the documents collected during this process's run
// (resumed crawls only hold documents fetched since the resume; earlier
// ones live in the results directory).
func (o *Orchestrator) Documents() []*models.Document {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*models.Document, len(o.docs))
	copy(out, o.docs)
	return out
}

// Run executes the crawl loop until the frontier drains, the page budget
// is reached, a pause is requested, ctx is cancelled, or a fatal storage
// error occurs. Pause, cancellation, and budget exhaustion all leave the
// job Paused with a fresh snapshot; budget exhaustion additionally
// returns ErrBudgetReached so the caller can offer to continue.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.job.Status.Terminal() {
		return fmt.Errorf("job '%s' is %s and cannot run", o.job.ID, o.job.Status)
	}
	o.setStatus(models.JobStatusRunning)
	o.log.WithFields(logrus.Fields{
		"job_id":    o.job.ID,
		"seed":      o.job.SeedURL,
		"max_pages": o.job.MaxPages,
	}).Info("Crawl started")

	for {
		select {
		case <-ctx.Done():
			o.log.Warnf("Crawl interrupted: %v. Pausing with snapshot.", ctx.Err())
			return o.pause()
		default:
		}

		if o.pauseRequested.Load() {
			o.log.Info("Pause requested. Pausing with snapshot.")
			return o.pause()
		}

		if o.counters.PagesFetched >= o.job.MaxPages {
			o.log.WithField("max_pages", o.job.MaxPages).Info("Page budget reached. Pausing with snapshot.")
			if err := o.pause(); err != nil {
				return err
			}
			return fmt.Errorf("%w: fetched %d pages", ErrBudgetReached, o.counters.PagesFetched)
		}

		entry, ok := o.frontier.Next()
		if !ok {
			return o.complete()
		}

		if err := o.processEntry(ctx, entry); err != nil {
			// Storage failures are fatal: continuing would lose outcomes.
			// Snapshot best-effort so manual recovery is possible.
			o.log.Errorf("Fatal error processing '%s': %v", entry.URL, err)
			if snapErr := o.saveSnapshot(); snapErr != nil {
				o.log.Errorf("Best-effort snapshot also failed: %v", snapErr)
			}
			o.setStatus(models.JobStatusFailed)
			return err
		}

		o.pagesSinceSnapshot++
		if o.pagesSinceSnapshot >= o.cfg.SnapshotEvery {
			if err := o.saveSnapshot(); err != nil {
				o.log.Warnf("Periodic snapshot failed (will retry next interval): %v", err)
			} else {
				o.pagesSinceSnapshot = 0
			}
		}
	}
}

// processEntry handles one frontier entry end to end. Per-page fetch and
// parse failures are recorded and absorbed; only storage errors propagate.
func (o *Orchestrator) processEntry(ctx context.Context, entry *models.FrontierEntry) error {
	pageLog := o.log.WithFields(logrus.Fields{"url": entry.URL, "depth": entry.Depth})

	parsed, err := url.Parse(entry.URL)
	if err != nil {
		// Frontier only holds normalized URLs, so this should not happen
		pageLog.Errorf("Unparseable frontier URL: %v", err)
		o.frontier.MarkVisited(entry.URL)
		return nil
	}
	host := parsed.Hostname()

	// Politeness gate: robots first, then the per-host delay using the
	// larger of the configured delay and robots' Crawl-delay.
	if o.deps.Robots != nil && !o.deps.Robots.IsAllowed(parsed, o.cfg.UserAgent, ctx) {
		pageLog.Info("Disallowed by robots.txt, skipping")
		return o.recordOutcome(entry.URL, &models.VisitedRecord{
			URL:       entry.URL,
			Status:    models.FetchStatusSkipped,
			ErrorType: utils.CategorizeError(utils.ErrRobotsDisallowed),
			Timestamp: time.Now(),
		}, func(c *models.CrawlCounters) { c.PagesSkipped++ })
	}

	delay := o.job.Delay
	if o.deps.Robots != nil {
		if robotsDelay, ok := o.deps.Robots.CrawlDelayFor(host); ok && robotsDelay > delay {
			delay = robotsDelay
		}
	}
	o.deps.Limiter.ApplyDelay(ctx, host, delay)

	res, fetchErr := o.deps.Fetcher.Fetch(ctx, entry.URL)
	o.deps.Limiter.UpdateLastRequestTime(host)

	if fetchErr != nil {
		if ctx.Err() != nil {
			// Interrupted mid-fetch; leave the URL unvisited so the
			// resumed crawl retries it
			o.frontier.Enqueue(entry.URL, entry.Depth)
			return nil
		}
		pageLog.Warnf("Fetch failed: %v", fetchErr)
		statusCode := 0
		if res != nil {
			statusCode = res.StatusCode
		}
		return o.recordOutcome(entry.URL, &models.VisitedRecord{
			URL:        entry.URL,
			Status:     models.FetchStatusError,
			StatusCode: statusCode,
			ErrorType:  utils.CategorizeError(fetchErr),
			Timestamp:  time.Now(),
		}, func(c *models.CrawlCounters) { c.PagesErrored++ })
	}

	// Resolve links against the post-redirect URL, but key the document
	// by the frontier URL so dedup and resume stay consistent
	doc := o.deps.Extractor.Extract(res.FinalURL, res.Body)
	doc.URL = entry.URL

	queued := 0
	for _, link := range doc.Links {
		ok, enqErr := o.frontier.Enqueue(link, entry.Depth+1)
		if enqErr != nil {
			pageLog.Debugf("Dropping discovered link: %v", enqErr)
			continue
		}
		if ok {
			queued++
		}
	}
	pageLog.WithFields(logrus.Fields{
		"status_code": res.StatusCode,
		"links_found": len(doc.Links),
		"links_new":   queued,
	}).Info("Page crawled")

	if _, err := export.WriteResult(o.resultsDir(), doc); err != nil {
		return err
	}

	o.mu.Lock()
	o.docs = append(o.docs, doc)
	o.mu.Unlock()

	return o.recordOutcome(entry.URL, &models.VisitedRecord{
		URL:        entry.URL,
		Status:     models.FetchStatusSuccess,
		StatusCode: res.StatusCode,
		Timestamp:  time.Now(),
	}, func(c *models.CrawlCounters) {
		c.PagesFetched++
		c.LinksDiscovered += queued
	})
}

// recordOutcome persists the visit record, marks the URL visited, and
// applies the counter update. The store write happening before
// MarkVisited means a crash between the two re-records (idempotent)
// rather than losing the outcome.
func (o *Orchestrator) recordOutcome(normalizedURL string, rec *models.VisitedRecord, bump func(*models.CrawlCounters)) error {
	if err := o.deps.Store.Record(normalizedURL, rec); err != nil {
		return err
	}
	o.frontier.MarkVisited(normalizedURL)
	o.mu.Lock()
	bump(&o.counters)
	o.mu.Unlock()
	return nil
}

// resultsDir returns the per-job directory for extracted documents.
func (o *Orchestrator) resultsDir() string {
	return filepath.Join(o.cfg.ResultsDir, utils.SanitizeFilename(o.job.ID))
}

// ResultsDir exposes the per-job results directory for callers that
// export or search after the run.
func (o *Orchestrator) ResultsDir() string {
	return o.resultsDir()
}

func (o *Orchestrator) pause() error {
	o.setStatus(models.JobStatusPaused)
	if err := o.saveSnapshot(); err != nil {
		return fmt.Errorf("saving pause snapshot: %w", err)
	}
	o.logSummary("Crawl paused")
	return nil
}

func (o *Orchestrator) complete() error {
	o.setStatus(models.JobStatusCompleted)
	if err := o.saveSnapshot(); err != nil {
		o.log.Warnf("Final snapshot failed: %v", err)
	}
	logPath := filepath.Join(o.cfg.StateDir, utils.SanitizeFilename(o.job.ID)+"_visited_urls.txt")
	if err := o.deps.Store.WriteVisitedLog(logPath); err != nil {
		o.log.Warnf("Writing visited log failed: %v", err)
	}
	o.logSummary("Crawl completed")
	return nil
}

func (o *Orchestrator) setStatus(s models.JobStatus) {
	o.job.Status = s
	o.job.UpdatedAt = time.Now()
}

func (o *Orchestrator) saveSnapshot() error {
	if !o.cfg.SaveCrawlState {
		return nil
	}
	o.mu.Lock()
	counters := o.counters
	o.mu.Unlock()

	snap := &models.CrawlSnapshot{
		Job:      *o.job,
		Frontier: o.frontier.PendingEntries(),
		Visited:  o.frontier.VisitedKeys(),
		Counters: counters,
	}
	if err := o.deps.States.Save(snap); err != nil {
		return err
	}
	return nil
}

func (o *Orchestrator) logSummary(msg string) {
	o.mu.Lock()
	c := o.counters
	o.mu.Unlock()
	o.log.WithFields(logrus.Fields{
		"job_id":           o.job.ID,
		"status":           o.job.Status,
		"pages_fetched":    c.PagesFetched,
		"pages_errored":    c.PagesErrored,
		"pages_skipped":    c.PagesSkipped,
		"links_discovered": c.LinksDiscovered,
		"frontier_pending": o.frontier.QueueLen(),
	}).Info(msg)
}

// JobFromConfig builds a CrawlJob for seedURL from settings.
func JobFromConfig(seedURL string, cfg *config.Settings) (*models.CrawlJob, error) {
	normalized, parsed, err := parseSeed(seedURL)
	if err != nil {
		return nil, err
	}
	jobID, err := state.JobIDForSeed(normalized)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &models.CrawlJob{
		ID:         jobID,
		SeedURL:    normalized,
		ScopeHost:  parsed.Hostname(),
		MaxPages:   cfg.MaxPages,
		Delay:      cfg.CrawlDelay,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Blacklist:  cfg.Blacklist,
		Whitelist:  cfg.Whitelist,
		Status:     models.JobStatusIdle,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func parseSeed(seedURL string) (string, *url.URL, error) {
	normalized, parsed, err := parse.ParseAndNormalize(seedURL)
	if err != nil {
		return "", nil, fmt.Errorf("%w: seed URL '%s': %v", utils.ErrParsing, seedURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", nil, fmt.Errorf("%w: seed URL '%s' must be http or https", utils.ErrConfigValidation, seedURL)
	}
	if parsed.Hostname() == "" {
		return "", nil, fmt.Errorf("%w: seed URL '%s' has no host", utils.ErrConfigValidation, seedURL)
	}
	return normalized, parsed, nil
}
