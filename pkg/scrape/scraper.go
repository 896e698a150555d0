package scrape

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"webgrab/pkg/config"
	"webgrab/pkg/export"
	"webgrab/pkg/extract"
	"webgrab/pkg/fetch"
	"webgrab/pkg/models"
	"webgrab/pkg/parse"
	"webgrab/pkg/utils"
)

// Scraper fetches and extracts individual pages outside of a crawl:
// one URL, or a whole list concurrently. Politeness still applies per
// host through the shared rate limiter, and robots.txt is honored the
// same way the crawler honors it.
type Scraper struct {
	cfg       *config.Settings
	fetcher   *fetch.Fetcher
	robots    *fetch.RobotsPolicy
	limiter   *fetch.RateLimiter
	extractor *extract.Extractor
	log       *logrus.Entry
}

// NewScraper builds a Scraper. robots may be nil to skip robots checks.
func NewScraper(cfg *config.Settings, fetcher *fetch.Fetcher, robots *fetch.RobotsPolicy, limiter *fetch.RateLimiter, extractor *extract.Extractor, logger *logrus.Entry) *Scraper {
	return &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		robots:    robots,
		limiter:   limiter,
		extractor: extractor,
		log:       logger,
	}
}

// Scrape fetches a single URL and returns its extracted document. The
// result is also written to the session's results directory.
func (s *Scraper) Scrape(ctx context.Context, rawURL, resultsDir string) (*models.Document, error) {
	normalized, parsed, err := parse.ParseAndNormalize(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: URL '%s': %v", utils.ErrParsing, rawURL, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("%w: URL '%s' must be http or https", utils.ErrParsing, rawURL)
	}
	host := parsed.Hostname()

	if s.robots != nil && !s.robots.IsAllowed(parsed, s.cfg.UserAgent, ctx) {
		return nil, fmt.Errorf("%w: '%s'", utils.ErrRobotsDisallowed, normalized)
	}

	delay := s.cfg.CrawlDelay
	if s.robots != nil {
		if robotsDelay, ok := s.robots.CrawlDelayFor(host); ok && robotsDelay > delay {
			delay = robotsDelay
		}
	}
	s.limiter.ApplyDelay(ctx, host, delay)

	res, err := s.fetcher.Fetch(ctx, normalized)
	s.limiter.UpdateLastRequestTime(host)
	if err != nil {
		return nil, err
	}

	doc := s.extractor.Extract(res.FinalURL, res.Body)
	doc.URL = normalized

	if resultsDir != "" {
		if _, err := export.WriteResult(resultsDir, doc); err != nil {
			s.log.Warnf("Failed to save result for '%s': %v", normalized, err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"url":         normalized,
		"status_code": res.StatusCode,
		"title":       doc.Title,
	}).Info("Page scraped")
	return doc, nil
}

// BatchResult summarizes one ScrapeAll session.
type BatchResult struct {
	SessionID  string
	Documents  []*models.Document
	Failed     map[string]string // URL -> error category
	ResultsDir string
	Elapsed    time.Duration
}

// ScrapeAll reads one URL per line from listPath (blank lines and
// #-comments skipped) and scrapes them concurrently, bounded by the
// configured concurrency. Per-URL failures are collected, not fatal;
// ScrapeAll only errors if the list itself is unreadable or the context
// is cancelled.
func (s *Scraper) ScrapeAll(ctx context.Context, listPath string) (*BatchResult, error) {
	urls, err := readURLList(listPath)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: no URLs found in '%s'", utils.ErrConfigValidation, listPath)
	}

	sessionID := uuid.NewString()
	resultsDir := filepath.Join(s.cfg.ResultsDir, "scrape_"+sessionID)
	start := time.Now()

	s.log.WithFields(logrus.Fields{
		"session_id":  sessionID,
		"urls":        len(urls),
		"concurrency": s.cfg.ScrapeConcurrency,
	}).Info("Batch scrape started")

	var (
		mu     sync.Mutex
		docs   []*models.Document
		failed = make(map[string]string)
	)

	sem := semaphore.NewWeighted(int64(s.cfg.ScrapeConcurrency))
	g, gctx := errgroup.WithContext(ctx)

	for _, rawURL := range urls {
		if err := sem.Acquire(gctx, 1); err != nil {
			break // context cancelled
		}
		url := rawURL
		g.Go(func() error {
			defer sem.Release(1)
			doc, scrapeErr := s.Scrape(gctx, url, resultsDir)
			mu.Lock()
			defer mu.Unlock()
			if scrapeErr != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.Warnf("Scrape failed for '%s': %v", url, scrapeErr)
				failed[url] = utils.CategorizeError(scrapeErr)
				return nil
			}
			docs = append(docs, doc)
			return nil
		})
	}

	if err := g.Wait(); err != nil && ctx.Err() != nil {
		return nil, err
	}

	result := &BatchResult{
		SessionID:  sessionID,
		Documents:  docs,
		Failed:     failed,
		ResultsDir: resultsDir,
		Elapsed:    time.Since(start),
	}
	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"succeeded":  len(docs),
		"failed":     len(failed),
		"elapsed":    result.Elapsed.Round(time.Millisecond),
	}).Info("Batch scrape finished")
	return result, nil
}

// readURLList reads one URL per line, skipping blanks and # comments.
func readURLList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening URL list '%s': %w", path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading URL list '%s': %w", path, err)
	}
	return urls, nil
}
