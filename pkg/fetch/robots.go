package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"webgrab/pkg/config"
)

// robotsEntry caches the parsed robots.txt state for one host.
// data is nil when the file was unreachable or unparseable; that host is
// then treated as allow-all (fail-open) until the entry expires.
type robotsEntry struct {
	data       *robotstxt.RobotsData
	crawlDelay time.Duration
	fetchedAt  time.Time
}

// RobotsPolicy manages fetching, parsing, caching, and checking robots.txt data.
// Refresh-on-expiry is the only mutation path; the cache mutex serializes it
// so concurrent readers never observe a half-written entry.
type RobotsPolicy struct {
	fetcher     *Fetcher
	rateLimiter *RateLimiter
	cache       map[string]*robotsEntry // hostname -> cached state
	cacheMu     sync.Mutex
	cfg         *config.Settings
	log         *logrus.Entry
}

// NewRobotsPolicy creates a RobotsPolicy
func NewRobotsPolicy(fetcher *Fetcher, rateLimiter *RateLimiter, cfg *config.Settings, log *logrus.Entry) *RobotsPolicy {
	return &RobotsPolicy{
		fetcher:     fetcher,
		rateLimiter: rateLimiter,
		cache:       make(map[string]*robotsEntry),
		cfg:         cfg,
		log:         log,
	}
}

// IsAllowed reports whether userAgent may fetch targetURL.
// Returns true when robots checking is disabled, when robots.txt could not
// be obtained (fail-open), or when the rules permit the path.
func (rp *RobotsPolicy) IsAllowed(targetURL *url.URL, userAgent string, ctx context.Context) bool {
	if !rp.cfg.RespectRobotsTxt {
		return true
	}

	entry := rp.getEntry(targetURL, ctx)
	if entry.data == nil {
		// Unreachable or malformed robots.txt: crawl proceeds
		rp.log.WithField("host", targetURL.Hostname()).Debug("No usable robots.txt, allowing (fail-open)")
		return true
	}
	return entry.data.TestAgent(targetURL.RequestURI(), userAgent)
}

// CrawlDelayFor returns the robots-declared crawl delay for the host, if
// one is cached. Never triggers a fetch: the delay only matters for hosts
// the crawl is already talking to.
func (rp *RobotsPolicy) CrawlDelayFor(host string) (time.Duration, bool) {
	rp.cacheMu.Lock()
	defer rp.cacheMu.Unlock()
	entry, found := rp.cache[host]
	if !found || rp.expired(entry) || entry.crawlDelay <= 0 {
		return 0, false
	}
	return entry.crawlDelay, true
}

// expired reports whether a cache entry is past its TTL. TTL 0 means
// entries live for the process lifetime.
func (rp *RobotsPolicy) expired(entry *robotsEntry) bool {
	return rp.cfg.RobotsCacheTTL > 0 && time.Since(entry.fetchedAt) > rp.cfg.RobotsCacheTTL
}

// getEntry returns the cached robots state for targetURL's host, fetching
// and parsing /robots.txt on a cache miss or after TTL expiry.
func (rp *RobotsPolicy) getEntry(targetURL *url.URL, ctx context.Context) *robotsEntry {
	if ctx == nil {
		ctx = context.Background()
	}
	host := targetURL.Hostname()

	rp.cacheMu.Lock()
	entry, found := rp.cache[host]
	if found && !rp.expired(entry) {
		rp.cacheMu.Unlock()
		return entry
	}
	rp.cacheMu.Unlock()

	entry = rp.fetchAndParse(targetURL, host, ctx)

	rp.cacheMu.Lock()
	rp.cache[host] = entry
	rp.cacheMu.Unlock()
	return entry
}

// fetchAndParse retrieves /robots.txt for the host. Any failure yields an
// entry with nil data, cached so the host is not re-fetched every query.
func (rp *RobotsPolicy) fetchAndParse(targetURL *url.URL, host string, ctx context.Context) *robotsEntry {
	entry := &robotsEntry{fetchedAt: time.Now()}

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		robotsURL.Scheme = "https"
	}
	robotsLog := rp.log.WithFields(logrus.Fields{"host": host, "robots_url": robotsURL.String()})
	robotsLog.Info("Fetching robots.txt...")

	rp.rateLimiter.ApplyDelay(ctx, host, rp.cfg.CrawlDelay)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL.String(), nil)
	if err != nil {
		robotsLog.Errorf("Error creating request: %v", err)
		return entry
	}
	req.Header.Set("User-Agent", rp.cfg.UserAgent) // Use default agent for robots

	resp, fetchErr := rp.fetcher.FetchWithRetry(req, ctx)
	rp.rateLimiter.UpdateLastRequestTime(host)

	if fetchErr != nil {
		if resp != nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		robotsLog.Warnf("Fetching robots.txt failed, host will be fail-open: %v", fetchErr)
		return entry
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		robotsLog.Errorf("Error reading body: %v", err)
		return entry
	}

	data, err := robotstxt.FromBytes(bodyBytes)
	if err != nil {
		robotsLog.Warnf("Error parsing content, host will be fail-open: %v", err)
		return entry
	}

	robotsLog.Info("Successfully fetched and parsed robots.txt")
	entry.data = data
	if group := data.FindGroup(rp.cfg.UserAgent); group != nil {
		entry.crawlDelay = group.CrawlDelay
	}
	return entry
}
