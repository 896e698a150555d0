package models

import "time"

// CrawlJob describes a single crawl: where it starts, how far it may go,
// and how politely it must behave. Mutated only by the orchestrator.
type CrawlJob struct {
	ID         string        `json:"id"`          // Stable identifier derived from the seed host
	SeedURL    string        `json:"seed_url"`    // Starting point of the crawl
	ScopeHost  string        `json:"scope_host"`  // Only URLs on this host are eligible
	MaxPages   int           `json:"max_pages"`   // Page budget before the crawl pauses
	Delay      time.Duration `json:"delay"`       // Minimum delay between requests
	Timeout    time.Duration `json:"timeout"`     // Per-request timeout
	MaxRetries int           `json:"max_retries"` // Retry budget for transient fetch failures
	Blacklist  []string      `json:"blacklist,omitempty"`
	Whitelist  []string      `json:"whitelist,omitempty"`
	Status     JobStatus     `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// FrontierEntry is a discovered-but-unvisited URL awaiting a crawl visit.
// Owned exclusively by the frontier; the normalized URL is the dedup key.
type FrontierEntry struct {
	URL          string    `json:"url"`
	Depth        int       `json:"depth"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// VisitedRecord is the append-only outcome of one crawl visit.
// Every URL pulled from the frontier gets exactly one record explaining
// whether (and why not) it yielded a document.
type VisitedRecord struct {
	URL        string      `json:"url"`
	Status     FetchStatus `json:"status"`
	StatusCode int         `json:"status_code,omitempty"` // HTTP status, 0 if the request never completed
	ErrorType  string      `json:"error_type,omitempty"`  // Categorized error (on error/skipped)
	Timestamp  time.Time   `json:"timestamp"`
}

// Document is the normalized result of extracting one fetched page.
// Produced once per successful fetch; immutable thereafter.
type Document struct {
	URL       string            `json:"url"`
	Title     string            `json:"title,omitempty"`
	RawHTML   string            `json:"raw_html,omitempty"`
	Text      string            `json:"text,omitempty"`
	Links     []string          `json:"links,omitempty"` // Absolute outbound URLs in document order
	Metadata  map[string]string `json:"metadata,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// CrawlCounters tracks progress totals carried across pause/resume.
type CrawlCounters struct {
	PagesFetched    int `json:"pages_fetched"`
	PagesErrored    int `json:"pages_errored"`
	PagesSkipped    int `json:"pages_skipped"`
	LinksDiscovered int `json:"links_discovered"`
}

// CrawlSnapshot is a durable point-in-time serialization of crawl progress,
// sufficient to resume without re-fetching visited URLs or losing pending ones.
// Invariant: no URL appears in both Frontier and Visited.
type CrawlSnapshot struct {
	Job      CrawlJob        `json:"job"`
	Frontier []FrontierEntry `json:"frontier"`
	Visited  []string        `json:"visited"` // Normalized URL keys; full records live in the visited store
	Counters CrawlCounters   `json:"counters"`
	SavedAt  time.Time       `json:"saved_at"`
}
