package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the global application configuration, loaded once at
// process start and passed explicitly into each component's constructor.
type Settings struct {
	// Politeness
	RespectRobotsTxt bool          `yaml:"respect_robots_txt"`
	CrawlDelay       time.Duration `yaml:"crawl_delay"`
	RobotsCacheTTL   time.Duration `yaml:"robots_cache_ttl,omitempty"` // 0 = cache for process lifetime

	// Crawl limits
	MaxPages      int           `yaml:"max_pages"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries,omitempty"`
	SnapshotEvery int           `yaml:"snapshot_every,omitempty"` // Snapshot cadence in fetched pages

	// Identity
	UserAgent        string   `yaml:"user_agent"`
	RotateUserAgents bool     `yaml:"rotate_user_agents,omitempty"`
	UserAgentPool    []string `yaml:"user_agent_pool,omitempty"`

	// URL filters (shell-style wildcard patterns matched against full URLs)
	Blacklist []string `yaml:"blacklist,omitempty"`
	Whitelist []string `yaml:"whitelist,omitempty"`

	// Export
	ExportFormats []string `yaml:"export_formats,omitempty"`

	// Proxies
	UseProxies bool     `yaml:"use_proxies,omitempty"`
	Proxies    []string `yaml:"proxies,omitempty"`

	// State persistence
	SaveCrawlState bool   `yaml:"save_crawl_state"`
	StateDir       string `yaml:"state_dir,omitempty"`
	ResultsDir     string `yaml:"results_dir,omitempty"`
	ExportsDir     string `yaml:"exports_dir,omitempty"`

	// Retry backoff
	InitialRetryDelay time.Duration `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay     time.Duration `yaml:"max_retry_delay,omitempty"`

	// Batch scraping
	ScrapeConcurrency int `yaml:"scrape_concurrency,omitempty"`

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// Default returns the built-in settings used when no config file exists.
func Default() *Settings {
	return &Settings{
		RespectRobotsTxt: true,
		CrawlDelay:       2 * time.Second,
		MaxPages:         100,
		Timeout:          15 * time.Second,
		MaxRetries:       3,
		UserAgent:        "webgrab/1.0",
		ExportFormats:    []string{"json", "csv", "txt"},
		RotateUserAgents: true,
		SaveCrawlState:   true,
	}
}

// Load reads settings from a YAML file. A missing file is not an error:
// defaults are returned so the tool works out of the box.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file '%s': %w", path, err)
	}
	return cfg, nil
}
