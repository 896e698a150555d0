package config

import (
	"fmt"
	"net/url"
	"time"

	"webgrab/pkg/utils"
)

// Known export format names, checked during validation.
var validExportFormats = map[string]bool{
	"text":     true,
	"json":     true,
	"csv":      true,
	"txt":      true,
	"markdown": true,
}

// Validate checks Settings fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *Settings) Validate() (warnings []string, err error) {
	// CrawlDelay
	if c.CrawlDelay < 0 {
		warnings = append(warnings, "crawl_delay cannot be negative, defaulting to 2s")
		c.CrawlDelay = 2 * time.Second
	}

	// MaxPages
	if c.MaxPages <= 0 {
		warnings = append(warnings, "max_pages should be > 0, defaulting to 100")
		c.MaxPages = 100
	}

	// Timeout
	if c.Timeout <= 0 {
		warnings = append(warnings, "timeout should be > 0, defaulting to 15s")
		c.Timeout = 15 * time.Second
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 1 * time.Second
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 30 * time.Second
		}
	}
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// SnapshotEvery
	if c.SnapshotEvery <= 0 {
		c.SnapshotEvery = 20
	}

	// RobotsCacheTTL
	if c.RobotsCacheTTL < 0 {
		warnings = append(warnings, "robots_cache_ttl cannot be negative, caching for process lifetime")
		c.RobotsCacheTTL = 0
	}

	// UserAgent
	if c.UserAgent == "" {
		warnings = append(warnings, "user_agent is empty, defaulting to 'webgrab/1.0'")
		c.UserAgent = "webgrab/1.0"
	}

	// Directories
	if c.StateDir == "" {
		c.StateDir = "./crawl_state"
	}
	if c.ResultsDir == "" {
		c.ResultsDir = "./results"
	}
	if c.ExportsDir == "" {
		c.ExportsDir = "./exports"
	}

	// ScrapeConcurrency
	if c.ScrapeConcurrency <= 0 {
		c.ScrapeConcurrency = 4
	}

	// ExportFormats
	if len(c.ExportFormats) == 0 {
		warnings = append(warnings, "export_formats is empty, defaulting to [json csv txt]")
		c.ExportFormats = []string{"json", "csv", "txt"}
	}
	for _, f := range c.ExportFormats {
		if !validExportFormats[f] {
			return warnings, fmt.Errorf("%w: unknown export format '%s'", utils.ErrConfigValidation, f)
		}
	}

	// Filter patterns must compile
	if _, err := utils.CompileURLPatterns(c.Blacklist); err != nil {
		return warnings, fmt.Errorf("blacklist: %w", err)
	}
	if _, err := utils.CompileURLPatterns(c.Whitelist); err != nil {
		return warnings, fmt.Errorf("whitelist: %w", err)
	}

	// Proxies must be absolute URLs
	if c.UseProxies {
		if len(c.Proxies) == 0 {
			warnings = append(warnings, "use_proxies is true but no proxies configured, disabling")
			c.UseProxies = false
		}
		for _, p := range c.Proxies {
			if _, perr := url.ParseRequestURI(p); perr != nil {
				return warnings, fmt.Errorf("%w: invalid proxy URL '%s': %v", utils.ErrConfigValidation, p, perr)
			}
		}
	}

	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *Settings) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
