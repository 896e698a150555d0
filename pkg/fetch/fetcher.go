package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"webgrab/pkg/config"
	"webgrab/pkg/utils"
)

// maxBodyBytes caps how much of a response body Fetch will read.
const maxBodyBytes = 10 << 20 // 10MB

// Result is the outcome of a successful page fetch.
type Result struct {
	StatusCode int
	Body       []byte
	FinalURL   *url.URL // URL after redirects
	FetchedAt  time.Time
}

// Fetcher handles making HTTP requests with configured retry logic, using an underlying http.Client
type Fetcher struct {
	client  *http.Client
	cfg     *config.Settings // Needed primarily for retry settings
	agents  *UserAgentPicker
	proxies *ProxyPool // nil when proxying is disabled
	log     *logrus.Logger
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, cfg *config.Settings, agents *UserAgentPicker, proxies *ProxyPool, log *logrus.Logger) *Fetcher {
	return &Fetcher{
		client:  client,
		cfg:     cfg,
		agents:  agents,
		proxies: proxies,
		log:     log,
	}
}

// Fetch performs a GET against rawURL with standard headers, retries, and
// body reading. On a non-2xx terminal status the typed error still carries
// the status code via the Result.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request for '%s': %w", utils.ErrRequestCreation, rawURL, err)
	}
	req.Header.Set("User-Agent", f.agents.Pick())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, fetchErr := f.FetchWithRetry(req, ctx)
	if fetchErr != nil {
		if resp != nil { // 4xx path returns an open body alongside the error
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)
			return &Result{StatusCode: resp.StatusCode, FinalURL: resp.Request.URL, FetchedAt: time.Now()}, fetchErr
		}
		return nil, fetchErr
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		return nil, fmt.Errorf("%w: reading body from '%s': %w", utils.ErrResponseBodyRead, rawURL, readErr)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       body,
		FinalURL:   resp.Request.URL,
		FetchedAt:  time.Now(),
	}, nil
}

// FetchWithRetry performs an HTTP request associated with the provided context
// It implements a retry mechanism with exponential backoff and jitter for transient network errors and specific HTTP status codes (5xx, 429)
func (f *Fetcher) FetchWithRetry(req *http.Request, ctx context.Context) (*http.Response, error) {
	var lastErr error              // Stores the error from the *last* failed attempt in the loop
	var currentResp *http.Response // Stores the response from the *current* attempt (potentially failed)
	var retryAfter time.Duration   // Server-requested delay from a 429 Retry-After header

	reqLog := f.log.WithField("url", req.URL.String())

	maxRetries := f.cfg.MaxRetries
	initialRetryDelay := f.cfg.InitialRetryDelay
	maxRetryDelay := f.cfg.MaxRetryDelay

	// Retry loop: Try up to maxRetries+1 times (initial attempt + retries)
	for attempt := 0; attempt <= maxRetries; attempt++ {

		// Check if the context has been cancelled *before* making the attempt or sleeping
		select {
		case <-ctx.Done():
			reqLog.Warnf("Context cancelled before attempt %d: %v", attempt, ctx.Err())
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", ctx.Err(), lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", ctx.Err())
		default:
		}

		// Apply delay only *before* retry attempts (not before the first attempt)
		if attempt > 0 {
			finalDelay := retryAfter // Honor Retry-After from the previous 429, if any
			if finalDelay <= 0 {
				// Calculate delay: initial * 2^(attempt-1), capped by maxRetryDelay
				backoff := float64(initialRetryDelay) * math.Pow(2, float64(attempt-1))
				delay := time.Duration(backoff)
				if delay <= 0 || delay > maxRetryDelay {
					delay = maxRetryDelay
				}

				// Add jitter: +/- 10% of the calculated delay
				var jitter time.Duration
				if jitterRange := int64(delay) / 5; jitterRange > 0 { // Avoid Int63n(0)
					jitter = time.Duration(rand.Int63n(jitterRange)) - (delay / 10)
				}
				finalDelay = delay + jitter
				if finalDelay < 0 {
					finalDelay = 0
				}
			}
			retryAfter = 0

			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": finalDelay}).Warn("Retrying request...")

			select {
			case <-time.After(finalDelay):
			case <-ctx.Done():
				reqLog.Warnf("Context cancelled during retry sleep: %v", ctx.Err())
				if lastErr != nil {
					return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
				}
				return nil, fmt.Errorf("context cancelled during retry delay: %w", ctx.Err())
			}
		}

		// Execute the request using the underlying HTTP client
		reqWithCtx := req.WithContext(ctx)
		currentResp, lastErr = f.client.Do(reqWithCtx)

		// Network-level errors (DNS, TCP, TLS) occur before any HTTP response
		if lastErr != nil {
			if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
				reqLog.Warnf("Context cancelled/timed out during HTTP request execution: %v", lastErr)
				if currentResp != nil {
					io.Copy(io.Discard, currentResp.Body)
					currentResp.Body.Close()
				}
				// Do not retry context errors
				return nil, lastErr
			}

			// Connection failure through a proxy: fail over to the next pool entry
			if f.proxies != nil {
				f.proxies.Advance()
			}

			reqLog.WithField("attempt", attempt).Errorf("Network error: %v", lastErr)
			if currentResp != nil {
				io.Copy(io.Discard, currentResp.Body)
				currentResp.Body.Close()
			}
			continue
		}

		statusCode := currentResp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": statusCode, "status": currentResp.Status, "attempt": attempt})

		switch {
		case statusCode >= 200 && statusCode < 300:
			// Success (2xx). Caller must close body
			resLog.Debug("Successfully fetched")
			return currentResp, nil

		case statusCode >= 500:
			// Server Error (5xx). Potentially transient, so retry
			resLog.Warn("Server error, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrServerHTTPError, statusCode, currentResp.Status)
			io.Copy(io.Discard, currentResp.Body)
			currentResp.Body.Close()
			continue

		case statusCode == http.StatusTooManyRequests:
			// Rate limited by the server; retry after the server-requested delay when given
			retryAfter = parseRetryAfter(currentResp.Header.Get("Retry-After"), maxRetryDelay)
			resLog.WithField("retry_after", retryAfter).Warn("Received 429 Too Many Requests, retrying...")
			lastErr = fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)
			io.Copy(io.Discard, currentResp.Body)
			currentResp.Body.Close()
			continue

		case statusCode >= 400 && statusCode < 500:
			// Other client errors (4xx, excluding 429) are not retryable
			resLog.Warn("Client error (4xx), not retrying")
			// *** Caller MUST close currentResp.Body in this case ***
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrClientHTTPError, statusCode, currentResp.Status)

		default:
			// Other non-2xx statuses (e.g., 3xx if redirects were disabled)
			resLog.Warnf("Non-retryable/unexpected status: %d", statusCode)
			// *** Caller MUST close currentResp.Body in this case ***
			return currentResp, fmt.Errorf("%w: status %d %s", utils.ErrOtherHTTPError, statusCode, currentResp.Status)
		}
	}

	// All attempts (initial + retries) have failed
	reqLog.Errorf("All %d fetch retries failed. Last error: %v", maxRetries+1, lastErr)
	if currentResp != nil {
		io.Copy(io.Discard, currentResp.Body)
		currentResp.Body.Close()
	}

	if lastErr != nil {
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return nil, lastErr
		}
		return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
	}

	return nil, utils.ErrRetryFailed
}

// parseRetryAfter interprets a Retry-After header value (delay-seconds or
// HTTP-date), capped at max. Returns 0 when absent or unparseable.
func parseRetryAfter(header string, max time.Duration) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		d := time.Duration(secs) * time.Second
		if d > max {
			return max
		}
		return d
	}
	if at, err := http.ParseTime(header); err == nil {
		d := time.Until(at)
		if d < 0 {
			return 0
		}
		if d > max {
			return max
		}
		return d
	}
	return 0
}
