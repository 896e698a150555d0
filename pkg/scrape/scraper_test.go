package scrape

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgrab/pkg/config"
	"webgrab/pkg/extract"
	"webgrab/pkg/fetch"
	"webgrab/pkg/utils"
)

func testScraper(t *testing.T, cfg *config.Settings, withRobots bool) *Scraper {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := log.WithField("component", "scrape")

	agents := fetch.NewUserAgentPicker(cfg.UserAgent, nil, false)
	client := &http.Client{Timeout: 5 * time.Second}
	fetcher := fetch.NewFetcher(client, cfg, agents, nil, log)
	limiter := fetch.NewRateLimiter(0, log)

	var robots *fetch.RobotsPolicy
	if withRobots {
		robots = fetch.NewRobotsPolicy(fetcher, limiter, cfg, entry)
	}
	return NewScraper(cfg, fetcher, robots, limiter, extract.NewExtractor(entry), entry)
}

func fastSettings() *config.Settings {
	cfg := config.Default()
	cfg.MaxRetries = 1
	cfg.InitialRetryDelay = 1 * time.Millisecond
	cfg.MaxRetryDelay = 5 * time.Millisecond
	cfg.CrawlDelay = 0
	cfg.RotateUserAgents = false
	cfg.RespectRobotsTxt = false
	cfg.ScrapeConcurrency = 4
	return cfg
}

func TestScrapeSingleURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>About Us</title></head><body><p>We make things.</p><a href="/team">Team</a></body></html>`))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := testScraper(t, fastSettings(), false)

	doc, err := s.Scrape(context.Background(), srv.URL+"/about", dir)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/about", doc.URL)
	assert.Equal(t, "About Us", doc.Title)
	assert.Contains(t, doc.Text, "We make things.")
	require.Len(t, doc.Links, 1)
	assert.Equal(t, srv.URL+"/team", doc.Links[0])

	// Result persisted to the session directory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScrapeRejectsBadURL(t *testing.T) {
	s := testScraper(t, fastSettings(), false)

	_, err := s.Scrape(context.Background(), "not a url", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrParsing)

	_, err = s.Scrape(context.Background(), "ftp://example.com/file", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestScrapeRobotsDisallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.Write([]byte("<html><body>secret</body></html>"))
	}))
	defer srv.Close()

	cfg := fastSettings()
	cfg.RespectRobotsTxt = true
	s := testScraper(t, cfg, true)

	_, err := s.Scrape(context.Background(), srv.URL+"/private/report", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrRobotsDisallowed)

	doc, err := s.Scrape(context.Background(), srv.URL+"/public", "")
	require.NoError(t, err)
	assert.Contains(t, doc.Text, "secret")
}

func TestScrapeAll(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/broken":
			http.NotFound(w, r)
		default:
			w.Write([]byte(`<html><head><title>Page ` + r.URL.Path + `</title></head><body>content</body></html>`))
		}
	}))
	defer srv.Close()

	cfg := fastSettings()
	cfg.ResultsDir = t.TempDir()

	listPath := filepath.Join(t.TempDir(), "urls.txt")
	list := "# pages to grab\n" +
		srv.URL + "/one\n" +
		"\n" +
		srv.URL + "/two\n" +
		srv.URL + "/broken\n"
	require.NoError(t, os.WriteFile(listPath, []byte(list), 0o644))

	s := testScraper(t, cfg, false)
	res, err := s.ScrapeAll(context.Background(), listPath)
	require.NoError(t, err)

	assert.NotEmpty(t, res.SessionID)
	assert.Len(t, res.Documents, 2)
	require.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed, srv.URL+"/broken")
	assert.Equal(t, "HTTP_404", res.Failed[srv.URL+"/broken"])

	// Each successful page saved under the session directory.
	entries, err := os.ReadDir(res.ResultsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestScrapeAllEmptyList(t *testing.T) {
	listPath := filepath.Join(t.TempDir(), "urls.txt")
	require.NoError(t, os.WriteFile(listPath, []byte("# only comments\n\n"), 0o644))

	s := testScraper(t, fastSettings(), false)
	_, err := s.ScrapeAll(context.Background(), listPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrConfigValidation)
}

func TestScrapeAllMissingList(t *testing.T) {
	s := testScraper(t, fastSettings(), false)
	_, err := s.ScrapeAll(context.Background(), filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestReadURLList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	content := "https://a.example/\n# skip me\n\n  https://b.example/page  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	urls, err := readURLList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example/", "https://b.example/page"}, urls)
}
