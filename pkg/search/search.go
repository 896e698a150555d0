package search

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"webgrab/pkg/export"
	"webgrab/pkg/utils"
)

const snippetRadius = 50 // characters of context on each side of a match

// Match is one occurrence of a query inside a stored document.
type Match struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet"`
}

// Options controls a search over stored results.
type Options struct {
	CaseSensitive bool
	Host          string // restrict matches to documents from this host
	MaxPerPage    int    // cap occurrences reported per document, 0 = all
}

// Searcher runs substring queries over the extracted text of documents
// saved in a results directory.
type Searcher struct {
	resultsDir string
	log        *logrus.Entry
}

// NewSearcher returns a Searcher over resultsDir.
func NewSearcher(resultsDir string, logger *logrus.Entry) *Searcher {
	return &Searcher{resultsDir: resultsDir, log: logger}
}

// Search returns all occurrences of query in stored documents, with a
// snippet of surrounding text for each. Results come back in URL order
// because the underlying documents are read sorted.
func (s *Searcher) Search(query string, opts Options) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty search query", utils.ErrConfigValidation)
	}

	docs, err := export.ReadResults(s.resultsDir)
	if err != nil {
		return nil, err
	}

	needle := query
	if !opts.CaseSensitive {
		needle = strings.ToLower(query)
	}
	var matches []Match
	for _, doc := range docs {
		if opts.Host != "" && !docHasHost(doc.URL, opts.Host) {
			continue
		}
		// Snippets are taken from the same string the index was computed
		// in: case folding can change byte offsets, so positions found in
		// the lowered text must not be used to slice the original.
		haystack := doc.Text
		if !opts.CaseSensitive {
			haystack = strings.ToLower(haystack)
		}

		count := 0
		for offset := 0; ; {
			idx := strings.Index(haystack[offset:], needle)
			if idx < 0 {
				break
			}
			pos := offset + idx
			matches = append(matches, Match{
				URL:     doc.URL,
				Title:   doc.Title,
				Snippet: snippet(haystack, pos, len(needle)),
			})
			count++
			offset = pos + len(needle)
			if opts.MaxPerPage > 0 && count >= opts.MaxPerPage {
				break
			}
		}
	}

	s.log.WithFields(logrus.Fields{
		"query":   query,
		"scanned": len(docs),
		"matches": len(matches),
	}).Info("Search finished")
	return matches, nil
}

// snippet extracts text around [pos, pos+n), widening to snippetRadius
// characters each side and avoiding mid-rune cuts.
func snippet(text string, pos, n int) string {
	start := pos - snippetRadius
	if start < 0 {
		start = 0
	}
	if start > len(text) {
		start = len(text)
	}
	end := pos + n + snippetRadius
	if end > len(text) {
		end = len(text)
	}
	if end < start {
		end = start
	}
	// Back off to rune boundaries
	for start > 0 && !utf8RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8RuneStart(text[end]) {
		end++
	}

	out := strings.TrimSpace(text[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out = out + "..."
	}
	return out
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func docHasHost(docURL, host string) bool {
	rest, ok := strings.CutPrefix(docURL, "https://")
	if !ok {
		rest, ok = strings.CutPrefix(docURL, "http://")
		if !ok {
			return false
		}
	}
	hostPart := rest
	if i := strings.IndexAny(rest, "/:?#"); i >= 0 {
		hostPart = rest[:i]
	}
	return strings.EqualFold(hostPart, host)
}

// WriteReport writes matches as a plain-text report to path.
func WriteReport(path, query string, matches []Match) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Search Report\n=============\n\n")
	fmt.Fprintf(&b, "Query:   %q\n", query)
	fmt.Fprintf(&b, "Matches: %d\n", len(matches))
	fmt.Fprintf(&b, "Date:    %s\n\n", time.Now().Format(time.RFC3339))
	for i, m := range matches {
		fmt.Fprintf(&b, "%d. %s\n", i+1, m.URL)
		if m.Title != "" {
			fmt.Fprintf(&b, "   Title: %s\n", m.Title)
		}
		fmt.Fprintf(&b, "   %s\n\n", m.Snippet)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("%w: writing search report '%s': %w", utils.ErrStorage, path, err)
	}
	return nil
}
