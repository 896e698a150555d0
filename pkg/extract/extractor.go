package extract

import (
	"bytes"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"webgrab/pkg/models"
	"webgrab/pkg/parse"
)

// Extractor pulls structured data out of fetched HTML. Extraction is
// best-effort: malformed markup yields whatever could be parsed, never
// an error, so one broken page cannot stall a crawl.
type Extractor struct {
	log *logrus.Entry
}

// NewExtractor returns a ready Extractor.
func NewExtractor(logger *logrus.Entry) *Extractor {
	return &Extractor{log: logger}
}

// Extract parses rawHTML fetched from pageURL and returns a Document
// with the title, visible text, outbound links, and meta tags.
// pageURL must be the final URL after redirects so relative links
// resolve against the right base; nil skips link extraction.
func (e *Extractor) Extract(pageURL *url.URL, rawHTML []byte) *models.Document {
	doc := &models.Document{
		RawHTML:   string(rawHTML),
		Metadata:  make(map[string]string),
		FetchedAt: time.Now(),
	}
	if pageURL != nil {
		doc.URL = pageURL.String()
	}

	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		// goquery's parser is extremely tolerant; this fires only on
		// reader errors, not on malformed HTML
		e.log.WithField("url", doc.URL).Warnf("HTML parse failed, returning raw document: %v", err)
		return doc
	}

	doc.Title = CleanText(gq.Find("title").First().Text())
	doc.Metadata = e.extractMeta(gq)
	doc.Links = e.extractLinks(gq, pageURL)
	doc.Text = e.extractText(gq)
	return doc
}

// extractMeta collects <meta name=... content=...> pairs. The first
// occurrence of a name wins.
func (e *Extractor) extractMeta(gq *goquery.Document) map[string]string {
	meta := make(map[string]string)
	gq.Find("meta[name]").Each(func(i int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" || content == "" {
			return
		}
		if _, seen := meta[name]; !seen {
			meta[name] = CleanText(content)
		}
	})
	return meta
}

// extractLinks returns absolute http(s) hrefs in document order, each
// normalized, with duplicates removed.
func (e *Extractor) extractLinks(gq *goquery.Document, base *url.URL) []string {
	if base == nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)

	gq.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			e.log.Debugf("Skipping unparseable href '%s': %v", href, err)
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}

		normalized := parse.NormalizeURL(abs)
		if !seen[normalized] {
			seen[normalized] = true
			links = append(links, normalized)
		}
	})
	return links
}

// extractText returns the page's visible text with script, style, and
// other non-content elements removed.
func (e *Extractor) extractText(gq *goquery.Document) string {
	// Clone so removal doesn't disturb the document other callers see
	body := gq.Find("body").Clone()
	if body.Length() == 0 {
		body = gq.Selection.Clone()
	}
	body.Find("script, style, noscript, iframe, template").Remove()
	return CleanText(body.Text())
}

// CleanText collapses runs of whitespace to single spaces, drops
// control characters, and trims the result.
func CleanText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimRight(b.String(), " ")
}
