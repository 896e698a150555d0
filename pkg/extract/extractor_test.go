package extract

import (
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExtractor() *Extractor {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewExtractor(logrus.NewEntry(log))
}

func pageURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>  Docs &amp; Guides  </title>
  <meta name="description" content="All the docs.">
  <meta name="keywords" content="docs,guides">
  <meta name="description" content="duplicate, should be ignored">
  <meta property="og:title" content="no name attr, skipped">
</head>
<body>
  <script>var tracking = "noise";</script>
  <style>.hidden { display: none; }</style>
  <h1>Welcome</h1>
  <p>Read the <a href="/guide">guide</a> or the
     <a href="https://example.com/api/">API reference</a>.</p>
  <a href="#top">back to top</a>
  <a href="mailto:team@example.com">email us</a>
  <a href="https://other.net/external">external</a>
  <a href="/guide">guide again</a>
  <noscript>Enable JavaScript</noscript>
</body>
</html>`

func TestExtract(t *testing.T) {
	e := testExtractor()
	doc := e.Extract(pageURL(t, "https://example.com/start"), []byte(samplePage))

	t.Run("title is cleaned", func(t *testing.T) {
		assert.Equal(t, "Docs & Guides", doc.Title)
	})

	t.Run("metadata keeps first occurrence", func(t *testing.T) {
		assert.Equal(t, "All the docs.", doc.Metadata["description"])
		assert.Equal(t, "docs,guides", doc.Metadata["keywords"])
	})

	t.Run("links are absolute, deduped, in order", func(t *testing.T) {
		assert.Equal(t, []string{
			"https://example.com/guide",
			"https://example.com/api",
			"https://other.net/external",
		}, doc.Links)
	})

	t.Run("text excludes script style and noscript", func(t *testing.T) {
		assert.Contains(t, doc.Text, "Welcome")
		assert.Contains(t, doc.Text, "Read the guide")
		assert.NotContains(t, doc.Text, "tracking")
		assert.NotContains(t, doc.Text, "display: none")
		assert.NotContains(t, doc.Text, "Enable JavaScript")
	})

	t.Run("raw HTML is preserved", func(t *testing.T) {
		assert.Equal(t, samplePage, doc.RawHTML)
	})
}

func TestExtractMalformedHTML(t *testing.T) {
	e := testExtractor()
	doc := e.Extract(pageURL(t, "https://example.com/bad"), []byte("<p>unclosed <b>bold <a href='/x'>link"))

	// Best-effort: whatever parsed is returned, never an error
	assert.Contains(t, doc.Text, "unclosed")
	assert.Equal(t, []string{"https://example.com/x"}, doc.Links)
}

func TestExtractEmptyBody(t *testing.T) {
	e := testExtractor()
	doc := e.Extract(pageURL(t, "https://example.com/empty"), nil)
	assert.Equal(t, "https://example.com/empty", doc.URL)
	assert.Empty(t, doc.Links)
	assert.Empty(t, doc.Title)
}

func TestExtractNilPageURL(t *testing.T) {
	e := testExtractor()
	doc := e.Extract(nil, []byte(`<html><head><title>Orphan</title></head><body><a href="/x">x</a></body></html>`))

	// Without a base URL, relative links cannot resolve
	assert.Empty(t, doc.URL)
	assert.Empty(t, doc.Links)
	assert.Equal(t, "Orphan", doc.Title)
}

func TestExtractRelativeLinksUseBase(t *testing.T) {
	e := testExtractor()
	html := `<a href="../up">up</a><a href="sibling">sib</a>`
	doc := e.Extract(pageURL(t, "https://example.com/docs/deep/page"), []byte(html))
	assert.Equal(t, []string{
		"https://example.com/docs/up",
		"https://example.com/docs/deep/sibling",
	}, doc.Links)
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"collapses whitespace", "a  b\t\tc\n\nd", "a b c d"},
		{"trims", "  hello  ", "hello"},
		{"drops control chars", "a\x00b\x1Fc", "abc"},
		{"empty", "", ""},
		{"unicode preserved", "café — menu", "café — menu"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.input))
		})
	}
}

func TestMarkdown(t *testing.T) {
	html := `<h1>Title</h1><p>Some <strong>bold</strong> text and a <a href="https://example.com/x">link</a>.</p>`
	md, err := Markdown(html)
	require.NoError(t, err)
	assert.Contains(t, md, "# Title")
	assert.Contains(t, md, "**bold**")
	assert.Contains(t, md, "[link](https://example.com/x)")
	assert.False(t, strings.Contains(md, "<p>"), "no residual HTML tags")
}
