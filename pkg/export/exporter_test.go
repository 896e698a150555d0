package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webgrab/pkg/models"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func sampleDocs() []*models.Document {
	fetched := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return []*models.Document{
		{
			URL:       "https://example.com/b",
			Title:     "Page B",
			RawHTML:   "<h1>B</h1><p>second page</p>",
			Text:      "B second page",
			Links:     []string{"https://example.com/a"},
			FetchedAt: fetched,
		},
		{
			URL:       "https://example.com/a",
			Title:     "Page A",
			RawHTML:   "<h1>A</h1><p>first page</p>",
			Text:      "A first page",
			Metadata:  map[string]string{"description": "the first page"},
			FetchedAt: fetched,
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, valid := range []string{"text", "json", "csv", "txt", "markdown", " JSON "} {
		_, err := ParseFormat(valid)
		assert.NoError(t, err, valid)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, testLogger())
	require.NoError(t, err)

	paths, err := e.Export("example.com", sampleDocs(), []Format{FormatJSON})
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)

	// Sorted by URL regardless of input order
	assert.Equal(t, "https://example.com/a", decoded[0]["url"])
	assert.Equal(t, "https://example.com/b", decoded[1]["url"])

	// Raw HTML is not in the JSON export
	_, hasRaw := decoded[0]["raw_html"]
	assert.False(t, hasRaw)
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, testLogger())
	require.NoError(t, err)

	paths, err := e.Export("example.com", sampleDocs(), []Format{FormatCSV})
	require.NoError(t, err)

	f, err := os.Open(paths[0])
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "header plus two rows")
	assert.Equal(t, []string{"url", "title", "fetched_at", "link_count", "text"}, rows[0])
	assert.Equal(t, "https://example.com/a", rows[1][0])
	assert.Equal(t, "Page A", rows[1][1])
	assert.Equal(t, "1", rows[2][3], "page B has one link")
}

func TestExportTXTAndText(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, testLogger())
	require.NoError(t, err)

	paths, err := e.Export("example.com", sampleDocs(), []Format{FormatTXT, FormatText})
	require.NoError(t, err)
	require.Len(t, paths, 2)

	txt, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(txt), "A first page")
	assert.Contains(t, string(txt), "B second page")

	report, err := os.ReadFile(paths[1])
	require.NoError(t, err)
	assert.Contains(t, string(report), "Pages: 2")
	assert.Contains(t, string(report), "Description: the first page")
}

func TestExportMarkdown(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, testLogger())
	require.NoError(t, err)

	paths, err := e.Export("example.com", sampleDocs(), []Format{FormatMarkdown})
	require.NoError(t, err)

	md, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Page A")
	assert.Contains(t, string(md), "first page")
	assert.True(t, strings.HasSuffix(paths[0], ".md"))
}

func TestExportEmptyDocs(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, testLogger())
	require.NoError(t, err)

	paths, err := e.Export("example.com", nil, []Format{FormatJSON})
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var decoded []any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Empty(t, decoded)
}

func TestExportDeterministic(t *testing.T) {
	dir := t.TempDir()
	e, err := NewExporter(dir, testLogger())
	require.NoError(t, err)

	first, err := e.Export("job-a", sampleDocs(), []Format{FormatJSON})
	require.NoError(t, err)
	second, err := e.Export("job-b", sampleDocs(), []Format{FormatJSON})
	require.NoError(t, err)

	a, _ := os.ReadFile(first[0])
	b, _ := os.ReadFile(second[0])
	assert.Equal(t, string(a), string(b), "same documents render identically")
}

func TestWriteAndReadResults(t *testing.T) {
	dir := t.TempDir()

	for _, doc := range sampleDocs() {
		path, err := WriteResult(dir, doc)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(path, ".json"))
	}

	docs, err := ReadResults(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "https://example.com/a", docs[0].URL, "results come back sorted by URL")
	assert.Equal(t, "Page B", docs[1].Title)
}

func TestWriteResultOverwrites(t *testing.T) {
	dir := t.TempDir()
	doc := sampleDocs()[0]

	_, err := WriteResult(dir, doc)
	require.NoError(t, err)

	doc.Title = "Updated"
	_, err = WriteResult(dir, doc)
	require.NoError(t, err)

	docs, err := ReadResults(dir)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Updated", docs[0].Title)
}

func TestReadResultsMissingDir(t *testing.T) {
	docs, err := ReadResults(filepath.Join(t.TempDir(), "absent"))
	assert.NoError(t, err)
	assert.Empty(t, docs)
}
