package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"webgrab/pkg/extract"
	"webgrab/pkg/models"
	"webgrab/pkg/utils"
)

// Format identifies an output rendering for exported documents.
type Format string

const (
	FormatText     Format = "text"     // human-readable report
	FormatJSON     Format = "json"     // full documents as a JSON array
	FormatCSV      Format = "csv"      // url,title,text rows
	FormatTXT      Format = "txt"      // plain text, one page per block
	FormatMarkdown Format = "markdown" // page HTML rendered as Markdown
)

var formatExtensions = map[Format]string{
	FormatText:     "report.txt",
	FormatJSON:     "json",
	FormatCSV:      "csv",
	FormatTXT:      "txt",
	FormatMarkdown: "md",
}

// ParseFormat converts a config string to a Format.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := formatExtensions[f]; !ok {
		return "", fmt.Errorf("%w: unknown export format '%s'", utils.ErrConfigValidation, s)
	}
	return f, nil
}

// Exporter renders collected documents to files in a target directory.
// Output is deterministic: documents are sorted by URL before rendering,
// and files are written via temp-then-rename so a failed export never
// leaves a truncated file behind.
type Exporter struct {
	outDir string
	log    *logrus.Entry
}

// NewExporter creates outDir if needed and returns an Exporter.
func NewExporter(outDir string, logger *logrus.Entry) (*Exporter, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create export directory %s: %w", outDir, err)
	}
	return &Exporter{outDir: outDir, log: logger}, nil
}

// Export renders docs in each requested format. Returns the paths of the
// files written. An empty doc set still produces valid (empty) exports.
func (e *Exporter) Export(jobID string, docs []*models.Document, formats []Format) ([]string, error) {
	sorted := make([]*models.Document, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].URL < sorted[j].URL })

	stamp := time.Now().Format("20060102_150405")
	var written []string
	for _, f := range formats {
		name := fmt.Sprintf("%s_%s.%s", utils.SanitizeFilename(jobID), stamp, formatExtensions[f])
		path := filepath.Join(e.outDir, name)

		var data []byte
		var err error
		switch f {
		case FormatText:
			data, err = renderText(sorted)
		case FormatJSON:
			data, err = renderJSON(sorted)
		case FormatCSV:
			data, err = renderCSV(sorted)
		case FormatTXT:
			data, err = renderTXT(sorted)
		case FormatMarkdown:
			data, err = e.renderMarkdown(sorted)
		default:
			err = fmt.Errorf("%w: unknown export format '%s'", utils.ErrConfigValidation, f)
		}
		if err != nil {
			return written, fmt.Errorf("rendering %s export: %w", f, err)
		}

		if err := e.writeAtomic(path, data); err != nil {
			return written, err
		}
		e.log.WithFields(logrus.Fields{"format": f, "path": path, "documents": len(sorted)}).Info("Export written")
		written = append(written, path)
	}
	return written, nil
}

// writeAtomic writes data to path via a temp file and rename.
func (e *Exporter) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(e.outDir, "export-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp export file: %w", utils.ErrStorage, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing export %s: %w", utils.ErrStorage, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing export %s: %w", utils.ErrStorage, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming export %s: %w", utils.ErrStorage, path, err)
	}
	return nil
}

func renderText(docs []*models.Document) ([]byte, error) {
	var b strings.Builder
	b.WriteString("Crawl Report\n")
	b.WriteString("============\n\n")
	b.WriteString("Pages: " + strconv.Itoa(len(docs)) + "\n\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, d.URL)
		fmt.Fprintf(&b, "   Title: %s\n", d.Title)
		fmt.Fprintf(&b, "   Links: %d\n", len(d.Links))
		fmt.Fprintf(&b, "   Fetched: %s\n", d.FetchedAt.Format(time.RFC3339))
		if desc, ok := d.Metadata["description"]; ok {
			fmt.Fprintf(&b, "   Description: %s\n", desc)
		}
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

// jsonDoc omits raw HTML, which would bloat the JSON export.
type jsonDoc struct {
	URL       string            `json:"url"`
	Title     string            `json:"title"`
	Text      string            `json:"text"`
	Links     []string          `json:"links"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	FetchedAt time.Time         `json:"fetched_at"`
}

func renderJSON(docs []*models.Document) ([]byte, error) {
	out := make([]jsonDoc, len(docs))
	for i, d := range docs {
		out[i] = jsonDoc{
			URL:       d.URL,
			Title:     d.Title,
			Text:      d.Text,
			Links:     d.Links,
			Metadata:  d.Metadata,
			FetchedAt: d.FetchedAt,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling documents: %w", utils.ErrParsing, err)
	}
	return append(data, '\n'), nil
}

func renderCSV(docs []*models.Document) ([]byte, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"url", "title", "fetched_at", "link_count", "text"}); err != nil {
		return nil, err
	}
	for _, d := range docs {
		row := []string{
			d.URL,
			d.Title,
			d.FetchedAt.Format(time.RFC3339),
			strconv.Itoa(len(d.Links)),
			d.Text,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func renderTXT(docs []*models.Document) ([]byte, error) {
	var b strings.Builder
	for _, d := range docs {
		b.WriteString("URL: " + d.URL + "\n")
		b.WriteString("Title: " + d.Title + "\n\n")
		b.WriteString(d.Text)
		b.WriteString("\n\n" + strings.Repeat("-", 80) + "\n\n")
	}
	return []byte(b.String()), nil
}

func (e *Exporter) renderMarkdown(docs []*models.Document) ([]byte, error) {
	var b strings.Builder
	for _, d := range docs {
		md, err := extract.Markdown(d.RawHTML)
		if err != nil {
			e.log.WithField("url", d.URL).Warnf("Markdown conversion failed, falling back to plain text: %v", err)
			md = d.Text
		}
		b.WriteString("# " + d.Title + "\n\n")
		b.WriteString("<" + d.URL + ">\n\n")
		b.WriteString(md)
		b.WriteString("\n\n---\n\n")
	}
	return []byte(b.String()), nil
}
