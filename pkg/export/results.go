package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"webgrab/pkg/models"
	"webgrab/pkg/utils"
)

// WriteResult saves a single document as a JSON file under dir, named
// after its sanitized URL. Returns the path written. Re-fetching the same
// URL overwrites the previous result.
func WriteResult(dir string, doc *models.Document) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("cannot create results directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("%w: marshaling result for '%s': %w", utils.ErrParsing, doc.URL, err)
	}

	name := utils.SanitizeFilename(strings.TrimPrefix(strings.TrimPrefix(doc.URL, "https://"), "http://")) + ".json"
	path := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, "result-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: creating temp result file: %w", utils.ErrStorage, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: writing result %s: %w", utils.ErrStorage, path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: closing result %s: %w", utils.ErrStorage, path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("%w: renaming result %s: %w", utils.ErrStorage, path, err)
	}
	return path, nil
}

// ReadResults loads every result JSON file under dir (recursively),
// sorted by URL. Files that fail to decode are skipped.
func ReadResults(dir string) ([]*models.Document, error) {
	var docs []*models.Document
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		var doc models.Document
		if json.Unmarshal(data, &doc) != nil || doc.URL == "" {
			return nil // not a result file
		}
		docs = append(docs, &doc)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reading results from %s: %w", utils.ErrStorage, dir, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].URL < docs[j].URL })
	return docs, nil
}
