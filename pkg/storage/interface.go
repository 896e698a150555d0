package storage

import (
	"context"
	"time"

	"webgrab/pkg/models"
)

// VisitedStore persists per-URL visit outcomes for a crawl so that a
// resumed run can skip work already done and reports can be produced
// after the fact.
type VisitedStore interface {
	// Record stores (or overwrites) the outcome for a normalized URL.
	Record(normalizedURL string, rec *models.VisitedRecord) error

	// Get returns the stored record for a normalized URL, or found=false.
	Get(normalizedURL string) (rec *models.VisitedRecord, found bool, err error)

	// Has reports whether any record exists for the normalized URL.
	Has(normalizedURL string) (bool, error)

	// Count returns the number of stored records.
	Count() (int, error)

	// Each calls fn for every stored record in key order. Iteration stops
	// if fn returns an error, which is returned to the caller.
	Each(fn func(rec *models.VisitedRecord) error) error

	// WriteVisitedLog writes all visited URLs, one per line, to filePath.
	WriteVisitedLog(filePath string) error

	// RunGC runs the store's garbage collection loop until ctx is cancelled.
	RunGC(ctx context.Context, interval time.Duration)

	// Close releases the underlying database.
	Close() error
}
