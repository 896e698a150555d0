package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"webgrab/pkg/models"
	"webgrab/pkg/utils"
)

const (
	visitKeyPrefix = "visit:"     // Prefix for visited URL keys in DB
	visitedDBDir   = "visited_db" // Subdirectory name within stateDir for Badger DB files
)

// BadgerStore implements the VisitedStore interface using BadgerDB
type BadgerStore struct {
	db       *badger.DB
	log      *logrus.Entry
	ctx      context.Context // Parent context
	keyCount atomic.Int64    // Cached key count for O(1) Count
}

// NewBadgerStore initializes and returns a new BadgerStore. The database
// lives under stateDir in a per-job subdirectory derived from jobID. When
// fresh is true any existing database for the job is removed first.
func NewBadgerStore(ctx context.Context, stateDir, jobID string, fresh bool, logger *logrus.Entry) (*BadgerStore, error) {
	store := &BadgerStore{
		log: logger,
		ctx: ctx,
	}

	dbDirName := utils.SanitizeFilename(jobID) + "_" + visitedDBDir
	dbPath := filepath.Join(stateDir, dbDirName)

	if fresh {
		logger.Warnf("Starting fresh crawl. REMOVING existing visited database: %s", dbPath)
		if err := os.RemoveAll(dbPath); err != nil {
			// Log error but attempt to continue; Badger might recover or create new files
			logger.Errorf("Failed to remove existing visited database %s: %v", dbPath, err)
		}
	}

	logger.Infof("Initializing visited URL database at: %s (fresh: %v)", dbPath, fresh)

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(newBadgerLogrus(logger.WithField("component", "badgerdb"))).
		WithNumVersionsToKeep(1) // Only the latest record per URL matters

	var err error
	store.db, err = badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", dbPath, err)
	}

	// Initialize key count from existing data (matters for resume mode)
	if !fresh {
		count, err := store.countKeys()
		if err != nil {
			logger.Warnf("Failed to count existing keys on open: %v", err)
		} else {
			store.keyCount.Store(int64(count))
			logger.Infof("Loaded existing key count: %d", count)
		}
	}

	logger.Info("Visited URL database initialized successfully.")
	return store, nil
}

// countKeys performs a one-time full key scan (used only during initialization).
func (s *BadgerStore) countKeys() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

const maxConflictRetries = 10

// dbUpdate wraps db.Update with a retry loop for BadgerDB transaction conflicts.
// Concurrent MVCC transactions on overlapping keys can return badger.ErrConflict;
// these resolve in microseconds, so a tight retry loop is sufficient.
func (s *BadgerStore) dbUpdate(fn func(txn *badger.Txn) error) error {
	for i := range maxConflictRetries {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.log.Debugf("BadgerDB transaction conflict (attempt %d/%d), retrying", i+1, maxConflictRetries)
	}
	return fmt.Errorf("%w: transaction conflict not resolved after %d retries", utils.ErrStorage, maxConflictRetries)
}

// Record implements the VisitedStore interface
func (s *BadgerStore) Record(normalizedURL string, rec *models.VisitedRecord) error {
	if s.db == nil {
		return errors.New("visited DB not initialized")
	}
	key := []byte(visitKeyPrefix + normalizedURL)

	recBytes, errJson := json.Marshal(rec)
	if errJson != nil {
		wrappedErr := fmt.Errorf("%w: failed to marshal VisitedRecord for key '%s': %w", utils.ErrParsing, string(key), errJson)
		s.log.Error(wrappedErr)
		return wrappedErr
	}

	isNew := false
	err := s.dbUpdate(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			isNew = true
		}
		e := badger.NewEntry(key, recBytes)
		return txn.SetEntry(e)
	})

	if err != nil {
		s.log.WithField("key", string(key)).Errorf("DB Update error in Record: %v", err)
		return fmt.Errorf("%w: recording visit for key '%s': %w", utils.ErrStorage, string(key), err)
	}
	if isNew {
		s.keyCount.Add(1)
	}

	s.log.Debugf("Recorded visit for key '%s' (status: %s)", string(key), rec.Status)
	return nil
}

// Get implements the VisitedStore interface
func (s *BadgerStore) Get(normalizedURL string) (*models.VisitedRecord, bool, error) {
	var rec *models.VisitedRecord
	found := false
	key := []byte(visitKeyPrefix + normalizedURL)

	errView := s.db.View(func(txn *badger.Txn) error {
		item, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil // Not found is not an error for this function's purpose
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting key '%s': %w", utils.ErrStorage, string(key), errGet)
		}

		return item.Value(func(val []byte) error {
			var decoded models.VisitedRecord
			if errJson := json.Unmarshal(val, &decoded); errJson != nil {
				s.log.Warnf("Failed to unmarshal VisitedRecord for key '%s': %v. Treating as not found.", string(key), errJson)
				return nil
			}
			rec = &decoded
			found = true
			return nil
		})
	})

	if errView != nil {
		s.log.Errorf("DB View error in Get for key '%s': %v", string(key), errView)
		return nil, false, errView
	}
	return rec, found, nil
}

// Has implements the VisitedStore interface
func (s *BadgerStore) Has(normalizedURL string) (bool, error) {
	key := []byte(visitKeyPrefix + normalizedURL)
	exists := false

	errView := s.db.View(func(txn *badger.Txn) error {
		_, errGet := txn.Get(key)
		if errors.Is(errGet, badger.ErrKeyNotFound) {
			return nil
		}
		if errGet != nil {
			return fmt.Errorf("%w: failed getting key '%s': %w", utils.ErrStorage, string(key), errGet)
		}
		exists = true
		return nil
	})

	if errView != nil {
		return false, errView
	}
	return exists, nil
}

// Count implements the VisitedStore interface.
// Returns the cached key count (O(1)) maintained by atomic increments on writes.
func (s *BadgerStore) Count() (int, error) {
	return int(s.keyCount.Load()), nil
}

// Each implements the VisitedStore interface
func (s *BadgerStore) Each(fn func(rec *models.VisitedRecord) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(visitKeyPrefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			select {
			case <-s.ctx.Done():
				s.log.Warnf("Record scan interrupted by context cancellation: %v", s.ctx.Err())
				return s.ctx.Err()
			default:
			}

			item := it.Item()
			keyBytes := item.KeyCopy(nil)
			url := string(keyBytes[len(prefixBytes):])

			errValue := item.Value(func(val []byte) error {
				var rec models.VisitedRecord
				if errJson := json.Unmarshal(val, &rec); errJson != nil {
					s.log.Errorf("Failed to unmarshal VisitedRecord for '%s': %v. Skipping.", url, errJson)
					return nil // Continue iteration
				}
				return fn(&rec)
			})
			if errValue != nil {
				return errValue
			}
		}
		return nil
	})
}

// WriteVisitedLog implements the VisitedStore interface.
func (s *BadgerStore) WriteVisitedLog(filePath string) error {
	s.log.Info("Writing list of visited URLs (from DB)...")
	file, err := os.Create(filePath)
	if err != nil {
		s.log.Errorf("Failed create visited log '%s': %v", filePath, err)
		return fmt.Errorf("create visited log '%s': %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	var writeErr error
	writtenCount := 0

	iterErr := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixBytes := []byte(visitKeyPrefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			select {
			case <-s.ctx.Done():
				s.log.Warnf("WriteVisitedLog scan interrupted by context cancellation: %v", s.ctx.Err())
				return s.ctx.Err()
			default:
			}

			keyBytes := it.Item().KeyCopy(nil)
			url := string(keyBytes[len(prefixBytes):])

			if _, err := writer.WriteString(url + "\n"); err != nil {
				if writeErr == nil {
					writeErr = err
				}
				s.log.Errorf("Error writing URL '%s' to visited log: %v", url, err)
				continue
			}
			writtenCount++
			if writtenCount%5000 == 0 {
				if flushErr := writer.Flush(); flushErr != nil {
					if writeErr == nil {
						writeErr = flushErr
					}
					s.log.Errorf("Error flushing visited writer: %v", flushErr)
				}
			}
		}
		return nil
	})

	if iterErr != nil && !errors.Is(iterErr, context.Canceled) && !errors.Is(iterErr, context.DeadlineExceeded) {
		s.log.Errorf("Error during visited DB iteration for log: %v", iterErr)
		if writeErr == nil {
			writeErr = iterErr
		}
	}

	if flushErr := writer.Flush(); flushErr != nil {
		s.log.Errorf("Failed final flush for visited log '%s': %v", filePath, flushErr)
		if writeErr == nil {
			writeErr = flushErr
		}
	}
	if syncErr := file.Sync(); syncErr != nil {
		s.log.Errorf("Failed to sync visited log '%s': %v", filePath, syncErr)
		if writeErr == nil {
			writeErr = syncErr
		}
	}

	if writeErr == nil {
		s.log.Infof("Finished writing %d URLs to visited log: %s", writtenCount, filePath)
	} else {
		s.log.Warnf("Finished writing visited log with errors. Wrote ~%d URLs to %s", writtenCount, filePath)
	}

	if errors.Is(iterErr, context.Canceled) || errors.Is(iterErr, context.DeadlineExceeded) {
		return iterErr
	}
	return writeErr
}

// RunGC runs BadgerDB's garbage collection periodically
func (s *BadgerStore) RunGC(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute // Default interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info("BadgerDB GC goroutine started.")

	for {
		select {
		case <-ticker.C:
			if s.db == nil || s.db.IsClosed() {
				s.log.Info("DB GC: Database is nil or closed, skipping GC cycle.")
				continue
			}

			s.log.Info("Running BadgerDB value log garbage collection...")
			var err error
			for {
				// Run GC if log is at least 50% reclaimable space
				err = s.db.RunValueLogGC(0.5)
				if err == nil {
					s.log.Info("BadgerDB GC cycle completed.")
				} else {
					break
				}
			}

			if errors.Is(err, badger.ErrNoRewrite) {
				s.log.Info("BadgerDB GC finished (no rewrite needed).")
			} else {
				s.log.Errorf("BadgerDB GC error: %v", err)
			}

		case <-ctx.Done():
			s.log.Infof("Stopping BadgerDB garbage collection goroutine due to context cancellation: %v", ctx.Err())
			return
		}
	}
}

// Close implements the VisitedStore interface
func (s *BadgerStore) Close() error {
	if s.db != nil && !s.db.IsClosed() {
		s.log.Info("Closing visited DB...")
		err := s.db.Close()
		if err != nil {
			s.log.Errorf("Error closing visited DB: %v", err)
			return err
		}
		s.log.Info("Visited DB closed.")
		return nil
	}
	s.log.Info("Visited DB already closed or was not initialized.")
	return nil
}
