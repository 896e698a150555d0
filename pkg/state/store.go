package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"webgrab/pkg/models"
	"webgrab/pkg/utils"
)

const snapshotSuffix = "_crawl_state.json"

// Store persists crawl snapshots as JSON files under a base directory,
// one file per job. Writes are atomic: the snapshot is written to a
// temporary file, synced, and renamed over the previous one, so a crash
// mid-write never corrupts the last good snapshot.
type Store struct {
	baseDir string
	log     *logrus.Entry
}

// NewStore creates the base directory if needed and returns a Store.
func NewStore(baseDir string, logger *logrus.Entry) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create state directory %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir, log: logger}, nil
}

// JobIDForSeed derives a stable job identifier from a seed URL's host,
// so resuming a crawl of the same site finds the same snapshot.
func JobIDForSeed(seedURL string) (string, error) {
	parsed, err := url.Parse(seedURL)
	if err != nil {
		return "", fmt.Errorf("%w: seed URL '%s': %w", utils.ErrParsing, seedURL, err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: seed URL '%s' has no host", utils.ErrParsing, seedURL)
	}
	return utils.SanitizeFilename(host), nil
}

func (s *Store) snapshotPath(jobID string) string {
	return filepath.Join(s.baseDir, utils.SanitizeFilename(jobID)+snapshotSuffix)
}

// Save writes the snapshot for snap.Job.ID atomically. SavedAt is stamped
// here so every persisted snapshot carries its write time.
func (s *Store) Save(snap *models.CrawlSnapshot) error {
	snap.SavedAt = time.Now()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling snapshot for job '%s': %w", utils.ErrStorage, snap.Job.ID, err)
	}

	finalPath := s.snapshotPath(snap.Job.ID)
	tmpFile, err := os.CreateTemp(s.baseDir, "snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp snapshot file: %w", utils.ErrStorage, err)
	}
	tmpPath := tmpFile.Name()

	// Clean up the temp file on any failure path
	cleanup := func() {
		tmpFile.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmpFile.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("%w: writing snapshot for job '%s': %w", utils.ErrStorage, snap.Job.ID, err)
	}
	if err := tmpFile.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: syncing snapshot for job '%s': %w", utils.ErrStorage, snap.Job.ID, err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing snapshot for job '%s': %w", utils.ErrStorage, snap.Job.ID, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming snapshot for job '%s': %w", utils.ErrStorage, snap.Job.ID, err)
	}

	s.log.WithFields(logrus.Fields{
		"job_id":   snap.Job.ID,
		"frontier": len(snap.Frontier),
		"visited":  len(snap.Visited),
		"path":     finalPath,
	}).Debug("Crawl snapshot saved")
	return nil
}

// Load reads the snapshot for jobID. Returns ErrSnapshotNotFound if no
// snapshot file exists for the job.
func (s *Store) Load(jobID string) (*models.CrawlSnapshot, error) {
	path := s.snapshotPath(jobID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: job '%s' (looked in %s)", utils.ErrSnapshotNotFound, jobID, path)
		}
		return nil, fmt.Errorf("%w: reading snapshot for job '%s': %w", utils.ErrStorage, jobID, err)
	}

	var snap models.CrawlSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: snapshot file %s is corrupt: %w", utils.ErrStorage, path, err)
	}

	s.log.WithFields(logrus.Fields{
		"job_id":   jobID,
		"frontier": len(snap.Frontier),
		"visited":  len(snap.Visited),
		"saved_at": snap.SavedAt.Format(time.RFC3339),
	}).Info("Crawl snapshot loaded")
	return &snap, nil
}

// Exists reports whether a snapshot file exists for jobID.
func (s *Store) Exists(jobID string) bool {
	_, err := os.Stat(s.snapshotPath(jobID))
	return err == nil
}

// Delete removes the snapshot for jobID. Missing snapshots are not an error.
func (s *Store) Delete(jobID string) error {
	err := os.Remove(s.snapshotPath(jobID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: deleting snapshot for job '%s': %w", utils.ErrStorage, jobID, err)
	}
	return nil
}

// List returns the job IDs of all snapshots in the base directory.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: listing state directory %s: %w", utils.ErrStorage, s.baseDir, err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.Type().IsRegular() && len(name) > len(snapshotSuffix) && name[len(name)-len(snapshotSuffix):] == snapshotSuffix {
			ids = append(ids, name[:len(name)-len(snapshotSuffix)])
		}
	}
	return ids, nil
}
