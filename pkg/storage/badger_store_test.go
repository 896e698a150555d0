package storage

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
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

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	dir := t.TempDir()
	ctx := context.Background()
	store, err := NewBadgerStore(ctx, dir, "example.com", true, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func successRecord(url string) *models.VisitedRecord {
	return &models.VisitedRecord{
		URL:        url,
		Status:     models.FetchStatusSuccess,
		StatusCode: 200,
		Timestamp:  time.Now(),
	}
}

func TestNewBadgerStore(t *testing.T) {
	t.Run("fresh start has zero count", func(t *testing.T) {
		store := newTestStore(t)
		count, err := store.Count()
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("reopen preserves data", func(t *testing.T) {
		dir := t.TempDir()
		ctx := context.Background()
		logger := testLogger()

		store1, err := NewBadgerStore(ctx, dir, "example.com", true, logger)
		require.NoError(t, err)
		require.NoError(t, store1.Record("https://example.com/page1", successRecord("https://example.com/page1")))
		require.NoError(t, store1.Close())

		store2, err := NewBadgerStore(ctx, dir, "example.com", false, logger)
		require.NoError(t, err)
		t.Cleanup(func() { store2.Close() })

		count, err := store2.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("fresh start wipes data", func(t *testing.T) {
		dir := t.TempDir()
		ctx := context.Background()
		logger := testLogger()

		store1, err := NewBadgerStore(ctx, dir, "example.com", true, logger)
		require.NoError(t, err)
		require.NoError(t, store1.Record("https://example.com/page1", successRecord("https://example.com/page1")))
		require.NoError(t, store1.Close())

		store2, err := NewBadgerStore(ctx, dir, "example.com", true, logger)
		require.NoError(t, err)
		t.Cleanup(func() { store2.Close() })

		count, err := store2.Count()
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})
}

func TestRecordAndGet(t *testing.T) {
	store := newTestStore(t)

	rec := &models.VisitedRecord{
		URL:        "https://example.com/failed",
		Status:     models.FetchStatusError,
		StatusCode: 503,
		ErrorType:  "HTTP_5xx",
		Timestamp:  time.Now(),
	}
	require.NoError(t, store.Record(rec.URL, rec))

	got, found, err := store.Get(rec.URL)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.FetchStatusError, got.Status)
	assert.Equal(t, 503, got.StatusCode)
	assert.Equal(t, "HTTP_5xx", got.ErrorType)
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, found, err := store.Get("https://example.com/never")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestHas(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Record("https://example.com/a", successRecord("https://example.com/a")))

	has, err := store.Has("https://example.com/a")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = store.Has("https://example.com/b")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestRecordOverwriteKeepsCount(t *testing.T) {
	store := newTestStore(t)
	url := "https://example.com/page"

	require.NoError(t, store.Record(url, successRecord(url)))
	require.NoError(t, store.Record(url, &models.VisitedRecord{
		URL: url, Status: models.FetchStatusError, Timestamp: time.Now(),
	}))

	count, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, found, err := store.Get(url)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.FetchStatusError, got.Status, "second write wins")
}

func TestEach(t *testing.T) {
	store := newTestStore(t)
	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}
	for _, u := range urls {
		require.NoError(t, store.Record(u, successRecord(u)))
	}

	var seen []string
	err := store.Each(func(rec *models.VisitedRecord) error {
		seen = append(seen, rec.URL)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, urls, seen)
}

func TestWriteVisitedLog(t *testing.T) {
	store := newTestStore(t)
	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
	}
	for _, u := range urls {
		require.NoError(t, store.Record(u, successRecord(u)))
	}

	logPath := filepath.Join(t.TempDir(), "visited.txt")
	require.NoError(t, store.WriteVisitedLog(logPath))

	f, err := os.Open(logPath)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.ElementsMatch(t, urls, lines)
}
