package frontier

import (
	"io"
	"testing"

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

func newTestFrontier(t *testing.T, blacklist, whitelist []string) *Frontier {
	t.Helper()
	f, err := New("example.com", blacklist, whitelist, testLogger())
	require.NoError(t, err)
	return f
}

func TestEnqueueAndNext(t *testing.T) {
	f := newTestFrontier(t, nil, nil)

	queued, err := f.Enqueue("https://example.com/a", 0)
	require.NoError(t, err)
	assert.True(t, queued)

	entry, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", entry.URL)
	assert.Equal(t, 0, entry.Depth)

	_, ok = f.Next()
	assert.False(t, ok)
}

func TestBreadthFirstOrder(t *testing.T) {
	f := newTestFrontier(t, nil, nil)

	// Enqueue depth-2 pages before a depth-1 page; depth wins
	f.Enqueue("https://example.com/deep1", 2)
	f.Enqueue("https://example.com/deep2", 2)
	f.Enqueue("https://example.com/shallow", 1)

	entry, _ := f.Next()
	assert.Equal(t, "https://example.com/shallow", entry.URL)

	// Equal depth dequeues in insertion order
	entry, _ = f.Next()
	assert.Equal(t, "https://example.com/deep1", entry.URL)
	entry, _ = f.Next()
	assert.Equal(t, "https://example.com/deep2", entry.URL)
}

func TestEnqueueDeduplicates(t *testing.T) {
	f := newTestFrontier(t, nil, nil)

	queued, err := f.Enqueue("https://example.com/page", 0)
	require.NoError(t, err)
	assert.True(t, queued)

	// Same URL with cosmetic differences is a duplicate
	for _, dup := range []string{
		"https://example.com/page",
		"https://EXAMPLE.com/page",
		"https://example.com/page/",
		"https://example.com:443/page",
		"https://example.com/page#frag",
	} {
		queued, err := f.Enqueue(dup, 1)
		require.NoError(t, err)
		assert.False(t, queued, "expected %q to dedup", dup)
	}
	assert.Equal(t, 1, f.QueueLen())

	// Different query survives dedup
	queued, err = f.Enqueue("https://example.com/page?v=2", 1)
	require.NoError(t, err)
	assert.True(t, queued)
}

func TestEnqueueRejectsVisited(t *testing.T) {
	f := newTestFrontier(t, nil, nil)
	f.MarkVisited("https://example.com/done")

	queued, err := f.Enqueue("https://example.com/done", 0)
	require.NoError(t, err)
	assert.False(t, queued)
}

func TestScopeFilter(t *testing.T) {
	f := newTestFrontier(t, nil, nil)

	queued, err := f.Enqueue("https://other.com/page", 0)
	require.NoError(t, err)
	assert.False(t, queued, "off-host URL must be rejected")

	queued, err = f.Enqueue("https://sub.example.com/page", 0)
	require.NoError(t, err)
	assert.False(t, queued, "subdomain is a different host")
}

func TestSchemeFilter(t *testing.T) {
	f := newTestFrontier(t, nil, nil)

	for _, u := range []string{"mailto:someone@example.com", "ftp://example.com/file"} {
		queued, err := f.Enqueue(u, 0)
		require.NoError(t, err)
		assert.False(t, queued, "%q should be rejected", u)
	}
}

func TestEnqueueInvalidURL(t *testing.T) {
	f := newTestFrontier(t, nil, nil)
	_, err := f.Enqueue("not a url", 0)
	assert.Error(t, err)
}

func TestBlacklist(t *testing.T) {
	f := newTestFrontier(t, []string{"*/admin/*"}, nil)

	queued, _ := f.Enqueue("https://example.com/admin/users", 0)
	assert.False(t, queued)
	queued, _ = f.Enqueue("https://example.com/docs", 0)
	assert.True(t, queued)
}

func TestWhitelist(t *testing.T) {
	f := newTestFrontier(t, nil, []string{"*/docs/*"})

	queued, _ := f.Enqueue("https://example.com/docs/intro", 0)
	assert.True(t, queued)
	queued, _ = f.Enqueue("https://example.com/blog/post", 0)
	assert.False(t, queued, "non-whitelisted URL must be rejected")

	// Whitelist admits other hosts explicitly
	queued, _ = f.Enqueue("https://cdn.example.net/docs/asset", 0)
	assert.True(t, queued)
}

func TestMarkVisitedRemovesPending(t *testing.T) {
	f := newTestFrontier(t, nil, nil)
	f.Enqueue("https://example.com/a", 0)
	f.Enqueue("https://example.com/b", 0)

	f.MarkVisited("https://example.com/a")
	assert.Equal(t, 1, f.QueueLen())
	assert.True(t, f.IsVisited("https://example.com/a"))

	entry, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/b", entry.URL)
}

func TestSnapshotRoundTrip(t *testing.T) {
	f := newTestFrontier(t, nil, nil)
	f.Enqueue("https://example.com/a", 1)
	f.Enqueue("https://example.com/b", 0)
	f.MarkVisited("https://example.com/seen")

	pending := f.PendingEntries()
	visited := f.VisitedKeys()
	require.Len(t, pending, 2)
	assert.Equal(t, "https://example.com/b", pending[0].URL, "pending entries come back in dequeue order")
	assert.Equal(t, []string{"https://example.com/seen"}, visited)

	restored := newTestFrontier(t, nil, nil)
	restored.Restore(pending, visited)

	assert.Equal(t, 2, restored.QueueLen())
	assert.True(t, restored.IsVisited("https://example.com/seen"))

	entry, _ := restored.Next()
	assert.Equal(t, "https://example.com/b", entry.URL)
	entry, _ = restored.Next()
	assert.Equal(t, "https://example.com/a", entry.URL)
}

func TestRestoreDropsVisitedOverlap(t *testing.T) {
	f := newTestFrontier(t, nil, nil)
	f.Restore(
		[]models.FrontierEntry{{URL: "https://example.com/x", Depth: 0}},
		[]string{"https://example.com/x"},
	)
	assert.Equal(t, 0, f.QueueLen(), "a visited URL must not be pending")
}
