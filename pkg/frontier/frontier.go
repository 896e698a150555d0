package frontier

import (
	"container/heap"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"webgrab/pkg/models"
	"webgrab/pkg/parse"
	"webgrab/pkg/utils"
)

// --- Priority Queue Implementation ---

// pqItem represents an item in the frontier's internal queue
type pqItem struct {
	entry *models.FrontierEntry
	seq   uint64 // Insertion order; breaks ties so equal depths dequeue FIFO
	index int    // The index of the item in the heap (required by heap interface)
}

// priorityQueue implements heap.Interface, ordered by (depth, insertion order)
// so traversal is breadth-first: shallow pages always dequeue before deep ones.
type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].entry.Depth != pq[j].entry.Depth {
		return pq[i].entry.Depth < pq[j].entry.Depth
	}
	return pq[i].seq < pq[j].seq
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

// Push adds an element to the heap
func (pq *priorityQueue) Push(x any) {
	n := len(*pq)
	item := x.(*pqItem)
	item.index = n
	*pq = append(*pq, item)
}

// Pop removes and returns the highest priority element from the heap
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // avoid memory leak
	item.index = -1 // for safety
	*pq = old[0 : n-1]
	return item
}

// Frontier holds the set of discovered-but-unvisited URLs and the set of
// visited URLs for one crawl. It enforces scope, blacklist/whitelist filters,
// and normalization-keyed de-duplication at enqueue time.
type Frontier struct {
	pq        priorityQueue
	queued    map[string]bool // normalized URL -> pending in pq
	visited   map[string]bool // normalized URL -> already fetched/recorded
	seq       uint64
	scopeHost string
	blacklist []*regexp.Regexp
	whitelist []*regexp.Regexp
	mu        sync.Mutex
	log       *logrus.Entry
}

// New creates a Frontier scoped to scopeHost. Blacklist and whitelist are
// shell-style wildcard patterns matched against the full normalized URL.
func New(scopeHost string, blacklist, whitelist []string, log *logrus.Entry) (*Frontier, error) {
	compiledBlack, err := utils.CompileURLPatterns(blacklist)
	if err != nil {
		return nil, fmt.Errorf("blacklist: %w", err)
	}
	compiledWhite, err := utils.CompileURLPatterns(whitelist)
	if err != nil {
		return nil, fmt.Errorf("whitelist: %w", err)
	}

	f := &Frontier{
		queued:    make(map[string]bool),
		visited:   make(map[string]bool),
		scopeHost: scopeHost,
		blacklist: compiledBlack,
		whitelist: compiledWhite,
		log:       log,
	}
	heap.Init(&f.pq)
	return f, nil
}

// Enqueue adds a URL at the given depth if it passes scope and filter
// checks and has not been seen before. Returns true if the URL was queued.
// Already-visited or already-queued URLs are dropped silently (idempotent).
// Only unparseable URLs produce an error.
func (f *Frontier) Enqueue(rawURL string, depth int) (bool, error) {
	normalized, parsed, err := parse.ParseAndNormalize(rawURL)
	if err != nil {
		return false, fmt.Errorf("%w: URL '%s': %w", utils.ErrParsing, rawURL, err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return false, nil // mailto:, tel:, javascript: etc.
	}

	// Blacklist rejects outright
	if utils.MatchesAny(normalized, f.blacklist) {
		f.log.WithField("url", normalized).Debug("Rejected by blacklist")
		return false, nil
	}

	// Non-empty whitelist requires a positive match; a whitelist match also
	// admits hosts other than the seed's (explicitly whitelisted hosts)
	whitelisted := false
	if len(f.whitelist) > 0 {
		if !utils.MatchesAny(normalized, f.whitelist) {
			f.log.WithField("url", normalized).Debug("No whitelist match")
			return false, nil
		}
		whitelisted = true
	}

	// Scope: same host as the seed unless whitelisted
	if parsed.Hostname() != f.scopeHost && !whitelisted {
		f.log.WithFields(logrus.Fields{"url": normalized, "scope_host": f.scopeHost}).Debug("Out of scope host")
		return false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.visited[normalized] || f.queued[normalized] {
		return false, nil
	}

	f.seq++
	heap.Push(&f.pq, &pqItem{
		entry: &models.FrontierEntry{URL: normalized, Depth: depth, DiscoveredAt: time.Now()},
		seq:   f.seq,
	})
	f.queued[normalized] = true
	return true, nil
}

// Next removes and returns the shallowest (then oldest) pending entry.
// Returns false when the frontier is empty.
func (f *Frontier) Next() (*models.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.pq) == 0 {
		return nil, false
	}
	item := heap.Pop(&f.pq).(*pqItem)
	delete(f.queued, item.entry.URL)
	return item.entry, true
}

// MarkVisited records a normalized URL as visited, removing it from the
// pending set if it was still queued. A URL is never in both sets.
func (f *Frontier) MarkVisited(normalizedURL string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.queued[normalizedURL] {
		for i, item := range f.pq {
			if item.entry.URL == normalizedURL {
				heap.Remove(&f.pq, i)
				break
			}
		}
		delete(f.queued, normalizedURL)
	}
	f.visited[normalizedURL] = true
}

// IsVisited reports whether the normalized URL has been visited.
func (f *Frontier) IsVisited(normalizedURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visited[normalizedURL]
}

// QueueLen returns the number of pending entries.
func (f *Frontier) QueueLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pq)
}

// VisitedLen returns the number of visited URLs.
func (f *Frontier) VisitedLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// PendingEntries returns the pending entries in dequeue order, for
// snapshotting. The frontier is not modified.
func (f *Frontier) PendingEntries() []models.FrontierEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := make([]*pqItem, len(f.pq))
	copy(items, f.pq)
	sort.Slice(items, func(i, j int) bool {
		if items[i].entry.Depth != items[j].entry.Depth {
			return items[i].entry.Depth < items[j].entry.Depth
		}
		return items[i].seq < items[j].seq
	})

	entries := make([]models.FrontierEntry, len(items))
	for i, item := range items {
		entries[i] = *item.entry
	}
	return entries
}

// VisitedKeys returns the visited URL set, sorted for determinism.
func (f *Frontier) VisitedKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	keys := make([]string, 0, len(f.visited))
	for k := range f.visited {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Restore rebuilds the frontier from snapshot state. Pending entries keep
// their order; entries whose URL is already visited are dropped so the
// disjointness of the two sets holds even for a hand-edited snapshot.
func (f *Frontier) Restore(entries []models.FrontierEntry, visitedKeys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, k := range visitedKeys {
		f.visited[k] = true
	}
	for _, e := range entries {
		if f.visited[e.URL] || f.queued[e.URL] {
			continue
		}
		f.seq++
		entry := e
		heap.Push(&f.pq, &pqItem{entry: &entry, seq: f.seq})
		f.queued[e.URL] = true
	}
}
