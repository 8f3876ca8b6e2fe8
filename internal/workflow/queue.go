package workflow

import (
	"strings"
	"sync"
	"time"

	"watchsync/internal/store"
)

// changeQueue holds RSS changes awaiting a refresh. Entries are unique by value.
type changeQueue struct {
	mu      sync.Mutex
	items   []store.TempRSSItem
	seen    map[string]struct{}
	lastAdd time.Time
}

func newChangeQueue() *changeQueue {
	return &changeQueue{seen: make(map[string]struct{})}
}

// Add appends items not already queued and returns how many were added.
// The last-add time is updated on every call with at least one item.
func (q *changeQueue) Add(items []store.TempRSSItem, now time.Time) int {
	if len(items) == 0 {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	added := 0
	for _, item := range items {
		fp := fingerprint(item)
		if _, ok := q.seen[fp]; ok {
			continue
		}
		q.seen[fp] = struct{}{}
		q.items = append(q.items, item)
		added++
	}
	q.lastAdd = now
	return added
}

// Drain empties the queue and returns its former contents.
func (q *changeQueue) Drain() []store.TempRSSItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	q.seen = make(map[string]struct{})
	return items
}

func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *changeQueue) LastAdded() time.Time {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastAdd
}

// Ready reports whether the queue is non-empty and has been idle longer than quiet.
func (q *changeQueue) Ready(now time.Time, quiet time.Duration) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) > 0 && now.Sub(q.lastAdd) > quiet
}

func fingerprint(item store.TempRSSItem) string {
	return strings.Join([]string{
		string(item.Source),
		item.Key,
		item.Title,
		item.Type,
		item.Thumb,
		strings.Join(item.GUIDs, ","),
		strings.Join(item.Genres, ","),
	}, "\x1f")
}
