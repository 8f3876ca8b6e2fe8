package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"watchsync/internal/services/plex"
	"watchsync/internal/store"
	"watchsync/internal/watchlist"
	"watchsync/internal/workflow"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) NewTicker(time.Duration) workflow.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	ticker := &fakeTicker{ch: make(chan time.Time, 1)}
	c.tickers = append(c.tickers, ticker)
	return ticker
}

func (c *fakeClock) TickerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

// TickAll delivers one tick to every ticker, dropping it for a ticker whose
// previous tick has not been consumed.
func (c *fakeClock) TickAll() {
	c.mu.Lock()
	now := c.now
	tickers := append([]*fakeTicker(nil), c.tickers...)
	c.mu.Unlock()
	for _, ticker := range tickers {
		select {
		case ticker.ch <- now:
		default:
		}
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {}

type fakeFeeds struct {
	mu    sync.Mutex
	items map[string][]plex.Item
	errs  map[string]error
	calls int
}

func newFakeFeeds() *fakeFeeds {
	return &fakeFeeds{items: make(map[string][]plex.Item), errs: make(map[string]error)}
}

func (f *fakeFeeds) set(url string, items ...plex.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[url] = items
	delete(f.errs, url)
}

func (f *fakeFeeds) fail(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[url] = err
}

func (f *fakeFeeds) Fetch(_ context.Context, url string) ([]plex.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return append([]plex.Item(nil), f.items[url]...), nil
}

type fakePending struct {
	mu    sync.Mutex
	items []store.TempRSSItem
}

func (p *fakePending) CreateTempRSSItems(_ context.Context, items []store.TempRSSItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.items = append(p.items, items...)
	return nil
}

func (p *fakePending) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

type fakeRunner struct {
	mu      sync.Mutex
	calls   []store.Source
	errs    map[store.Source]error
	ctxErrs []error
	block   chan struct{}
	friends bool
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{errs: make(map[store.Source]error), friends: true}
}

func (r *fakeRunner) Enabled(source store.Source) bool {
	return source == store.SourceSelf || (source == store.SourceFriends && r.friends)
}

func (r *fakeRunner) Sync(ctx context.Context, source store.Source) (*watchlist.Response, error) {
	r.mu.Lock()
	r.calls = append(r.calls, source)
	block := r.block
	err := r.errs[source]
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	r.mu.Lock()
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &watchlist.Response{Source: source, Total: 1}, nil
}

func (r *fakeRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// contextErrors returns ctx.Err() as each Sync call saw it on return.
func (r *fakeRunner) contextErrors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.ctxErrs...)
}

func (r *fakeRunner) sources() []store.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Source(nil), r.calls...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func rssItem(guid, title string, genres ...string) plex.Item {
	return plex.Item{ID: guid, Title: title, Type: "movie", GUIDs: []string{guid}, Genres: genres}
}
