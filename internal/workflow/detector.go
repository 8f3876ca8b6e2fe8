package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"watchsync/internal/logging"
	"watchsync/internal/services/plex"
	"watchsync/internal/store"
)

// FeedFetcher reads one RSS feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) ([]plex.Item, error)
}

// PendingWriter records RSS sightings awaiting confirmation.
type PendingWriter interface {
	CreateTempRSSItems(ctx context.Context, items []store.TempRSSItem) error
}

// Feed pairs a source with its RSS URL.
type Feed struct {
	Source store.Source
	URL    string
}

// snapshot maps an item's first GUID to the item as last seen.
type snapshot map[string]plex.Item

// Detector diffs successive RSS polls per source.
type Detector struct {
	feeds   []Feed
	fetcher FeedFetcher
	pending PendingWriter
	queue   *changeQueue
	clock   Clock
	logger  *slog.Logger

	mu        sync.Mutex
	snapshots map[store.Source]snapshot
}

func newDetector(feeds []Feed, fetcher FeedFetcher, pending PendingWriter, queue *changeQueue, clock Clock, logger *slog.Logger) *Detector {
	return &Detector{
		feeds:     feeds,
		fetcher:   fetcher,
		pending:   pending,
		queue:     queue,
		clock:     clock,
		logger:    logging.NewComponentLogger(logger, "rss-detector"),
		snapshots: make(map[store.Source]snapshot),
	}
}

// Poll fetches every feed once and returns the number of changes queued.
// A failing feed keeps its previous snapshot; the other feeds still run.
func (d *Detector) Poll(ctx context.Context) (int, error) {
	total := 0
	var errs []error
	for _, feed := range d.feeds {
		changes, err := d.pollFeed(ctx, feed)
		if err != nil {
			logging.WarnWithContext(d.logger, "rss poll failed", "rss_poll_failed",
				logging.String(logging.FieldSource, string(feed.Source)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the RSS URL in plex.self_rss_url / plex.friends_rss_url"),
			)
			errs = append(errs, fmt.Errorf("%s feed: %w", feed.Source, err))
			continue
		}
		total += changes
	}
	return total, errors.Join(errs...)
}

// Primed reports whether source has a baseline snapshot.
func (d *Detector) Primed(source store.Source) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.snapshots[source]
	return ok
}

// Reset discards every snapshot; the next poll becomes a new baseline.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.snapshots = make(map[store.Source]snapshot)
	d.mu.Unlock()
}

func (d *Detector) pollFeed(ctx context.Context, feed Feed) (int, error) {
	items, err := d.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return 0, err
	}
	current := d.buildSnapshot(feed.Source, items)

	d.mu.Lock()
	previous, primed := d.snapshots[feed.Source]
	d.snapshots[feed.Source] = current
	d.mu.Unlock()

	if !primed {
		d.logger.Info("rss baseline captured",
			logging.String(logging.FieldSource, string(feed.Source)),
			logging.Int("items", len(current)),
		)
		return 0, nil
	}

	changes := diffSnapshots(previous, current)
	for guid, item := range previous {
		if _, ok := current[guid]; !ok {
			d.logger.Info("rss item removed",
				logging.String(logging.FieldSource, string(feed.Source)),
				logging.String("title", item.Title),
				logging.String("guid", guid),
			)
		}
	}
	if len(changes) == 0 {
		return 0, nil
	}

	pending := make([]store.TempRSSItem, 0, len(changes))
	for _, item := range changes {
		pending = append(pending, toPending(feed.Source, item))
	}
	added := d.queue.Add(pending, d.clock.Now())
	if err := d.pending.CreateTempRSSItems(ctx, pending); err != nil {
		return added, fmt.Errorf("persist pending items: %w", err)
	}
	d.logger.Info("rss changes queued",
		logging.String(logging.FieldSource, string(feed.Source)),
		logging.Int("changes", len(changes)),
		logging.Int("queued", added),
	)
	return added, nil
}

func (d *Detector) buildSnapshot(source store.Source, items []plex.Item) snapshot {
	snap := make(snapshot, len(items))
	for _, item := range items {
		if len(item.GUIDs) == 0 {
			d.logger.Debug("rss item has no guid; ignoring",
				logging.String(logging.FieldSource, string(source)),
				logging.String("title", item.Title),
			)
			continue
		}
		snap[item.GUIDs[0]] = item
	}
	return snap
}

// diffSnapshots returns items of current that are new or modified relative to previous,
// ordered by GUID.
func diffSnapshots(previous, current snapshot) []plex.Item {
	guids := make([]string, 0, len(current))
	for guid := range current {
		guids = append(guids, guid)
	}
	slices.Sort(guids)

	var changes []plex.Item
	for _, guid := range guids {
		item := current[guid]
		old, ok := previous[guid]
		if !ok || modified(old, item) {
			changes = append(changes, item)
		}
	}
	return changes
}

func modified(old, cur plex.Item) bool {
	return old.Title != cur.Title ||
		old.Type != cur.Type ||
		old.Thumb != cur.Thumb ||
		!sameSet(old.Genres, cur.Genres)
}

func sameSet(a, b []string) bool {
	as := slices.Compact(slices.Sorted(slices.Values(a)))
	bs := slices.Compact(slices.Sorted(slices.Values(b)))
	return slices.Equal(as, bs)
}

func toPending(source store.Source, item plex.Item) store.TempRSSItem {
	key := item.ID
	if key == "" && len(item.GUIDs) > 0 {
		key = item.GUIDs[0]
	}
	return store.TempRSSItem{
		Source: source,
		Key:    key,
		Title:  item.Title,
		Type:   item.Type,
		Thumb:  item.Thumb,
		GUIDs:  append([]string(nil), item.GUIDs...),
		Genres: append([]string(nil), item.Genres...),
	}
}
