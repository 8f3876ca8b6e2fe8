package watchlist

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"watchsync/internal/logging"
	"watchsync/internal/progress"
	"watchsync/internal/services/plex"
	"watchsync/internal/store"
)

// ItemStore is the storage surface the Reconciler and RemovalDetector need.
type ItemStore interface {
	GetBulkWatchlistItems(ctx context.Context, userIDs []int64, keys, guids []string) ([]store.WatchlistItem, error)
	CreateWatchlistItems(ctx context.Context, items []store.WatchlistItem, conflict store.ConflictMode) (int, error)
	GetAllWatchlistItemsForUser(ctx context.Context, userID int64) ([]store.WatchlistItem, error)
	DeleteWatchlistItems(ctx context.Context, userID int64, keys []string) (int, error)
	SyncGenresFromWatchlist(ctx context.Context) (int, error)
}

// Item is one row of a reconciled watchlist. Status is always pending.
type Item struct {
	UserID int64
	Key    string
	Title  string
	Type   string
	Thumb  string
	GUIDs  []string
	Genres []string
	Status store.Status
}

// UserWatchlist is the reconciled watchlist of one identity.
type UserWatchlist struct {
	Identity  Identity
	Watchlist []Item
}

// Response is the outcome of one reconciliation pass.
type Response struct {
	Source   store.Source
	Total    int
	Users    []UserWatchlist
	Inserted int
	Linked   int
	Removed  int
	Failures []FetchFailure
}

// Reconciler categorizes fetched items against storage and persists the difference.
type Reconciler struct {
	store   ItemStore
	sink    progress.Sink
	removal *RemovalDetector
	logger  *slog.Logger
	now     func() time.Time
}

// NewReconciler constructs a reconciler. sink may be nil.
func NewReconciler(st ItemStore, sink progress.Sink, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:   st,
		sink:    sink,
		removal: NewRemovalDetector(st, logger),
		logger:  logging.NewComponentLogger(logger, "reconciler"),
		now:     time.Now,
	}
}

type identityKeys struct {
	entry *Entry
	keys  []string
	items map[string]plex.Item
}

// Reconcile applies collection to storage and returns the resulting watchlists.
func (r *Reconciler) Reconcile(ctx context.Context, collection *Collection) (*Response, error) {
	if collection == nil || len(collection.Entries) == 0 {
		return nil, ErrNoWatchlistItems
	}

	perIdentity, userIDs, allKeys, allGUIDs := r.extractKeys(collection)

	existing, err := r.store.GetBulkWatchlistItems(ctx, userIDs, allKeys, allGUIDs)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", collection.Source, err)
	}
	byKey, byGUID := indexExisting(existing)

	present := make(map[int64][]store.WatchlistItem, len(perIdentity))
	var fresh, linked []store.WatchlistItem
	for _, ik := range perIdentity {
		userID := ik.entry.Identity.UserID
		for _, key := range ik.keys {
			item := ik.items[key]
			if row, ok := byKey[key][userID]; ok {
				present[userID] = append(present[userID], row)
				continue
			}
			template, ok := findTemplate(byKey[key], byGUID, item.GUIDs, userID)
			if !ok {
				fresh = append(fresh, newRow(userID, item))
				continue
			}
			if template.Title == "" || template.Type == "" {
				r.logger.Info("skipping link from incomplete template",
					logging.String("key", key),
					logging.Int64(logging.FieldUserID, userID),
					logging.Int64("template_id", template.ID),
				)
				continue
			}
			linked = append(linked, linkRow(userID, key, template))
		}
	}

	if err := r.persistFresh(ctx, collection.Source, fresh); err != nil {
		return nil, err
	}
	if len(linked) > 0 {
		if _, err := r.store.CreateWatchlistItems(ctx, linked, store.ConflictMerge); err != nil {
			return nil, fmt.Errorf("link watchlist items: %w", err)
		}
	}
	if len(fresh) > 0 || len(linked) > 0 {
		if _, err := r.store.SyncGenresFromWatchlist(ctx); err != nil {
			return nil, fmt.Errorf("sync genres: %w", err)
		}
	}

	removed, err := r.removal.Detect(ctx, collection.Entries)
	if err != nil {
		return nil, err
	}

	resp := assembleResponse(collection, perIdentity, present, linked, fresh)
	resp.Inserted = len(fresh)
	resp.Linked = len(linked)
	resp.Removed = removed

	r.logger.Info("watchlists reconciled",
		logging.String(logging.FieldSource, string(collection.Source)),
		logging.Int("users", len(resp.Users)),
		logging.Int("total", resp.Total),
		logging.Int("inserted", resp.Inserted),
		logging.Int("linked", resp.Linked),
		logging.Int("removed", resp.Removed),
	)
	return resp, nil
}

func (r *Reconciler) extractKeys(collection *Collection) ([]identityKeys, []int64, []string, []string) {
	perIdentity := make([]identityKeys, 0, len(collection.Entries))
	userIDs := make([]int64, 0, len(collection.Entries))
	keySet := make(map[string]struct{})
	guidSet := make(map[string]struct{})
	var allKeys, allGUIDs []string

	for _, entry := range collection.Entries {
		ik := identityKeys{entry: entry, items: make(map[string]plex.Item, len(entry.Items))}
		for _, item := range entry.Items {
			if item.ID == "" {
				r.logger.Warn("watchlist item has no id",
					logging.String("identity", entry.Identity.Username),
					logging.String("title", item.Title),
				)
				continue
			}
			if _, dup := ik.items[item.ID]; dup {
				continue
			}
			item.GUIDs = plex.NormalizeGUIDs(item.GUIDs)
			ik.items[item.ID] = item
			ik.keys = append(ik.keys, item.ID)
			if _, ok := keySet[item.ID]; !ok {
				keySet[item.ID] = struct{}{}
				allKeys = append(allKeys, item.ID)
			}
			for _, guid := range item.GUIDs {
				if _, ok := guidSet[guid]; !ok {
					guidSet[guid] = struct{}{}
					allGUIDs = append(allGUIDs, guid)
				}
			}
		}
		perIdentity = append(perIdentity, ik)
		userIDs = append(userIDs, entry.Identity.UserID)
	}
	return perIdentity, userIDs, allKeys, allGUIDs
}

func indexExisting(rows []store.WatchlistItem) (map[string]map[int64]store.WatchlistItem, map[string][]store.WatchlistItem) {
	byKey := make(map[string]map[int64]store.WatchlistItem)
	byGUID := make(map[string][]store.WatchlistItem)
	for _, row := range rows {
		users, ok := byKey[row.Key]
		if !ok {
			users = make(map[int64]store.WatchlistItem)
			byKey[row.Key] = users
		}
		users[row.UserID] = row
		for _, guid := range plex.NormalizeGUIDs(row.GUIDs) {
			byGUID[guid] = append(byGUID[guid], row)
		}
	}
	return byKey, byGUID
}

// findTemplate picks the row another user holds for the same content. Same
// key wins over GUID intersection; ties resolve to the lowest row id.
func findTemplate(sameKey map[int64]store.WatchlistItem, byGUID map[string][]store.WatchlistItem, guids []string, userID int64) (store.WatchlistItem, bool) {
	var best store.WatchlistItem
	found := false
	consider := func(row store.WatchlistItem) {
		if row.UserID == userID {
			return
		}
		if !found || row.ID < best.ID {
			best = row
			found = true
		}
	}
	for _, row := range sameKey {
		consider(row)
	}
	if found {
		return best, true
	}
	for _, guid := range guids {
		for _, row := range byGUID[guid] {
			consider(row)
		}
		if found {
			return best, true
		}
	}
	return best, false
}

func newRow(userID int64, item plex.Item) store.WatchlistItem {
	return store.WatchlistItem{
		UserID: userID,
		Key:    item.ID,
		Title:  item.Title,
		Type:   item.Type,
		Thumb:  item.Thumb,
		GUIDs:  item.GUIDs,
		Genres: item.Genres,
		Status: store.StatusPending,
	}
}

func linkRow(userID int64, key string, template store.WatchlistItem) store.WatchlistItem {
	return store.WatchlistItem{
		UserID: userID,
		Key:    key,
		Title:  template.Title,
		Type:   template.Type,
		Thumb:  template.Thumb,
		GUIDs:  append([]string(nil), template.GUIDs...),
		Genres: append([]string(nil), template.Genres...),
		Status: store.StatusPending,
	}
}

func (r *Reconciler) persistFresh(ctx context.Context, source store.Source, fresh []store.WatchlistItem) error {
	if len(fresh) == 0 {
		return nil
	}
	emit := r.progressEmitter(source)
	emit(progress.PhaseStart, 0, fmt.Sprintf("Processing %d new items", len(fresh)))
	emit(progress.PhaseSaving, 50, fmt.Sprintf("Saving %d new items", len(fresh)))
	if _, err := r.store.CreateWatchlistItems(ctx, fresh, store.ConflictIgnore); err != nil {
		return fmt.Errorf("insert watchlist items: %w", err)
	}
	emit(progress.PhaseComplete, 100, fmt.Sprintf("Saved %d new items", len(fresh)))
	return nil
}

func (r *Reconciler) progressEmitter(source store.Source) func(progress.Phase, int, string) {
	if r.sink == nil || !r.sink.HasActiveConnections() {
		return func(progress.Phase, int, string) {}
	}
	eventType := progress.TypeSelfWatchlist
	if source == store.SourceFriends {
		eventType = progress.TypeOthersWatchlist
	}
	operationID := uuid.NewString()
	return func(phase progress.Phase, pct int, message string) {
		r.sink.Emit(progress.Event{
			OperationID: operationID,
			Type:        eventType,
			Phase:       phase,
			Progress:    pct,
			Message:     message,
			Timestamp:   r.now(),
		})
	}
}

func assembleResponse(collection *Collection, perIdentity []identityKeys, present map[int64][]store.WatchlistItem, linked, fresh []store.WatchlistItem) *Response {
	added := make(map[int64][]store.WatchlistItem)
	for _, row := range linked {
		added[row.UserID] = append(added[row.UserID], row)
	}
	for _, row := range fresh {
		added[row.UserID] = append(added[row.UserID], row)
	}

	resp := &Response{Source: collection.Source, Failures: collection.Failures}
	for _, ik := range perIdentity {
		userID := ik.entry.Identity.UserID
		rows := append(append([]store.WatchlistItem(nil), present[userID]...), added[userID]...)
		order := make(map[string]int, len(ik.keys))
		for i, key := range ik.keys {
			order[key] = i
		}
		sort.SliceStable(rows, func(i, j int) bool { return order[rows[i].Key] < order[rows[j].Key] })

		user := UserWatchlist{Identity: ik.entry.Identity, Watchlist: make([]Item, 0, len(rows))}
		for _, row := range rows {
			user.Watchlist = append(user.Watchlist, formatItem(row))
		}
		resp.Total += len(user.Watchlist)
		resp.Users = append(resp.Users, user)
	}
	return resp
}

func formatItem(row store.WatchlistItem) Item {
	guids := plex.NormalizeGUIDs(row.GUIDs)
	if guids == nil {
		guids = []string{}
	}
	genres := append([]string{}, row.Genres...)
	return Item{
		UserID: row.UserID,
		Key:    row.Key,
		Title:  row.Title,
		Type:   row.Type,
		Thumb:  row.Thumb,
		GUIDs:  guids,
		Genres: genres,
		Status: store.StatusPending,
	}
}
