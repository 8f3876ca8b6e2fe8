package watchlist_test

import (
	"context"
	"errors"
	"sort"
	"testing"

	"watchsync/internal/logging"
	"watchsync/internal/progress"
	"watchsync/internal/services"
	"watchsync/internal/services/plex"
	"watchsync/internal/store"
	"watchsync/internal/testsupport"
	"watchsync/internal/watchlist"
)

func newSyncer(t *testing.T, st *store.Store, fetcher watchlist.Fetcher, sink progress.Sink, tokens ...string) *watchlist.Syncer {
	t.Helper()
	return watchlist.NewSyncer(watchlist.SyncerOptions{
		Store:       st,
		Fetcher:     fetcher,
		Sink:        sink,
		Tokens:      tokens,
		SyncFriends: true,
		Logger:      logging.NewNop(),
	})
}

func storedKeys(t *testing.T, st *store.Store, userID int64) []string {
	t.Helper()
	rows, err := st.GetAllWatchlistItemsForUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetAllWatchlistItemsForUser: %v", err)
	}
	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		keys = append(keys, row.Key)
	}
	sort.Strings(keys)
	return keys
}

func mustUser(t *testing.T, st *store.Store, name string) *store.User {
	t.Helper()
	user, err := st.GetUserByName(context.Background(), name)
	if err != nil {
		t.Fatalf("GetUserByName: %v", err)
	}
	if user == nil {
		t.Fatalf("user %q not created", name)
	}
	return user
}

func TestSyncSelfCollectsEveryToken(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", movie("1", "Heat", "imdb://tt0113277"))
	fetcher.setToken("beta", movie("2", "Ronin", "imdb://tt0122690"))

	resp, err := newSyncer(t, st, fetcher, nil, "alpha", "beta").Sync(context.Background(), store.SourceSelf)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if resp.Total != 2 || len(resp.Users) != 2 {
		t.Fatalf("expected 2 items across 2 users, got total=%d users=%d", resp.Total, len(resp.Users))
	}
	if resp.Users[0].Identity.Username != "token1" || resp.Users[1].Identity.Username != "token2" {
		t.Fatalf("unexpected identities %+v", resp.Users)
	}
	if resp.Inserted != 2 {
		t.Fatalf("expected 2 inserts, got %d", resp.Inserted)
	}
	user := mustUser(t, st, "token1")
	if user.Email != "token1@placeholder.watchsync" {
		t.Fatalf("unexpected placeholder email %q", user.Email)
	}
	for _, item := range resp.Users[0].Watchlist {
		if item.Status != store.StatusPending {
			t.Fatalf("expected pending status, got %q", item.Status)
		}
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", movie("1", "Heat", "imdb://tt1"), movie("2", "Ronin", "imdb://tt2"))
	syncer := newSyncer(t, st, fetcher, nil, "alpha")
	ctx := context.Background()

	if _, err := syncer.Sync(ctx, store.SourceSelf); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	resp, err := syncer.Sync(ctx, store.SourceSelf)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if resp.Inserted != 0 || resp.Linked != 0 || resp.Removed != 0 {
		t.Fatalf("expected no changes on rerun, got %+v", resp)
	}
	if resp.Total != 2 {
		t.Fatalf("expected total 2 on rerun, got %d", resp.Total)
	}
	count, err := st.CountWatchlistItems(ctx)
	if err != nil {
		t.Fatalf("CountWatchlistItems: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 stored rows, got %d", count)
	}
}

func TestSyncLinksContentByGUIDFromAnotherUser(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	owner := testsupport.MustCreateUser(t, st, "token1")
	testsupport.MustCreateItems(t, st, store.WatchlistItem{
		UserID: owner.ID,
		Key:    "k1",
		Title:  "Heat (1995)",
		Type:   "movie",
		Thumb:  "/library/heat.jpg",
		GUIDs:  []string{"imdb://tt0113277"},
		Genres: []string{"Crime"},
	})

	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", plex.Item{ID: "k1", Title: "Heat", Type: "movie", GUIDs: []string{"imdb://tt0113277"}})
	fetcher.setToken("beta", plex.Item{ID: "k2", Title: "heat", Type: "movie", GUIDs: []string{"IMDB://tt0113277"}})

	resp, err := newSyncer(t, st, fetcher, nil, "alpha", "beta").Sync(ctx, store.SourceSelf)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if resp.Linked != 1 || resp.Inserted != 0 {
		t.Fatalf("expected one link and no inserts, got %+v", resp)
	}

	second := mustUser(t, st, "token2")
	rows, err := st.GetAllWatchlistItemsForUser(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetAllWatchlistItemsForUser: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one linked row, got %d", len(rows))
	}
	row := rows[0]
	if row.Key != "k2" || row.Title != "Heat (1995)" || row.Thumb != "/library/heat.jpg" {
		t.Fatalf("linked row did not copy template fields: %+v", row)
	}
	if len(row.Genres) != 1 || row.Genres[0] != "Crime" {
		t.Fatalf("linked row genres = %v", row.Genres)
	}
}

func TestSyncLinksSharedKeyWithoutGUIDs(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	owner := testsupport.MustCreateUser(t, st, "token1")
	testsupport.MustCreateItems(t, st, store.WatchlistItem{UserID: owner.ID, Key: "shared", Title: "Alien", Type: "movie"})

	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", plex.Item{ID: "shared", Title: "Alien", Type: "movie"})
	fetcher.setToken("beta", plex.Item{ID: "shared", Title: "alien?", Type: "movie"})

	resp, err := newSyncer(t, st, fetcher, nil, "alpha", "beta").Sync(context.Background(), store.SourceSelf)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if resp.Linked != 1 {
		t.Fatalf("expected one link, got %+v", resp)
	}
	if got := resp.Users[1].Watchlist[0].Title; got != "Alien" {
		t.Fatalf("expected template title, got %q", got)
	}
}

func TestSyncSkipsLinkFromIncompleteTemplate(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	owner := testsupport.MustCreateUser(t, st, "token1")
	testsupport.MustCreateItems(t, st, store.WatchlistItem{UserID: owner.ID, Key: "k", Title: "", Type: "movie"})

	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", plex.Item{ID: "k", Type: "movie"})
	fetcher.setToken("beta", plex.Item{ID: "k", Title: "Named", Type: "movie"})

	resp, err := newSyncer(t, st, fetcher, nil, "alpha", "beta").Sync(context.Background(), store.SourceSelf)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if resp.Linked != 0 || resp.Inserted != 0 {
		t.Fatalf("expected the link to be skipped, got %+v", resp)
	}
	if keys := storedKeys(t, st, mustUser(t, st, "token2").ID); len(keys) != 0 {
		t.Fatalf("expected no rows for token2, got %v", keys)
	}
}

func TestSyncRemovesItemsNoLongerReported(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", movie("1", "Heat"), movie("2", "Ronin"))
	syncer := newSyncer(t, st, fetcher, nil, "alpha")
	ctx := context.Background()

	if _, err := syncer.Sync(ctx, store.SourceSelf); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	fetcher.setToken("alpha", movie("1", "Heat"))
	resp, err := syncer.Sync(ctx, store.SourceSelf)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if resp.Removed != 1 {
		t.Fatalf("expected one removal, got %d", resp.Removed)
	}
	keys := storedKeys(t, st, mustUser(t, st, "token1").ID)
	if len(keys) != 1 || keys[0] != "1" {
		t.Fatalf("unexpected stored keys %v", keys)
	}
}

func TestSyncKeepsRowsOfFailedIdentity(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", movie("1", "Heat"))
	fetcher.setToken("beta", movie("2", "Ronin"))
	syncer := newSyncer(t, st, fetcher, nil, "alpha", "beta")
	ctx := context.Background()

	if _, err := syncer.Sync(ctx, store.SourceSelf); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	fetcher.failToken["beta"] = errors.New("upstream 500")
	resp, err := syncer.Sync(ctx, store.SourceSelf)
	if err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if len(resp.Failures) != 1 || resp.Failures[0].Identity.Username != "token2" {
		t.Fatalf("expected token2 failure, got %+v", resp.Failures)
	}
	if len(resp.Users) != 1 || resp.Total != 1 {
		t.Fatalf("expected only token1 in response, got %+v", resp.Users)
	}
	if keys := storedKeys(t, st, mustUser(t, st, "token2").ID); len(keys) != 1 {
		t.Fatalf("failed identity rows must survive, got %v", keys)
	}
}

func TestSyncFailsWhenNothingCollected(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fetcher := newFakeFetcher()
	fetcher.failToken["alpha"] = errors.New("boom")
	fetcher.setToken("beta")

	_, err := newSyncer(t, st, fetcher, nil, "alpha", "beta").Sync(context.Background(), store.SourceSelf)
	if !errors.Is(err, watchlist.ErrNoWatchlistItems) {
		t.Fatalf("expected ErrNoWatchlistItems, got %v", err)
	}
}

func TestSyncWithoutTokensIsConfigurationError(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, err := newSyncer(t, st, newFakeFetcher(), nil).Sync(context.Background(), store.SourceSelf)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestSyncRejectsUnknownSource(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	_, err := newSyncer(t, st, newFakeFetcher(), nil, "alpha").Sync(context.Background(), store.Source("everyone"))
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSyncFriendsOmitsEmptyWatchlists(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fetcher := newFakeFetcher()
	fetcher.setFriend(plex.Friend{UUID: "uuid-a", Username: "alice"}, movie("10", "Arrival", "tmdb://329865"))
	fetcher.setFriend(plex.Friend{UUID: "uuid-b", Username: "bob"})
	sink := &recordingSink{active: true}

	resp, err := newSyncer(t, st, fetcher, sink, "alpha").Sync(context.Background(), store.SourceFriends)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(resp.Users) != 1 || resp.Users[0].Identity.Username != "alice" {
		t.Fatalf("expected only alice, got %+v", resp.Users)
	}
	if resp.Users[0].Identity.WatchlistID != "uuid-a" {
		t.Fatalf("unexpected watchlist id %q", resp.Users[0].Identity.WatchlistID)
	}
	if len(sink.events) == 0 || sink.events[0].Type != progress.TypeOthersWatchlist {
		t.Fatalf("expected others-watchlist events, got %+v", sink.events)
	}
}

func TestSyncFriendsDisabled(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	syncer := watchlist.NewSyncer(watchlist.SyncerOptions{
		Store:   st,
		Fetcher: newFakeFetcher(),
		Tokens:  []string{"alpha"},
	})
	if syncer.Enabled(store.SourceFriends) {
		t.Fatal("friends should be disabled")
	}
	if _, err := syncer.Sync(context.Background(), store.SourceFriends); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestProgressEventsOnlyForNewItems(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", movie("1", "Heat"))
	sink := &recordingSink{active: true}
	syncer := newSyncer(t, st, fetcher, sink, "alpha")
	ctx := context.Background()

	if _, err := syncer.Sync(ctx, store.SourceSelf); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(sink.events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(sink.events))
	}
	wantPhases := []progress.Phase{progress.PhaseStart, progress.PhaseSaving, progress.PhaseComplete}
	wantPct := []int{0, 50, 100}
	for i, evt := range sink.events {
		if evt.Phase != wantPhases[i] || evt.Progress != wantPct[i] {
			t.Fatalf("event %d = %+v", i, evt)
		}
		if evt.Type != progress.TypeSelfWatchlist {
			t.Fatalf("event %d type = %q", i, evt.Type)
		}
		if evt.OperationID == "" || evt.OperationID != sink.events[0].OperationID {
			t.Fatalf("events must share one operation id")
		}
	}

	if _, err := syncer.Sync(ctx, store.SourceSelf); err != nil {
		t.Fatalf("rerun Sync: %v", err)
	}
	if len(sink.events) != 3 {
		t.Fatalf("rerun without new items must not emit, got %d events", len(sink.events))
	}
}

func TestProgressSilentWithoutListeners(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", movie("1", "Heat"))
	sink := &recordingSink{}

	if _, err := newSyncer(t, st, fetcher, sink, "alpha").Sync(context.Background(), store.SourceSelf); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(sink.events) != 0 {
		t.Fatalf("expected no events, got %d", len(sink.events))
	}
}

func TestSyncMatchesPendingRSSItems(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := st.CreateTempRSSItems(ctx, []store.TempRSSItem{
		{Source: store.SourceSelf, Key: "imdb://tt1", Title: "Heat", Type: "movie", GUIDs: []string{"IMDB://tt1"}},
		{Source: store.SourceSelf, Key: "imdb://tt9", Title: "Later", Type: "movie", GUIDs: []string{"imdb://tt9"}},
		{Source: store.SourceFriends, Key: "imdb://tt1", Title: "Heat", Type: "movie", GUIDs: []string{"imdb://tt1"}},
	}); err != nil {
		t.Fatalf("CreateTempRSSItems: %v", err)
	}

	fetcher := newFakeFetcher()
	fetcher.setToken("alpha", movie("1", "Heat", "imdb://tt1"))
	if _, err := newSyncer(t, st, fetcher, nil, "alpha").Sync(ctx, store.SourceSelf); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	remaining, err := st.GetTempRSSItems(ctx, store.SourceSelf)
	if err != nil {
		t.Fatalf("GetTempRSSItems: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Title != "Later" {
		t.Fatalf("expected only the unmatched self item, got %+v", remaining)
	}
	friends, err := st.GetTempRSSItems(ctx, store.SourceFriends)
	if err != nil {
		t.Fatalf("GetTempRSSItems friends: %v", err)
	}
	if len(friends) != 1 {
		t.Fatalf("friends pending items must be untouched, got %d", len(friends))
	}
}

func TestResolverIsIdempotent(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	first, err := watchlist.NewResolver(st).Resolve(ctx, store.SourceFriends, "uuid-a", "alice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	second, err := watchlist.NewResolver(st).Resolve(ctx, store.SourceFriends, "uuid-a", "alice")
	if err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if first.UserID == 0 || first.UserID != second.UserID {
		t.Fatalf("expected stable user id, got %d and %d", first.UserID, second.UserID)
	}
	users, err := st.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected one user, got %d", len(users))
	}
}

func TestResolverFallsBackToWatchlistID(t *testing.T) {
	st := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	identity, err := watchlist.NewResolver(st).Resolve(context.Background(), store.SourceFriends, "uuid-x", "  ")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if identity.Username != "uuid-x" {
		t.Fatalf("expected username fallback, got %q", identity.Username)
	}
}
