package testsupport

import (
	"context"
	"testing"

	"watchsync/internal/config"
	"watchsync/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// MustCreateUser inserts a user with a placeholder address.
func MustCreateUser(t testing.TB, st *store.Store, name string) *store.User {
	t.Helper()

	user, err := st.CreateUser(context.Background(), store.User{Name: name, Email: name + "@example.test"})
	if err != nil {
		t.Fatalf("store.CreateUser: %v", err)
	}
	return user
}

// MustCreateItems inserts watchlist rows without conflict merging.
func MustCreateItems(t testing.TB, st *store.Store, items ...store.WatchlistItem) {
	t.Helper()

	if _, err := st.CreateWatchlistItems(context.Background(), items, store.ConflictIgnore); err != nil {
		t.Fatalf("store.CreateWatchlistItems: %v", err)
	}
}
