package watchlist_test

import (
	"context"
	"errors"
	"sync"

	"watchsync/internal/progress"
	"watchsync/internal/services/plex"
)

type fakeFetcher struct {
	mu        sync.Mutex
	byToken   map[string][]plex.Item
	byFriend  map[string][]plex.Item
	friends   []plex.Friend
	failToken map[string]error
	friendErr error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		byToken:   make(map[string][]plex.Item),
		byFriend:  make(map[string][]plex.Item),
		failToken: make(map[string]error),
	}
}

func (f *fakeFetcher) setToken(token string, items ...plex.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byToken[token] = items
}

func (f *fakeFetcher) setFriend(friend plex.Friend, items ...plex.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.friends = append(f.friends, friend)
	f.byFriend[friend.UUID] = items
}

func (f *fakeFetcher) Watchlist(_ context.Context, token string) ([]plex.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failToken[token]; err != nil {
		return nil, err
	}
	return append([]plex.Item(nil), f.byToken[token]...), nil
}

func (f *fakeFetcher) Friends(context.Context, string) ([]plex.Friend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.friendErr != nil {
		return nil, f.friendErr
	}
	return append([]plex.Friend(nil), f.friends...), nil
}

func (f *fakeFetcher) FriendWatchlist(_ context.Context, _ string, uuid string) ([]plex.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items, ok := f.byFriend[uuid]
	if !ok {
		return nil, errors.New("unknown friend")
	}
	return append([]plex.Item(nil), items...), nil
}

type recordingSink struct {
	mu     sync.Mutex
	active bool
	events []progress.Event
}

func (s *recordingSink) HasActiveConnections() bool { return s.active }

func (s *recordingSink) Emit(evt progress.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func movie(id, title string, guids ...string) plex.Item {
	return plex.Item{ID: id, Title: title, Type: "movie", Thumb: "/thumb/" + id, GUIDs: guids, Genres: []string{"Drama"}}
}
