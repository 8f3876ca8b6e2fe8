package watchlist

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"watchsync/internal/services"
	"watchsync/internal/store"
)

// placeholderDomain is used to synthesize contact addresses for auto-created users.
const placeholderDomain = "placeholder.watchsync"

// Identity ties an upstream watchlist owner to a local user.
type Identity struct {
	// WatchlistID is the stable upstream key: "token1", "token2", ... for
	// personal tokens or the friend's Plex UUID.
	WatchlistID string
	Username    string
	UserID      int64
	Source      store.Source
}

// UserStore is the storage surface the Resolver needs.
type UserStore interface {
	GetUserByName(ctx context.Context, name string) (*store.User, error)
	CreateUser(ctx context.Context, user store.User) (*store.User, error)
}

// Resolver maps identities onto local users. One resolver serves one sync
// pass; results are cached for its lifetime.
type Resolver struct {
	users UserStore

	mu    sync.Mutex
	cache map[string]Identity
}

// NewResolver constructs a resolver over the given user store.
func NewResolver(users UserStore) *Resolver {
	return &Resolver{users: users, cache: make(map[string]Identity)}
}

// TokenWatchlistID returns the pseudo-username for the personal token at
// zero-based position index.
func TokenWatchlistID(index int) string {
	return fmt.Sprintf("token%d", index+1)
}

// PlaceholderEmail returns the synthesized address for an auto-created user.
func PlaceholderEmail(username string) string {
	return strings.ToLower(username) + "@" + placeholderDomain
}

// Resolve returns the identity for watchlistID, creating the backing user
// named username when it does not exist yet.
func (r *Resolver) Resolve(ctx context.Context, source store.Source, watchlistID, username string) (Identity, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		username = watchlistID
	}
	if username == "" {
		return Identity{}, services.Wrap(services.ErrValidation, "resolver", "resolve", "identity has no name", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.cache[username]; ok {
		return cached, nil
	}

	user, err := r.users.GetUserByName(ctx, username)
	if err != nil {
		return Identity{}, fmt.Errorf("resolve %s: %w", username, err)
	}
	if user == nil {
		user, err = r.users.CreateUser(ctx, store.User{
			Name:  username,
			Email: PlaceholderEmail(username),
		})
		if err != nil {
			return Identity{}, fmt.Errorf("create user %s: %w", username, err)
		}
	}
	if user == nil || user.ID == 0 {
		return Identity{}, services.Wrap(services.ErrTransient, "resolver", "resolve",
			fmt.Sprintf("user %q has no id after creation", username), nil)
	}

	identity := Identity{
		WatchlistID: watchlistID,
		Username:    username,
		UserID:      user.ID,
		Source:      source,
	}
	r.cache[username] = identity
	return identity, nil
}
