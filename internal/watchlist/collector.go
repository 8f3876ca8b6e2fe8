package watchlist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"watchsync/internal/logging"
	"watchsync/internal/services"
	"watchsync/internal/services/plex"
	"watchsync/internal/store"
)

// ErrNoWatchlistItems reports a pass in which no identity produced any items.
var ErrNoWatchlistItems = errors.New("unable to fetch watchlist items")

// Fetcher is the upstream surface the Collector needs.
type Fetcher interface {
	Watchlist(ctx context.Context, token string) ([]plex.Item, error)
	Friends(ctx context.Context, token string) ([]plex.Friend, error)
	FriendWatchlist(ctx context.Context, token, friendUUID string) ([]plex.Item, error)
}

// Entry is one identity's fetched watchlist.
type Entry struct {
	Identity Identity
	Items    []plex.Item
}

// FetchFailure records an identity whose fetch failed.
type FetchFailure struct {
	Identity Identity
	Err      error
}

// Collection is the result of one collection pass. Entries keep
// configuration order; identities with no items are omitted.
type Collection struct {
	Source   store.Source
	Entries  []*Entry
	Failures []FetchFailure
}

// Collector fans watchlist fetches out across identities.
type Collector struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewCollector constructs a collector.
func NewCollector(fetcher Fetcher, logger *slog.Logger) *Collector {
	return &Collector{fetcher: fetcher, logger: logging.NewComponentLogger(logger, "collector")}
}

// CollectSelf fetches the watchlist of every personal token.
func (c *Collector) CollectSelf(ctx context.Context, resolver *Resolver, tokens []string) (*Collection, error) {
	if len(tokens) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "collector", "collect self", "no plex tokens configured", nil)
	}
	identities := make([]Identity, 0, len(tokens))
	for i := range tokens {
		id := TokenWatchlistID(i)
		identity, err := resolver.Resolve(ctx, store.SourceSelf, id, id)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return c.collect(ctx, store.SourceSelf, identities, func(ctx context.Context, i int, _ Identity) ([]plex.Item, error) {
		return c.fetcher.Watchlist(ctx, tokens[i])
	})
}

// CollectFriends lists the token owner's friends and fetches each friend's watchlist.
func (c *Collector) CollectFriends(ctx context.Context, resolver *Resolver, token string) (*Collection, error) {
	if token == "" {
		return nil, services.Wrap(services.ErrConfiguration, "collector", "collect friends", "no plex tokens configured", nil)
	}
	friends, err := c.fetcher.Friends(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	identities := make([]Identity, 0, len(friends))
	for _, friend := range friends {
		identity, err := resolver.Resolve(ctx, store.SourceFriends, friend.UUID, friend.Username)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	return c.collect(ctx, store.SourceFriends, identities, func(ctx context.Context, _ int, identity Identity) ([]plex.Item, error) {
		return c.fetcher.FriendWatchlist(ctx, token, identity.WatchlistID)
	})
}

type fetchFunc func(ctx context.Context, index int, identity Identity) ([]plex.Item, error)

// collect runs fetch for every identity in parallel. Each task records its own
// outcome so one failing identity never discards the others.
func (c *Collector) collect(ctx context.Context, source store.Source, identities []Identity, fetch fetchFunc) (*Collection, error) {
	results := make([][]plex.Item, len(identities))
	errs := make([]error, len(identities))

	var g errgroup.Group
	for i, identity := range identities {
		g.Go(func() error {
			items, err := fetch(ctx, i, identity)
			results[i] = items
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	collection := &Collection{Source: source}
	for i, identity := range identities {
		if err := errs[i]; err != nil {
			logging.WarnWithContext(c.logger, "watchlist fetch failed", "watchlist_fetch_failed",
				logging.String(logging.FieldSource, string(source)),
				logging.String("identity", identity.Username),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the token or friend share; other identities continue"),
				logging.String(logging.FieldImpact, "identity skipped for this pass"),
			)
			collection.Failures = append(collection.Failures, FetchFailure{Identity: identity, Err: err})
			continue
		}
		items := dedupeItems(results[i])
		if len(items) == 0 {
			c.logger.Debug("identity returned no items",
				logging.String(logging.FieldSource, string(source)),
				logging.String("identity", identity.Username),
			)
			continue
		}
		collection.Entries = append(collection.Entries, &Entry{Identity: identity, Items: items})
	}

	if len(collection.Entries) == 0 {
		if len(collection.Failures) > 0 {
			causes := make([]error, 0, len(collection.Failures))
			for _, failure := range collection.Failures {
				causes = append(causes, failure.Err)
			}
			return collection, fmt.Errorf("%w: %w", ErrNoWatchlistItems, errors.Join(causes...))
		}
		return collection, ErrNoWatchlistItems
	}

	c.logger.Info("watchlists collected",
		logging.String(logging.FieldSource, string(source)),
		logging.Int("identities", len(collection.Entries)),
		logging.Int("failures", len(collection.Failures)),
	)
	return collection, nil
}

// dedupeItems drops repeated IDs, keeping the first occurrence. Items without
// an ID pass through so the reconciler can report them.
func dedupeItems(items []plex.Item) []plex.Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]plex.Item, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item.ID != "" {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
		}
		out = append(out, item)
	}
	return out
}
