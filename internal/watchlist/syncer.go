package watchlist

import (
	"context"
	"fmt"
	"log/slog"

	"watchsync/internal/logging"
	"watchsync/internal/progress"
	"watchsync/internal/services"
	"watchsync/internal/store"
)

// Store is the full storage surface a Syncer needs.
type Store interface {
	UserStore
	ItemStore
	PendingStore
}

// Syncer runs a complete pass for one source: resolve, collect, reconcile, match.
type Syncer struct {
	users       UserStore
	collector   *Collector
	reconciler  *Reconciler
	matcher     *Matcher
	tokens      []string
	syncFriends bool
	logger      *slog.Logger
}

// SyncerOptions configures a Syncer.
type SyncerOptions struct {
	Store       Store
	Fetcher     Fetcher
	Sink        progress.Sink
	Tokens      []string
	SyncFriends bool
	Logger      *slog.Logger
}

// NewSyncer wires the pass components over one store and fetcher.
func NewSyncer(opts SyncerOptions) *Syncer {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Syncer{
		users:       opts.Store,
		collector:   NewCollector(opts.Fetcher, logger),
		reconciler:  NewReconciler(opts.Store, opts.Sink, logger),
		matcher:     NewMatcher(opts.Store, logger),
		tokens:      append([]string(nil), opts.Tokens...),
		syncFriends: opts.SyncFriends,
		logger:      logging.NewComponentLogger(logger, "syncer"),
	}
}

// Enabled reports whether source participates in syncs.
func (s *Syncer) Enabled(source store.Source) bool {
	switch source {
	case store.SourceSelf:
		return true
	case store.SourceFriends:
		return s.syncFriends
	}
	return false
}

// Sync runs one full pass for source.
func (s *Syncer) Sync(ctx context.Context, source store.Source) (*Response, error) {
	if _, ok := store.ParseSource(string(source)); !ok {
		return nil, services.Wrap(services.ErrValidation, "syncer", "sync", fmt.Sprintf("unknown source %q", source), nil)
	}
	if len(s.tokens) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "syncer", "sync", "no plex tokens configured", nil)
	}
	if !s.Enabled(source) {
		return nil, services.Wrap(services.ErrConfiguration, "syncer", "sync", "friends sync is disabled", nil)
	}

	resolver := NewResolver(s.users)
	var (
		collection *Collection
		err        error
	)
	switch source {
	case store.SourceSelf:
		collection, err = s.collector.CollectSelf(ctx, resolver, s.tokens)
	case store.SourceFriends:
		collection, err = s.collector.CollectFriends(ctx, resolver, s.tokens[0])
	}
	if err != nil {
		return nil, err
	}

	resp, err := s.reconciler.Reconcile(ctx, collection)
	if err != nil {
		return nil, err
	}
	if _, err := s.matcher.Match(ctx, source, resp); err != nil {
		return resp, err
	}
	return resp, nil
}
