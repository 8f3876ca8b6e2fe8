package main

import (
	"log/slog"

	"watchsync/internal/config"
	"watchsync/internal/progress"
	"watchsync/internal/services/plex"
	"watchsync/internal/store"
	"watchsync/internal/watchlist"
	"watchsync/internal/workflow"
)

// runtime bundles the components shared by the daemon and in-process syncs.
type runtime struct {
	store    *store.Store
	hub      *progress.Hub
	syncer   *watchlist.Syncer
	workflow *workflow.Workflow
}

func buildRuntime(cfg *config.Config, st *store.Store, logger *slog.Logger) *runtime {
	hub := progress.NewHub(0)
	client := plex.NewFromConfig(cfg, logger)
	syncer := watchlist.NewSyncer(watchlist.SyncerOptions{
		Store:       st,
		Fetcher:     client,
		Sink:        hub,
		Tokens:      cfg.Plex.Tokens,
		SyncFriends: cfg.Plex.SyncFriends,
		Logger:      logger,
	})
	wf := workflow.New(workflow.Options{
		Config:  cfg,
		Feeds:   plex.NewRSSClient(nil),
		Pending: st,
		Runner:  syncer,
		Logger:  logger,
	})
	return &runtime{store: st, hub: hub, syncer: syncer, workflow: wf}
}
