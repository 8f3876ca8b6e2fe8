package daemon_test

import (
	"context"
	"errors"
	"testing"

	"watchsync/internal/api"
	"watchsync/internal/config"
	"watchsync/internal/daemon"
	"watchsync/internal/logging"
	"watchsync/internal/progress"
	"watchsync/internal/services/plex"
	"watchsync/internal/store"
	"watchsync/internal/testsupport"
	"watchsync/internal/watchlist"
	"watchsync/internal/workflow"
)

type emptyFetcher struct{}

func (emptyFetcher) Watchlist(context.Context, string) ([]plex.Item, error) { return nil, nil }

func (emptyFetcher) Friends(context.Context, string) ([]plex.Friend, error) { return nil, nil }

func (emptyFetcher) FriendWatchlist(context.Context, string, string) ([]plex.Item, error) {
	return nil, nil
}

func (emptyFetcher) Fetch(context.Context, string) ([]plex.Item, error) { return nil, nil }

func buildDaemon(t *testing.T, cfg *config.Config, st *store.Store) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	hub := progress.NewHub(4)
	syncer := watchlist.NewSyncer(watchlist.SyncerOptions{Store: st, Fetcher: emptyFetcher{}, Sink: hub, Tokens: cfg.Plex.Tokens, Logger: logger})
	wf := workflow.New(workflow.Options{Config: cfg, Feeds: emptyFetcher{}, Pending: st, Runner: syncer, Logger: logger})
	d, err := daemon.New(daemon.Options{Config: cfg, Store: st, Syncer: syncer, Workflow: wf, Hub: hub, Logger: logger})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d := buildDaemon(t, cfg, st)
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if d.Address() == "" {
		t.Fatal("expected api listener")
	}

	status, err := api.NewClient(d.Address(), "").Status(ctx)
	if err != nil {
		t.Fatalf("api status: %v", err)
	}
	if !status.Running || status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected status %+v", status)
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	first := buildDaemon(t, cfg, st)
	second := buildDaemon(t, cfg, st)
	t.Cleanup(func() {
		first.Stop()
		second.Stop()
	})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := second.Start(ctx); !errors.Is(err, daemon.ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(daemon.Options{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestStatusReportsEnabledSyncSources(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d := buildDaemon(t, cfg, st)

	sources := d.Status(context.Background()).SyncSources
	if len(sources) != 1 || sources[0] != store.SourceSelf {
		t.Fatalf("expected only self with friends sync off, got %v", sources)
	}
}

func TestStartWorkflowDuringStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d := buildDaemon(t, cfg, st)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 200 {
			_ = d.StartWorkflow()
		}
	}()
	d.Stop()
	<-done

	if err := d.StartWorkflow(); err == nil {
		t.Fatal("expected StartWorkflow to fail after Stop")
	}
}
