package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

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

type stubPlex struct {
	items []plex.Item
}

func (s stubPlex) Watchlist(context.Context, string) ([]plex.Item, error) { return s.items, nil }

func (stubPlex) Friends(context.Context, string) ([]plex.Friend, error) { return nil, nil }

func (stubPlex) FriendWatchlist(context.Context, string, string) ([]plex.Item, error) {
	return nil, nil
}

func (stubPlex) Fetch(context.Context, string) ([]plex.Item, error) { return nil, nil }

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	configPath string
}

// setupCLITestEnv writes a config file and, when withDaemon is set, starts a
// daemon whose syncer returns fetched items.
func setupCLITestEnv(t *testing.T, withDaemon bool, fetched ...plex.Item) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = "cli-secret"
	cfg.Workflow.AutoStart = false
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)
	env := &cliTestEnv{cfg: cfg, store: st}

	if withDaemon {
		logger := logging.NewNop()
		hub := progress.NewHub(4)
		fetcher := stubPlex{items: fetched}
		syncer := watchlist.NewSyncer(watchlist.SyncerOptions{
			Store:   st,
			Fetcher: fetcher,
			Sink:    hub,
			Tokens:  cfg.Plex.Tokens,
			Logger:  logger,
		})
		wf := workflow.New(workflow.Options{Config: cfg, Feeds: fetcher, Pending: st, Runner: syncer, Logger: logger})
		d, err := daemon.New(daemon.Options{Config: cfg, Store: st, Syncer: syncer, Workflow: wf, Hub: hub, Logger: logger})
		if err != nil {
			t.Fatalf("daemon.New: %v", err)
		}
		if err := d.Start(context.Background()); err != nil {
			t.Fatalf("daemon start: %v", err)
		}
		t.Cleanup(d.Stop)
		env.daemon = d
		cfg.Paths.APIBind = d.Address()
	} else {
		cfg.Paths.APIBind = unusedAddress(t)
	}

	env.configPath = filepath.Join(testsupport.BaseDir(cfg), "watchsync.toml")
	writeTestConfig(t, env.configPath, cfg)
	return env
}

// unusedAddress returns a loopback address nothing is listening on.
func unusedAddress(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	tokens := make([]string, 0, len(cfg.Plex.Tokens))
	for _, token := range cfg.Plex.Tokens {
		tokens = append(tokens, fmt.Sprintf("%q", token))
	}
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n\n"+
			"[plex]\ntokens = [%s]\n\n"+
			"[workflow]\nsync_on_start = false\nauto_start = false\n\n"+
			"[logging]\nformat = \"json\"\nlevel = \"warn\"\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
		cfg.Paths.APIToken,
		strings.Join(tokens, ", "),
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
