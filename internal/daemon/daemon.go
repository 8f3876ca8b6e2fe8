package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"watchsync/internal/config"
	"watchsync/internal/logging"
	"watchsync/internal/progress"
	"watchsync/internal/services"
	"watchsync/internal/store"
	"watchsync/internal/watchlist"
	"watchsync/internal/workflow"
)

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another watchsync daemon instance is already running")

// Options bundles daemon dependencies.
type Options struct {
	Config   *config.Config
	Store    *store.Store
	Syncer   *watchlist.Syncer
	Workflow *workflow.Workflow
	Hub      *progress.Hub
	Logger   *slog.Logger
}

// Daemon owns the process lifecycle.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	syncer   *watchlist.Syncer
	workflow *workflow.Workflow
	hub      *progress.Hub

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	wfMu    sync.Mutex
	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running           bool
	PID               int
	DatabasePath      string
	LockFilePath      string
	Users             int
	Items             int
	Pending           int
	ProgressListeners int
	SyncSources       []store.Source
	Workflow          workflow.Status
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Store == nil || opts.Syncer == nil || opts.Workflow == nil {
		return nil, errors.New("daemon requires config, store, syncer, and workflow")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	hub := opts.Hub
	if hub == nil {
		hub = progress.NewHub(0)
	}
	lockPath := opts.Config.LockPath()
	d := &Daemon{
		cfg:      opts.Config,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    opts.Store,
		syncer:   opts.Syncer,
		workflow: opts.Workflow,
		hub:      hub,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(opts.Config, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the API server, and optionally the workflow.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start api: %w", err)
	}
	d.wfMu.Lock()
	d.ctx, d.cancel = runCtx, cancel
	d.wfMu.Unlock()
	d.running.Store(true)
	d.logger.Info("watchsync daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)

	if d.cfg.Workflow.AutoStart {
		if !d.cfg.HasRSSFeeds() {
			d.logger.Info("no RSS feeds configured; workflow not started")
		} else if err := d.StartWorkflow(); err != nil {
			logging.WarnWithContext(d.logger, "workflow auto-start failed", "workflow_start_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "start it later with POST /api/workflow/start"),
			)
		}
	}
	return nil
}

// Stop stops the workflow and API server and releases the daemon lock. An
// in-flight refresh is allowed to finish first.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	// StartWorkflow fails once ctx is cleared.
	d.wfMu.Lock()
	cancel := d.cancel
	d.ctx, d.cancel = nil, nil
	d.workflow.Stop()
	d.wfMu.Unlock()

	d.workflow.Wait()
	if cancel != nil {
		cancel()
	}
	d.api.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("watchsync daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Address returns the API listen address, or "" when not listening.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Hub returns the progress hub.
func (d *Daemon) Hub() *progress.Hub {
	return d.hub
}

// Sync runs an on-demand sync of source.
func (d *Daemon) Sync(ctx context.Context, source store.Source) (*watchlist.Response, error) {
	return d.syncer.Sync(services.WithSource(ctx, string(source)), source)
}

// StartWorkflow starts the RSS workflow on the daemon's context.
func (d *Daemon) StartWorkflow() error {
	d.wfMu.Lock()
	defer d.wfMu.Unlock()
	ctx := d.ctx
	if ctx == nil {
		return errors.New("daemon not running")
	}
	return d.workflow.Start(ctx)
}

// StopWorkflow stops the RSS workflow.
func (d *Daemon) StopWorkflow() {
	d.wfMu.Lock()
	defer d.wfMu.Unlock()
	d.workflow.Stop()
}

// WorkflowStatus reports workflow state.
func (d *Daemon) WorkflowStatus() workflow.Status {
	return d.workflow.Status()
}

// Status reports daemon state. Storage failures are logged and leave counts at zero.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:           d.running.Load(),
		PID:               os.Getpid(),
		DatabasePath:      d.store.Path(),
		LockFilePath:      d.lockPath,
		ProgressListeners: d.hub.Connections(),
		Workflow:          d.workflow.Status(),
	}
	for _, source := range []store.Source{store.SourceSelf, store.SourceFriends} {
		if d.syncer.Enabled(source) {
			status.SyncSources = append(status.SyncSources, source)
		}
	}
	if users, err := d.store.ListUsers(ctx); err != nil {
		d.logger.Warn("failed to list users", logging.Error(err))
	} else {
		status.Users = len(users)
	}
	if items, err := d.store.CountWatchlistItems(ctx); err != nil {
		d.logger.Warn("failed to count watchlist items", logging.Error(err))
	} else {
		status.Items = items
	}
	if pending, err := d.store.GetTempRSSItems(ctx, ""); err != nil {
		d.logger.Warn("failed to list pending items", logging.Error(err))
	} else {
		status.Pending = len(pending)
	}
	return status
}
