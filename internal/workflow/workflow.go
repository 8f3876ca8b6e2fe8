package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"watchsync/internal/config"
	"watchsync/internal/logging"
	"watchsync/internal/services"
	"watchsync/internal/store"
)

// ErrAlreadyRunning is returned by Start on a running workflow.
var ErrAlreadyRunning = errors.New("workflow already running")

// Options configures a Workflow.
type Options struct {
	Config  *config.Config
	Feeds   FeedFetcher
	Pending PendingWriter
	Runner  SyncRunner
	Clock   Clock
	Logger  *slog.Logger
}

// Workflow owns the RSS detector and refresher loops.
type Workflow struct {
	cfg       *config.Config
	clock     Clock
	logger    *slog.Logger
	queue     *changeQueue
	detector  *Detector
	refresher *Refresher
	interval  time.Duration

	mu      sync.Mutex
	running bool
	started time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status is a snapshot of workflow state.
type Status struct {
	Running           bool
	StartedAt         time.Time
	Feeds             []store.Source
	QueueLength       int
	LastQueued        time.Time
	RefreshInProgress bool
	LastRefresh       time.Time
	LastError         string
	Refreshes         int
}

// New constructs a workflow. It does not start any loops.
func New(opts Options) *Workflow {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg := opts.Config
	queue := newChangeQueue()
	return &Workflow{
		cfg:       cfg,
		clock:     clock,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		queue:     queue,
		detector:  newDetector(feedsFromConfig(cfg, opts.Runner), opts.Feeds, opts.Pending, queue, clock, logger),
		refresher: newRefresher(queue, opts.Runner, clock, cfg.QuietPeriod(), logger),
		interval:  cfg.PollInterval(),
	}
}

func feedsFromConfig(cfg *config.Config, runner SyncRunner) []Feed {
	var feeds []Feed
	if cfg.Plex.SelfRSSURL != "" {
		feeds = append(feeds, Feed{Source: store.SourceSelf, URL: cfg.Plex.SelfRSSURL})
	}
	if cfg.Plex.FriendsRSSURL != "" && (runner == nil || runner.Enabled(store.SourceFriends)) {
		feeds = append(feeds, Feed{Source: store.SourceFriends, URL: cfg.Plex.FriendsRSSURL})
	}
	return feeds
}

// Detector exposes the RSS change detector.
func (w *Workflow) Detector() *Detector { return w.detector }

// Refresher exposes the debounced refresher.
func (w *Workflow) Refresher() *Refresher { return w.refresher }

// Start primes RSS snapshots, optionally runs an initial full sync, and
// launches the polling loops. The loops stop when ctx is cancelled or Stop is called.
func (w *Workflow) Start(ctx context.Context) error {
	if len(w.detector.feeds) == 0 {
		return services.Wrap(services.ErrConfiguration, "workflow", "start",
			"no RSS feeds configured (plex.self_rss_url / plex.friends_rss_url)", nil)
	}

	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.running = true
	w.started = w.clock.Now()
	w.mu.Unlock()

	if _, err := w.detector.Poll(runCtx); err != nil {
		w.logger.Warn("rss baseline incomplete; next successful poll becomes the baseline", logging.Error(err))
	}
	if w.cfg.Workflow.SyncOnStart {
		if _, err := w.refresher.RefreshNow(context.WithoutCancel(runCtx)); err != nil {
			w.logger.Warn("initial sync failed", logging.Error(err))
		}
	}

	// Stop may have run while priming.
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.wg.Add(2)
	w.mu.Unlock()

	go w.loop(runCtx, "rss", func(ctx context.Context) {
		if _, err := w.detector.Poll(ctx); err != nil {
			w.logger.Debug("rss tick finished with errors", logging.Error(err))
		}
	})
	go w.loop(runCtx, "refresh", func(ctx context.Context) {
		w.refresher.Tick(ctx)
	})

	w.logger.Info("workflow started",
		logging.Duration("poll_interval", w.interval),
		logging.Duration("quiet_period", w.refresher.quiet),
		logging.Int("feeds", len(w.detector.feeds)),
	)
	return nil
}

// Stop cancels both loops, waits for them, and empties the change queue.
// A refresh already in flight keeps running; call Wait to block on it.
func (w *Workflow) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	w.running = false
	w.cancel = nil
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.queue.Drain()
	w.detector.Reset()
	w.logger.Info("workflow stopped")
}

// Wait blocks until any in-flight background refresh has finished.
func (w *Workflow) Wait() {
	w.refresher.Wait()
}

// Running reports whether the loops are active.
func (w *Workflow) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Status returns the latest workflow information.
func (w *Workflow) Status() Status {
	w.mu.Lock()
	running := w.running
	started := w.started
	w.mu.Unlock()

	feeds := make([]store.Source, 0, len(w.detector.feeds))
	for _, feed := range w.detector.feeds {
		feeds = append(feeds, feed.Source)
	}
	state := w.refresher.state()
	status := Status{
		Running:           running,
		Feeds:             feeds,
		QueueLength:       w.queue.Len(),
		LastQueued:        w.queue.LastAdded(),
		RefreshInProgress: w.refresher.InFlight(),
		LastRefresh:       state.lastRefresh,
		Refreshes:         state.refreshes,
	}
	if running {
		status.StartedAt = started
	}
	if state.lastErr != nil {
		status.LastError = state.lastErr.Error()
	}
	return status
}

func (w *Workflow) loop(ctx context.Context, name string, tick func(context.Context)) {
	defer w.wg.Done()
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	logger := w.logger.With(logging.String("loop", name))
	logger.Debug("loop started")
	for {
		select {
		case <-ctx.Done():
			logger.Debug("loop stopped")
			return
		case <-ticker.C():
			tick(ctx)
		}
	}
}
