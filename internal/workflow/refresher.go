package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"watchsync/internal/logging"
	"watchsync/internal/store"
	"watchsync/internal/watchlist"
)

// SyncRunner runs a full pass for one source.
type SyncRunner interface {
	Sync(ctx context.Context, source store.Source) (*watchlist.Response, error)
	Enabled(source store.Source) bool
}

// refreshSources is the order a refresh visits sources in.
var refreshSources = []store.Source{store.SourceSelf, store.SourceFriends}

// Refresher drains the change queue into full syncs once it has been quiet.
type Refresher struct {
	queue  *changeQueue
	runner SyncRunner
	clock  Clock
	quiet  time.Duration
	logger *slog.Logger

	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu          sync.Mutex
	lastRefresh time.Time
	lastErr     error
	refreshes   int
}

func newRefresher(queue *changeQueue, runner SyncRunner, clock Clock, quiet time.Duration, logger *slog.Logger) *Refresher {
	return &Refresher{
		queue:  queue,
		runner: runner,
		clock:  clock,
		quiet:  quiet,
		logger: logging.NewComponentLogger(logger, "refresher"),
	}
}

// Tick starts a background refresh when the queue is ready and no refresh is
// running. It reports whether a refresh was started. The refresh outlives
// cancellation of ctx.
func (r *Refresher) Tick(ctx context.Context) bool {
	if !r.queue.Ready(r.clock.Now(), r.quiet) {
		return false
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		r.logger.Debug("refresh already in progress; skipping tick")
		return false
	}
	drained := r.queue.Drain()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inFlight.Store(false)
		r.logger.Info("rss changes settled; refreshing", logging.Int("changes", len(drained)))
		r.run(context.WithoutCancel(ctx))
	}()
	return true
}

// RefreshNow runs a refresh synchronously, draining the queue first. It
// returns false without running when a refresh is already in flight.
func (r *Refresher) RefreshNow(ctx context.Context) (bool, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return false, nil
	}
	defer r.inFlight.Store(false)
	r.queue.Drain()
	return true, r.run(ctx)
}

// Wait blocks until background refreshes started by Tick have finished.
func (r *Refresher) Wait() {
	r.wg.Wait()
}

// InFlight reports whether a refresh is running.
func (r *Refresher) InFlight() bool {
	return r.inFlight.Load()
}

func (r *Refresher) run(ctx context.Context) error {
	var errs []error
	for _, source := range refreshSources {
		if !r.runner.Enabled(source) {
			continue
		}
		resp, err := r.runner.Sync(ctx, source)
		switch {
		case errors.Is(err, watchlist.ErrNoWatchlistItems):
			r.logger.Info("no watchlist items collected; skipping source",
				logging.String(logging.FieldSource, string(source)))
		case err != nil:
			logging.ErrorWithContext(r.logger, "refresh failed", "refresh_failed",
				logging.String(logging.FieldSource, string(source)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the next settled RSS change retries the refresh"),
			)
			errs = append(errs, err)
		default:
			r.logger.Info("source refreshed",
				logging.String(logging.FieldSource, string(source)),
				logging.Int("total", resp.Total),
				logging.Int("removed", resp.Removed),
			)
		}
	}
	err := errors.Join(errs...)

	r.mu.Lock()
	r.lastRefresh = r.clock.Now()
	r.lastErr = err
	r.refreshes++
	r.mu.Unlock()
	return err
}

// refreshState is a point-in-time copy of the refresher's bookkeeping.
type refreshState struct {
	lastRefresh time.Time
	lastErr     error
	refreshes   int
}

func (r *Refresher) state() refreshState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return refreshState{lastRefresh: r.lastRefresh, lastErr: r.lastErr, refreshes: r.refreshes}
}
