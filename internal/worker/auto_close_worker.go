package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AutoCloser closes tickets that stayed resolved longer than after.
type AutoCloser interface {
	AutoCloseResolved(ctx context.Context, after time.Duration) (int, error)
}

// AutoCloseStats summarizes the sweeps run so far.
type AutoCloseStats struct {
	Runs      int64     `json:"runs"`
	Closed    int64     `json:"closed"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// AutoCloseWorker periodically closes stale resolved tickets.
type AutoCloseWorker struct {
	closer   AutoCloser
	after    time.Duration
	interval time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	stats AutoCloseStats
}

// NewAutoCloseWorker builds the worker. A non-positive after or interval
// disables it.
func NewAutoCloseWorker(closer AutoCloser, after, interval time.Duration, logger *zap.Logger) *AutoCloseWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoCloseWorker{closer: closer, after: after, interval: interval, logger: logger}
}

// Enabled reports whether Run does anything.
func (w *AutoCloseWorker) Enabled() bool {
	return w.closer != nil && w.after > 0 && w.interval > 0
}

// Run sweeps once at start and then every interval until ctx is done.
func (w *AutoCloseWorker) Run(ctx context.Context) {
	if !w.Enabled() {
		return
	}
	w.logger.Info("auto-close worker started",
		zap.Duration("after", w.after),
		zap.Duration("interval", w.interval))

	w.RunOnce(ctx)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("auto-close worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns how many tickets were closed.
func (w *AutoCloseWorker) RunOnce(ctx context.Context) int {
	closed, err := w.closer.AutoCloseResolved(ctx, w.after)

	w.mu.Lock()
	w.stats.Runs++
	w.stats.Closed += int64(closed)
	w.stats.LastRunAt = time.Now().UTC()
	w.stats.LastError = ""
	if err != nil {
		w.stats.LastError = err.Error()
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("auto-close sweep failed", zap.Int("closed", closed), zap.Error(err))
		return closed
	}
	if closed > 0 {
		w.logger.Info("auto-closed resolved tickets", zap.Int("closed", closed))
	}
	return closed
}

// Stats returns a copy of the sweep counters.
func (w *AutoCloseWorker) Stats() AutoCloseStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
