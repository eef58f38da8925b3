package reaper

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Worker drains pending reap jobs on a timer and whenever it is notified.
// It implements tree.Notifier.
type Worker struct {
	reaper *Reaper
	logger *slog.Logger
	wake   chan struct{}
}

// NewWorker creates a Worker for r.
func NewWorker(r *Reaper, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		reaper: r,
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Notify wakes the worker. It never blocks.
func (w *Worker) Notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Drain processes every pending job once and returns how many completed.
// Failed jobs stay pending; their errors are joined in the result.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	jobs, err := w.reaper.Pending(ctx)
	if err != nil {
		return 0, err
	}

	done := 0
	var errs []error
	for _, job := range jobs {
		if err := w.reaper.Process(ctx, job); err != nil {
			if ctx.Err() != nil {
				return done, ctx.Err()
			}
			w.logger.Error("reap job failed", "job", job.ID, "node", job.NodeID, "error", err)
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// Run drains jobs until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.reaper.config.PollInterval)
	defer ticker.Stop()

	w.logger.Info("reaper worker started", "pollInterval", w.reaper.config.PollInterval)
	for {
		if n, err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("drain incomplete", "completed", n, "error", err)
		} else if n > 0 {
			w.logger.Debug("drained reap jobs", "completed", n)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("reaper worker stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-w.wake:
		}
	}
}
