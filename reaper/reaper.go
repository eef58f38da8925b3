// Package reaper removes the descendants of deleted Directories.
//
// Deleting a Directory only removes its own record; the transaction also
// writes a reap job (see tree.ReapJob). The reaper consumes those jobs with
// at-least-once delivery: Reap is idempotent, and a job is removed only
// after its subtree is gone. Reaping never touches aggregates, because the
// deleted Directory's ancestors were already adjusted when it was deleted.
package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jacentio/grove/store"
	"github.com/jacentio/grove/tree"
)

// ErrIndexLag is returned by Reap when a full page of children holds only
// entries it already deleted, so live children may be hidden behind them.
var ErrIndexLag = errors.New("grove: child index lags behind deletes")

// Config holds configuration for the reaper.
type Config struct {
	// PageSize is the number of children fetched and deleted per round (1-1000, default: 100).
	PageSize int `mapstructure:"page_size"`

	// MaxDepth bounds recursion below the reaped Directory (default: tree.DefaultMaxDepth).
	MaxDepth int `mapstructure:"max_depth"`

	// MaxRetries is the number of times a failed reap is retried before the
	// job is left for the next drain (0-20, default: 3).
	MaxRetries int `mapstructure:"max_retries"`

	// RetryInterval is the initial backoff between reap attempts (default: 200ms).
	RetryInterval time.Duration `mapstructure:"retry_interval"`

	// PollInterval is how often the Worker drains pending jobs without being
	// notified (default: 30s).
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// DefaultConfig returns the default reaper configuration.
func DefaultConfig() Config {
	return Config{
		PageSize:      100,
		MaxDepth:      tree.DefaultMaxDepth,
		MaxRetries:    3,
		RetryInterval: 200 * time.Millisecond,
		PollInterval:  30 * time.Second,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	defaults := DefaultConfig()
	if c.PageSize < 1 {
		c.PageSize = defaults.PageSize
	}
	if c.PageSize > 1000 {
		c.PageSize = 1000
	}
	if c.MaxDepth < 1 {
		c.MaxDepth = defaults.MaxDepth
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxRetries > 20 {
		c.MaxRetries = 20
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaults.RetryInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
}

// Stats counts the records removed by Reap.
type Stats struct {
	Directories int
	Files       int
}

// Reaper deletes subtrees.
type Reaper struct {
	db     store.DB
	config Config
	logger *slog.Logger
}

// New creates a new Reaper.
func New(db store.DB, config Config, logger *slog.Logger) *Reaper {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		db:     db,
		config: config,
		logger: logger,
	}
}

// Config returns the effective configuration.
func (r *Reaper) Config() Config {
	return r.config
}

// child is the part of a node record the reaper needs.
type child struct {
	ID   string        `json:"id"`
	Type tree.NodeType `json:"type"`
}

// Reap deletes every descendant of dirID, one page of children at a time.
// Directories are emptied before they are deleted, so an interrupted reap
// leaves no unreachable records and can simply be run again.
func (r *Reaper) Reap(ctx context.Context, dirID string) (Stats, error) {
	var stats Stats
	err := r.reap(ctx, dirID, 0, &stats)
	return stats, err
}

func (r *Reaper) reap(ctx context.Context, dirID string, depth int, stats *Stats) error {
	if depth >= r.config.MaxDepth {
		return fmt.Errorf("%w: reaping below %s", tree.ErrDepthExceeded, dirID)
	}

	// Query indexes may lag behind deletes, so stop once a page holds
	// nothing new.
	deleted := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snaps, err := r.db.Query(ctx, store.QueryInput{
			Collection: tree.CollectionNodes,
			Field:      tree.FieldParentID,
			Value:      dirID,
			Limit:      r.config.PageSize,
		})
		if err != nil {
			return fmt.Errorf("query children of %s: %w", dirID, err)
		}

		ids := make([]string, 0, len(snaps))
		for _, snap := range snaps {
			if deleted[snap.ID] {
				continue
			}
			var c child
			if err := snap.DataTo(&c); err != nil {
				return fmt.Errorf("decode node %s: %w", snap.ID, err)
			}
			if c.Type == tree.TypeDirectory {
				if err := r.reap(ctx, snap.ID, depth+1, stats); err != nil {
					return err
				}
				stats.Directories++
			} else {
				stats.Files++
			}
			ids = append(ids, snap.ID)
		}
		if len(ids) == 0 {
			if len(snaps) > 0 && len(snaps) == r.config.PageSize {
				return fmt.Errorf("%w: children of %s", ErrIndexLag, dirID)
			}
			return nil
		}

		if err := r.db.DeleteMany(ctx, tree.CollectionNodes, ids); err != nil {
			return fmt.Errorf("delete children of %s: %w", dirID, err)
		}
		for _, id := range ids {
			deleted[id] = true
		}
	}
}

// Process reaps the job's subtree, retrying with backoff, and removes the
// job once the subtree is gone. A failed job stays pending.
func (r *Reaper) Process(ctx context.Context, job tree.ReapJob) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = r.config.RetryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(r.config.MaxRetries)), ctx)

	var stats Stats
	err := backoff.RetryNotify(func() error {
		var err error
		stats, err = r.Reap(ctx, job.NodeID)
		return err
	}, b, func(err error, next time.Duration) {
		r.logger.Warn("reap failed, retrying",
			"job", job.ID,
			"node", job.NodeID,
			"retryIn", next,
			"error", err,
		)
	})
	if err != nil {
		return fmt.Errorf("reap %s: %w", job.NodeID, err)
	}

	if err := r.db.DeleteMany(ctx, tree.CollectionReapJobs, []string{job.ID}); err != nil {
		return fmt.Errorf("remove reap job %s: %w", job.ID, err)
	}

	r.logger.Info("reap completed",
		"job", job.ID,
		"node", job.NodeID,
		"owner", job.Owner,
		"directories", stats.Directories,
		"files", stats.Files,
	)
	return nil
}

// Job loads a reap job by ID.
func (r *Reaper) Job(ctx context.Context, id string) (*tree.ReapJob, error) {
	snap, err := r.db.Get(ctx, tree.CollectionReapJobs, id)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, fmt.Errorf("%w: reap job %s", tree.ErrNotFound, id)
	}
	var job tree.ReapJob
	if err := snap.DataTo(&job); err != nil {
		return nil, fmt.Errorf("decode reap job %s: %w", id, err)
	}
	return &job, nil
}

// Pending returns the jobs waiting to be processed.
func (r *Reaper) Pending(ctx context.Context) ([]tree.ReapJob, error) {
	snaps, err := r.db.Query(ctx, store.QueryInput{
		Collection: tree.CollectionReapJobs,
		Field:      tree.FieldState,
		Value:      tree.ReapPending,
	})
	if err != nil {
		return nil, fmt.Errorf("query pending reap jobs: %w", err)
	}
	jobs := make([]tree.ReapJob, 0, len(snaps))
	for _, snap := range snaps {
		var job tree.ReapJob
		if err := snap.DataTo(&job); err != nil {
			return nil, fmt.Errorf("decode reap job %s: %w", snap.ID, err)
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
