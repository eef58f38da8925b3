package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/jacentio/grove/store"
)

// Notifier is told when a committed operation left a reap job behind.
// Notify must not block.
type Notifier interface {
	Notify()
}

// Config holds configuration for the tree service.
type Config struct {
	// MaxDepth bounds ancestor chain walks (1-1024, default: 64).
	MaxDepth int `mapstructure:"max_depth"`

	// MaxAttempts is the number of times a transaction is tried when it keeps
	// conflicting with concurrent writers (1-50, default: 5).
	MaxAttempts int `mapstructure:"max_attempts"`

	// InitialInterval is the first backoff delay between attempts (default: 20ms).
	InitialInterval time.Duration `mapstructure:"initial_interval"`

	// MaxInterval caps the backoff delay (default: 1s).
	MaxInterval time.Duration `mapstructure:"max_interval"`

	// Notifier is woken after a reap job commits. Optional.
	Notifier Notifier `mapstructure:"-"`

	// Now returns the current time. Defaults to time.Now in UTC.
	Now func() time.Time `mapstructure:"-"`
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		MaxDepth:        DefaultMaxDepth,
		MaxAttempts:     5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	defaults := DefaultConfig()
	if c.MaxDepth < 1 {
		c.MaxDepth = defaults.MaxDepth
	}
	if c.MaxDepth > 1024 {
		c.MaxDepth = 1024
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.MaxAttempts > 50 {
		c.MaxAttempts = 50
	}
	if c.InitialInterval <= 0 {
		c.InitialInterval = defaults.InitialInterval
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = max(defaults.MaxInterval, c.InitialInterval)
	}
	if c.Now == nil {
		c.Now = func() time.Time { return time.Now().UTC() }
	}
}

// Service performs transactional operations on namespace trees.
type Service struct {
	db     store.DB
	config Config
	logger *slog.Logger
}

// New creates a new tree service.
func New(db store.DB, config Config, logger *slog.Logger) *Service {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		config: config,
		logger: logger,
	}
}

// Config returns the effective configuration.
func (s *Service) Config() Config {
	return s.config
}

// run executes fn as one transaction, retrying on conflicts with exponential
// backoff. Store errors are mapped onto this package's errors.
func (s *Service) run(ctx context.Context, op string, fn func(ctx context.Context, tx store.Tx) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.config.InitialInterval
	eb.MaxInterval = s.config.MaxInterval
	eb.MaxElapsedTime = 0

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := s.db.RunTransaction(ctx, fn)
		if errors.Is(err, store.ErrConflict) {
			s.logger.Debug("transaction conflict", "op", op, "attempt", attempts)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.config.MaxAttempts-1)), ctx))

	err = mapStoreError(err)
	if errors.Is(err, store.ErrConflict) {
		err = fmt.Errorf("%w: %s after %d attempts", ErrAborted, op, attempts)
	}
	s.logResult(op, err)
	return err
}

func (s *Service) logResult(op string, err error) {
	switch {
	case err == nil:
		s.logger.Debug("operation committed", "op", op)
	case Code(err) == CodeInternal:
		s.logger.Error("operation failed", "op", op, "error", err)
	default:
		s.logger.Warn("operation rejected", "op", op, "code", Code(err), "message", err.Error())
	}
}

func (s *Service) notify() {
	if s.config.Notifier != nil {
		s.config.Notifier.Notify()
	}
}

// mapStoreError maps commit-time store errors onto tree errors.
func mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrAlreadyExists) && !errors.Is(err, ErrAlreadyExists):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	case errors.Is(err, store.ErrNotFound) && !errors.Is(err, ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return err
	}
}

// reader is satisfied by both store.DB and store.Tx.
type reader interface {
	Get(ctx context.Context, collection, id string) (*store.Snapshot, error)
}

func getNode(ctx context.Context, r reader, id string) (Node, error) {
	snap, err := r.Get(ctx, CollectionNodes, id)
	if err != nil {
		return nil, err
	}
	if !snap.Exists {
		return nil, fmt.Errorf("%w: node %s", ErrNotFound, id)
	}
	var rec nodeRecord
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("decode node %s: %w", id, err)
	}
	return rec.node(), nil
}

func getDirectory(ctx context.Context, r reader, id string) (*Directory, error) {
	n, err := getNode(ctx, r, id)
	if err != nil {
		return nil, err
	}
	d, ok := n.(*Directory)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrTypeMismatch, id)
	}
	return d, nil
}

func getFile(ctx context.Context, r reader, id string) (*File, error) {
	n, err := getNode(ctx, r, id)
	if err != nil {
		return nil, err
	}
	f, ok := n.(*File)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a file", ErrTypeMismatch, id)
	}
	return f, nil
}

// checkIDFree fails with ErrAlreadyExists when id names a live node or a
// deleted Directory whose descendants are still waiting for the reaper.
func checkIDFree(ctx context.Context, tx store.Tx, id string) error {
	snap, err := tx.Get(ctx, CollectionNodes, id)
	if err != nil {
		return err
	}
	if snap.Exists {
		return fmt.Errorf("%w: node %s", ErrAlreadyExists, id)
	}
	snap, err = tx.Get(ctx, CollectionReapJobs, id)
	if err != nil {
		return err
	}
	if snap.Exists {
		return fmt.Errorf("%w: node %s is pending reap", ErrAlreadyExists, id)
	}
	return nil
}

func checkOwner(n Node, owner string) error {
	if h := n.Info(); h.Owner != owner {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, h.ID)
	}
	return nil
}

// touchChain bumps the revision of every node in chain and applies extra to each.
func touchChain(tx store.Tx, chain []Node, extra ...store.Mutation) error {
	for _, n := range chain {
		mutations := append([]store.Mutation{store.Inc(fieldRevision, 1)}, extra...)
		if err := tx.Update(CollectionNodes, n.Info().ID, mutations...); err != nil {
			return err
		}
	}
	return nil
}

// enqueueReap records a reap job for the descendants of nodeID. The job is
// keyed by nodeID, so it also reserves the id until the reaper is done.
func (s *Service) enqueueReap(tx store.Tx, nodeID, owner string) error {
	job := ReapJob{
		ID:        nodeID,
		NodeID:    nodeID,
		Owner:     owner,
		State:     ReapPending,
		CreatedAt: s.config.Now(),
	}
	return tx.Create(CollectionReapJobs, job.ID, job)
}

// ReapPending is the state of a reap job waiting for the reaper.
const ReapPending = "pending"

// ReapJob asks the reaper to remove every descendant of NodeID.
// It is written in the same transaction that deletes NodeID's record, and
// its ID equals NodeID.
type ReapJob struct {
	ID        string    `json:"id"`
	NodeID    string    `json:"node_id"`
	Owner     string    `json:"owner"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}
