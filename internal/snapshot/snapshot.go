package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/giantswarm/testcoord/internal/fileutil"
	"github.com/giantswarm/testcoord/internal/memo"
	"github.com/giantswarm/testcoord/internal/metrics"
	"github.com/gofrs/flock"
)

// lockPollInterval is how often a blocked creation retries the file lock.
const lockPollInterval = 50 * time.Millisecond

// Environment is a running environment that can be snapshotted.
type Environment interface {
	// TakeSnapshot writes the environment's state to location.
	TakeSnapshot(ctx context.Context, location string) error
	// Resume continues the environment after TakeSnapshot.
	Resume(ctx context.Context) error
}

// Initializer creates and populates an environment. ref identifies the
// result, e.g. a connection string or the name of a database.
type Initializer func(ctx context.Context) (env Environment, ref string, err error)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. A nil logger keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// WithFileLock serializes creation across OS processes with an flock next
// to the location.
func WithFileLock(enabled bool) Option {
	return func(c *Coordinator) {
		c.fileLock = enabled
	}
}

// WithRecorder reports snapshot durations.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Coordinator) {
		c.rec = metrics.OrNop(r)
	}
}

// Coordinator creates the snapshot at one location at most once.
type Coordinator struct {
	location string
	fileLock bool
	log      *slog.Logger
	rec      metrics.Recorder
	cell     *memo.Cell[string]
}

// New creates a Coordinator for location. Panics if location is empty.
func New(location string, opts ...Option) *Coordinator {
	if location == "" {
		panic("snapshot: location must not be empty")
	}
	c := &Coordinator{
		location: filepath.Clean(location),
		log:      slog.Default(),
		rec:      metrics.Nop{},
		cell:     memo.NewCell[string](memo.CacheOnSuccess),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Location returns the snapshot location.
func (c *Coordinator) Location() string {
	return c.location
}

// Created reports whether the snapshot exists and the result reference is
// pinned.
func (c *Coordinator) Created() bool {
	return c.cell.State() == memo.StateCompleted
}

// RunOnceAndSnapshot returns the pinned result reference, creating the
// snapshot first if no earlier call succeeded. A canceled ctx abandons the
// wait without affecting a creation run by another caller.
func (c *Coordinator) RunOnceAndSnapshot(ctx context.Context, init Initializer) (string, error) {
	if init == nil {
		return "", errors.New("snapshot: initializer must not be nil")
	}
	return c.cell.GetOrRun(ctx, func(ctx context.Context) (string, error) {
		return c.create(ctx, init)
	})
}

// create runs one creation attempt.
func (c *Coordinator) create(ctx context.Context, init Initializer) (ref string, retErr error) {
	start := time.Now()
	defer func() {
		c.rec.SnapshotCreated(time.Since(start), retErr)
	}()

	if c.fileLock {
		unlock, err := c.lockLocation(ctx)
		if err != nil {
			return "", fmt.Errorf("snapshot %s: %w", c.location, err)
		}
		defer unlock()
	}

	c.log.Debug("creating snapshot", "location", c.location)

	if err := fileutil.RemoveAll(c.location); err != nil {
		return "", fmt.Errorf("snapshot %s: clear location: %w", c.location, err)
	}

	env, ref, err := init(ctx)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: initialize: %w", c.location, err)
	}
	if env == nil {
		return "", fmt.Errorf("snapshot %s: initializer returned no environment", c.location)
	}
	if err := env.TakeSnapshot(ctx, c.location); err != nil {
		return "", fmt.Errorf("snapshot %s: take snapshot: %w", c.location, err)
	}
	if err := env.Resume(ctx); err != nil {
		return "", fmt.Errorf("snapshot %s: resume: %w", c.location, err)
	}

	c.log.Info("snapshot created", "location", c.location, "ref", ref, "duration", time.Since(start))
	return ref, nil
}

// lockLocation holds an flock on location+".lock" until the returned func is
// called, so coordinators in other processes never build the same location
// at once. The lock file itself is left in place.
func (c *Coordinator) lockLocation(ctx context.Context) (unlock func(), err error) {
	fl := flock.New(c.location + ".lock")
	if err := fileutil.EnsureDirForFile(fl.Path()); err != nil {
		return nil, err
	}

	locked, err := fl.TryLockContext(ctx, lockPollInterval)
	switch {
	case err != nil:
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	case !locked:
		return nil, fmt.Errorf("lock %s: not acquired", fl.Path())
	}
	c.log.Debug("snapshot lock held", "path", fl.Path())

	return func() {
		if err := fl.Close(); err != nil {
			c.log.Warn("release snapshot lock", "path", fl.Path(), "error", err)
		}
	}, nil
}
