package toolsetup

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/giantswarm/testcoord/internal/memo"
	"github.com/giantswarm/testcoord/internal/metrics"
)

// RestoreOption configures a Restorer.
type RestoreOption func(*Restorer)

// WithRestoreCommand replaces the restore command, "dotnet tool restore" by
// default.
func WithRestoreCommand(name string, args ...string) RestoreOption {
	return func(r *Restorer) {
		if name != "" {
			r.command = name
			r.args = args
		}
	}
}

// WithRestoreLogger sets the logger. A nil logger keeps slog.Default().
func WithRestoreLogger(l *slog.Logger) RestoreOption {
	return func(r *Restorer) {
		if l != nil {
			r.log = l
		}
	}
}

// WithRestoreRecorder reports restore executions and cache hits.
func WithRestoreRecorder(rec metrics.Recorder) RestoreOption {
	return func(r *Restorer) {
		r.rec = rec
	}
}

// Restorer restores local tools at most once per directory. Only a
// successful restore is remembered.
type Restorer struct {
	command string
	args    []string
	log     *slog.Logger
	rec     metrics.Recorder
	done    *memo.Registry[string, struct{}]
}

// NewRestorer creates a Restorer.
func NewRestorer(opts ...RestoreOption) *Restorer {
	r := &Restorer{
		command: "dotnet" + ExecutableExtension(),
		args:    []string{"tool", "restore"},
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.done = memo.NewRegistry[string, struct{}]("tool_restore", memo.CacheOnSuccess,
		memo.WithRecorder(r.rec))
	return r
}

// Restore runs the restore command in dir unless it already succeeded
// there. Concurrent callers for the same dir wait for the one running.
func (r *Restorer) Restore(ctx context.Context, dir string) error {
	key, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	_, err = r.done.GetOrRun(ctx, key, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.run(ctx, key)
	})
	return err
}

// Restored reports whether a restore in dir has succeeded.
func (r *Restorer) Restored(dir string) bool {
	key, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return r.done.State(key) == memo.StateCompleted
}

func (r *Restorer) run(ctx context.Context, dir string) error {
	cmdline := strings.Join(append([]string{r.command}, r.args...), " ")
	r.log.Debug("restoring tools", "dir", dir, "command", cmdline)

	res, err := runBuffered(ctx, dir, r.command, r.args...)
	if err != nil {
		return fmt.Errorf("the %s command failed: %w", cmdline, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("the %s command failed with exit code %d and the following output: %s",
			cmdline, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	r.log.Info("tools restored", "dir", dir)
	return nil
}
