package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/testcoord/internal/fault"
	"k8s.io/apimachinery/pkg/util/wait"
)

// Errors returned by WaitReady for invalid configuration or an early exit.
const (
	ErrIntervalNotPositive = fault.Error("interval must be positive")
	ErrTimeoutNotPositive  = fault.Error("timeout must be positive")
	ErrProcessExited       = fault.Error("process exited before becoming ready")
)

// ReadinessCheck reports whether a process is ready. attempt starts at 1. A
// non-nil error aborts polling.
type ReadinessCheck func(ctx context.Context, attempt int) (ready bool, err error)

// WaitReadyConfig configures WaitReady.
type WaitReadyConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	Name     string // process name for errors and logs
	Target   string // what is probed, e.g. "127.0.0.1:11003"
	Logger   *slog.Logger
	// Exited aborts polling as soon as it is closed.
	Exited <-chan struct{}
}

// WaitReady calls check every Interval until it reports ready, returns an
// error, the process exits, or Timeout elapses.
func WaitReady(ctx context.Context, cfg WaitReadyConfig, check ReadinessCheck) error {
	if cfg.Name == "" {
		return errors.New("wait ready: name must not be empty")
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrIntervalNotPositive)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("wait for %s: %w", cfg.Name, ErrTimeoutNotPositive)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// The condition runs sequentially, so attempt needs no synchronization.
	attempt := 0
	err := wait.PollUntilContextTimeout(ctx, cfg.Interval, cfg.Timeout, true,
		func(pollCtx context.Context) (bool, error) {
			if cfg.Exited != nil {
				select {
				case <-cfg.Exited:
					return false, fmt.Errorf("process %s: %w", cfg.Name, ErrProcessExited)
				default:
				}
			}

			attempt++
			ready, err := check(pollCtx, attempt)
			if err != nil {
				return false, err
			}
			if ready {
				log.Debug("process ready", "process", cfg.Name, "target", cfg.Target, "attempt", attempt)
			}
			return ready, nil
		})
	if err != nil {
		return fmt.Errorf("wait for %s readiness on %s: %w", cfg.Name, cfg.Target, err)
	}
	return nil
}
