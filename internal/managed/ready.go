package managed

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/giantswarm/testcoord/internal/process"
)

// ReadyCondition decides when a launched process is quiescent enough for
// its outcome to be judged. Returning an error fails the launch.
type ReadyCondition interface {
	Await(ctx context.Context, h *Handle) error
}

// ReadyFunc adapts a function to ReadyCondition.
type ReadyFunc func(ctx context.Context, h *Handle) error

// Await calls f.
func (f ReadyFunc) Await(ctx context.Context, h *Handle) error {
	return f(ctx, h)
}

// GracePeriod waits d. A process that exits during the grace period has
// failed to start.
func GracePeriod(d time.Duration) ReadyCondition { //nolint:ireturn // condition constructors return the interface
	return ReadyFunc(func(ctx context.Context, h *Handle) error {
		t := time.NewTimer(d)
		defer t.Stop()

		select {
		case <-t.C:
			return nil
		case <-h.Exited():
			return h.proc.ExitedEarly()
		case <-ctx.Done():
			return fmt.Errorf("waiting %s for %s: %w", d, h.name, ctx.Err())
		}
	})
}

// UntilExit waits for the process to run to completion. Use it for commands
// whose whole job is done once they exit; a non-zero exit status fails the
// launch.
func UntilExit() ReadyCondition { //nolint:ireturn // condition constructors return the interface
	return ReadyFunc(func(ctx context.Context, h *Handle) error {
		select {
		case <-h.Exited():
			if err := h.proc.ExitErr(); err != nil {
				return h.proc.ExitedEarly()
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s to finish: %w", h.name, ctx.Err())
		}
	})
}

// probeDialTimeout bounds a single TCP readiness dial.
const probeDialTimeout = time.Second

// TCPProbe waits until the leased port called portName accepts connections
// on 127.0.0.1.
func TCPProbe(portName string, interval, timeout time.Duration) ReadyCondition { //nolint:ireturn // condition constructors return the interface
	return ReadyFunc(func(ctx context.Context, h *Handle) error {
		port, ok := h.Port(portName)
		if !ok {
			return fmt.Errorf("tcp probe: %s has no port named %q", h.name, portName)
		}
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
		dialer := net.Dialer{Timeout: probeDialTimeout}

		return process.WaitReady(ctx, process.WaitReadyConfig{
			Interval: interval,
			Timeout:  timeout,
			Name:     h.name,
			Target:   addr,
			Logger:   h.log,
			Exited:   h.Exited(),
		}, func(ctx context.Context, _ int) (bool, error) {
			conn, err := dialer.DialContext(ctx, "tcp", addr)
			if err != nil {
				return false, nil //nolint:nilerr // not listening yet
			}
			_ = conn.Close()
			return true, nil
		})
	})
}

// All waits for each condition in order and fails on the first error.
func All(conds ...ReadyCondition) ReadyCondition { //nolint:ireturn // condition constructors return the interface
	return ReadyFunc(func(ctx context.Context, h *Handle) error {
		for _, c := range conds {
			if err := c.Await(ctx, h); err != nil {
				return err
			}
		}
		return nil
	})
}
