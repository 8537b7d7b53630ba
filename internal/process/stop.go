package process

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"
	"time"
)

// termGracePeriod is the longest time a process gets to honour SIGTERM
// before it is killed. It is capped at the stop timeout.
const termGracePeriod = 5 * time.Second

// killDrainTimeout bounds the wait for cmd.Wait after SIGKILL. SIGKILL cannot
// be caught, so this only fires if Wait itself is stuck.
const killDrainTimeout = 10 * time.Second

// drain reads the Wait result from done, giving up after timeout.
func drain(done <-chan error, timeout time.Duration) (bool, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		return true, err
	case <-t.C:
		return false, nil
	}
}

// terminate sends SIGTERM, escalates to SIGKILL after the grace period, and
// waits for the Wait goroutine behind done. Worst case it blocks for
// timeout + killDrainTimeout.
func terminate(cmd *exec.Cmd, done <-chan error, timeout time.Duration, name string) error {
	if done == nil {
		return fmt.Errorf("%s: done channel must not be nil", name)
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already exited.
		ok, waitErr := drain(done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out draining exited process", name)
		}
		return signalExitOK(waitErr, name)
	}

	killTimer := time.AfterFunc(min(termGracePeriod, timeout), func() {
		_ = cmd.Process.Kill()
	})
	defer killTimer.Stop()

	total := time.NewTimer(timeout)
	defer total.Stop()

	select {
	case err := <-done:
		return signalExitOK(err, name)
	case <-total.C:
		ok, waitErr := drain(done, killDrainTimeout)
		if !ok {
			return fmt.Errorf("%s: timed out waiting for process to exit after SIGKILL", name)
		}
		if err := signalExitOK(waitErr, name); err != nil {
			return fmt.Errorf("%s stop timeout: %w", name, err)
		}
		return nil
	}
}

// signalExitOK treats an exit caused by SIGTERM or SIGKILL as a clean stop.
// A process that had already exited on its own with a non-zero status is
// also not a stop failure; that status is reported through ExitErr instead.
func signalExitOK(err error, name string) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			sig := status.Signal()
			if sig == syscall.SIGTERM || sig == syscall.SIGKILL {
				return nil
			}
		}
		if exitErr.Exited() {
			return nil
		}
	}
	return fmt.Errorf("%s: %w", name, err)
}
