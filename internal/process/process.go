package process

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/giantswarm/testcoord/internal/fault"
)

// ErrAlreadyStarted is returned when Start is called on a running process.
const ErrAlreadyStarted = fault.Error("process already started")

// ErrNilCmd is returned when Start is called with a nil *exec.Cmd.
const ErrNilCmd = fault.Error("cmd must not be nil")

// DefaultStopTimeout bounds Stop when the caller passes no timeout.
const DefaultStopTimeout = 10 * time.Second

// waitDelay bounds how long cmd.Wait keeps copying output after the process
// exited, in case a grandchild inherited the pipes.
const waitDelay = 2 * time.Second

// Process tracks one started command.
//
// Start and Stop are serialized by an internal mutex, so Stop may be called
// from any goroutine and any number of times. Exited can be selected on
// concurrently with both.
type Process struct {
	name string
	log  *slog.Logger

	mu      sync.Mutex
	started bool // a Process runs at most once
	cmd     *exec.Cmd
	done    <-chan error // receives the single cmd.Wait result
	exited  chan struct{}
	waitErr error // set before exited is closed
}

// New creates a Process. Panics if name is empty since every log line and
// error names the process. A nil logger uses slog.Default().
func New(name string, logger *slog.Logger) *Process {
	if name == "" {
		panic("testcoord: process name must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Process{name: name, log: logger, exited: make(chan struct{})}
}

// Name returns the process name.
func (p *Process) Name() string {
	return p.name
}

// Start starts cmd; a Process can be started only once. The caller sets Path, Args, Dir, Env, Stdout, and Stderr
// beforehand. Exactly one goroutine calls cmd.Wait; its result is consumed by
// Stop and published through Exited and ExitErr.
func (p *Process) Start(cmd *exec.Cmd) error {
	if cmd == nil {
		return ErrNilCmd
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}

	configureSysProcAttr(cmd)
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = waitDelay
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.name, err)
	}
	p.started = true
	p.cmd = cmd

	done := make(chan error, 1)
	exited := p.exited
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.waitErr = err
		p.mu.Unlock()
		done <- err
		close(exited)
	}()
	p.done = done

	p.log.Debug("process started", "process", p.name, "pid", cmd.Process.Pid)
	return nil
}

// Pid returns the OS process id, or 0 when not started.
func (p *Process) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Exited returns a channel closed once the process has exited. It never
// closes for a process that was not started.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// ExitErr returns the cmd.Wait error once Exited is closed.
func (p *Process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// IsStarted reports whether Start succeeded and Stop has not run yet.
func (p *Process) IsStarted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

// Stop terminates the process, waiting at most timeout (DefaultStopTimeout
// when not positive) plus a short drain. It is a no-op when the process was
// never started or has already been stopped.
func (p *Process) Stop(timeout time.Duration) error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.cmd, p.done = nil, nil
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	pid := cmd.Process.Pid
	err := terminate(cmd, done, timeout, p.name)
	if err != nil {
		p.log.Warn("process stop failed; process may be orphaned",
			"process", p.name, "pid", pid, "error", err)
		return err
	}
	p.log.Debug("process stopped", "process", p.name, "pid", pid)
	return nil
}

// exitedEarly describes why a process exited while it was expected to keep
// running.
func exitedEarly(name string, err error) error {
	if err == nil {
		return fmt.Errorf("%s exited with status 0", name)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("%s exited with status %d", name, exitErr.ExitCode())
	}
	return fmt.Errorf("%s: %w", name, err)
}

// ExitedEarly returns an error describing the exit of a process that should
// still be running.
func (p *Process) ExitedEarly() error {
	return exitedEarly(p.name, p.ExitErr())
}
