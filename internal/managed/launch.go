package managed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/giantswarm/testcoord/internal/fault"
	"github.com/giantswarm/testcoord/internal/metrics"
	"github.com/giantswarm/testcoord/internal/portlease"
	"github.com/giantswarm/testcoord/internal/process"
	"github.com/google/uuid"
)

// PortSource hands out ports. *portlease.Pool implements it.
type PortSource interface {
	LeaseRandomPort() (int, error)
	StopLease(port int)
}

var _ PortSource = (*portlease.Pool)(nil)

// PortRequest asks for one port from Pool, exposed to Args under Name.
type PortRequest struct {
	Name string
	Pool PortSource
}

// Spec describes a process to launch.
type Spec struct {
	Name    string
	Command string
	// Args builds the argument list once the ports are leased.
	Args  func(ports Ports) []string
	Dir   string
	Env   []string
	Ports []PortRequest
	// Ready decides when the outcome is judged.
	Ready       ReadyCondition
	StopTimeout time.Duration
	Logger      *slog.Logger
	Recorder    metrics.Recorder
	// OnStop runs once when the handle is canceled.
	OnStop func(*Handle)
}

// validate reports every missing or invalid field.
func (s Spec) validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	}
	if s.Command == "" {
		errs = append(errs, errors.New("command must not be empty"))
	}
	if s.Ready == nil {
		errs = append(errs, errors.New("ready condition must not be nil"))
	}
	seen := make(map[string]struct{}, len(s.Ports))
	for _, r := range s.Ports {
		if r.Name == "" || r.Pool == nil {
			errs = append(errs, errors.New("port requests need a name and a pool"))
			continue
		}
		if _, dup := seen[r.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate port name %q", r.Name))
		}
		seen[r.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

// leasePorts leases every requested port, releasing the ones already leased
// if any request fails.
func leasePorts(reqs []PortRequest) (Ports, []lease, error) {
	ports := make(Ports, len(reqs))
	leases := make([]lease, 0, len(reqs))
	for _, r := range reqs {
		port, err := r.Pool.LeaseRandomPort()
		if err != nil {
			for _, l := range leases {
				l.pool.StopLease(l.port)
			}
			return nil, nil, fmt.Errorf("lease %s port: %w", r.Name, err)
		}
		ports[r.Name] = port
		leases = append(leases, lease{pool: r.Pool, port: port})
	}
	return ports, leases, nil
}

// Launch leases ports, starts the process, and waits for spec.Ready. It
// returns a Ready handle, or an error after releasing everything it
// acquired. Failures observed after the start are *fault.StartupError values
// carrying the complete captured error stream.
//
// ctx bounds only the startup; the process itself runs until the handle is
// canceled.
func Launch(ctx context.Context, spec Spec) (*Handle, error) {
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("invalid launch spec: %w", err)
	}
	log := spec.Logger
	if log == nil {
		log = slog.Default()
	}
	rec := metrics.OrNop(spec.Recorder)

	ports, leases, err := leasePorts(spec.Ports)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		id:          uuid.NewString(),
		name:        spec.Name,
		ports:       ports,
		leases:      leases,
		proc:        process.New(spec.Name, log),
		log:         log,
		stopTimeout: spec.StopTimeout,
		onStop:      spec.OnStop,
		stopped:     make(chan struct{}),
	}

	var args []string
	if spec.Args != nil {
		args = spec.Args(ports)
	}
	cmd := exec.Command(spec.Command, args...) //nolint:gosec // command comes from the caller's spec
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	}
	cmd.Stdout = &process.LogWriter{Log: log, Name: spec.Name}
	cmd.Stderr = &h.diag

	log.Debug("launching process", "process", spec.Name, "id", h.id, "ports", ports)

	if err := h.proc.Start(cmd); err != nil {
		// Nothing ran, so there is no diagnostic output to report.
		h.phase.Store(int32(PhaseFailed))
		rec.ProcessStarted(spec.Name, metrics.OutcomeFailed)
		h.Cancel()
		return nil, fmt.Errorf("start %s: %w", spec.Name, err)
	}

	readyErr := spec.Ready.Await(ctx, h)

	// Once the process has exited its whole error stream has been copied.
	select {
	case <-h.Exited():
		h.diag.Flush()
	default:
	}

	if readyErr != nil || !h.diag.Empty() {
		return nil, h.fail(ctx, rec, readyErr)
	}

	h.phase.Store(int32(PhaseReady))
	rec.ProcessStarted(spec.Name, metrics.OutcomeReady)
	log.Info("process ready", "process", spec.Name, "id", h.id, "ports", ports)
	return h, nil
}

// fail marks h failed, releases its ports, stops it, and builds the startup
// error. It waits for the stop only while ctx is live; after that the stop
// finishes in the background.
func (h *Handle) fail(ctx context.Context, rec metrics.Recorder, cause error) error {
	h.phase.Store(int32(PhaseFailed))
	rec.ProcessStarted(h.name, metrics.OutcomeFailed)

	startErr := &fault.StartupError{
		Name:        h.name,
		Ports:       h.Ports(),
		Diagnostics: h.diag.String(),
		Cause:       cause,
	}
	h.Cancel()
	select {
	case <-h.stopped:
		if h.stopErr != nil {
			h.log.Warn("stop failed process", "process", h.name, "id", h.id, "error", h.stopErr)
		}
	case <-ctx.Done():
	}
	h.log.Warn("process failed to start", "process", h.name, "id", h.id, "error", startErr)
	return startErr
}

// DefaultMaxAttempts is the number of launch attempts made by
// LaunchWithRetry when maxAttempts is not positive. Retrying is opt-in.
const DefaultMaxAttempts = 1

// LaunchWithRetry calls Launch until it succeeds, up to maxAttempts times.
// Only startup failures are retried; every attempt leases fresh ports, which
// resolves collisions with processes outside this pool's control. Exhausted
// pools and invalid specs are returned immediately.
func LaunchWithRetry(ctx context.Context, spec Spec, maxAttempts int) (*Handle, error) {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	log := spec.Logger
	if log == nil {
		log = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, errors.Join(
					fmt.Errorf("context done after %d attempts: %w", attempt-1, err),
					lastErr,
				)
			}
			return nil, err
		}

		h, err := Launch(ctx, spec)
		if err == nil {
			if attempt > 1 {
				log.Info("process started after retry", "process", spec.Name, "attempt", attempt)
			}
			return h, nil
		}
		if !errors.Is(err, fault.ErrStartupFailure) {
			return nil, err
		}
		lastErr = err
		log.Warn("launch attempt failed", "process", spec.Name, "attempt", attempt, "max_attempts", maxAttempts, "error", err)
	}
	return nil, fmt.Errorf("launch %s after %d attempts: %w", spec.Name, maxAttempts, lastErr)
}
