package managed

import (
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/testcoord/internal/process"
)

// Phase is the lifecycle phase of a Handle.
type Phase int32

const (
	PhaseStarting Phase = iota
	PhaseReady
	PhaseFailed
	PhaseStopped
)

// String returns the name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "Starting"
	case PhaseReady:
		return "Ready"
	case PhaseFailed:
		return "Failed"
	case PhaseStopped:
		return "Stopped"
	default:
		return "Phase(?)"
	}
}

// Ports maps a port name from the Spec to the leased port number.
type Ports map[string]int

type lease struct {
	pool PortSource
	port int
}

// Handle is a launched process and the ports it leased. The ports are never
// leased to anyone else until the handle is canceled.
type Handle struct {
	id          string
	name        string
	ports       Ports
	leases      []lease
	proc        *process.Process
	diag        process.Diagnostics
	log         *slog.Logger
	stopTimeout time.Duration
	onStop      func(*Handle)

	phase atomic.Int32

	cancelOnce sync.Once
	stopped    chan struct{}
	stopErr    error // written before stopped is closed
}

// ID returns a unique identifier of this launch.
func (h *Handle) ID() string { return h.id }

// Name returns the process name from the Spec.
func (h *Handle) Name() string { return h.name }

// Phase returns the current phase.
func (h *Handle) Phase() Phase { return Phase(h.phase.Load()) }

// Port returns the port leased under name.
func (h *Handle) Port(name string) (int, bool) {
	p, ok := h.ports[name]
	return p, ok
}

// Ports returns a copy of all leased ports.
func (h *Handle) Ports() Ports {
	return maps.Clone(h.ports)
}

// Diagnostics returns everything the process wrote to its error stream so
// far.
func (h *Handle) Diagnostics() string {
	return h.diag.String()
}

// Exited is closed when the process exits.
func (h *Handle) Exited() <-chan struct{} {
	return h.proc.Exited()
}

// Stopped is closed once Cancel's stop sequence has finished.
func (h *Handle) Stopped() <-chan struct{} {
	return h.stopped
}

// Cancel requests termination. The leased ports are released before it
// returns, whether or not the process has exited yet; the SIGTERM/SIGKILL
// sequence runs in the background. Safe to call any number of times.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(func() {
		h.phase.Store(int32(PhaseStopped))
		h.releasePorts()
		if h.onStop != nil {
			h.onStop(h)
		}
		go func() {
			h.stopErr = h.proc.Stop(h.stopTimeout)
			close(h.stopped)
		}()
	})
}

// Close cancels the handle and waits for the process to be stopped. It
// returns the stop error, if any, on every call.
func (h *Handle) Close() error {
	h.Cancel()
	<-h.stopped
	return h.stopErr
}

// releasePorts returns every leased port to its pool.
func (h *Handle) releasePorts() {
	for _, l := range h.leases {
		l.pool.StopLease(l.port)
	}
	h.log.Debug("released ports", "process", h.name, "id", h.id, "ports", h.ports)
}
