package testcoord

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Coordinator owns the resources shared by all tests of one process.
//
// Callers must follow this lifecycle ordering:
//
//	NewCoordinator → Launch/StartSMTP/Snapshots/... (repeatable) → Shutdown
//
// All methods are safe for concurrent use.
type Coordinator interface {
	// Pool returns the named port pool. The "smtp" and "webui" pools always
	// exist; others come from WithPortRange.
	Pool(name string) (PortPool, bool)

	// PoolNames returns the names of all pools, sorted.
	PoolNames() []string

	// Launch leases the ports of spec, starts the process, and waits for
	// spec.Ready. Diagnostic output on stderr before the process is ready
	// fails the launch with a *StartupError holding the whole stream, and
	// the launch is retried up to the configured attempt count. On failure
	// no ports stay leased.
	//
	// Returns ErrShuttingDown after Shutdown.
	Launch(ctx context.Context, spec ProcessSpec) (Process, error)

	// RestoreTools restores the local tools of dir once per process. A
	// failure is not cached.
	RestoreTools(ctx context.Context, dir string) error

	// StartSMTP starts a private smtp4dev instance on ports leased from the
	// "smtp" and "webui" pools. The caller closes the returned server.
	StartSMTP(ctx context.Context) (SMTPServer, error)

	// SetupDriver installs the driver for browser once per process and
	// returns the installed version. Success and failure are both cached.
	//
	// Returns ErrNoDriverInstaller without WithDriverInstaller.
	SetupDriver(ctx context.Context, browser Browser) (string, error)

	// Snapshots returns the snapshot coordinator for location. Paths that
	// resolve to the same directory share one coordinator.
	Snapshots(location string) (Snapshotter, error)

	// Registry exposes the Coordinator's metrics.
	Registry() *prometheus.Registry

	// Shutdown stops every process launched through the Coordinator and
	// rejects further launches. Safe to call more than once.
	Shutdown() error
}

// PortPool hands out ports from one group's block of a partitioned range.
type PortPool interface {
	// Name identifies the pool in logs and metrics.
	Name() string

	// Range returns the inclusive bounds of this group's block.
	Range() (lower, upper int)

	// LeaseRandomPort picks a random port that is neither leased nor in
	// use by another process. Returns ErrResourceExhausted when none is
	// left.
	LeaseRandomPort() (int, error)

	// StopLease returns port to the pool. Unknown and already released
	// ports are ignored.
	StopLease(port int)

	// IsLeased reports whether port is currently leased from this pool.
	IsLeased(port int) bool

	// Leased returns the number of ports currently leased.
	Leased() int
}

// Process is a launched external process.
type Process interface {
	// ID returns a unique identifier for this launch.
	ID() string

	// Name returns the name from the ProcessSpec.
	Name() string

	// Port returns the port leased under name.
	Port(name string) (int, bool)

	// Ports returns a copy of all leased ports.
	Ports() Ports

	// Diagnostics returns everything the process wrote to stderr so far.
	Diagnostics() string

	// Exited is closed when the process exits for any reason.
	Exited() <-chan struct{}

	// Cancel releases the leased ports at once and stops the process in
	// the background. Safe to call more than once.
	Cancel()

	// Close cancels the process and waits until it has stopped.
	Close() error
}

// SMTPServer is a running smtp4dev instance.
type SMTPServer interface {
	// Port returns the SMTP port.
	Port() int

	// Host returns the SMTP endpoint as host:port.
	Host() string

	// WebUIURL returns the address of the web UI.
	WebUIURL() string

	// Process returns the underlying smtp4dev process.
	Process() Process

	// Close stops smtp4dev and releases its ports.
	Close() error
}

// Snapshotter creates one environment snapshot per process.
type Snapshotter interface {
	// Location returns the absolute snapshot location.
	Location() string

	// Created reports whether a snapshot has been taken.
	Created() bool

	// RunOnceAndSnapshot runs init once, snapshots the resulting
	// environment into Location, resumes it, and returns its reference.
	// Concurrent and later callers receive the same reference. A failed
	// attempt is not cached: the next caller starts over.
	RunOnceAndSnapshot(ctx context.Context, init SnapshotInitializer) (string, error)
}
