package testcoord

import (
	"context"
	"time"

	"github.com/giantswarm/testcoord/internal/managed"
	"github.com/giantswarm/testcoord/internal/portlease"
	"github.com/giantswarm/testcoord/internal/snapshot"
	"github.com/giantswarm/testcoord/internal/toolsetup"
)

// Process launch types.
type (
	// ProcessSpec describes a process for Coordinator.Launch.
	ProcessSpec = managed.Spec

	// PortRequest asks Launch to lease one port from Pool under Name. Any
	// PortPool returned by Coordinator.Pool can be used as Pool.
	PortRequest = managed.PortRequest

	// PortSource is what a PortRequest leases from.
	PortSource = managed.PortSource

	// Ports maps port names of a ProcessSpec to leased ports.
	Ports = managed.Ports

	// Handle is the concrete Process returned by Launch. Custom ready
	// conditions receive it.
	Handle = managed.Handle

	// ReadyCondition decides when a launched process is ready.
	ReadyCondition = managed.ReadyCondition

	// ReadyFunc adapts a function to ReadyCondition.
	ReadyFunc = managed.ReadyFunc
)

// PortProber reports whether a port is free at the OS level.
type PortProber = portlease.Prober

// Driver setup types.
type (
	// Browser identifies the browser a driver is installed for.
	Browser = toolsetup.Browser

	// DriverInstaller downloads and installs a browser driver.
	DriverInstaller = toolsetup.Installer
)

// Supported browsers.
const (
	Chrome           = toolsetup.Chrome
	Edge             = toolsetup.Edge
	Firefox          = toolsetup.Firefox
	InternetExplorer = toolsetup.InternetExplorer
)

// Snapshot types.
type (
	// SnapshotEnvironment is a running environment that can be paused
	// into a snapshot and resumed.
	SnapshotEnvironment = snapshot.Environment

	// SnapshotInitializer builds the environment and returns its
	// reference, e.g. a connection string.
	SnapshotInitializer = snapshot.Initializer

	// DirectoryEnvironment snapshots a data directory. SQLite databases in
	// it are copied consistently even while open.
	DirectoryEnvironment = snapshot.DirectoryEnvironment
)

var (
	_ PortSource  = PortPool(nil)
	_ Process     = (*managed.Handle)(nil)
	_ PortPool    = (*portlease.Pool)(nil)
	_ Snapshotter = (*snapshot.Coordinator)(nil)
)

// GracePeriod treats a process as ready once it has run for d without
// exiting.
//
//nolint:ireturn // condition constructors return the interface
func GracePeriod(d time.Duration) ReadyCondition {
	return managed.GracePeriod(d)
}

// UntilExit waits for the process to exit and treats a zero exit status as
// success. Use it for one-shot commands.
//
//nolint:ireturn // condition constructors return the interface
func UntilExit() ReadyCondition {
	return managed.UntilExit()
}

// TCPProbe polls the port leased under portName every interval until it
// accepts a connection or timeout elapses.
//
//nolint:ireturn // condition constructors return the interface
func TCPProbe(portName string, interval, timeout time.Duration) ReadyCondition {
	return managed.TCPProbe(portName, interval, timeout)
}

// AllReady requires every condition in order.
//
//nolint:ireturn // condition constructors return the interface
func AllReady(conds ...ReadyCondition) ReadyCondition {
	return managed.All(conds...)
}

// RestoreSnapshot replaces dataDir with a copy of the snapshot at location.
func RestoreSnapshot(ctx context.Context, location, dataDir string) error {
	return snapshot.Restore(ctx, location, dataDir)
}

// FallbackDriverVersion returns the driver version installed when the
// browser's own version cannot be determined.
func FallbackDriverVersion(b Browser) string {
	return toolsetup.FallbackVersion(b)
}
