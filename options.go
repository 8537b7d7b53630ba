package testcoord

import (
	"fmt"
	"slices"
	"time"

	"github.com/giantswarm/testcoord/internal/core"
)

// requirePositive panics if v <= 0 with a descriptive message.
func requirePositive[T int | time.Duration](name string, v T) {
	if v <= 0 {
		panic(fmt.Sprintf("testcoord: %s must be greater than 0, got %v", name, v))
	}
}

// requireNonEmpty panics if s is empty with a descriptive message.
func requireNonEmpty(name, s string) {
	if s == "" {
		panic(fmt.Sprintf("testcoord: %s must not be empty", name))
	}
}

// CoordinatorOption configures a Coordinator during construction via
// NewCoordinator.
//
// With* functions panic on invalid input. Option values are nearly always
// constants, so an invalid one is a programmer error and fails fast, the
// same way regexp.MustCompile does.
type CoordinatorOption func(*coordinatorConfig)

// WithGroupIndex selects the port block this process leases from. Give
// every test process that runs concurrently on a machine its own index.
//
// Default: 0. See AgentIndexOrDefault.
//
// Panics if index < 0.
func WithGroupIndex(index int) CoordinatorOption {
	if index < 0 {
		panic(fmt.Sprintf("testcoord: group index must not be negative, got %d", index))
	}
	return func(c *coordinatorConfig) {
		c.GroupIndex = index
	}
}

// WithPortRange adds or replaces a partitioned port range. Group g leases
// from [base + g*blockSize, base + (g+1)*blockSize - 1]. The "smtp" and
// "webui" ranges always exist and can be moved with this option.
//
// Panics if name is empty, base < 1, or blockSize <= 0.
func WithPortRange(name string, base, blockSize int) CoordinatorOption {
	requireNonEmpty("port range name", name)
	requirePositive("port range base", base)
	requirePositive("port range block size", blockSize)
	return func(c *coordinatorConfig) {
		c.Ranges[name] = core.PortRange{Base: base, BlockSize: blockSize}
	}
}

// WithManifestPath sets the local tool manifest path.
//
// Default: DefaultManifestPath.
//
// Panics if path is empty.
func WithManifestPath(path string) CoordinatorOption {
	requireNonEmpty("manifest path", path)
	return func(c *coordinatorConfig) {
		c.ManifestPath = path
	}
}

// WithRestoreCommand sets the command run once per manifest directory to
// restore local tools.
//
// Default: DefaultRestoreCommand().
//
// Panics if name is empty.
func WithRestoreCommand(name string, args ...string) CoordinatorOption {
	requireNonEmpty("restore command", name)
	cmd := append([]string{name}, args...)
	return func(c *coordinatorConfig) {
		c.RestoreCommand = slices.Clone(cmd)
	}
}

// WithDotnetCommand sets the executable that runs local tools.
//
// Default: DefaultDotnetCommand.
//
// Panics if cmd is empty.
func WithDotnetCommand(cmd string) CoordinatorOption {
	requireNonEmpty("dotnet command", cmd)
	return func(c *coordinatorConfig) {
		c.DotnetCommand = cmd
	}
}

// WithSMTPReadyTimeout bounds how long StartSMTP waits for smtp4dev to
// accept connections.
//
// Default: DefaultSMTPReadyTimeout.
//
// Panics if d <= 0.
func WithSMTPReadyTimeout(d time.Duration) CoordinatorOption {
	requirePositive("SMTP ready timeout", d)
	return func(c *coordinatorConfig) {
		c.SMTPReadyTimeout = d
	}
}

// WithStopTimeout sets the SIGTERM grace period of launched processes
// whose spec does not set one.
//
// Default: DefaultStopTimeout.
//
// Panics if d <= 0.
func WithStopTimeout(d time.Duration) CoordinatorOption {
	requirePositive("stop timeout", d)
	return func(c *coordinatorConfig) {
		c.StopTimeout = d
	}
}

// WithMaxLaunchAttempts lets Launch retry a startup failure with fresh
// ports, up to n attempts in total. Failures to start the command at all,
// exhausted pools, and invalid specs are never retried.
//
// Default: DefaultMaxLaunchAttempts.
//
// Panics if n <= 0.
func WithMaxLaunchAttempts(n int) CoordinatorOption {
	requirePositive("max launch attempts", n)
	return func(c *coordinatorConfig) {
		c.MaxLaunchAttempts = n
	}
}

// WithSnapshotFileLock makes snapshot creation hold an exclusive file lock
// next to the location, so separate test processes sharing a location
// build it one at a time.
//
// Default: false.
func WithSnapshotFileLock(enabled bool) CoordinatorOption {
	return func(c *coordinatorConfig) {
		c.SnapshotFileLock = enabled
	}
}

// WithMetricsNamespace sets the prefix of every metric in Registry.
//
// Default: DefaultMetricsNamespace.
//
// Panics if ns is empty.
func WithMetricsNamespace(ns string) CoordinatorOption {
	requireNonEmpty("metrics namespace", ns)
	return func(c *coordinatorConfig) {
		c.MetricsNamespace = ns
	}
}

// WithDriverInstaller enables SetupDriver. Without it SetupDriver returns
// ErrNoDriverInstaller.
//
// Panics if installer is nil.
func WithDriverInstaller(installer DriverInstaller) CoordinatorOption {
	if installer == nil {
		panic("testcoord: driver installer must not be nil")
	}
	return func(c *coordinatorConfig) {
		c.DriverInstaller = installer
	}
}

// WithPortProber replaces the check that a port is free at the OS level.
// The default tries to listen on the port.
//
// Panics if probe is nil.
func WithPortProber(probe PortProber) CoordinatorOption {
	if probe == nil {
		panic("testcoord: port prober must not be nil")
	}
	return func(c *coordinatorConfig) {
		c.Prober = probe
	}
}
