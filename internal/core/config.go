package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/giantswarm/testcoord/internal/portlease"
	"github.com/giantswarm/testcoord/internal/toolsetup"
)

// Pool names of the ranges every Coordinator owns.
const (
	PoolSMTP  = "smtp"
	PoolWebUI = "webui"
)

// PortRange is a partitioned port range: group g owns
// [Base + g*BlockSize, Base + (g+1)*BlockSize - 1].
type PortRange struct {
	Base      int
	BlockSize int
}

// CoordinatorConfig holds configuration for a Coordinator.
//
// All fields are immutable after NewCoordinatorWithConfig.
type CoordinatorConfig struct {
	// GroupIndex selects the port block of this test process, typically
	// the build agent index.
	GroupIndex int

	// Ranges maps pool names to partitioned ranges. PoolSMTP and
	// PoolWebUI must be present.
	Ranges map[string]PortRange

	// ManifestPath locates the local tool manifest.
	ManifestPath string

	// RestoreCommand runs once per manifest directory before a tool is
	// launched. The first element is the executable.
	RestoreCommand []string

	// DotnetCommand runs local tools such as smtp4dev.
	DotnetCommand string

	// SMTPReadyTimeout bounds how long smtp4dev may take to listen on both
	// of its ports.
	SMTPReadyTimeout time.Duration

	// StopTimeout is the SIGTERM grace period of launched processes.
	StopTimeout time.Duration

	// MaxLaunchAttempts bounds retries of startup failures in Launch.
	MaxLaunchAttempts int

	// SnapshotFileLock makes snapshot creation take an flock so separate
	// test processes never build the same location concurrently.
	SnapshotFileLock bool

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string

	// DriverInstaller downloads browser drivers. nil disables SetupDriver.
	DriverInstaller toolsetup.Installer

	// Prober replaces the OS port availability probe. nil uses
	// portlease.ListenProber.
	Prober portlease.Prober
}

// Validate reports every violated invariant at once.
func (c CoordinatorConfig) Validate() error {
	var errs []error

	if c.GroupIndex < 0 {
		errs = append(errs, fmt.Errorf("group index must not be negative, got %d", c.GroupIndex))
	}
	for _, required := range []string{PoolSMTP, PoolWebUI} {
		if _, ok := c.Ranges[required]; !ok {
			errs = append(errs, fmt.Errorf("port range %q must be configured", required))
		}
	}
	for name, r := range c.Ranges {
		if r.BlockSize <= 0 {
			errs = append(errs, fmt.Errorf("port range %q: block size must be greater than 0, got %d", name, r.BlockSize))
			continue
		}
		lower := r.Base + c.GroupIndex*r.BlockSize
		upper := lower + r.BlockSize - 1
		if r.Base < 1 || upper > 65535 {
			errs = append(errs, fmt.Errorf("port range %q: group %d block [%d, %d] is outside 1-65535",
				name, c.GroupIndex, lower, upper))
		}
	}
	if c.ManifestPath == "" {
		errs = append(errs, errors.New("manifest path must not be empty"))
	}
	if len(c.RestoreCommand) == 0 || c.RestoreCommand[0] == "" {
		errs = append(errs, errors.New("restore command must not be empty"))
	}
	if c.DotnetCommand == "" {
		errs = append(errs, errors.New("dotnet command must not be empty"))
	}
	if c.SMTPReadyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SMTP ready timeout must be greater than 0, got %s", c.SMTPReadyTimeout))
	}
	if c.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("stop timeout must be greater than 0, got %s", c.StopTimeout))
	}
	if c.MaxLaunchAttempts <= 0 {
		errs = append(errs, fmt.Errorf("max launch attempts must be greater than 0, got %d", c.MaxLaunchAttempts))
	}
	if c.MetricsNamespace == "" {
		errs = append(errs, errors.New("metrics namespace must not be empty"))
	}

	return errors.Join(errs...)
}
