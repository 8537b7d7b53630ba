package testcoord

import (
	"time"

	"github.com/giantswarm/testcoord/internal/managed"
	"github.com/giantswarm/testcoord/internal/smtp"
)

// Default configuration values for NewCoordinator.
const (
	// DefaultSMTPPortBase is the first port of the SMTP range. Group g owns
	// [DefaultSMTPPortBase + g*DefaultPortBlockSize, ... + DefaultPortBlockSize - 1].
	DefaultSMTPPortBase = smtp.DefaultSMTPBase

	// DefaultWebUIPortBase is the first port of the smtp4dev web UI range.
	DefaultWebUIPortBase = smtp.DefaultWebUIBase

	// DefaultPortBlockSize is the number of ports each group owns per range.
	DefaultPortBlockSize = smtp.BlockSize

	// DefaultManifestPath is the local tool manifest, relative to the
	// working directory.
	DefaultManifestPath = ".config/dotnet-tools.json"

	// DefaultDotnetCommand runs local tools.
	DefaultDotnetCommand = "dotnet"

	// DefaultSMTPReadyTimeout bounds how long smtp4dev may take to accept
	// connections on both of its ports.
	DefaultSMTPReadyTimeout = smtp.DefaultReadyTimeout

	// DefaultStopTimeout is how long a launched process gets to exit after
	// SIGTERM before it is killed.
	DefaultStopTimeout = 10 * time.Second

	// DefaultMaxLaunchAttempts is the number of attempts Launch makes. The
	// default of 1 leaves relaunching to the caller; see WithMaxLaunchAttempts.
	DefaultMaxLaunchAttempts = managed.DefaultMaxAttempts

	// DefaultMetricsNamespace prefixes every exported metric.
	DefaultMetricsNamespace = "testcoord"

	// AgentIndexEnv names the environment variable holding the build agent
	// index used as the default group index.
	AgentIndexEnv = "TESTCOORD_AGENT_INDEX"
)

// DefaultRestoreCommand returns the command that restores local tools.
func DefaultRestoreCommand() []string {
	return []string{DefaultDotnetCommand, "tool", "restore"}
}
