package testcoord

import (
	"slices"
	"time"
)

// ResetForTesting resets the singleton so the next NewCoordinator call
// creates a fresh instance. Exported only for package testcoord_test.
func ResetForTesting() { resetForTesting() }

// NewCoordinatorForTesting builds a Coordinator that is not the singleton,
// so parallel tests can each own one.
//
//nolint:ireturn // mirrors NewCoordinator
func NewCoordinatorForTesting(opts ...CoordinatorOption) Coordinator {
	return newCoordinator(opts...)
}

// AgentIndexForTesting parses raw the way AgentIndexOrDefault parses the
// environment.
func AgentIndexForTesting(raw string) int { return agentIndex(raw) }

// PortRangeSnapshot mirrors one configured port range.
type PortRangeSnapshot struct {
	Base      int
	BlockSize int
}

// ConfigSnapshot holds a copy of coordinatorConfig fields for test
// assertions, so the _test package can check what option closures set
// without reaching internals.
type ConfigSnapshot struct {
	GroupIndex        int
	Ranges            map[string]PortRangeSnapshot
	ManifestPath      string
	RestoreCommand    []string
	DotnetCommand     string
	SMTPReadyTimeout  time.Duration
	StopTimeout       time.Duration
	MaxLaunchAttempts int
	SnapshotFileLock  bool
	MetricsNamespace  string
	HasInstaller      bool
	HasProber         bool
}

// ApplyOptionsForTesting applies opts to a default coordinatorConfig and
// returns a ConfigSnapshot of the result without touching the singleton.
func ApplyOptionsForTesting(opts ...CoordinatorOption) ConfigSnapshot {
	cfg := defaultCoordinatorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	ranges := make(map[string]PortRangeSnapshot, len(cfg.Ranges))
	for name, r := range cfg.Ranges {
		ranges[name] = PortRangeSnapshot{Base: r.Base, BlockSize: r.BlockSize}
	}

	return ConfigSnapshot{
		GroupIndex:        cfg.GroupIndex,
		Ranges:            ranges,
		ManifestPath:      cfg.ManifestPath,
		RestoreCommand:    slices.Clone(cfg.RestoreCommand),
		DotnetCommand:     cfg.DotnetCommand,
		SMTPReadyTimeout:  cfg.SMTPReadyTimeout,
		StopTimeout:       cfg.StopTimeout,
		MaxLaunchAttempts: cfg.MaxLaunchAttempts,
		SnapshotFileLock:  cfg.SnapshotFileLock,
		MetricsNamespace:  cfg.MetricsNamespace,
		HasInstaller:      cfg.DriverInstaller != nil,
		HasProber:         cfg.Prober != nil,
	}
}
