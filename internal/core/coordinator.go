package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giantswarm/testcoord/internal/fault"
	"github.com/giantswarm/testcoord/internal/managed"
	"github.com/giantswarm/testcoord/internal/metrics"
	"github.com/giantswarm/testcoord/internal/portlease"
	"github.com/giantswarm/testcoord/internal/smtp"
	"github.com/giantswarm/testcoord/internal/snapshot"
	"github.com/giantswarm/testcoord/internal/toolsetup"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// ErrShuttingDown is returned by operations started after Shutdown.
const ErrShuttingDown = fault.ErrShuttingDown

// ErrNoDriverInstaller is returned by SetupDriver when no installer is
// configured.
const ErrNoDriverInstaller = fault.Error("no driver installer configured")

// Coordinator owns the process-scoped state shared by all tests of one
// process. It is safe for concurrent use.
type Coordinator struct {
	cfg      CoordinatorConfig
	prom     *metrics.Prometheus
	pools    map[string]*portlease.Pool // immutable after construction
	restorer *toolsetup.Restorer
	drivers  *toolsetup.DriverSetup // nil without an installer

	shuttingDown atomic.Bool

	snapMu    sync.Mutex
	snapshots map[string]*snapshot.Coordinator

	// handlesMu protects handles. Launch registers a handle while holding
	// it and rechecks shuttingDown, so Shutdown never misses a handle.
	handlesMu sync.Mutex
	handles   map[*managed.Handle]struct{}
}

// NewCoordinatorWithConfig creates a Coordinator and all of its pools.
//
// Panics if cfg.Validate() reports any errors: invalid configuration is a
// programmer error.
func NewCoordinatorWithConfig(cfg CoordinatorConfig) *Coordinator {
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("testcoord: invalid coordinator config: %v", err))
	}

	prom := metrics.NewPrometheus(cfg.MetricsNamespace)
	log := Logger()

	pools := make(map[string]*portlease.Pool, len(cfg.Ranges))
	for name, r := range cfg.Ranges {
		opts := []portlease.Option{
			portlease.WithName(name),
			portlease.WithLogger(log),
			portlease.WithRecorder(prom),
		}
		if cfg.Prober != nil {
			opts = append(opts, portlease.WithProber(cfg.Prober))
		}
		p, err := portlease.NewGroupPool(r.Base, r.BlockSize, cfg.GroupIndex, opts...)
		if err != nil {
			// Validate checked the bounds.
			panic(fmt.Sprintf("testcoord: create %s pool: %v", name, err))
		}
		pools[name] = p
	}

	c := &Coordinator{
		cfg:   cfg,
		prom:  prom,
		pools: pools,
		restorer: toolsetup.NewRestorer(
			toolsetup.WithRestoreCommand(cfg.RestoreCommand[0], cfg.RestoreCommand[1:]...),
			toolsetup.WithRestoreLogger(log),
			toolsetup.WithRestoreRecorder(prom),
		),
		snapshots: make(map[string]*snapshot.Coordinator),
		handles:   make(map[*managed.Handle]struct{}),
	}
	if cfg.DriverInstaller != nil {
		c.drivers = toolsetup.NewDriverSetup(cfg.DriverInstaller,
			toolsetup.WithDriverLogger(log),
			toolsetup.WithDriverRecorder(prom),
		)
	}

	log.Debug("coordinator created", "group", cfg.GroupIndex, "pools", slices.Sorted(maps.Keys(pools)))
	return c
}

// Config returns the configuration the Coordinator was built with.
func (c *Coordinator) Config() CoordinatorConfig {
	return c.cfg
}

// Pool returns the named port pool.
func (c *Coordinator) Pool(name string) (*portlease.Pool, bool) {
	p, ok := c.pools[name]
	return p, ok
}

// PoolNames returns the names of all pools, sorted.
func (c *Coordinator) PoolNames() []string {
	return slices.Sorted(maps.Keys(c.pools))
}

// Registry returns the Prometheus registry holding testcoord's metrics.
func (c *Coordinator) Registry() *prometheus.Registry {
	return c.prom.Registry()
}

// Recorder returns the metrics recorder shared by all components.
func (c *Coordinator) Recorder() metrics.Recorder { //nolint:ireturn // exposes the shared recorder
	return c.prom
}

// IsShuttingDown reports whether Shutdown has been called.
func (c *Coordinator) IsShuttingDown() bool {
	return c.shuttingDown.Load()
}

// Launch starts spec through managed.LaunchWithRetry and tracks the handle
// until it is canceled. Logger and Recorder default to the Coordinator's;
// StopTimeout defaults to the configured one.
func (c *Coordinator) Launch(ctx context.Context, spec managed.Spec) (*managed.Handle, error) {
	if c.IsShuttingDown() {
		return nil, ErrShuttingDown
	}
	if spec.Logger == nil {
		spec.Logger = Logger()
	}
	if spec.Recorder == nil {
		spec.Recorder = c.prom
	}
	if spec.StopTimeout <= 0 {
		spec.StopTimeout = c.cfg.StopTimeout
	}
	onStop := spec.OnStop
	spec.OnStop = func(h *managed.Handle) {
		c.untrack(h)
		if onStop != nil {
			onStop(h)
		}
	}

	h, err := managed.LaunchWithRetry(ctx, spec, c.cfg.MaxLaunchAttempts)
	if err != nil {
		return nil, err
	}
	if !c.track(h) {
		if err := h.Close(); err != nil {
			Logger().Warn("stop process launched during shutdown", "process", h.Name(), "error", err)
		}
		return nil, ErrShuttingDown
	}
	return h, nil
}

// track registers h unless Shutdown has started.
func (c *Coordinator) track(h *managed.Handle) bool {
	c.handlesMu.Lock()
	defer c.handlesMu.Unlock()
	if c.IsShuttingDown() {
		return false
	}
	c.handles[h] = struct{}{}
	return true
}

func (c *Coordinator) untrack(h *managed.Handle) {
	c.handlesMu.Lock()
	defer c.handlesMu.Unlock()
	delete(c.handles, h)
}

// Live returns the number of launched handles not yet canceled.
func (c *Coordinator) Live() int {
	c.handlesMu.Lock()
	defer c.handlesMu.Unlock()
	return len(c.handles)
}

// RestoreTools restores local tools in dir once per process.
func (c *Coordinator) RestoreTools(ctx context.Context, dir string) error {
	if c.IsShuttingDown() {
		return ErrShuttingDown
	}
	return c.restorer.Restore(ctx, dir)
}

// NewSMTPService creates an smtp4dev service on the Coordinator's pools.
// Its process is tracked like any other launch.
func (c *Coordinator) NewSMTPService() (*smtp.Service, error) {
	return smtp.NewService(smtp.Config{
		SMTPPool:     c.pools[PoolSMTP],
		WebUIPool:    c.pools[PoolWebUI],
		Restorer:     c.restorer,
		ManifestPath: c.cfg.ManifestPath,
		Command:      c.cfg.DotnetCommand,
		Ready: managed.All(
			managed.TCPProbe(smtp.PortSMTP, smtp.DefaultReadyInterval, c.cfg.SMTPReadyTimeout),
			managed.TCPProbe(smtp.PortWebUI, smtp.DefaultReadyInterval, c.cfg.SMTPReadyTimeout),
		),
		StopTimeout: c.cfg.StopTimeout,
		Logger:      Logger(),
		Recorder:    c.prom,
		Launch:      c.Launch,
	})
}

// StartSMTP creates and starts an smtp4dev service. The caller closes the
// returned service.
func (c *Coordinator) StartSMTP(ctx context.Context) (*smtp.Service, *smtp.RunningContext, error) {
	svc, err := c.NewSMTPService()
	if err != nil {
		return nil, nil, err
	}
	rc, err := svc.Start(ctx)
	if err != nil {
		return nil, nil, err
	}
	return svc, rc, nil
}

// SetupDriver installs the driver for browser once per process. The outcome
// is cached either way.
func (c *Coordinator) SetupDriver(ctx context.Context, browser toolsetup.Browser) (string, error) {
	if c.IsShuttingDown() {
		return "", ErrShuttingDown
	}
	if c.drivers == nil {
		return "", ErrNoDriverInstaller
	}
	return c.drivers.Setup(ctx, browser)
}

// Snapshots returns the snapshot coordinator for location, creating it on
// first use. Paths that resolve to the same absolute location share one
// coordinator.
func (c *Coordinator) Snapshots(location string) (*snapshot.Coordinator, error) {
	if location == "" {
		return nil, errors.New("snapshot location must not be empty")
	}
	abs, err := filepath.Abs(location)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot location %s: %w", location, err)
	}

	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	if s, ok := c.snapshots[abs]; ok {
		return s, nil
	}
	s := snapshot.New(abs,
		snapshot.WithLogger(Logger()),
		snapshot.WithFileLock(c.cfg.SnapshotFileLock),
		snapshot.WithRecorder(c.prom),
	)
	c.snapshots[abs] = s
	return s, nil
}

// Shutdown rejects new work and stops every live handle in parallel. Ports
// are released as each handle is canceled. Safe to call more than once;
// later calls find nothing left to stop.
func (c *Coordinator) Shutdown() error {
	c.handlesMu.Lock()
	c.shuttingDown.Store(true)
	live := slices.Collect(maps.Keys(c.handles))
	c.handlesMu.Unlock()

	if len(live) == 0 {
		return nil
	}
	Logger().Info("shutting down", "live_processes", len(live))

	start := time.Now()
	errs := make([]error, len(live))
	var g errgroup.Group
	for i, h := range live {
		g.Go(func() error {
			if err := h.Close(); err != nil {
				errs[i] = fmt.Errorf("stop %s (%s): %w", h.Name(), h.ID(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	if err != nil {
		Logger().Warn("shutdown finished with errors", "duration", time.Since(start), "error", err)
		return err
	}
	Logger().Debug("shutdown complete", "duration", time.Since(start))
	return nil
}
