package testcoord

import (
	"context"
	"sync"

	"github.com/giantswarm/testcoord/internal/core"
	"github.com/giantswarm/testcoord/internal/smtp"
	"github.com/prometheus/client_golang/prometheus"
)

// Singleton state for NewCoordinator. The first call creates the
// coordinator; later calls return it and log a warning.
//
// singletonMu protects both singletonCoord and singletonOnce so that
// resetForTesting is safe to run concurrently with NewCoordinator.
var (
	singletonMu    sync.Mutex
	singletonCoord Coordinator
	singletonOnce  sync.Once
)

var (
	_ Coordinator = (*coordinatorWrapper)(nil)
	_ SMTPServer  = (*smtpServer)(nil)
)

// coordinatorWrapper implements Coordinator on top of core.Coordinator.
//
// The core.Coordinator is a named field rather than embedded so a type
// assertion cannot reach internal methods such as Live or IsShuttingDown.
type coordinatorWrapper struct {
	c *core.Coordinator
}

//nolint:ireturn // Returns PortPool interface for mockability.
func (w *coordinatorWrapper) Pool(name string) (PortPool, bool) {
	p, ok := w.c.Pool(name)
	if !ok {
		return nil, false
	}
	return p, true
}

func (w *coordinatorWrapper) PoolNames() []string {
	return w.c.PoolNames()
}

//nolint:ireturn // Returns Process interface for mockability.
func (w *coordinatorWrapper) Launch(ctx context.Context, spec ProcessSpec) (Process, error) {
	h, err := w.c.Launch(ctx, spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (w *coordinatorWrapper) RestoreTools(ctx context.Context, dir string) error {
	return w.c.RestoreTools(ctx, dir)
}

//nolint:ireturn // Returns SMTPServer interface for mockability.
func (w *coordinatorWrapper) StartSMTP(ctx context.Context) (SMTPServer, error) {
	svc, rc, err := w.c.StartSMTP(ctx)
	if err != nil {
		return nil, err
	}
	return &smtpServer{svc: svc, rc: *rc}, nil
}

func (w *coordinatorWrapper) SetupDriver(ctx context.Context, browser Browser) (string, error) {
	return w.c.SetupDriver(ctx, browser)
}

//nolint:ireturn // Returns Snapshotter interface for mockability.
func (w *coordinatorWrapper) Snapshots(location string) (Snapshotter, error) {
	s, err := w.c.Snapshots(location)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (w *coordinatorWrapper) Registry() *prometheus.Registry {
	return w.c.Registry()
}

func (w *coordinatorWrapper) Shutdown() error {
	return w.c.Shutdown()
}

// smtpServer adapts a started smtp.Service to SMTPServer.
type smtpServer struct {
	svc *smtp.Service
	rc  smtp.RunningContext
}

func (s *smtpServer) Port() int        { return s.rc.Port }
func (s *smtpServer) Host() string     { return s.rc.Host() }
func (s *smtpServer) WebUIURL() string { return s.rc.WebUIURL }
func (s *smtpServer) Close() error     { return s.svc.Close() }

//nolint:ireturn // Returns Process interface for mockability.
func (s *smtpServer) Process() Process {
	return s.svc.Handle()
}

// defaultCoordinatorConfig returns a coordinatorConfig populated with all
// default values. NewCoordinator and the test helpers share it.
func defaultCoordinatorConfig() coordinatorConfig {
	return coordinatorConfig{core.CoordinatorConfig{
		GroupIndex: 0,
		Ranges: map[string]core.PortRange{
			core.PoolSMTP:  {Base: DefaultSMTPPortBase, BlockSize: DefaultPortBlockSize},
			core.PoolWebUI: {Base: DefaultWebUIPortBase, BlockSize: DefaultPortBlockSize},
		},
		ManifestPath:      DefaultManifestPath,
		RestoreCommand:    DefaultRestoreCommand(),
		DotnetCommand:     DefaultDotnetCommand,
		SMTPReadyTimeout:  DefaultSMTPReadyTimeout,
		StopTimeout:       DefaultStopTimeout,
		MaxLaunchAttempts: DefaultMaxLaunchAttempts,
		MetricsNamespace:  DefaultMetricsNamespace,
	}}
}

// newCoordinator builds a non-singleton Coordinator from opts.
func newCoordinator(opts ...CoordinatorOption) *coordinatorWrapper {
	cfg := defaultCoordinatorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &coordinatorWrapper{c: core.NewCoordinatorWithConfig(cfg.toCoreConfig())}
}

// resetForTesting clears the singleton so the next NewCoordinator creates
// a fresh coordinator. It must only be called from tests.
func resetForTesting() {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	singletonCoord = nil
	singletonOnce = sync.Once{}
}

// NewCoordinator returns the process-level singleton Coordinator.
//
// The first call creates the coordinator with the given options. Later calls
// return the same instance; their options are ignored and a warning is
// logged. Creating the coordinator performs no I/O.
//
// The singleton is never reset after Shutdown.
//
// Panics if any option receives an invalid value, or if the resulting port
// blocks fall outside 1-65535.
//
//nolint:ireturn // Returns Coordinator interface for mockability.
func NewCoordinator(opts ...CoordinatorOption) Coordinator {
	singletonMu.Lock()
	defer singletonMu.Unlock()

	created := false
	singletonOnce.Do(func() {
		singletonCoord = newCoordinator(opts...)
		created = true
	})
	if !created {
		core.Logger().Warn("NewCoordinator called more than once; returning existing singleton (options ignored)")
	}
	return singletonCoord
}
