package smtp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/giantswarm/testcoord/internal/fault"
	"github.com/giantswarm/testcoord/internal/managed"
	"github.com/giantswarm/testcoord/internal/metrics"
	"github.com/giantswarm/testcoord/internal/portlease"
	"github.com/giantswarm/testcoord/internal/toolsetup"
)

// ToolID is the package id of smtp4dev in the local tool manifest.
const ToolID = "rnwood.smtp4dev"

// Port range layout: each group owns BlockSize ports starting at
// base + group*BlockSize.
const (
	DefaultSMTPBase  = 11000
	DefaultWebUIBase = 12000
	BlockSize        = 100
)

// Port names as they appear in startup errors.
const (
	PortSMTP  = "SMTP"
	PortWebUI = "web UI"
)

// Readiness defaults. smtp4dev needs a few seconds for its first start.
const (
	DefaultReadyInterval = 100 * time.Millisecond
	DefaultReadyTimeout  = time.Minute
)

// ErrAlreadyStarted is returned by Start on a running service.
const ErrAlreadyStarted = fault.Error("smtp service already started")

// RunningContext describes a started service.
type RunningContext struct {
	Port     int
	WebUIURL string
}

// Host returns the SMTP endpoint as host:port.
func (rc *RunningContext) Host() string {
	return "localhost:" + strconv.Itoa(rc.Port)
}

// Config configures a Service.
type Config struct {
	SMTPPool  *portlease.Pool
	WebUIPool *portlease.Pool
	Restorer  *toolsetup.Restorer

	// ManifestPath defaults to toolsetup.DefaultManifestPath.
	ManifestPath string
	// Command defaults to dotnet with the OS executable extension.
	Command string
	// Ready defaults to TCP probes of both ports.
	Ready       managed.ReadyCondition
	StopTimeout time.Duration
	Logger      *slog.Logger
	Recorder    metrics.Recorder
	// Launch defaults to managed.Launch.
	Launch func(ctx context.Context, spec managed.Spec) (*managed.Handle, error)
}

func (c Config) validate() error {
	var errs []error
	if c.SMTPPool == nil {
		errs = append(errs, errors.New("smtp pool must not be nil"))
	}
	if c.WebUIPool == nil {
		errs = append(errs, errors.New("web UI pool must not be nil"))
	}
	if c.Restorer == nil {
		errs = append(errs, errors.New("restorer must not be nil"))
	}
	return errors.Join(errs...)
}

// Service is one smtp4dev instance.
type Service struct {
	cfg Config
	log *slog.Logger

	mu     sync.Mutex
	handle *managed.Handle
}

// NewService validates cfg and fills in defaults.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid smtp config: %w", err)
	}
	if cfg.ManifestPath == "" {
		cfg.ManifestPath = toolsetup.DefaultManifestPath
	}
	if cfg.Command == "" {
		cfg.Command = "dotnet" + toolsetup.ExecutableExtension()
	}
	if cfg.Ready == nil {
		cfg.Ready = managed.All(
			managed.TCPProbe(PortSMTP, DefaultReadyInterval, DefaultReadyTimeout),
			managed.TCPProbe(PortWebUI, DefaultReadyInterval, DefaultReadyTimeout),
		)
	}
	if cfg.Launch == nil {
		cfg.Launch = managed.Launch
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{cfg: cfg, log: log}, nil
}

// Args returns the smtp4dev command line for the given ports. An empty
// --db selects the in-memory database.
func Args(smtpPort, webUIPort int) []string {
	return []string{
		"tool", "run", "smtp4dev",
		"--db", "",
		"--smtpport", strconv.Itoa(smtpPort),
		"--urls", WebUIURL(webUIPort),
	}
}

// WebUIURL returns the web UI address for port.
func WebUIURL(port int) string {
	return "http://localhost:" + strconv.Itoa(port) + "/"
}

// Start launches smtp4dev. On failure every leased port is released.
func (s *Service) Start(ctx context.Context) (*RunningContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil {
		return nil, ErrAlreadyStarted
	}

	manifest, err := toolsetup.ReadManifest(s.cfg.ManifestPath)
	if err != nil {
		return nil, err
	}
	if _, err := manifest.RequireTool(ToolID); err != nil {
		return nil, err
	}
	if err := s.cfg.Restorer.Restore(ctx, manifest.Dir()); err != nil {
		return nil, fmt.Errorf("restore smtp4dev: %w", err)
	}

	h, err := s.cfg.Launch(ctx, managed.Spec{
		Name:    "smtp4dev",
		Command: s.cfg.Command,
		Args: func(p managed.Ports) []string {
			return Args(p[PortSMTP], p[PortWebUI])
		},
		Dir: manifest.Dir(),
		Ports: []managed.PortRequest{
			{Name: PortSMTP, Pool: s.cfg.SMTPPool},
			{Name: PortWebUI, Pool: s.cfg.WebUIPool},
		},
		Ready:       s.cfg.Ready,
		StopTimeout: s.cfg.StopTimeout,
		Logger:      s.log,
		Recorder:    s.cfg.Recorder,
	})
	if err != nil {
		return nil, err
	}
	s.handle = h

	smtpPort, _ := h.Port(PortSMTP)
	webPort, _ := h.Port(PortWebUI)
	return &RunningContext{Port: smtpPort, WebUIURL: WebUIURL(webPort)}, nil
}

// Handle returns the running process, or nil before Start succeeded.
func (s *Service) Handle() *managed.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Close stops smtp4dev and releases its ports. Safe to call more than once
// and on a service that never started.
func (s *Service) Close() error {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close()
}
