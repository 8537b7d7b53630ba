package toolsetup

import (
	"context"
	"log/slog"

	"github.com/giantswarm/testcoord/internal/fault"
	"github.com/giantswarm/testcoord/internal/memo"
	"github.com/giantswarm/testcoord/internal/metrics"
)

// Installer downloads and installs a browser driver.
type Installer interface {
	// Install installs the driver for browser at version, which is either a
	// concrete version or one of the Strategy constants.
	Install(ctx context.Context, browser Browser, version string) error
	// Source returns where Install downloads from, for error messages.
	Source(browser Browser, version string) string
}

// VersionProbe reports the installed version of a browser as the raw output
// of its version command.
type VersionProbe func(ctx context.Context, browser Browser) (string, error)

// CommandVersionProbe runs the browser's version command.
func CommandVersionProbe(ctx context.Context, browser Browser) (string, error) {
	name, args, err := versionCommand(browser)
	if err != nil {
		return "", err
	}
	res, err := runBuffered(ctx, "", name, args...)
	if err != nil {
		return "", err
	}
	return res.Stdout, nil
}

// DriverOption configures a DriverSetup.
type DriverOption func(*DriverSetup)

// WithVersionProbe replaces CommandVersionProbe.
func WithVersionProbe(p VersionProbe) DriverOption {
	return func(d *DriverSetup) {
		if p != nil {
			d.probe = p
		}
	}
}

// WithDriverLogger sets the logger. A nil logger keeps slog.Default().
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *DriverSetup) {
		if l != nil {
			d.log = l
		}
	}
}

// WithDriverRecorder reports setup executions and cache hits.
func WithDriverRecorder(rec metrics.Recorder) DriverOption {
	return func(d *DriverSetup) {
		d.rec = rec
	}
}

// DriverSetup installs each browser's driver at most once per process. The
// outcome is cached whether it succeeded or not: a driver that failed to
// download fails the same way for every later caller without another
// download attempt.
type DriverSetup struct {
	installer Installer
	probe     VersionProbe
	log       *slog.Logger
	rec       metrics.Recorder
	setups    *memo.Registry[Browser, string]
}

// NewDriverSetup creates a DriverSetup. Panics if installer is nil.
func NewDriverSetup(installer Installer, opts ...DriverOption) *DriverSetup {
	if installer == nil {
		panic("toolsetup: installer must not be nil")
	}
	d := &DriverSetup{
		installer: installer,
		probe:     CommandVersionProbe,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.setups = memo.NewRegistry[Browser, string]("driver_setup", memo.CacheAlways,
		memo.WithRecorder(d.rec))
	return d
}

// Setup installs the driver for browser unless that was already attempted,
// and returns the version that was installed.
func (d *DriverSetup) Setup(ctx context.Context, browser Browser) (string, error) {
	return d.setups.GetOrRun(ctx, browser, func(ctx context.Context) (string, error) {
		return d.install(ctx, browser)
	})
}

// ResolveVersion returns the driver version to install for browser. Probe
// failures resolve to FallbackVersion.
func (d *DriverSetup) ResolveVersion(ctx context.Context, browser Browser) string {
	if browser == Edge {
		return edgeDriverVersion
	}
	out, err := d.probe(ctx, browser)
	if err != nil {
		d.log.Debug("browser version probe failed", "browser", browser, "error", err)
		return FallbackVersion(browser)
	}
	return versionFromOutput(browser, out)
}

func (d *DriverSetup) install(ctx context.Context, browser Browser) (string, error) {
	v := d.ResolveVersion(ctx, browser)
	err := d.installer.Install(ctx, browser, v)

	if fallback := FallbackVersion(browser); err != nil && v != fallback && ctx.Err() == nil {
		d.log.Warn("driver install failed, retrying with fallback version",
			"browser", browser, "version", v, "fallback", fallback, "error", err)
		v = fallback
		err = d.installer.Install(ctx, browser, v)
	}
	if err != nil {
		return "", &fault.DownloadError{
			Name:    string(browser) + " driver",
			Version: v,
			Source:  d.installer.Source(browser, v),
			Err:     err,
		}
	}

	d.log.Info("driver installed", "browser", browser, "version", v)
	return v, nil
}
