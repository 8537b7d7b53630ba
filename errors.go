package testcoord

import (
	"github.com/giantswarm/testcoord/internal/core"
	"github.com/giantswarm/testcoord/internal/fault"
	"github.com/giantswarm/testcoord/internal/smtp"
)

// Sentinel errors for inspection with errors.Is. Every typed error below
// matches its kind, so errors.Is(err, ErrStartupFailure) holds for a
// *StartupError anywhere in the chain.
const (
	// ErrResourceExhausted is returned when every port of a pool's range is
	// leased or taken by another process.
	ErrResourceExhausted = fault.ErrResourceExhausted

	// ErrSetupFailure is returned when a precondition such as the local
	// tool manifest is missing.
	ErrSetupFailure = fault.ErrSetupFailure

	// ErrStartupFailure is returned when a launched process wrote to
	// stderr or exited before it became ready.
	ErrStartupFailure = fault.ErrStartupFailure

	// ErrDownloadFailure is returned when a browser driver could not be
	// installed, even with the fallback version.
	ErrDownloadFailure = fault.ErrDownloadFailure

	// ErrShuttingDown is returned by operations started after Shutdown.
	ErrShuttingDown = core.ErrShuttingDown

	// ErrNoDriverInstaller is returned by SetupDriver when the Coordinator
	// was built without WithDriverInstaller.
	ErrNoDriverInstaller = core.ErrNoDriverInstaller

	// ErrAlreadyStarted is returned when an SMTP service is started twice.
	ErrAlreadyStarted = smtp.ErrAlreadyStarted
)

// Typed errors. Use errors.As to reach their details.
type (
	// SetupError names the missing precondition.
	SetupError = fault.SetupError

	// StartupError carries the process name, its leased ports, and every
	// line it wrote to stderr before startup was abandoned.
	StartupError = fault.StartupError

	// DownloadError names the dependency, version, and source that failed.
	DownloadError = fault.DownloadError
)
