package fault

import (
	"fmt"
	"sort"
	"strings"
)

// Compile-time check that Error implements the error interface.
var _ error = Error("")

// Error is an immutable, comparable error backed by a string constant.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

// Error kinds surfaced to callers. None of them is retried inside testcoord
// apart from the bounded port probe and the single version fallback of
// driver setup.
const (
	// ErrResourceExhausted means every port of a range is leased or failed
	// the OS availability probe.
	ErrResourceExhausted = Error("resource exhausted")

	// ErrSetupFailure means a required precondition, such as a tool
	// manifest, is missing.
	ErrSetupFailure = Error("setup failure")

	// ErrStartupFailure means an external process wrote diagnostic output
	// or died before it became ready.
	ErrStartupFailure = Error("startup failure")

	// ErrDownloadFailure means resolving or fetching an external dependency
	// failed.
	ErrDownloadFailure = Error("download failure")

	// ErrShuttingDown is returned by operations started after Shutdown.
	ErrShuttingDown = Error("coordinator is shutting down")
)

// SetupError reports a missing precondition.
type SetupError struct {
	// What names the missing thing, e.g. a manifest path.
	What   string
	Reason string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSetupFailure, e.What, e.Reason)
}

// Unwrap returns ErrSetupFailure.
func (e *SetupError) Unwrap() error { return ErrSetupFailure }

// StartupError is returned when a launched process did not become ready.
// Diagnostics holds the complete captured error stream, not only its first
// line.
type StartupError struct {
	Name        string
	Ports       map[string]int
	Diagnostics string
	// Cause is set when readiness failed for a reason other than
	// diagnostic output, e.g. early exit or timeout.
	Cause error
}

func (e *StartupError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s did not start properly", ErrStartupFailure, e.Name)
	if len(e.Ports) > 0 {
		b.WriteString(" on ")
		b.WriteString(formatPorts(e.Ports))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Diagnostics != "" {
		b.WriteString(" due to the following error:\n")
		b.WriteString(e.Diagnostics)
	}
	return b.String()
}

// Unwrap returns ErrStartupFailure and, when set, the underlying cause.
func (e *StartupError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrStartupFailure, e.Cause}
	}
	return []error{ErrStartupFailure}
}

// DownloadError reports a failed driver or tool download together with the
// version and source that were attempted.
type DownloadError struct {
	Name    string
	Version string
	Source  string
	Err     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: failed to download %s version %s from %s: %v. "+
		"If it's a 404 error, then likely there is no build available for this version",
		ErrDownloadFailure, e.Name, e.Version, e.Source, e.Err)
}

// Unwrap returns ErrDownloadFailure and the underlying error.
func (e *DownloadError) Unwrap() []error {
	return []error{ErrDownloadFailure, e.Err}
}

// formatPorts renders named ports in a stable order, e.g.
// "smtp port 11003 and web port 12017".
func formatPorts(ports map[string]int) string {
	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s port %d", name, ports[name]))
	}
	return strings.Join(parts, " and ")
}
