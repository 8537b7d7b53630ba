package testcoord

import (
	"log/slog"

	"github.com/giantswarm/testcoord/internal/core"
)

// SetLogger replaces the package-level logger used by testcoord. The
// provided logger should already carry any attributes the caller wants;
// testcoord adds none of its own.
//
// If l is nil, the logger resets to slog.Default() with a "component"
// attribute, re-derived on the next use. Call SetLogger(nil) after
// slog.SetDefault() to pick up the change.
//
// SetLogger is safe to call concurrently with other testcoord operations.
// A concurrent log call may still use the previous logger; call SetLogger in
// TestMain before m.Run for a strict ordering.
//
// Example:
//
//	testcoord.SetLogger(myLogger.With("component", "testcoord"))
func SetLogger(l *slog.Logger) {
	core.SetLogger(l)
}
