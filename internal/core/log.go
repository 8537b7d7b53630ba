package core

import (
	"log/slog"
	"sync/atomic"
)

// logger holds the logger set through SetLogger. Named "logger" so it does
// not shadow the stdlib "log" package.
var logger atomic.Pointer[slog.Logger]

// defaultLogger caches slog.Default() with the testcoord component
// attribute. A later slog.SetDefault is picked up after SetLogger(nil).
var defaultLogger atomic.Pointer[slog.Logger]

// Logger returns the package-level logger. Without SetLogger it is
// slog.Default() with component=testcoord. Safe for concurrent use.
func Logger() *slog.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	l := newDefaultLogger()
	if defaultLogger.CompareAndSwap(nil, l) {
		return l
	}
	// A concurrent SetLogger may have cleared the cache in between.
	if l2 := defaultLogger.Load(); l2 != nil {
		return l2
	}
	return l
}

func newDefaultLogger() *slog.Logger {
	return slog.Default().With("component", "testcoord")
}

// SetLogger replaces the package-level logger. nil restores the default,
// re-derived from slog.Default() on the next Logger call.
func SetLogger(l *slog.Logger) {
	logger.Store(l)
	defaultLogger.Store(nil)
}
