package common

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger shared by every package in this module.
// By default nothing is logged. Passing nil restores the silent default.
// Safe for concurrent use.
//
// Levels:
//   - [slog.LevelDebug]: per-frame diagnostics (slot, image index, skipped frames)
//   - [slog.LevelInfo]: lifecycle events (pool start/stop, swapchain rebuilds, profiler output)
//   - [slog.LevelWarn]: recoverable conditions (stale surface, deferred resize)
//   - [slog.LevelError]: fatal conditions right before the fatal handler runs
//
// Parameters:
//   - l: the logger to install, or nil to disable logging
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the current shared logger.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
