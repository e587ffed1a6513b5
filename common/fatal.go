package common

import (
	"log/slog"
	"os"
	"sync/atomic"
)

// FatalHandler is invoked after a fatal condition has been logged. The default
// handler exits the process with status 1.
type FatalHandler func(err error)

var fatalPtr atomic.Pointer[FatalHandler]

func init() {
	h := FatalHandler(func(error) { os.Exit(1) })
	fatalPtr.Store(&h)
}

// SetFatalHandler replaces the handler run by Fatal. Hosts embedding the engine
// and tests use this to observe fatal conditions without terminating the process.
// Passing nil restores the default exit behaviour.
//
// Parameters:
//   - h: the handler to install
//
// Returns:
//   - FatalHandler: the previously installed handler, so callers can restore it
func SetFatalHandler(h FatalHandler) FatalHandler {
	if h == nil {
		h = func(error) { os.Exit(1) }
	}
	prev := fatalPtr.Swap(&h)
	return *prev
}

// Fatal logs err at error level and hands it to the installed FatalHandler.
// When the handler returns (a non-terminating handler was installed) the caller
// must treat its component as failed and stop issuing GPU work.
//
// Parameters:
//   - err: the fatal cause
//   - attrs: extra structured context for the log record
func Fatal(err error, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.Any("err", err))
	for _, a := range attrs {
		args = append(args, a)
	}
	Logger().Error("fatal", args...)
	(*fatalPtr.Load())(err)
}
