package gg3d

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/gg3d/internal/gpu"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for gg3d and its internal GPU layer.
// By default gg3d produces no log output. Pass nil to restore silence.
//
// Log levels used by gg3d:
//   - [slog.LevelDebug]: pipeline creation, per-frame resource counts
//   - [slog.LevelInfo]: lifecycle events (device opened, program compiled)
//   - [slog.LevelWarn]: non-fatal issues (texture decode failures)
//
// Example:
//
//	gg3d.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	gpu.SetLogger(l)
}

// Logger returns the current logger. Sub-packages (mipload, clock) share
// it so a single SetLogger call configures everything.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
