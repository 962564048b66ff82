package gpu

import (
	"log/slog"
	"sync/atomic"
)

var (
	discard = slog.New(slog.DiscardHandler)
	logger  atomic.Pointer[slog.Logger]
)

func init() {
	logger.Store(discard)
}

// slogger returns the logger every device and frame message goes through.
func slogger() *slog.Logger { return logger.Load() }

// SetLogger replaces the package logger. gg3d.SetLogger forwards here;
// nil discards output again.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = discard
	}
	logger.Store(l)
}
