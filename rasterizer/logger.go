package rasterizer

import (
	"log/slog"

	"honnef.co/go/splat/device"
)

// SetLogger configures the logger for the rasterizer and the device queue it
// runs on. By default nothing is logged. Pass nil to restore the silent
// default.
//
// Log levels used:
//   - [slog.LevelDebug]: state sizes, instance counts and, with
//     Options.Debug, every executed command
//   - [slog.LevelWarn]: failed kernels
func SetLogger(l *slog.Logger) {
	device.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger {
	return device.Logger()
}
