// Package debug provides the engine's trace logger. The logger is a no-op
// unless a caller installs one; evaluation itself performs no I/O by
// default.
package debug

import "github.com/rs/zerolog"

var logger = zerolog.Nop()

// SetLogger installs a logger for resolution and fast-path trace output.
// Intended to be called once during setup, before expressions are shared
// across goroutines.
func SetLogger(l zerolog.Logger) {
	logger = l
}

func Logger() *zerolog.Logger {
	return &logger
}
