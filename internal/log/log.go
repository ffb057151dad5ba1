// Package log provides the leveled, structured logging used across gosv.
//
// Call sites mirror the original daemonproxy C source's log_trace/log_debug/
// log_info/log_warn/log_error convention: one short message plus key/value
// fields, never a format string built by hand.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var base zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
}

// SetOutput redirects all subsequent logging, e.g. to a file or to
// io.Discard in tests.
func SetOutput(w io.Writer) {
	base = zerolog.New(w).With().Timestamp().Logger()
}

// SetLevel adjusts the global minimum level. Accepts zerolog level names:
// "trace", "debug", "info", "warn", "error".
func SetLevel(name string) {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil {
		return
	}
	zerolog.SetGlobalLevel(lvl)
}

func Trace() *zerolog.Event { return base.Trace() }
func Debug() *zerolog.Event { return base.Debug() }
func Info() *zerolog.Event  { return base.Info() }
func Warn() *zerolog.Event  { return base.Warn() }
func Error() *zerolog.Event { return base.Error() }
