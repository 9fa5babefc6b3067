// Package logger wraps zerolog with the process-wide setup used by perch.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	zerolog.Logger
}

// New configures the global level and returns a logger writing to stderr.
// Unknown or empty levels fall back to info.
func New(level string, pretty bool) Logger {
	var out io.Writer = os.Stderr
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return NewWithWriter(level, out)
}

func NewWithWriter(level string, out io.Writer) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return Logger{zerolog.New(out).With().Timestamp().Logger()}
}

// Nop discards everything.
func Nop() Logger {
	return Logger{zerolog.Nop()}
}

// Module returns a child logger tagged with the component name.
func (l Logger) Module(name string) zerolog.Logger {
	return l.With().Str("module", name).Logger()
}
