// Package logging builds the zerolog loggers used by the host tools.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New returns a logger tagged with app. format "json" writes raw JSON lines;
// anything else uses the console writer. An unknown level falls back to info.
func New(app, level, format string) zerolog.Logger {
	return NewWriter(os.Stdout, app, level, format)
}

// NewWriter is New with an explicit output.
func NewWriter(out io.Writer, app, level, format string) zerolog.Logger {
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Str("app", app).Logger()
}

// Init installs the logger as the package-level zerolog logger.
func Init(app, level, format string) zerolog.Logger {
	logger := New(app, level, format)
	log.Logger = logger
	return logger
}
