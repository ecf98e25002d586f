// Package sysutil holds process-level helpers used by the server binary:
// global logger setup and environment lookups.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogOptions configures the process-wide zerolog logger.
type LogOptions struct {
	Level   string // debug|info|warn|error|fatal|panic; anything else means info
	Pretty  bool   // human-readable console output
	Service string // added to every event as "service" when non-empty
	Out     io.Writer
}

// SetupLogging installs the global logger and makes it the fallback for
// zerolog.Ctx, so code holding only a context still logs with service fields.
func SetupLogging(opts LogOptions) zerolog.Logger {
	SetLogLevel(opts.Level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lc := zerolog.New(out).With().Timestamp()
	if s := strings.TrimSpace(opts.Service); s != "" {
		lc = lc.Str("service", s)
	}
	log.Logger = lc.Logger()
	zerolog.DefaultContextLogger = &log.Logger
	return log.Logger
}

// SetLogLevel sets the global zerolog level. "warning" is accepted for warn;
// empty or unknown values select info.
func SetLogLevel(lvl string) {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	if lvl == "warning" {
		lvl = "warn"
	}
	level, err := zerolog.ParseLevel(lvl)
	if err != nil || lvl == "" || level == zerolog.NoLevel || level == zerolog.TraceLevel || level == zerolog.Disabled {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// EnvFlag reports whether the environment variable name is set to a truthy
// value: 1, true, yes, y or on (case-insensitive).
func EnvFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// EnvOr returns the trimmed value of name, or def when it is unset or blank.
func EnvOr(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}
