package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json, console
	Development bool   // forces debug level and console output
	Service     string
}

// New creates a zerolog logger writing to stdout.
func New(cfg Config) zerolog.Logger {
	return NewWithWriter(os.Stdout, cfg)
}

// NewWithWriter creates a zerolog logger writing to w.
func NewWithWriter(w io.Writer, cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	format := cfg.Format
	if cfg.Development {
		level = zerolog.DebugLevel
		format = "console"
	}

	output := w
	if format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    w != os.Stdout,
		}
	}

	ctx := zerolog.New(output).
		Level(level).
		With().
		Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	if cfg.Development {
		ctx = ctx.Caller()
	}

	return ctx.Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
