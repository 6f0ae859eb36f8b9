// Package logging wraps slog with the fleet daemon's conventions:
// structured output, a service/version pair on every record, and a
// nop variant for tests and optional-logger call sites.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/vendlink/vendlink-core/internal/infrastructure/config"
)

// Logger is a slog.Logger carrying the daemon's default fields. Safe
// for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds a Logger from the logging section of config.yaml. Format
// defaults to JSON, output to stdout, level to info; unrecognised
// values fall back rather than erroring so a typo in the file never
// costs the operator their logs.
func New(cfg config.LoggingConfig, version string) *Logger {
	var output io.Writer = os.Stdout
	if strings.ToLower(cfg.Output) == "stderr" {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "vendlink"),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler)}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child Logger with extra default attributes, typically
// a component tag:
//
//	mqttLog := log.With("component", "mqtt")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the early-startup logger used before config is loaded:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}, "dev")
}

// NewNop returns a Logger that discards everything. Components that
// take an optional logger use it as the safe default, and tests use it
// to keep output quiet.
func NewNop() *Logger {
	handler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	})
	return &Logger{Logger: slog.New(handler)}
}
