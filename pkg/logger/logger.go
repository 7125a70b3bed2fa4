package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a logger at the given level. Records go to writers, or to
// stderr when none are given; stdout is never used.
func New(lvl string, addSource bool, environment string, writers ...io.Writer) *slog.Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(lvl))
	return NewLeveled(level, addSource, environment, writers...)
}

// NewLeveled is New with a level that can be changed while the logger is in
// use.
func NewLeveled(level *slog.LevelVar, addSource bool, environment string, writers ...io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}

	var out io.Writer
	switch len(writers) {
	case 0:
		out = os.Stderr
	case 1:
		out = writers[0]
	default:
		out = io.MultiWriter(writers...)
	}

	var handler slog.Handler
	if strings.ToLower(environment) == "prod" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler).With(
		slog.String("environment", environment),
	)
}

// ParseLevel maps a level name to a slog level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
