// Package logger provides structured logging with configurable log levels.
// It wraps the standard log/slog package. Output goes to stderr and,
// optionally, to a rotating file, keeping stdout free for command output.
package logger
