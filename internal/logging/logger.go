// Package logging provides structured logging for log-analyzer.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a new structured logger writing to stderr.
// Format should be "json" or "text".
// Level should be "debug", "info", "warn", or "error".
func NewLogger(format, level string, verbose bool) *slog.Logger {
	return slog.New(newHandler(os.Stderr, format, level, verbose))
}

// NewRunLogger creates the logger for one analyzer run. When selfLogPath
// names an existing file, records are appended to it as well as written to
// stderr; the returned close function releases that file.
//
// A missing self-log file is not an error: the analyzer only logs to a file
// an operator has created for it.
func NewRunLogger(format, level string, verbose bool, selfLogPath string) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }

	if selfLogPath == "" {
		return NewLogger(format, level, verbose), noop, nil
	}

	if _, err := os.Stat(selfLogPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewLogger(format, level, verbose), noop, nil
		}
		return nil, nil, fmt.Errorf("stat self log: %w", err)
	}

	f, err := os.OpenFile(selfLogPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open self log: %w", err)
	}

	w := io.MultiWriter(os.Stderr, f)
	return slog.New(newHandler(w, format, level, verbose)), f.Close, nil
}

// NewLoggerWithWriter creates a logger that writes to a custom writer.
// Useful for testing.
func NewLoggerWithWriter(w io.Writer, format, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// newHandler builds the handler shared by NewLogger and NewRunLogger.
func newHandler(w io.Writer, format, level string, verbose bool) slog.Handler {
	logLevel := parseLevel(level)
	if verbose {
		logLevel = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
		// Add source location for debug level
		AddSource: logLevel == slog.LevelDebug,
	}

	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		// Default to JSON for structured logging
		return slog.NewJSONHandler(w, opts)
	}
}

// parseLevel converts a string level to slog.Level.
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

// SetDefault sets the default logger for the slog package.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}
