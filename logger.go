package cuckoodex

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with index-specific helpers so every
// operation logs consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.Level(1000), // Unreachable level
		})),
	}
}

// WithPath adds the index file path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{Logger: l.Logger.With("path", path)}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, row uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed", "row", row, "error", err)
	} else {
		l.DebugContext(ctx, "insert completed", "row", row)
	}
}

// LogBuild logs a bulk build.
func (l *Logger) LogBuild(ctx context.Context, tuples int64, workers int, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			"tuples", tuples,
			"workers", workers,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "build completed",
			"tuples", tuples,
			"workers", workers,
			"duration", duration,
		)
	}
}

// LogScan logs a bitmap scan.
func (l *Logger) LogScan(ctx context.Context, matches int64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "scan failed", "error", err)
	} else {
		l.DebugContext(ctx, "scan completed", "matches", matches, "duration", duration)
	}
}

// LogVacuum logs a bulk delete or cleanup pass.
func (l *Logger) LogVacuum(ctx context.Context, removed int64, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "vacuum failed", "error", err)
	} else {
		l.InfoContext(ctx, "vacuum completed", "tuples_removed", removed, "duration", duration)
	}
}

// LogArchive logs an archive or restore.
func (l *Logger) LogArchive(ctx context.Context, op, name string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "archive operation failed", "op", op, "name", name, "error", err)
	} else {
		l.InfoContext(ctx, "archive operation completed", "op", op, "name", name, "duration", duration)
	}
}
