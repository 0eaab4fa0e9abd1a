package knnbridge

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with bridge-specific context.
// This provides structured logging with consistent field names.
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
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithHandle adds a handle id field to the logger.
func (l *Logger) WithHandle(id uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("handle", id),
	}
}

// WithSpace adds a space type field to the logger.
func (l *Logger) WithSpace(space string) *Logger {
	return &Logger{
		Logger: l.Logger.With("space", space),
	}
}

func errorAttrs(err error) []any {
	return []any{"error", err, "kind", KindOf(err).String()}
}

// LogBuild logs a build-and-persist operation.
func (l *Logger) LogBuild(ctx context.Context, location, space string, count, dimension int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "build failed",
			append([]any{
				"location", location,
				"space", space,
				"count", count,
			}, errorAttrs(err)...)...,
		)
		return
	}
	l.DebugContext(ctx, "index persisted",
		"location", location,
		"space", space,
		"count", count,
		"dimension", dimension,
	)
}

// LogLoad logs a load operation.
func (l *Logger) LogLoad(ctx context.Context, location, space string, handle uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			append([]any{
				"location", location,
				"space", space,
			}, errorAttrs(err)...)...,
		)
		return
	}
	l.DebugContext(ctx, "index loaded",
		"location", location,
		"space", space,
		"handle", handle,
	)
}

// LogQuery logs a query operation.
func (l *Logger) LogQuery(ctx context.Context, handle uint64, k, resultsFound int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "query failed",
			append([]any{
				"handle", handle,
				"k", k,
			}, errorAttrs(err)...)...,
		)
		return
	}
	l.DebugContext(ctx, "query completed",
		"handle", handle,
		"k", k,
		"results", resultsFound,
	)
}

// LogDestroy logs a destroy operation.
func (l *Logger) LogDestroy(ctx context.Context, handle uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "destroy failed",
			append([]any{"handle", handle}, errorAttrs(err)...)...,
		)
		return
	}
	l.DebugContext(ctx, "index destroyed",
		"handle", handle,
	)
}

// LogDelete logs the removal of a persisted index.
func (l *Logger) LogDelete(ctx context.Context, location string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "delete failed",
			append([]any{"location", location}, errorAttrs(err)...)...,
		)
		return
	}
	l.DebugContext(ctx, "index deleted",
		"location", location,
	)
}

// LogTransfer logs a vector transfer into a batch.
func (l *Logger) LogTransfer(ctx context.Context, added, total int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "transfer failed",
			append([]any{"added", added}, errorAttrs(err)...)...,
		)
		return
	}
	l.DebugContext(ctx, "vectors transferred",
		"added", added,
		"total", total,
	)
}
