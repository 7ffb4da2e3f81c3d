package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// RunIDKey is the context key for the id of a single job run
	RunIDKey ContextKey = "run_id"
	// JobKey is the context key for the scheduled job name
	JobKey ContextKey = "job"
	// RequestIDKey is the context key for admin API request IDs
	RequestIDKey ContextKey = "request_id"
)

// Logger wraps slog.Logger with additional context support
type Logger struct {
	*slog.Logger
}

// New creates a new structured logger writing to stdout
func New(level slog.Level, format string) *Logger {
	return NewWithWriter(os.Stdout, level, format)
}

// NewWithWriter creates a structured logger writing to w
func NewWithWriter(w io.Writer, level slog.Level, format string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithRun returns a context carrying the job name and run id
func WithRun(ctx context.Context, job, runID string) context.Context {
	ctx = context.WithValue(ctx, JobKey, job)
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithRequestID returns a context carrying the admin API request id that
// triggered a manual run.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithContext extracts common fields from context and returns a logger with those fields
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	logger := l.Logger

	if job, ok := ctx.Value(JobKey).(string); ok && job != "" {
		logger = logger.With("job", job)
	}

	if runID, ok := ctx.Value(RunIDKey).(string); ok && runID != "" {
		logger = logger.With("run_id", runID)
	}

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		logger = logger.With("request_id", requestID)
	}

	return logger
}

// InfoCtx logs an info message with context
func (l *Logger) InfoCtx(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Info(msg, args...)
}

// ErrorCtx logs an error message with context
func (l *Logger) ErrorCtx(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Error(msg, args...)
}

// WarnCtx logs a warning message with context
func (l *Logger) WarnCtx(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Warn(msg, args...)
}

// DebugCtx logs a debug message with context
func (l *Logger) DebugCtx(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Debug(msg, args...)
}

// LogDatabaseError records a failed database operation under a short tag
// such as "settlement.commit" or "monitor.no_offers".
func (l *Logger) LogDatabaseError(ctx context.Context, err error, tag string) {
	if err == nil {
		return
	}
	l.WithContext(ctx).Error("database error", "tag", tag, "error", err)
}

// LogInfo records a routine job event.
func (l *Logger) LogInfo(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).Info(msg, args...)
}

// ParseLevel parses a log level string
func ParseLevel(level string) slog.Level {
	switch level {
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
