// Package logging provides a configured slog logger with:
// - TTY detection for human-readable vs JSON output
// - LOG_FORMAT env var override (text/json)
// - LOG_LEVEL env var (debug/info/warn/error)
// - Source file:line info with shortened relative paths
package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
)

// ContextKey is the type used for logging-related context values.
type ContextKey string

const (
	// SubmissionIDKey carries the submission being processed.
	SubmissionIDKey ContextKey = "log_submission_id"
	// TenantIDKey carries the tenant the work belongs to.
	TenantIDKey ContextKey = "log_tenant_id"
)

// WithSubmissionID returns a context tagged with a submission ID.
func WithSubmissionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, SubmissionIDKey, id)
}

// WithTenantID returns a context tagged with a tenant ID.
func WithTenantID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TenantIDKey, id)
}

// GetSubmissionID returns the submission ID from the context, or "".
func GetSubmissionID(ctx context.Context) string {
	id, _ := ctx.Value(SubmissionIDKey).(string)
	return id
}

// GetTenantID returns the tenant ID from the context, or "".
func GetTenantID(ctx context.Context) string {
	id, _ := ctx.Value(TenantIDKey).(string)
	return id
}

// FromContext returns the logger augmented with any IDs carried by the
// context. Returns the logger unchanged when the context carries nothing.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}
	if id := GetSubmissionID(ctx); id != "" {
		logger = logger.With("submission_id", id)
	}
	if id := GetTenantID(ctx); id != "" {
		logger = logger.With("tenant_id", id)
	}
	return logger
}

// New creates a new configured logger.
// Format is determined by:
// 1. LOG_FORMAT env var (text/json)
// 2. TTY detection (text for TTY, JSON otherwise)
// Level is determined by LOG_LEVEL env var (debug/info/warn/error, default: info)
func New() *slog.Logger {
	var handler slog.Handler
	logFormat := os.Getenv("LOG_FORMAT")
	useText := logFormat == "text" || (logFormat == "" && isTerminal(os.Stdout))

	// Get working directory for relative path calculation
	wd, _ := os.Getwd()

	// Parse log level from env var
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Shorten source paths to be relative
			if a.Key == slog.SourceKey {
				if src, ok := a.Value.Any().(*slog.Source); ok {
					// Try to make the path relative to working directory
					if rel, err := filepath.Rel(wd, src.File); err == nil {
						src.File = rel
					} else {
						// Fallback: just use the filename
						src.File = filepath.Base(src.File)
					}
				}
			}
			return a
		},
	}

	if useText {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// SetDefault creates a new logger and sets it as the default slog logger.
// Returns the created logger for additional use.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// isTerminal returns true if the file is a terminal.
func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
