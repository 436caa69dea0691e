// Package logging defines the structured-logging interface used across the
// server. Implementations wrap log/slog or zap; both are selected at startup
// from configuration.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "profile created", "profile_id", id, "slug", slug)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// New builds a Logger writing to w. format is one of "json", "text" or
// "zap"; level is one of "debug", "info", "warn", "error".
// For "zap" the writer is ignored and zap's production config is used.
func New(w io.Writer, format, level string) (Logger, error) {
	switch strings.ToLower(format) {
	case "", "json":
		return NewSlogLogger(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)}))), nil
	case "text":
		return NewSlogLogger(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel(level)}))), nil
	case "zap":
		cfg := zap.NewProductionConfig()
		lvl, err := zap.ParseAtomicLevel(normalizeLevel(level))
		if err != nil {
			return nil, fmt.Errorf("zap level: %w", err)
		}
		cfg.Level = lvl
		z, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("zap build: %w", err)
		}
		return NewZapLogger(z), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// Syncer is implemented by loggers that buffer entries.
type Syncer interface {
	Sync() error
}

// Sync flushes l when it buffers. Console descriptors cannot be fsynced, so
// EINVAL and ENOTTY from stdout or stderr are not reported.
func Sync(l Logger) error {
	s, ok := l.(Syncer)
	if !ok {
		return nil
	}
	if err := s.Sync(); err != nil && !errors.Is(err, syscall.EINVAL) && !errors.Is(err, syscall.ENOTTY) {
		return err
	}
	return nil
}

func normalizeLevel(level string) string {
	if level == "" {
		return "info"
	}
	return strings.ToLower(level)
}

func slogLevel(level string) slog.Level {
	switch normalizeLevel(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Nop discards everything. Handy in tests.
type Nop struct{}

func (Nop) Debug(context.Context, string, ...any) {}
func (Nop) Info(context.Context, string, ...any)  {}
func (Nop) Warn(context.Context, string, ...any)  {}
func (Nop) Error(context.Context, string, ...any) {}
func (n Nop) With(...any) Logger                  { return n }
