// Package logger provides a structured, levelled logger built on log/slog.
//
// Every package in relay reports soft diagnostics through it, so a warning
// from a parameter lookup and a warning from an empty broadcast land in the
// same stream with the same shape:
//
//	logger.Warn("event: no listeners", "event", "Score")
//	// → time=... level=WARN msg="event: no listeners" event=Score
//
// The debug HTTP surface uses WithCtx to get a logger pre-tagged with the
// request ID.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/shashiranjanraj/relay/config"
)

var L *slog.Logger

func init() {
	L = slog.New(newHandler(os.Stdout))
	slog.SetDefault(L)
}

func newHandler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level()}
	if config.IsProduction() {
		return slog.NewJSONHandler(w, opts) // structured JSON for log aggregators
	}
	return slog.NewTextHandler(w, opts) // human-readable for dev
}

func level() slog.Level {
	switch config.LogLevel() {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if config.IsProduction() {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

// SetOutput redirects the base logger to w and returns the previous logger so
// callers (mostly tests) can restore it.
func SetOutput(w io.Writer) *slog.Logger {
	prev := L
	L = slog.New(newHandler(w))
	slog.SetDefault(L)
	return prev
}

// Restore reinstates a logger previously returned by SetOutput.
func Restore(prev *slog.Logger) {
	if prev == nil {
		return
	}
	L = prev
	slog.SetDefault(L)
}

// ─────────────────────────────────────────────
// Context-aware logger
// ─────────────────────────────────────────────

// ctxKey is the unexported key used to store a per-request *slog.Logger.
type ctxKey struct{}

// WithCtx returns the *slog.Logger stored in ctx by InjectLogger, or the base
// logger when there is none.
func WithCtx(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores a *slog.Logger (pre-tagged with request_id) into ctx.
// Called by the Logger middleware.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

// ─────────────────────────────────────────────
// Short-hand helpers (use base logger)
// ─────────────────────────────────────────────

// Debug logs at DEBUG level.
func Debug(msg string, args ...any) { L.Debug(msg, args...) }

// Info logs at INFO level.
func Info(msg string, args ...any) { L.Info(msg, args...) }

// Warn logs at WARN level.
func Warn(msg string, args ...any) { L.Warn(msg, args...) }

// Error logs at ERROR level.
func Error(msg string, args ...any) { L.Error(msg, args...) }
