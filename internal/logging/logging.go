// Package logging provides the process logger, built on log/slog.
//
// Handlers and services call WithCtx to get a logger already tagged with the
// request_id of the HTTP request they serve:
//
//	log := logging.WithCtx(ctx)
//	log.Info("order placed", "order_id", id)
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// L is the base logger. Init replaces it; until then it writes text to stdout.
var L = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Init configures L for the given environment: JSON at info level in
// production, human-readable text at debug level elsewhere.
func Init(env string) *slog.Logger {
	L = New(os.Stdout, env)
	slog.SetDefault(L)
	return L
}

// New builds a logger writing to w.
func New(w io.Writer, env string) *slog.Logger {
	switch env {
	case "production", "prod":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

type ctxKey struct{}

// WithCtx returns the request-scoped logger stored in ctx, or L.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return L
	}
	if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
		return log
	}
	return L
}

// InjectLogger stores log in ctx.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}
