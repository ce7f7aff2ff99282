// Package logging defines the structured, context-aware logger used across
// cipherdrop, with slog and zap backends.
package logging

import "context"

// Logger takes variadic key/value pairs after the message:
//
//	log.Info(ctx, "share created", "id", id, "size", size)
type Logger interface {
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given pairs.
	With(args ...any) Logger
}
