package logging

import (
	"fmt"
	"io"
	"log/slog"

	"go.uber.org/zap"
)

const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// New builds a Logger for the named backend. The returned close func flushes
// the backend and is safe to call once on shutdown.
func New(backend string, w io.Writer) (Logger, func(), error) {
	switch backend {
	case "", BackendSlog:
		l := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
		return NewSlogLogger(l), func() {}, nil
	case BackendZap:
		zl, err := zap.NewProduction()
		if err != nil {
			return nil, nil, fmt.Errorf("zap: %w", err)
		}
		z := NewZapLogger(zl.Sugar())
		return z, func() { _ = z.Sync() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

// Nop discards everything.
func Nop() Logger {
	return NewZapLogger(zap.NewNop().Sugar())
}
