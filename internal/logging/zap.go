package logging

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
)

// ZapLogger adapts a *zap.Logger to Logger using the sugared key/value API.
type ZapLogger struct {
	l *zap.SugaredLogger
}

func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{l: l.Sugar()}
}

func (z *ZapLogger) Debug(_ context.Context, msg string, args ...any) {
	z.l.Debugw(msg, args...)
}

func (z *ZapLogger) Info(_ context.Context, msg string, args ...any) {
	z.l.Infow(msg, args...)
}

func (z *ZapLogger) Warn(_ context.Context, msg string, args ...any) {
	z.l.Warnw(msg, args...)
}

func (z *ZapLogger) Error(_ context.Context, msg string, args ...any) {
	z.l.Errorw(msg, args...)
}

func (z *ZapLogger) With(args ...any) Logger {
	return &ZapLogger{l: z.l.With(args...)}
}

// Sync flushes buffered zap entries.
func (z *ZapLogger) Sync() error {
	return z.l.Sync()
}

// New builds the logger for the named backend. Unknown names fall back to
// slog writing JSON to w.
func New(backend string, w io.Writer) (Logger, error) {
	if backend == BackendZap {
		l, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		return NewZapLogger(l), nil
	}
	if w == nil {
		w = os.Stdout
	}
	return NewSlogLogger(slog.New(slog.NewJSONHandler(w, nil))), nil
}
