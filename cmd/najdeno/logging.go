package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// levelRouter is a slog.Handler that sends records below ERROR to out and
// the rest to errOut. Records below min are dropped.
type levelRouter struct {
	min    slog.Level
	out    slog.Handler
	errOut slog.Handler
}

func newLevelRouter(out, errOut io.Writer, min slog.Level) *levelRouter {
	opts := &slog.HandlerOptions{Level: min}
	return &levelRouter{
		min:    min,
		out:    slog.NewTextHandler(out, opts),
		errOut: slog.NewTextHandler(errOut, opts),
	}
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.min
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.errOut.Handle(ctx, r)
	}
	return lr.out.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{min: lr.min, out: lr.out.WithAttrs(attrs), errOut: lr.errOut.WithAttrs(attrs)}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{min: lr.min, out: lr.out.WithGroup(name), errOut: lr.errOut.WithGroup(name)}
}

// setupLogger installs the default logger. If logPath is non-empty, every
// record is also appended to that file; the returned func closes it.
func setupLogger(logPath string, min slog.Level) (func(), error) {
	out := io.Writer(os.Stdout)
	errOut := io.Writer(os.Stderr)

	var cleanup func()
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		out = io.MultiWriter(out, f)
		errOut = io.MultiWriter(errOut, f)
	}

	slog.SetDefault(slog.New(newLevelRouter(out, errOut, min)))
	return cleanup, nil
}
