package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

type slogKeyT struct{}

var slogKey slogKeyT

// ContextHandler adds slog attrs carried by the context to every record, so
// per-run and per-job attributes follow the work without threading a logger
// through every call.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(handler slog.Handler) ContextHandler {
	return ContextHandler{
		Handler: handler,
	}
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if a, ok := ctx.Value(slogKey).([]slog.Attr); ok {
		r.AddAttrs(a...)
	}

	return h.Handler.Handle(ctx, r)
}

func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	a, ok := ctx.Value(slogKey).([]slog.Attr)
	if !ok || a == nil {
		a = make([]slog.Attr, 0, len(attrs))
	}
	a = append(a, attrs...)
	return context.WithValue(ctx, slogKey, a)
}

// TeeHandler duplicates every record into two handlers, the persistent run
// log file and the live console stream.
type TeeHandler struct {
	file    slog.Handler
	console slog.Handler
}

func NewTeeHandler(file, console slog.Handler) TeeHandler {
	return TeeHandler{file: file, console: console}
}

func (h TeeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.file.Enabled(ctx, level) || h.console.Enabled(ctx, level)
}

func (h TeeHandler) Handle(ctx context.Context, r slog.Record) error {
	var ferr, cerr error
	if h.file.Enabled(ctx, r.Level) {
		ferr = h.file.Handle(ctx, r.Clone())
	}
	if h.console.Enabled(ctx, r.Level) {
		cerr = h.console.Handle(ctx, r)
	}
	if ferr != nil {
		return ferr
	}
	return cerr
}

func (h TeeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return TeeHandler{
		file:    h.file.WithAttrs(attrs),
		console: h.console.WithAttrs(attrs),
	}
}

func (h TeeHandler) WithGroup(name string) slog.Handler {
	return TeeHandler{
		file:    h.file.WithGroup(name),
		console: h.console.WithGroup(name),
	}
}

func New(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	})
	return slog.New(NewContextHandler(base))
}

// NewRunLogger opens logFile and returns a logger feeding both the file and
// console. The returned closer flushes and closes the file.
func NewRunLogger(console io.Writer, logFile string, verbose bool) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", logFile, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	tee := NewTeeHandler(
		slog.NewTextHandler(f, opts),
		slog.NewTextHandler(console, opts),
	)
	return slog.New(NewContextHandler(tee)), f.Close, nil
}
