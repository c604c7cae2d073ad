// Package log wires log/slog with context-carried attributes, so every
// record emitted inside one worker session or one batch shares the same
// identifying attributes.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
)

type attrsKeyT struct{}

var attrsKey attrsKeyT

// Handler decorates another slog.Handler with attributes stored in the
// record's context via ContextAttrs.
type Handler struct {
	slog.Handler
}

func NewHandler(inner slog.Handler) Handler {
	return Handler{Handler: inner}
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(attrsKey).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

// ContextAttrs returns a context carrying the given attributes in addition
// to any attributes already present.
func ContextAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev, _ := ctx.Value(attrsKey).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(prev)+len(attrs))
	merged = append(merged, prev...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, attrsKey, merged)
}

// New builds a JSON logger writing to w. Verbose switches to Debug level.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	base := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewHandler(base))
}

// Setup installs a New logger on stderr as the process default.
func Setup(verbose bool) {
	slog.SetDefault(New(os.Stderr, verbose))
}
