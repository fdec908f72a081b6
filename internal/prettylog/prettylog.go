// Package prettylog implements a slog.Handler that renders human-readable,
// single-line log entries with a bracketed millisecond timestamp, an
// upper-case level, the message, and a trailing JSON object of attributes.
// It mirrors the teacher's helper.PrettyHandler (reconstructed here from its
// observable contract in helper/prettyLog_test.go, since the pack's copy of
// prettyLog.go itself was pruned from the retrieval set).
package prettylog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// Options configures a Handler.
type Options struct {
	SlogOpts slog.HandlerOptions
}

// Handler is a slog.Handler producing pretty, single-line output.
type Handler struct {
	slog.Handler
	l     *log_
	mu    *sync.Mutex
	attrs []slog.Attr
}

// log_ is a tiny indirection so tests can assert a non-nil logger field,
// matching the teacher's handler.l contract.
type log_ struct {
	out io.Writer
}

// NewHandler creates a new pretty-printing slog.Handler writing to out.
func NewHandler(out io.Writer, opts Options) *Handler {
	h := &Handler{
		Handler: slog.NewJSONHandler(out, &opts.SlogOpts),
		l:       &log_{out: out},
		mu:      &sync.Mutex{},
	}
	return h
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	attrs := make(map[string]interface{}, r.NumAttrs())
	for _, a := range h.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})

	b, err := json.Marshal(attrs)
	if err != nil {
		return err
	}

	timeStr := r.Time.Format("15:04:05.000")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = fmt.Fprintf(h.l.out, "[%s] %s %s %s\n", timeStr, level, r.Message, string(b))
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		Handler: h.Handler.WithAttrs(attrs),
		l:       h.l,
		mu:      h.mu,
		attrs:   append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		Handler: h.Handler.WithGroup(name),
		l:       h.l,
		mu:      h.mu,
		attrs:   h.attrs,
	}
}

// New constructs a ready-to-use *slog.Logger with the pretty handler.
func New(out io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewHandler(out, Options{SlogOpts: slog.HandlerOptions{Level: level}}))
}
