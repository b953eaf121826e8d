// Package logging builds the structured loggers used by the service and by
// per-user workers: a tab-separated slog handler writing through a rolling
// file sink.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// tabHandler formats log records as:
//
//	<timestamp>\t<level>\t<scope>\t<message>\t<key=value ...>
type tabHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	scope string
	level slog.Level
	attrs []slog.Attr
}

func newTabHandler(w io.Writer, scope string, level slog.Level) *tabHandler {
	return &tabHandler{mu: &sync.Mutex{}, w: w, scope: scope, level: level}
}

func (h *tabHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *tabHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.scope, r.Message); err != nil {
		return err
	}
	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})
	_, err := fmt.Fprintln(h.w)
	return err
}

func (h *tabHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &tabHandler{
		mu:    h.mu,
		w:     h.w,
		scope: h.scope,
		level: h.level,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *tabHandler) WithGroup(string) slog.Handler { return h }
