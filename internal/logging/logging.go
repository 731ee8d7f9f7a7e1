// Package logging provides the console slog handler used by the CLI.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", name, err)
	}
	return l, nil
}

// Handler writes one line per record: a coloured level tag, the message
// and its attributes as key=value pairs.
type Handler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	colors bool
	prefix string
	attrs  []slog.Attr
}

// New returns a handler writing records at or above level to w.
func New(w io.Writer, level slog.Leveler, colors bool) *Handler {
	return &Handler{mu: &sync.Mutex{}, w: w, level: level, colors: colors}
}

// NewLogger is New wrapped in a *slog.Logger.
func NewLogger(w io.Writer, level slog.Leveler, colors bool) *slog.Logger {
	return slog.New(New(w, level, colors))
}

func (h *Handler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

var levelColors = map[slog.Level]*color.Color{
	slog.LevelDebug: color.New(color.FgHiBlack),
	slog.LevelInfo:  color.New(color.FgCyan),
	slog.LevelWarn:  color.New(color.FgYellow),
	slog.LevelError: color.New(color.FgRed, color.Bold),
}

func (h *Handler) tag(l slog.Level) string {
	s := fmt.Sprintf("%-5s", l.String())
	if !h.colors {
		return s
	}
	c, ok := levelColors[l]
	if !ok {
		return s
	}
	return c.Sprint(s)
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(h.tag(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	// stored attrs already carry the group prefix they were added under
	for _, a := range h.attrs {
		h.writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *Handler) writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		group := prefix
		if a.Key != "" {
			group += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			h.writeAttr(b, group, ga)
		}
		return
	}
	key := prefix + a.Key
	if h.colors {
		key = color.New(color.Faint).Sprint(key)
	}
	fmt.Fprintf(b, " %s=%s", key, quote(a.Value.String()))
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}
