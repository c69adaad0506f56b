// ABOUTME: slog setup for the tutorchat binaries
// ABOUTME: Colorized text handler on stderr so log lines never interleave with chat output

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/tutorchat/internal/config"
)

var levelTags = map[slog.Level]string{
	slog.LevelDebug: color.MagentaString("DBG"),
	slog.LevelInfo:  color.CyanString("INF"),
	slog.LevelWarn:  color.YellowString("WRN"),
	slog.LevelError: color.New(color.FgRed, color.Bold).Sprint("ERR"),
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	return slog.New(newHandler(os.Stderr, cfg))
}

func newHandler(out io.Writer, cfg config.LoggingConfig) slog.Handler {
	level := slog.LevelInfo
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = slog.LevelInfo
		}
	}

	if cfg.Format == "json" {
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}
	return &colorHandler{out: out, mu: &sync.Mutex{}, level: level}
}

// colorHandler writes one line per record:
//
//	15:04:05 INF [channel] connected attempt=2
//
// The "component" attribute becomes the bracketed tag. Attributes added via
// WithAttrs are rendered once, when the derived handler is created. Derived
// handlers share the parent's mutex.
type colorHandler struct {
	out       io.Writer
	mu        *sync.Mutex
	level     slog.Level
	component string
	prefix    string // open group path, "a.b."
	attrText  string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(color.HiBlackString(r.Time.Format("15:04:05")))
	b.WriteByte(' ')
	if tag, ok := levelTags[r.Level]; ok {
		b.WriteString(tag)
	} else {
		b.WriteString(r.Level.String())
	}
	b.WriteByte(' ')
	if h.component != "" {
		b.WriteString(color.BlueString("[%s] ", h.component))
	}
	b.WriteString(r.Message)
	b.WriteString(h.attrText)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	var b strings.Builder
	b.WriteString(h.attrText)
	for _, a := range attrs {
		if a.Key == "component" && h.prefix == "" {
			next.component = a.Value.String()
			continue
		}
		appendAttr(&b, h.prefix, a)
	}
	next.attrText = b.String()
	return &next
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, inner, ga)
		}
		return
	}
	b.WriteString(color.HiBlackString(" " + prefix + a.Key + "="))
	b.WriteString(a.Value.String())
}
