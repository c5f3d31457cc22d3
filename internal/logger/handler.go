package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	reset  = "\033[0m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	purple = "\033[35m"
	cyan   = "\033[36m"
	gray   = "\033[37m"
	white  = "\033[97m"
)

const redacted = "[REDACTED]"

// Attribute keys whose values are credentials and never printed.
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"password":      {},
	"token":         {},
	"refreshtoken":  {},
	"refresh_token": {},
	"access_token":  {},
	"jwt_secret":    {},
}

type Options struct {
	Level   slog.Leveler
	NoColor bool
}

// PrettyHandler writes one coloured line per record and masks credential
// attributes.
type PrettyHandler struct {
	opts  Options
	w     io.Writer
	mu    *sync.Mutex
	attrs []slog.Attr
	group string
}

func NewPrettyHandler(w io.Writer, opts *Options) *PrettyHandler {
	if opts == nil {
		opts = &Options{}
	}
	o := *opts
	if o.Level == nil {
		o.Level = slog.LevelInfo
	}
	return &PrettyHandler{
		opts: o,
		w:    w,
		mu:   &sync.Mutex{},
	}
}

// ParseLevel maps LOG_LEVEL values; unknown input falls back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	b.WriteString(h.paint(gray, r.Time.Format("15:04:05.000")))
	b.WriteByte(' ')
	b.WriteString(h.paint(levelColor(r.Level), fmt.Sprintf("%-5s", r.Level.String())))
	b.WriteByte(' ')
	b.WriteString(h.paint(white, r.Message))

	for _, a := range h.attrs {
		h.writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *PrettyHandler) writeAttr(b *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			ga.Key = key + "." + ga.Key
			h.writeAttr(b, ga)
		}
		return
	}

	var val any = a.Value.Any()
	switch {
	case isSensitive(a.Key):
		val = redacted
	case a.Value.Kind() == slog.KindTime:
		val = a.Value.Time().Format(time.RFC3339)
	case a.Value.Kind() == slog.KindDuration:
		val = a.Value.Duration().String()
	}

	fmt.Fprintf(b, " %s=%v", h.paint(cyan, key), val)
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)

	return &PrettyHandler{
		opts:  h.opts,
		w:     h.w,
		mu:    h.mu,
		attrs: newAttrs,
		group: h.group,
	}
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroup := name
	if h.group != "" {
		newGroup = h.group + "." + name
	}

	return &PrettyHandler{
		opts:  h.opts,
		w:     h.w,
		mu:    h.mu,
		attrs: h.attrs,
		group: newGroup,
	}
}

func (h *PrettyHandler) paint(color, s string) string {
	if h.opts.NoColor {
		return s
	}
	return color + s + reset
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return red
	case level >= slog.LevelWarn:
		return yellow
	case level >= slog.LevelInfo:
		return green
	default:
		return purple
	}
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}
