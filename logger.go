package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

var logLevels = map[string]slog.Level{
	"DEBUG": slog.LevelDebug,
	"INFO":  slog.LevelInfo,
	"WARN":  slog.LevelWarn,
	"ERROR": slog.LevelError,
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var logLevel slog.Level
	if l, ok := logLevels[strings.ToUpper(level)]; ok {
		logLevel = l
	}
	var color bool
	if f, ok := w.(*os.File); ok {
		color = term.IsTerminal(int(f.Fd()))
	}
	handler := &loggingHandler{
		level: logLevel,
		out:   &lockedWriter{w: w},
		color: color,
	}
	return slog.New(handler)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (lw *lockedWriter) writeLine(s string) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	_, err := io.WriteString(lw.w, s+"\n")
	return err
}

// loggingHandler writes one line per record:
//
//	[2006-01-02T15:04:05Z] [WARN] [de] message key=value
type loggingHandler struct {
	level slog.Level
	out   *lockedWriter
	color bool
	attrs []slog.Attr
	group string
}

var _ slog.Handler = (*loggingHandler)(nil)

func (lh *loggingHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lh.level
}

func (lh *loggingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	combined := make([]slog.Attr, len(lh.attrs), len(lh.attrs)+len(attrs))
	copy(combined, lh.attrs)
	for _, attr := range attrs {
		if !isDefaultAttr(attr) {
			combined = append(combined, lh.qualify(attr))
		}
	}
	clone := *lh
	clone.attrs = combined
	return &clone
}

func (lh *loggingHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return lh
	}
	clone := *lh
	clone.group = lh.qualifyKey(name)
	return &clone
}

func (lh *loggingHandler) qualifyKey(key string) string {
	if lh.group == "" {
		return key
	}
	return lh.group + "." + key
}

func (lh *loggingHandler) qualify(attr slog.Attr) slog.Attr {
	return slog.Attr{Key: lh.qualifyKey(attr.Key), Value: attr.Value}
}

const variantAttrKey = "variant"

// variantColors are ANSI foreground colors, cycled through by variant name.
var variantColors = []string{
	"\x1b[36m", // cyan
	"\x1b[33m", // yellow
	"\x1b[35m", // magenta
	"\x1b[32m", // green
	"\x1b[34m", // blue
	"\x1b[31m", // red
}

func variantColor(name string) string {
	var h uint32
	for i := 0; i < len(name); i++ {
		h = h*31 + uint32(name[i])
	}
	return variantColors[h%uint32(len(variantColors))]
}

func (lh *loggingHandler) Handle(_ context.Context, record slog.Record) error {
	var builder strings.Builder

	if !record.Time.IsZero() {
		builder.WriteRune('[')
		builder.WriteString(record.Time.Format(time.RFC3339))
		builder.WriteString("] ")
	}

	switch record.Level {
	case slog.LevelWarn:
		builder.WriteString("[WARN] ")
	case slog.LevelError:
		builder.WriteString("[ERROR] ")
	default:
	}

	attrs := make([]slog.Attr, 0, len(lh.attrs)+record.NumAttrs())
	attrs = append(attrs, lh.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		if !isDefaultAttr(attr) {
			attrs = append(attrs, lh.qualify(attr))
		}
		return true
	})

	var variant string
	for _, attr := range attrs {
		if attr.Key == variantAttrKey {
			variant = attr.Value.String()
			break
		}
	}
	if variant != "" {
		if lh.color {
			builder.WriteString(variantColor(variant))
		}
		builder.WriteRune('[')
		builder.WriteString(variant)
		builder.WriteRune(']')
		if lh.color {
			builder.WriteString("\x1b[0m")
		}
		builder.WriteRune(' ')
	}

	builder.WriteString(record.Message)

	for _, attr := range attrs {
		if attr.Key == variantAttrKey {
			continue
		}
		builder.WriteRune(' ')
		builder.WriteString(attr.Key)
		builder.WriteString("=")
		builder.WriteString(attr.Value.String())
	}

	return lh.out.writeLine(builder.String())
}

func isDefaultAttr(attr slog.Attr) bool {
	return attr.Equal(slog.Attr{})
}
