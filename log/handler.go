package log

import (
	"context"
	"io"
	"log/slog"
)

// NewTerminalHandlerWithLevel returns a text handler writing records at or
// above lvl. Without color the level names are the slog defaults; with color
// they are padded to a fixed width and tinted.
func NewTerminalHandlerWithLevel(w io.Writer, lvl slog.Level, useColor bool) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 || a.Key != slog.LevelKey {
				return a
			}
			level, ok := a.Value.Any().(slog.Level)
			if !ok {
				return a
			}
			name := LevelAlignedString(level)
			if useColor {
				name = levelColor(level) + name + "\x1b[0m"
			}
			return slog.String(slog.LevelKey, name)
		},
	})
}

func levelColor(l slog.Level) string {
	switch {
	case l >= LevelCrit:
		return "\x1b[35m"
	case l >= slog.LevelError:
		return "\x1b[31m"
	case l >= slog.LevelWarn:
		return "\x1b[33m"
	case l >= slog.LevelInfo:
		return "\x1b[32m"
	default:
		return "\x1b[36m"
	}
}

type discardHandler struct{}

// DiscardHandler returns a handler that drops every record.
func DiscardHandler() slog.Handler {
	return discardHandler{}
}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (h discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h discardHandler) WithGroup(string) slog.Handler           { return h }
