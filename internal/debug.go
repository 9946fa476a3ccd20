package internal

import (
	"context"
	"log/slog"
)

// LevelTrace sits below [slog.LevelDebug] so that per-segment tracing can be
// enabled independently of ordinary debug logging.
const LevelTrace slog.Level = slog.LevelDebug - 2

// LogAttrs is a nil-safe helper used by every package logger.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}

// Logger is a small wrapper embedded by types that want leveled, structured
// logging without holding onto a nil-check at every call site.
type Logger struct {
	Log *slog.Logger
}

func (l Logger) enabled(lvl slog.Level) bool {
	return l.Log != nil && l.Log.Handler().Enabled(context.Background(), lvl)
}

func (l Logger) Trace(msg string, attrs ...slog.Attr) {
	if l.enabled(LevelTrace) {
		LogAttrs(l.Log, LevelTrace, msg, attrs...)
	}
}

func (l Logger) Debug(msg string, attrs ...slog.Attr) {
	LogAttrs(l.Log, slog.LevelDebug, msg, attrs...)
}

func (l Logger) Info(msg string, attrs ...slog.Attr) {
	LogAttrs(l.Log, slog.LevelInfo, msg, attrs...)
}

func (l Logger) Warn(msg string, attrs ...slog.Attr) {
	LogAttrs(l.Log, slog.LevelWarn, msg, attrs...)
}

func (l Logger) Error(msg string, attrs ...slog.Attr) {
	LogAttrs(l.Log, slog.LevelError, msg, attrs...)
}
