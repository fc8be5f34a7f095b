package logger

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SLogLogger writes decisions and store failures through a slog.Logger.
// Fields given to NewSLogLogger or With are attached to every record.
type SLogLogger struct {
	l      *slog.Logger
	fields []slog.Attr
}

// NewSLogLogger wraps l (slog.Default when nil) with fixed keyvals,
// e.g. "service", "recordperm".
func NewSLogLogger(l *slog.Logger, keyvals ...any) *SLogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SLogLogger{l: l, fields: attrsOf(nil, keyvals)}
}

// With returns a child logger carrying extra keyvals, e.g. a ward id.
func (s *SLogLogger) With(keyvals ...any) *SLogLogger {
	fields := make([]slog.Attr, len(s.fields), len(s.fields)+len(keyvals)/2)
	copy(fields, s.fields)
	return &SLogLogger{l: s.l, fields: attrsOf(fields, keyvals)}
}

func (s *SLogLogger) Debug(msg string, keyvals ...any) { s.emit(slog.LevelDebug, msg, keyvals) }
func (s *SLogLogger) Info(msg string, keyvals ...any)  { s.emit(slog.LevelInfo, msg, keyvals) }
func (s *SLogLogger) Error(msg string, keyvals ...any) { s.emit(slog.LevelError, msg, keyvals) }

func (s *SLogLogger) emit(level slog.Level, msg string, keyvals []any) {
	ctx := context.Background()
	if !s.l.Enabled(ctx, level) {
		return
	}
	attrs := make([]slog.Attr, len(s.fields), len(s.fields)+len(keyvals)/2+1)
	copy(attrs, s.fields)
	s.l.LogAttrs(ctx, level, msg, attrsOf(attrs, keyvals)...)
}

// attrsOf appends keyvals to dst. A dangling key is kept under "!BADKEY"
// the way slog itself reports it.
func attrsOf(dst []slog.Attr, keyvals []any) []slog.Attr {
	for i := 0; i < len(keyvals); i += 2 {
		if i+1 == len(keyvals) {
			dst = append(dst, slog.Any("!BADKEY", keyvals[i]))
			break
		}
		dst = append(dst, attrOf(fmt.Sprint(keyvals[i]), keyvals[i+1]))
	}
	return dst
}

func attrOf(key string, v any) slog.Attr {
	switch vv := v.(type) {
	case string:
		return slog.String(key, vv)
	case bool:
		return slog.Bool(key, vv)
	case int:
		return slog.Int(key, vv)
	case time.Duration:
		return slog.Duration(key, vv)
	case time.Time:
		return slog.Time(key, vv)
	case error:
		return slog.String(key, vv.Error())
	case fmt.Stringer:
		return slog.String(key, vv.String())
	}
	return slog.Any(key, v)
}
