package logger

import (
	"fmt"
	"time"

	phlog "github.com/oarkflow/log"
)

// PhusluLogger writes through the package-level oarkflow/log logger
type PhusluLogger struct {
	// fields are attached to every entry, e.g. service name
	fields []any
}

func NewPhusluLogger(keyvals ...any) *PhusluLogger {
	return &PhusluLogger{fields: keyvals}
}

func (p *PhusluLogger) Debug(msg string, keyvals ...any) {
	p.emit(phlog.Debug(), msg, keyvals)
}

func (p *PhusluLogger) Info(msg string, keyvals ...any) {
	p.emit(phlog.Info(), msg, keyvals)
}

func (p *PhusluLogger) Error(msg string, keyvals ...any) {
	p.emit(phlog.Error(), msg, keyvals)
}

func (p *PhusluLogger) emit(b *phlog.Entry, msg string, keyvals []any) {
	b = appendFields(b, p.fields)
	b = appendFields(b, keyvals)
	b.Msg(msg)
}

func appendFields(b *phlog.Entry, keyvals []any) *phlog.Entry {
	for i := 0; i < len(keyvals)-1; i += 2 {
		ks := fmt.Sprint(keyvals[i])
		switch vv := keyvals[i+1].(type) {
		case string:
			b = b.Str(ks, vv)
		case bool:
			b = b.Bool(ks, vv)
		case int:
			b = b.Int(ks, vv)
		case time.Duration:
			b = b.Str(ks, vv.String())
		case error:
			b = b.Str(ks, vv.Error())
		default:
			b = b.Any(ks, vv)
		}
	}
	return b
}
