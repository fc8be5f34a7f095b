package logger

// Logger is a minimal structured logging interface used by the Engine.
// Implementations accept alternating key/value pairs.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation ID for each decision.
type TraceIDFunc func() string // It should be cheap and safe for concurrent calls.
