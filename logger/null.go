package logger

import "sync"

// NullLogger implements Logger but does nothing
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (n *NullLogger) Debug(msg string, keyvals ...any) {}
func (n *NullLogger) Info(msg string, keyvals ...any)  {}
func (n *NullLogger) Error(msg string, keyvals ...any) {}

// Line is one captured log call
type Line struct {
	Level   string
	Msg     string
	KeyVals []any
}

// MemoryLogger keeps every call in memory, for tests that assert on logging.
type MemoryLogger struct {
	mu    sync.Mutex
	lines []Line
}

func NewMemoryLogger() *MemoryLogger { return &MemoryLogger{} }

func (m *MemoryLogger) Debug(msg string, keyvals ...any) { m.add("debug", msg, keyvals) }
func (m *MemoryLogger) Info(msg string, keyvals ...any)  { m.add("info", msg, keyvals) }
func (m *MemoryLogger) Error(msg string, keyvals ...any) { m.add("error", msg, keyvals) }

func (m *MemoryLogger) add(level, msg string, keyvals []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, Line{Level: level, Msg: msg, KeyVals: append([]any(nil), keyvals...)})
}

// Lines returns a copy of everything logged so far.
func (m *MemoryLogger) Lines() []Line {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Line(nil), m.lines...)
}
