// Package testutil provides shared test helpers for trialscope packages.
package testutil

import (
	"sync"

	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
)

// MockLogger implements logging.Logger and records every entry.
// Children created by With and Named share the parent's record.
type MockLogger struct {
	mu       *sync.Mutex
	messages *[]LogMessage
	bound    []logging.Field
}

// LogMessage is a single entry captured by MockLogger.
type LogMessage struct {
	Level   string
	Message string
	Fields  []logging.Field
}

// Field returns the value of the named field and whether it was present.
func (m LogMessage) Field(key string) (interface{}, bool) {
	for _, f := range m.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// NewMockLogger creates a new MockLogger instance.
func NewMockLogger() *MockLogger {
	msgs := make([]LogMessage, 0)
	return &MockLogger{mu: &sync.Mutex{}, messages: &msgs}
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	all := make([]logging.Field, 0, len(m.bound)+len(fields))
	all = append(all, m.bound...)
	all = append(all, fields...)
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.messages = append(*m.messages, LogMessage{Level: level, Message: msg, Fields: all})
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }

func (m *MockLogger) With(fields ...logging.Field) logging.Logger {
	bound := make([]logging.Field, 0, len(m.bound)+len(fields))
	bound = append(bound, m.bound...)
	bound = append(bound, fields...)
	return &MockLogger{mu: m.mu, messages: m.messages, bound: bound}
}

func (m *MockLogger) Named(string) logging.Logger { return m }

// GetMessages returns a copy of all logged messages.
func (m *MockLogger) GetMessages() []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]LogMessage, len(*m.messages))
	copy(result, *m.messages)
	return result
}

// Clear removes all logged messages.
func (m *MockLogger) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.messages = (*m.messages)[:0]
}

// HasMessage checks if a message with the given level and content was logged.
func (m *MockLogger) HasMessage(level, msg string) bool {
	return len(m.Find(level, msg)) > 0
}

// Find returns every entry with the given level and message.
func (m *MockLogger) Find(level, msg string) []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LogMessage
	for _, logged := range *m.messages {
		if logged.Level == level && logged.Message == msg {
			out = append(out, logged)
		}
	}
	return out
}

// CountLevel returns the number of entries at level.
func (m *MockLogger) CountLevel(level string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, logged := range *m.messages {
		if logged.Level == level {
			n++
		}
	}
	return n
}
