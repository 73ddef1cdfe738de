// Package mock provides hand-written test doubles shared across packages.
package mock

import (
	"fmt"
	"strings"
	"sync"

	"realtime_strategies/internal/core"
)

// Logger is a core.ILogger that records messages for assertions.
// WithField/WithFields return the same recorder so scoped loggers share
// the captured output.
type Logger struct {
	mu       sync.Mutex
	Messages []string
}

// NewLogger creates an empty recording logger
func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) record(level, msg string, fields ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, fmt.Sprintf("[%s] %s %v", level, msg, fields))
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.record("DEBUG", msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.record("INFO", msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.record("WARN", msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.record("ERROR", msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...interface{}) { l.record("FATAL", msg, fields...) }

func (l *Logger) WithField(key string, value interface{}) core.ILogger  { return l }
func (l *Logger) WithFields(fields map[string]interface{}) core.ILogger { return l }

// Contains reports whether any recorded message includes substr
func (l *Logger) Contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}
