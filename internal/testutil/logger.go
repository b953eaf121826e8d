package testutil

import (
	"fmt"
	"strings"
	"sync"

	"maxbackup/internal/backup"
)

// LogEntry is one captured log record.
type LogEntry struct {
	Level   string
	Message string
	Args    []any
}

// CaptureLogger records log calls for assertions.
type CaptureLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewCaptureLogger() *CaptureLogger {
	return &CaptureLogger{}
}

func (l *CaptureLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args) }
func (l *CaptureLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args) }
func (l *CaptureLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args) }
func (l *CaptureLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args) }

func (l *CaptureLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

// Entries returns a copy of the captured records.
func (l *CaptureLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Contains reports whether any record at the given level contains substr in
// its message or rendered args.
func (l *CaptureLogger) Contains(level, substr string) bool {
	for _, e := range l.Entries() {
		if level != "" && e.Level != level {
			continue
		}
		if strings.Contains(e.Message, substr) {
			return true
		}
		if strings.Contains(fmt.Sprint(e.Args...), substr) {
			return true
		}
	}
	return false
}

var _ backup.Logger = (*CaptureLogger)(nil)
