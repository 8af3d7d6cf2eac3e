package testing

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Entry is one recorded log line.
type Entry struct {
	Level string
	Msg   string
}

// RecordingLogger records every entry instead of writing it anywhere.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []Entry
	output  bytes.Buffer

	// LogPath is returned by Path.
	LogPath string
}

// NewRecordingLogger returns a logger that reports logPath as its file.
func NewRecordingLogger(logPath string) *RecordingLogger {
	return &RecordingLogger{LogPath: logPath}
}

func (l *RecordingLogger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Msg: fmt.Sprintf(format, args...)})
}

func (l *RecordingLogger) Debugf(format string, args ...any)   { l.record("DEBUG", format, args...) }
func (l *RecordingLogger) Infof(format string, args ...any)    { l.record("INFO", format, args...) }
func (l *RecordingLogger) Stepf(format string, args ...any)    { l.record("STEP", format, args...) }
func (l *RecordingLogger) Successf(format string, args ...any) { l.record("OK", format, args...) }
func (l *RecordingLogger) Warnf(format string, args ...any)    { l.record("WARN", format, args...) }
func (l *RecordingLogger) Errorf(format string, args ...any)   { l.record("ERROR", format, args...) }

// Writer collects subprocess output; see Output.
func (l *RecordingLogger) Writer() io.Writer { return lockedWriter{l} }

// Path returns LogPath.
func (l *RecordingLogger) Path() string { return l.LogPath }

// Entries returns every entry in order.
func (l *RecordingLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Messages returns the messages logged at level.
func (l *RecordingLogger) Messages(level string) []string {
	var out []string
	for _, e := range l.Entries() {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}
	return out
}

// Contains reports whether any entry at level contains substr.
func (l *RecordingLogger) Contains(level, substr string) bool {
	for _, m := range l.Messages(level) {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// Output returns everything written through Writer.
func (l *RecordingLogger) Output() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.output.String()
}

type lockedWriter struct{ l *RecordingLogger }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()
	return w.l.output.Write(p)
}
