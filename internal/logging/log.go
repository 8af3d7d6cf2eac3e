package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Level orders log events by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelStep
	LevelSuccess
	LevelWarn
	LevelError
)

// String returns the label written into the log.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelStep:
		return "STEP"
	case LevelSuccess:
		return "OK"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// fileTimeFormat names log files; it sorts lexically by time.
const fileTimeFormat = "20060102T150405Z"

// Options configures a Log.
type Options struct {
	// Dir receives the log file. Empty disables the file (console only).
	Dir string

	// Console mirrors every event. Defaults to os.Stderr.
	Console io.Writer

	// Verbose shows DEBUG events on the console.
	Verbose bool

	// RunID is written into the header line when set.
	RunID string

	// Now overrides the clock (for tests).
	Now func() time.Time
}

// Log is the append-only execution log.
type Log struct {
	mu      sync.Mutex
	file    *os.File
	path    string
	console io.Writer
	styled  bool
	styles  palette
	verbose bool
	now     func() time.Time
	partial bytes.Buffer
}

// Open creates the log directory and file and writes a header line.
func Open(opts Options) (*Log, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	l := &Log{
		console: console,
		styled:  isTerminal(console),
		verbose: opts.Verbose,
		now:     now,
	}
	l.styles = newPalette(lipgloss.NewRenderer(console))

	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory %s: %w", opts.Dir, err)
		}
		l.path = filepath.Join(opts.Dir, fmt.Sprintf("podstrap-%s.log", now().UTC().Format(fileTimeFormat)))
		// #nosec G304 - path is built from the configured working directory
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		l.file = f

		header := "execution log opened"
		if opts.RunID != "" {
			header += " run=" + opts.RunID
		}
		l.writeFile(LevelDebug, header)
	}
	return l, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Path returns the log file path, or "" when logging to the console only.
func (l *Log) Path() string { return l.path }

// Close flushes any partial subprocess line and closes the file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.partial.Len() > 0 {
		l.emit(LevelDebug, "  | "+l.partial.String())
		l.partial.Reset()
	}
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Log records one event. Multi-line messages become one event per line.
func (l *Log) Log(level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(msg, "\n"), "\n") {
		l.emit(level, line)
	}
}

func (l *Log) emit(level Level, line string) {
	l.writeFile(level, line)
	if level == LevelDebug && !l.verbose {
		return
	}
	label := "[" + level.String() + "]"
	if l.styled {
		fmt.Fprintf(l.console, "%s %s\n", l.styles.label[level].Render(label), l.styles.text[level].Render(line))
		return
	}
	fmt.Fprintf(l.console, "%s %s\n", label, line)
}

func (l *Log) writeFile(level Level, line string) {
	if l.file == nil {
		return
	}
	// Unbuffered: each event reaches the file before the next one starts.
	_, _ = fmt.Fprintf(l.file, "%s [%s] %s\n", l.now().UTC().Format(time.RFC3339), level, line)
}

// Debugf logs at DEBUG.
func (l *Log) Debugf(format string, args ...any) { l.Log(LevelDebug, fmt.Sprintf(format, args...)) }

// Infof logs at INFO.
func (l *Log) Infof(format string, args ...any) { l.Log(LevelInfo, fmt.Sprintf(format, args...)) }

// Stepf logs a stage marker.
func (l *Log) Stepf(format string, args ...any) { l.Log(LevelStep, fmt.Sprintf(format, args...)) }

// Successf logs at OK.
func (l *Log) Successf(format string, args ...any) { l.Log(LevelSuccess, fmt.Sprintf(format, args...)) }

// Warnf logs at WARN.
func (l *Log) Warnf(format string, args ...any) { l.Log(LevelWarn, fmt.Sprintf(format, args...)) }

// Errorf logs at ERROR.
func (l *Log) Errorf(format string, args ...any) { l.Log(LevelError, fmt.Sprintf(format, args...)) }

// Writer returns an io.Writer that logs every complete line at DEBUG.
func (l *Log) Writer() io.Writer { return lineWriter{l} }

type lineWriter struct{ l *Log }

func (w lineWriter) Write(p []byte) (int, error) {
	w.l.mu.Lock()
	defer w.l.mu.Unlock()

	w.l.partial.Write(p)
	for {
		data := w.l.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(data[:i]), "\r")
		w.l.partial.Next(i + 1)
		w.l.emit(LevelDebug, "  | "+line)
	}
	return len(p), nil
}
