package logging

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

// Logr returns a logr.Logger writing into l. V(0) maps to INFO and higher
// verbosity to DEBUG. Key/value pairs are rendered by funcr.
func (l *Log) Logr() logr.Logger {
	noLevel := ""
	return logr.New(&sink{
		log:       l,
		formatter: funcr.NewFormatter(funcr.Options{LogInfoLevel: &noLevel}),
	})
}

type sink struct {
	log       *Log
	formatter funcr.Formatter
}

var _ logr.LogSink = (*sink)(nil)

func (s *sink) Init(info logr.RuntimeInfo) { s.formatter.Init(info) }

func (s *sink) Enabled(int) bool { return true }

func (s *sink) Info(level int, msg string, kv ...any) {
	lvl := LevelInfo
	if level > 0 {
		lvl = LevelDebug
	}
	s.log.Log(lvl, line(s.formatter.FormatInfo(level, msg, kv)))
}

func (s *sink) Error(err error, msg string, kv ...any) {
	s.log.Log(LevelError, line(s.formatter.FormatError(err, msg, kv)))
}

func (s *sink) WithValues(kv ...any) logr.LogSink {
	clone := *s
	clone.formatter.AddValues(kv)
	return &clone
}

func (s *sink) WithName(name string) logr.LogSink {
	clone := *s
	clone.formatter.AddName(name)
	return &clone
}

func line(prefix, args string) string {
	if prefix == "" {
		return args
	}
	return prefix + ": " + args
}
