package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"
)

// ParseLevel maps a configured level name to a log.Level. Names are matched
// case-insensitively; anything unrecognised is an error.
func ParseLevel(level string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "fatal":
		return log.FatalLevel, nil
	case "panic":
		return log.PanicLevel, nil
	}
	return log.InfoLevel, fmt.Errorf("unknown log level %q", level)
}

// New returns a console logger writing to stderr at the given level.
// Unknown level names fall back to info.
func New(level string) *log.Logger {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(level string, w io.Writer) *log.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}

	return &log.Logger{
		Level:  lvl,
		Caller: 0,
		Writer: &log.ConsoleWriter{
			ColorOutput:    false,
			EndWithMessage: true,
			Writer:         w,
		},
	}
}

// Discard returns a logger that drops everything. Used by tests and by
// callers that pass a nil logger.
func Discard() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: log.IOWriter{Writer: io.Discard},
	}
}

// OrDiscard returns l, or a discarding logger when l is nil
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
