package logger

import (
	"io"
	"os"
	"strings"

	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// Logger is the structured key/value logger used across the monitor.
type Logger = cmtlog.Logger

// New creates a logger writing to stderr.
func New(debug bool, format string) Logger {
	return NewWithWriter(debug, format, os.Stderr)
}

// NewWithWriter creates a logger writing to w. Debug lines are dropped unless
// debug is set. format "json" switches to JSON lines.
func NewWithWriter(debug bool, format string, w io.Writer) Logger {
	sw := cmtlog.NewSyncWriter(w)
	var l Logger
	if strings.EqualFold(format, "json") {
		l = cmtlog.NewTMJSONLogger(sw)
	} else {
		l = cmtlog.NewTMLogger(sw)
	}
	if debug {
		return cmtlog.NewFilter(l, cmtlog.AllowDebug())
	}
	return cmtlog.NewFilter(l, cmtlog.AllowInfo())
}

// Nop discards everything.
func Nop() Logger {
	return cmtlog.NewNopLogger()
}

// OpenFile opens path for appending log lines. An empty path returns stderr.
func OpenFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stderr}, nil
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
