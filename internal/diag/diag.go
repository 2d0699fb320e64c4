package diag

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Logger is the sink for human-readable decision lines emitted by the
// resolver, terminator and monitor. Lines are diagnostic output for a
// debugging console and are never parsed by other components.
type Logger interface {
	Log(line string)
}

// LoggerFunc adapts a plain function to the Logger interface.
type LoggerFunc func(line string)

func (f LoggerFunc) Log(line string) { f(line) }

// Discard drops every line.
var Discard Logger = LoggerFunc(func(string) {})

// Logf formats a line and forwards it to the logger. A nil logger is a no-op.
func Logf(l Logger, format string, args ...any) {
	if l == nil {
		return
	}
	l.Log(fmt.Sprintf(format, args...))
}

// Fanout duplicates every line to each sink.
func Fanout(sinks ...Logger) Logger {
	filtered := make([]Logger, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return LoggerFunc(func(line string) {
		for _, s := range filtered {
			s.Log(line)
		}
	})
}

// Writer wraps an io.Writer, emitting one timestamped line per call.
func Writer(w io.Writer) Logger {
	var mu sync.Mutex
	return LoggerFunc(func(line string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(w, "%s %s\n", time.Now().Format("15:04:05.000"), line)
	})
}
