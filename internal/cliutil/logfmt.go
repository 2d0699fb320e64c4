package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/portside-dev/portside/internal/monitor"
)

// LogRecord represents a structured log event ready for JSON encoding.
type LogRecord struct {
	Timestamp time.Time `json:"ts"`
	Server    string    `json:"server"`
	State     string    `json:"state"`
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
}

// NewLogRecord converts a monitor event into a structured log record.
func NewLogRecord(event monitor.Event) LogRecord {
	level := "info"
	switch event.Type {
	case monitor.EventTypeDown, monitor.EventTypeError:
		level = "error"
	case monitor.EventTypeKilled:
		level = "warn"
	default:
		if inferred := inferLogLevel(event.Message); inferred != "" {
			level = inferred
		}
	}
	message := event.Message
	if message == "" && event.Err != nil {
		message = event.Err.Error()
	}
	return LogRecord{
		Timestamp: event.Timestamp,
		Server:    event.Server,
		State:     string(event.Type),
		Level:     level,
		Message:   RedactSecrets(message),
	}
}

var levelTokenPattern = regexp.MustCompile(`(?i)\b(error|warn|info)\b`)

func inferLogLevel(message string) string {
	matches := levelTokenPattern.FindStringSubmatch(message)
	if len(matches) < 2 {
		return ""
	}
	switch strings.ToLower(matches[1]) {
	case "error":
		return "error"
	case "warn":
		return "warn"
	case "info":
		return "info"
	default:
		return ""
	}
}

// EncodeLogEvent encodes a log event to JSON, reporting errors to stderr if needed.
func EncodeLogEvent(enc *json.Encoder, stderr io.Writer, event monitor.Event) {
	if enc == nil {
		return
	}
	record := NewLogRecord(event)
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now()
	}
	if err := enc.Encode(&record); err != nil {
		fmt.Fprintf(stderr, "error: encode log: %v\n", err)
	}
}
