package logger

import (
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// EventType names a kind of logged event.
type EventType string

const (
	SessionStart EventType = "session_start"
	RunCommand   EventType = "run_command"
	ParseError   EventType = "parse_error"
	ExecError    EventType = "exec_error"
	JobStarted   EventType = "job_started"
	JobCancelled EventType = "job_cancelled"
	JobDone      EventType = "job_done"
	Builtin      EventType = "builtin"
)

// Fields holds the payload of an event. Values must be representable as
// protobuf Values; []string is converted to a list.
type Fields map[string]interface{}

// LogEntry is a single logged event.
type LogEntry struct {
	TimestampMicros int64
	SessionID       string
	Event           EventType
	Fields          map[string]interface{}
}

// GetString returns the string field key, or blank.
func (le *LogEntry) GetString(key string) string {
	s, _ := le.Fields[key].(string)
	return s
}

// GetStrings returns the list field key as strings.
func (le *LogEntry) GetStrings(key string) []string {
	raw, _ := le.Fields[key].([]interface{})
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

// GetInt returns the numeric field key truncated to an int.
func (le *LogEntry) GetInt(key string) int {
	switch v := le.Fields[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (le *LogEntry) toProto() (*structpb.Struct, error) {
	fields := make(map[string]interface{}, len(le.Fields))
	for k, v := range le.Fields {
		if strs, ok := v.([]string); ok {
			list := make([]interface{}, len(strs))
			for i, s := range strs {
				list[i] = s
			}
			v = list
		}
		fields[k] = v
	}

	return structpb.NewStruct(map[string]interface{}{
		"timestamp_micros": le.TimestampMicros,
		"session_id":       le.SessionID,
		"event":            string(le.Event),
		"fields":           fields,
	})
}

func fromProto(msg *structpb.Struct) *LogEntry {
	raw := msg.AsMap()
	le := &LogEntry{Fields: make(map[string]interface{})}
	if ts, ok := raw["timestamp_micros"].(float64); ok {
		le.TimestampMicros = int64(ts)
	}
	le.SessionID, _ = raw["session_id"].(string)
	if event, ok := raw["event"].(string); ok {
		le.Event = EventType(event)
	}
	if fields, ok := raw["fields"].(map[string]interface{}); ok {
		le.Fields = fields
	}
	return le
}

// LogRecorder is a callback that stores events in an external datastore.
type LogRecorder func(le *LogEntry) error

// Logger captures interaction event logs for the shell.
type Logger struct {
	Record LogRecorder
}

// NewJsonLinesLogRecorder creates a Logger that exports logs in newline
// delimited JSON object format.
func NewJsonLinesLogRecorder(w io.Writer) *Logger {
	var mu sync.Mutex
	return &Logger{
		Record: func(le *LogEntry) error {
			msg, err := le.toProto()
			if err != nil {
				return err
			}
			entry, err := protojson.Marshal(msg)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			_, err = fmt.Fprintln(w, string(entry))
			return err
		},
	}
}

// Discard returns a Logger that drops every event.
func Discard() *Logger {
	return &Logger{
		Record: func(*LogEntry) error { return nil },
	}
}

func (l *Logger) recordEvent(sessionID string, event EventType, fields Fields) error {
	le := &LogEntry{}
	le.TimestampMicros = time.Now().UnixMicro()
	le.SessionID = sessionID
	le.Event = event
	le.Fields = fields

	return l.Record(le)
}

// NewSession creates a logger with attached session ID.
func (l *Logger) NewSession() *SessionLogger {
	return &SessionLogger{Logger: l, sessionID: fmt.Sprintf("%d", rand.Uint64())}
}

// SessionLogger logs messages with a shared session ID.
type SessionLogger struct {
	*Logger
	sessionID string
}

// SessionID returns the ID stamped on every event.
func (l *SessionLogger) SessionID() string {
	return l.sessionID
}

func (l *SessionLogger) Record(event EventType, fields Fields) error {
	if l == nil || l.Logger == nil {
		return nil
	}
	return l.recordEvent(l.sessionID, event, fields)
}
