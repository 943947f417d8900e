package logger

import (
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReadJSONLinesLog parses a newline delimited JSON log.
func ReadJSONLinesLog(r io.Reader, handler func(le *LogEntry)) error {
	decoder := json.NewDecoder(r)
	for decoder.More() {
		var rawEntry json.RawMessage
		if err := decoder.Decode(&rawEntry); err != nil {
			return err
		}

		var msg structpb.Struct
		if err := protojson.Unmarshal(rawEntry, &msg); err != nil {
			return err
		}

		handler(fromProto(&msg))
	}
	return nil
}

// Report holds statistics about the logged events.
type Report struct {
	LogEntries     int        `json:"log_entries"`
	Sessions       StrCounter `json:"sessions"`
	InvalidEntries StrCounter `json:"unknown_log_entries,omitempty"`

	RunCommand RunCommandReport `json:"run_command_report"`
	ParseError ParseErrorReport `json:"parse_error_report"`
	ExecError  ExecErrorReport  `json:"exec_error_report"`
	Jobs       JobReport        `json:"job_report"`
	Builtins   StrCounter       `json:"builtins"`
}

func (r *Report) Update(le *LogEntry) {
	r.LogEntries++

	switch le.Event {
	case SessionStart:
		r.Sessions.Increment(le.GetString("user"))
	case RunCommand:
		r.RunCommand.update(le)
	case ParseError:
		r.ParseError.update(le)
	case ExecError:
		r.ExecError.update(le)
	case JobStarted, JobCancelled, JobDone:
		r.Jobs.update(le)
	case Builtin:
		r.Builtins.Increment(le.GetString("name"))
	default:
		r.InvalidEntries.Increment(string(le.Event))
	}
}

type RunCommandReport struct {
	// Name of the program in each stage.
	CommandNames StrCounter `json:"command_names"`
	// Exit statuses of foreground pipelines.
	Statuses StrCounter `json:"statuses"`
	// Number of stages per pipeline.
	StageCounts StrCounter `json:"stage_counts"`
	Background  int        `json:"background"`
}

func (r *RunCommandReport) update(le *LogEntry) {
	for _, name := range le.GetStrings("programs") {
		r.CommandNames.Increment(name)
	}
	r.StageCounts.Increment(strconv.Itoa(le.GetInt("stages")))
	if bg, _ := le.Fields["background"].(bool); bg {
		r.Background++
		return
	}
	r.Statuses.Increment(strconv.Itoa(le.GetInt("status")))
}

type ParseErrorReport struct {
	Errors StrCounter `json:"errors"`
}

func (r *ParseErrorReport) update(le *LogEntry) {
	r.Errors.Increment(le.GetString("error"))
}

type ExecErrorReport struct {
	Failures *PathCounter `json:"failures"`
}

func (r *ExecErrorReport) update(le *LogEntry) {
	if r.Failures == nil {
		r.Failures = NewPathCounter("command", "error")
	}
	r.Failures.Increment(le.GetString("command"), le.GetString("error"))
}

type JobReport struct {
	Started   int        `json:"started"`
	Cancelled int        `json:"cancelled"`
	Done      int        `json:"done"`
	Commands  StrCounter `json:"commands"`
}

func (r *JobReport) update(le *LogEntry) {
	switch le.Event {
	case JobStarted:
		r.Started++
		r.Commands.Increment(strings.Join(le.GetStrings("command"), " "))
	case JobCancelled:
		r.Cancelled++
	case JobDone:
		r.Done++
	}
}

// StrCounter counts the number of strings seen.
type StrCounter struct {
	internal map[string]int
}

// Increment adds one to the given key.
func (s *StrCounter) Increment(toAdd string) {
	if s.internal == nil {
		s.internal = make(map[string]int)
	}

	s.internal[toAdd]++
}

// Get returns the count for key.
func (s *StrCounter) Get(key string) int {
	return s.internal[key]
}

// MarshalJSON implemnts custom JSON marshaler.
func (s StrCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.internal)
}

func NewPathCounter(cols ...string) *PathCounter {
	return &PathCounter{
		cols:     cols,
		internal: make(map[string]int),
	}
}

// PathCounter counts the number of times a tuple of strings was seen.
type PathCounter struct {
	cols     []string
	internal map[string]int
}

// Increment adds one to the given key.
func (ctr *PathCounter) Increment(toAdd ...string) {
	if len(toAdd) != len(ctr.cols) {
		panic("wrong number of columns to add")
	}

	ctr.internal[toKey(toAdd...)]++
}

// Get returns the count for the tuple.
func (ctr *PathCounter) Get(vals ...string) int {
	if ctr == nil {
		return 0
	}
	return ctr.internal[toKey(vals...)]
}

// MarshalJSON implemnts custom JSON marshaler.
func (ctr *PathCounter) MarshalJSON() ([]byte, error) {
	type Count struct {
		Count  int               `json:"count"`
		Fields map[string]string `json:"event"`
		Path   string            `json:"-"`
	}

	var out []Count
	for k, v := range ctr.internal {
		count := Count{
			Count:  v,
			Path:   k,
			Fields: make(map[string]string),
		}

		splitPath := fromKey(k)
		for colNum, colVal := range ctr.cols {
			count.Fields[colVal] = splitPath[colNum]
		}

		out = append(out, count)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Path < out[j].Path
		}
		return out[i].Count > out[j].Count
	})

	return json.Marshal(out)
}

func toKey(vals ...string) string {
	key, _ := json.Marshal(vals)
	return string(key)
}

func fromKey(key string) (out []string) {
	json.Unmarshal([]byte(key), &out)
	return
}

