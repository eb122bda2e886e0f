package scrape

import (
	"encoding/json"
	"sort"
	"time"
)

// RunResult is the outcome of one source invocation. Exactly one of Records
// or Err is meaningful; Err is nil on success.
type RunResult struct {
	Source  string
	Records []Record
	Err     error
}

// OK reports whether the invocation succeeded.
func (r RunResult) OK() bool { return r.Err == nil }

type runResultJSON struct {
	Source    string   `json:"source"`
	Records   []Record `json:"records"`
	Error     *string  `json:"error"`
	ErrorKind string   `json:"error_kind,omitempty"`
}

// MarshalJSON always emits both records and error; error is null on success.
func (r RunResult) MarshalJSON() ([]byte, error) {
	out := runResultJSON{Source: r.Source, Records: r.Records}
	if out.Records == nil {
		out.Records = []Record{}
	}
	if r.Err != nil {
		msg := r.Err.Error()
		out.Error = &msg
		out.ErrorKind = ErrorKind(r.Err)
		out.Records = []Record{}
	}
	return json.Marshal(out)
}

// RunSummary is the history entry recorded after each run.
type RunSummary struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Counts     map[string]int `json:"counts"`
	Failed     []string       `json:"failed,omitempty"`
	TotalItems int            `json:"total_items"`
	Duration   time.Duration  `json:"duration"`
}

// Summarize builds a RunSummary from a result mapping.
func Summarize(id string, at time.Time, results map[string]RunResult) RunSummary {
	summary := RunSummary{
		ID:        id,
		Timestamp: at.UTC(),
		Counts:    make(map[string]int, len(results)),
	}
	for name, res := range results {
		if res.Err != nil {
			summary.Failed = append(summary.Failed, name)
			continue
		}
		summary.Counts[name] = len(res.Records)
		summary.TotalItems += len(res.Records)
	}
	sort.Strings(summary.Failed)
	return summary
}

// Categories returns the summary's successful categories, sorted.
func (s RunSummary) Categories() []string {
	out := make([]string, 0, len(s.Counts))
	for name := range s.Counts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
