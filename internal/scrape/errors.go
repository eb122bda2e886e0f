package scrape

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyBody is returned when a fetch succeeds with no content.
var ErrEmptyBody = errors.New("empty response body")

// ErrUnknownCategory marks a target naming a category with no source.
var ErrUnknownCategory = errors.New("unknown category")

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind string

// Fetch failure kinds.
const (
	FetchTransport FetchErrorKind = "transport"
	FetchStatus    FetchErrorKind = "status"
	FetchExhausted FetchErrorKind = "exhausted"
	FetchRender    FetchErrorKind = "render"
	FetchCanceled  FetchErrorKind = "canceled"
)

// FetchError is the terminal failure of a logical fetch.
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	Attempts   int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %s after %d attempt(s)", e.URL, e.Kind, e.Attempts)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (last status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// SourceError is a failure of a whole source invocation.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// RunError is a failure of the run machinery itself, such as an unavailable
// sink. The scheduler cools down on these.
type RunError struct {
	Op  string
	Err error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s: %v", e.Op, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Error kind labels used in serialized results and metrics.
const (
	KindFetch    = "fetch_error"
	KindSource   = "source_error"
	KindRun      = "run_error"
	KindCanceled = "canceled"
	KindUnknown  = "error"
)

// ErrorKind maps err onto one of the Kind* labels; nil maps to "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		if fetchErr.Kind == FetchCanceled {
			return KindCanceled
		}
		return KindFetch
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	var runErr *RunError
	if errors.As(err, &runErr) {
		return KindRun
	}
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return KindSource
	}
	return KindUnknown
}
