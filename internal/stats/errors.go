package stats

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is returned when a line is not valid UTF-8. The encoding
	// assumption is broken, so the whole run is aborted.
	ErrDecode = errors.New("log line is not valid UTF-8")

	// ErrParseTime is returned when a matched request time does not parse
	// as a float. The record pattern should make this impossible.
	ErrParseTime = errors.New("invalid request time")

	// ErrEmptyLog is returned when the log contained no lines at all.
	ErrEmptyLog = errors.New("log is empty")

	// ErrErrorLimit is matched by *ErrorLimitError.
	ErrErrorLimit = errors.New("bad line ratio exceeds limit")
)

// LineError carries the 1-based line number of a fatal per-line failure.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ErrorLimitError reports that too many lines did not match the record
// pattern, which usually means the log format has changed.
type ErrorLimitError struct {
	BadLines   int
	TotalLines int
	Limit      float64
}

// Percent returns the observed bad-line percentage.
func (e *ErrorLimitError) Percent() float64 {
	if e.TotalLines == 0 {
		return 0
	}
	return float64(e.BadLines) / float64(e.TotalLines) * 100
}

func (e *ErrorLimitError) Error() string {
	return fmt.Sprintf("%d of %d lines unparsable (%.3f%% > %g%%): log format may have changed",
		e.BadLines, e.TotalLines, e.Percent(), e.Limit)
}

func (e *ErrorLimitError) Is(target error) bool {
	return target == ErrErrorLimit
}
