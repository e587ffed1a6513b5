package gpu

import (
	"errors"
	"fmt"
)

// Result is the backend-neutral outcome of a GPU API call.
type Result int

const (
	ResultSuccess Result = iota
	ResultNotReady
	ResultTimeout
	ResultSuboptimal
	ResultOutOfDate
	ResultDeviceLost
	ResultOutOfMemory
	ResultUnknown
)

var (
	// ErrDeviceLost is matched by every ResultError carrying ResultDeviceLost.
	ErrDeviceLost = errors.New("gpu: device lost")
	// ErrOutOfDate is matched by every ResultError carrying ResultOutOfDate or ResultSuboptimal.
	ErrOutOfDate = errors.New("gpu: surface out of date")
	// ErrOutOfMemory is matched by every ResultError carrying ResultOutOfMemory.
	ErrOutOfMemory = errors.New("gpu: out of memory")
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultNotReady:
		return "not ready"
	case ResultTimeout:
		return "timeout"
	case ResultSuboptimal:
		return "suboptimal"
	case ResultOutOfDate:
		return "out of date"
	case ResultDeviceLost:
		return "device lost"
	case ResultOutOfMemory:
		return "out of memory"
	default:
		return "unknown"
	}
}

// Stale reports whether the result describes a presentation surface that no
// longer matches the window and must be rebuilt.
func (r Result) Stale() bool {
	return r == ResultSuboptimal || r == ResultOutOfDate
}

// Fatal reports whether the result cannot be recovered from.
func (r Result) Fatal() bool {
	return r != ResultSuccess && !r.Stale()
}

// Err wraps a non-success result as a ResultError for op, or returns nil on success.
func (r Result) Err(op string) error {
	if r == ResultSuccess {
		return nil
	}
	return &ResultError{Op: op, Result: r}
}

// ResultError is the error form of a failed GPU call.
type ResultError struct {
	Op     string
	Result Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("gpu: %s: %s", e.Op, e.Result)
}

// Is lets errors.Is match the package sentinels.
func (e *ResultError) Is(target error) bool {
	switch target {
	case ErrDeviceLost:
		return e.Result == ResultDeviceLost
	case ErrOutOfDate:
		return e.Result.Stale()
	case ErrOutOfMemory:
		return e.Result == ResultOutOfMemory
	}
	return false
}
