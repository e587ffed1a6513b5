package profiler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/recorder"
)

// ProfilerBuilderOption is a functional option applied to a Profiler during construction.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often a report is logged. Values <= 0 are ignored.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithCounters sets the draw counters the profiler drains.
//
// Parameters:
//   - c: the counters
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithCounters(c *recorder.Counters) ProfilerBuilderOption {
	return func(p *Profiler) {
		if c != nil {
			p.counters = c
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}
