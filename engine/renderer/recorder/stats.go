package recorder

import "sync/atomic"

// Stats is a snapshot of draw telemetry.
type Stats struct {
	DrawCalls uint64
	Vertices  uint64
}

// Add returns the field-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{DrawCalls: s.DrawCalls + o.DrawCalls, Vertices: s.Vertices + o.Vertices}
}

// Counters accumulates draw telemetry from any goroutine. The counters are
// advisory; nothing orders other memory against them.
type Counters struct {
	drawCalls atomic.Uint64
	vertices  atomic.Uint64
}

var global Counters

// Global returns the process-wide counters every Recorder feeds.
func Global() *Counters {
	return &global
}

// Add increments the counters.
//
// Parameters:
//   - drawCalls: number of draw calls issued
//   - vertices: number of vertices submitted
func (c *Counters) Add(drawCalls, vertices uint64) {
	c.drawCalls.Add(drawCalls)
	c.vertices.Add(vertices)
}

// Load reads the counters without resetting them.
func (c *Counters) Load() Stats {
	return Stats{DrawCalls: c.drawCalls.Load(), Vertices: c.vertices.Load()}
}

// Swap reads the counters and resets them to zero. Intended to be called once per frame.
func (c *Counters) Swap() Stats {
	return Stats{DrawCalls: c.drawCalls.Swap(0), Vertices: c.vertices.Swap(0)}
}
