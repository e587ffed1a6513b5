// Package profiler reports frame rate, draw telemetry and memory statistics.
package profiler

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/recorder"
)

// Report is one interval's worth of statistics.
type Report struct {
	FPS             float64
	Frames          int
	DrawCalls       uint64
	Vertices        uint64
	DrawsPerFrame   float64
	HeapMB          float64
	AllocRateMB     float64
	GCCount         uint32
	LastGCPauseUs   uint64
	MaxGCPauseUs    uint64
	SysMB           float64
	SkippedFrames   int
	IntervalSeconds float64
}

// Profiler tracks frame rate, draw counts and memory statistics for performance monitoring.
// Outputs stats to the shared logger at a configurable interval.
type Profiler struct {
	frameCount     int
	skipped        int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	counters *recorder.Counters
	now      func() time.Time
	last     Report
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second and draw counts are read from recorder.Global().
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		counters:       recorder.Global(),
		now:            time.Now,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Skip records a frame that was skipped (stale surface, minimised window).
func (p *Profiler) Skip() {
	p.skipped++
}

// Last returns the most recent report.
func (p *Profiler) Last() Report {
	return p.last
}

// Tick should be called once per presented frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, draw calls, vertices, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	draws := p.counters.Swap()
	r := Report{
		Frames:          p.frameCount,
		FPS:             float64(p.frameCount) / elapsed.Seconds(),
		DrawCalls:       draws.DrawCalls,
		Vertices:        draws.Vertices,
		DrawsPerFrame:   float64(draws.DrawCalls) / float64(p.frameCount),
		SkippedFrames:   p.skipped,
		IntervalSeconds: elapsed.Seconds(),
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: live heap. TotalAlloc: cumulative, tracks churn. Sys: process footprint.
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	r.GCCount = p.memStats.NumGC
	if r.GCCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		r.LastGCPauseUs = p.memStats.PauseNs[(r.GCCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if r.GCCount-startIdx > 256 {
			startIdx = r.GCCount - 256
		}
		for i := startIdx; i < r.GCCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > r.MaxGCPauseUs {
				r.MaxGCPauseUs = pause
			}
		}
	}

	common.Logger().Info("profiler",
		slog.Float64("fps", r.FPS),
		slog.Uint64("draw_calls", r.DrawCalls),
		slog.Float64("draws_per_frame", r.DrawsPerFrame),
		slog.Uint64("vertices", r.Vertices),
		slog.Int("skipped_frames", r.SkippedFrames),
		slog.Float64("heap_mb", r.HeapMB),
		slog.Float64("alloc_rate_mb", r.AllocRateMB),
		slog.Uint64("gc", uint64(r.GCCount)),
		slog.Uint64("gc_last_us", r.LastGCPauseUs),
		slog.Uint64("gc_max_us", r.MaxGCPauseUs),
		slog.Float64("sys_mb", r.SysMB))

	p.last = r
	p.frameCount = 0
	p.skipped = 0
	p.lastTime = currentTime
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
