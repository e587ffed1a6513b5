// Package workers records one command buffer fragment per worker per frame.
// Workers are long-lived goroutines parked on their task channel between
// frames; the orchestrator hands each a task in BeginFrame and collects a
// completion token from every worker in Wait before merging.
package workers

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/partition"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/recorder"
)

// DefaultWorkers is the worker count used when none is configured.
const DefaultWorkers = 2

// State is the per-frame state of one worker.
type State int32

const (
	StateIdle State = iota
	StateRecording
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Job describes one frame of parallel recording. Everything reachable from a
// Job is read-only for the duration of the frame.
type Job struct {
	// Context is the render pass every fragment records into.
	Context gpu.RenderPassContext

	// Slot is the frame-in-flight index, used for diagnostics only.
	Slot int

	// Groups holds the size of each item group. Items are addressed over the
	// concatenation of all groups.
	Groups []int

	// DrawItem records one item. It runs on a worker goroutine and may only
	// touch the recorder it is given.
	DrawItem func(rec recorder.Recorder, group, local, global int)

	// Prologue runs once per frame on worker 0 before its range.
	Prologue func(rec recorder.Recorder)

	// Epilogue runs once per frame on the last worker after its range.
	Epilogue func(rec recorder.Recorder)
}

// FrameStats summarises one ProcessFrame.
type FrameStats struct {
	Draws     recorder.Stats
	PerWorker []recorder.Stats
	Items     int
}

type task struct {
	job      *Job
	fragment gpu.CommandBuffer
	total    int
}

type token struct {
	id    int
	stats recorder.Stats
	err   error
	panic any
}

type pool struct {
	mu *sync.Mutex

	workers    int
	recOptions []recorder.RecorderBuilderOption

	tasks []chan task
	done  chan token
	stop  chan struct{}
	wg    sync.WaitGroup

	states    []atomic.Int32
	open      bool
	fragments []gpu.CommandBuffer
	collected []gpu.CommandBuffer
	items     int

	stopOnce sync.Once
}

// Pool is a fixed set of recording workers. BeginFrame and ProcessFrame must
// be called from a single orchestrator goroutine, strictly alternating.
type Pool interface {
	// Workers returns the number of workers.
	Workers() int

	// BeginFrame wakes every worker with job. Worker i records into fragments[i].
	// Panics if a frame is already open or len(fragments) != Workers().
	//
	// Parameters:
	//   - job: the frame description
	//   - fragments: one fragment buffer per worker, owned by the current frame slot
	BeginFrame(job Job, fragments []gpu.CommandBuffer)

	// Wait is the frame barrier: it blocks until every worker is Done and
	// closes the frame. A panic raised on a worker is re-raised here. After a
	// nil error the fragments are ready for Merge.
	//
	// Returns:
	//   - FrameStats: draw stats aggregated across workers
	//   - error: the first fragment begin/end failure, by worker order
	Wait() (FrameStats, error)

	// Merge executes the fragments collected by the last Wait into primary in
	// ascending worker order. Panics when no successful Wait precedes it.
	//
	// Parameters:
	//   - primary: the frame's primary buffer, inside an open render pass
	Merge(primary gpu.CommandBuffer)

	// ProcessFrame is Wait followed by Merge.
	//
	// Parameters:
	//   - primary: the frame's primary buffer, inside an open render pass
	//
	// Returns:
	//   - FrameStats: draw stats aggregated across workers
	//   - error: the first fragment begin/end failure, by worker order
	ProcessFrame(primary gpu.CommandBuffer) (FrameStats, error)

	// State returns the current state of worker id.
	State(id int) State

	// Stop signals every worker to exit and waits for them. Safe to call more than once.
	Stop()
}

var _ Pool = &pool{}

// NewPool starts workers recording goroutines.
//
// Parameters:
//   - workers: the number of workers, must be at least 1
//   - options: variadic list of PoolBuilderOption functions
//
// Returns:
//   - Pool: the running pool
func NewPool(workers int, options ...PoolBuilderOption) Pool {
	if workers < 1 {
		panic(fmt.Sprintf("workers: pool size %d < 1", workers))
	}

	p := &pool{
		mu:      &sync.Mutex{},
		workers: workers,
		tasks:   make([]chan task, workers),
		done:    make(chan token, workers),
		stop:    make(chan struct{}),
		states:  make([]atomic.Int32, workers),
	}
	for _, opt := range options {
		opt(p)
	}

	p.wg.Add(workers)
	for i := range workers {
		p.tasks[i] = make(chan task, 1)
		go p.worker(i)
	}

	common.Logger().Info("render worker pool started", slog.Int("workers", workers))
	return p
}

func (p *pool) Workers() int {
	return p.workers
}

func (p *pool) State(id int) State {
	return State(p.states[id].Load())
}

func (p *pool) BeginFrame(job Job, fragments []gpu.CommandBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		panic("workers: BeginFrame called while a frame is still recording")
	}
	if len(fragments) != p.workers {
		panic(fmt.Sprintf("workers: %d fragments for %d workers", len(fragments), p.workers))
	}

	p.open = true
	p.fragments = fragments
	p.collected = nil
	p.items = partition.Total(job.Groups)
	for i := range p.states {
		p.states[i].Store(int32(StateIdle))
	}

	j := &job
	for i, ch := range p.tasks {
		ch <- task{job: j, fragment: fragments[i], total: p.items}
	}
}

func (p *pool) Wait() (FrameStats, error) {
	p.mu.Lock()
	if !p.open {
		p.mu.Unlock()
		panic("workers: Wait called without BeginFrame")
	}
	p.mu.Unlock()

	tokens := make([]token, p.workers)
	for range p.workers {
		t := <-p.done
		tokens[t.id] = t
	}

	p.mu.Lock()
	fragments := p.fragments
	items := p.items
	p.open = false
	p.fragments = nil
	p.mu.Unlock()

	stats := FrameStats{PerWorker: make([]recorder.Stats, p.workers), Items: items}
	var firstErr error
	for _, t := range tokens {
		if t.panic != nil {
			panic(fmt.Sprintf("workers: worker %d panicked: %v", t.id, t.panic))
		}
		if t.err != nil && firstErr == nil {
			firstErr = t.err
		}
		stats.PerWorker[t.id] = t.stats
		stats.Draws = stats.Draws.Add(t.stats)
	}
	if firstErr != nil {
		return stats, firstErr
	}

	p.mu.Lock()
	p.collected = fragments
	p.mu.Unlock()
	return stats, nil
}

func (p *pool) Merge(primary gpu.CommandBuffer) {
	p.mu.Lock()
	fragments := p.collected
	p.collected = nil
	p.mu.Unlock()

	if fragments == nil {
		panic("workers: Merge called without a completed Wait")
	}
	primary.ExecuteCommands(fragments...)
}

func (p *pool) ProcessFrame(primary gpu.CommandBuffer) (FrameStats, error) {
	stats, err := p.Wait()
	if err != nil {
		return stats, err
	}
	p.Merge(primary)
	return stats, nil
}

func (p *pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.stop)
		p.wg.Wait()
		common.Logger().Info("render worker pool stopped", slog.Int("workers", p.workers))
	})
}

func (p *pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stop:
			return
		case t := <-p.tasks[id]:
			p.done <- p.record(id, t)
		}
	}
}

func (p *pool) record(id int, t task) (tok token) {
	tok.id = id
	p.states[id].Store(int32(StateRecording))
	defer func() {
		if r := recover(); r != nil {
			tok.panic = r
		}
		p.states[id].Store(int32(StateDone))
	}()

	rec := recorder.New(t.fragment, p.recOptions...)
	ctx := t.job.Context
	if res := rec.Begin(&ctx); res != gpu.ResultSuccess {
		tok.err = res.Err(fmt.Sprintf("begin fragment worker %d", id))
		return tok
	}

	if id == 0 && t.job.Prologue != nil {
		t.job.Prologue(rec)
	}

	begin, end := partition.Range(id, t.total, p.workers)
	if t.job.DrawItem != nil {
		partition.ForEachInRange(t.job.Groups, begin, end, func(group, local, global int) {
			t.job.DrawItem(rec, group, local, global)
		})
	}

	if partition.IsLast(id, p.workers) && t.job.Epilogue != nil {
		t.job.Epilogue(rec)
	}

	if res := rec.End(); res != gpu.ResultSuccess {
		tok.err = res.Err(fmt.Sprintf("end fragment worker %d", id))
	}
	tok.stats = rec.Stats()
	return tok
}
