// Package engine drives the frame loop: it paces frames through the renderer,
// fans recording out over the worker pool, merges the result deterministically
// and submits it, while a separate goroutine ticks game logic.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-frame/common"
	"github.com/Carmen-Shannon/oxy-frame/engine/camera"
	"github.com/Carmen-Shannon/oxy-frame/engine/profiler"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/debugdraw"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/frame"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/recorder"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/uniform"
	"github.com/Carmen-Shannon/oxy-frame/engine/renderer/workers"
	"github.com/Carmen-Shannon/oxy-frame/engine/scene"
	"github.com/Carmen-Shannon/oxy-frame/engine/window"
	"github.com/google/uuid"
)

// State is the orchestrator's position in the frame cycle.
type State int32

const (
	StateIdle State = iota
	StateAcquiring
	StateRecordingParallel
	StateMerging
	StateSubmitting
	StatePresenting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecordingParallel:
		return "recording_parallel"
	case StateMerging:
		return "merging"
	case StateSubmitting:
		return "submitting"
	case StatePresenting:
		return "presenting"
	default:
		return "unknown"
	}
}

// TailFunc records single-threaded draws (UI, overlays) into the tail fragment,
// which is merged after every worker fragment.
type TailFunc func(rec recorder.Recorder, f renderer.Frame)

// FrameStats describes the last completed frame.
type FrameStats struct {
	Number uint64
	Slot   int
	Items  int
	Draws  recorder.Stats
	Tail   recorder.Stats

	PerWorker []recorder.Stats
}

type pendingFrame struct {
	frame renderer.Frame
	snap  *scene.Snapshot
}

// engine implements the Engine interface.
// Coordinates the tick, render and window goroutines.
type engine struct {
	id uuid.UUID

	tickRateChannel chan time.Duration

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once
	closeOnce   sync.Once

	window window.Window

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	renderFrameLimit time.Duration

	// Frame pipeline
	backend         gpu.Backend
	renderer        renderer.Renderer
	rendererOptions []renderer.RendererBuilderOption
	pool            workers.Pool
	poolOptions     []workers.PoolBuilderOption
	uniforms        uniform.Ring
	uniformOptions  []uniform.RingBuilderOption
	source          scene.Source
	debug           debugdraw.Batch
	debugEnabled    bool
	debugRecipe     []pipeline.PipelineBuilderOption

	framesInFlight int
	workerCount    int

	mu       *sync.Mutex
	tail     TailFunc
	prologue func(rec recorder.Recorder)
	pending  *pendingFrame
	last     FrameStats

	reloadRecipes []gpu.PipelineRecipe

	state         atomic.Int32
	reloadRequest atomic.Bool
	failed        atomic.Bool
	skippedFrames atomic.Uint64
}

// Engine is the main entry point for the engine.
// It orchestrates the tick loop, the render loop and the window.
type Engine interface {
	// ID returns the instance ID stamped on every log record.
	ID() uuid.UUID

	// Window returns the window, nil for headless engines.
	Window() window.Window

	// Renderer returns the frame pacer.
	Renderer() renderer.Renderer

	// Pool returns the render worker pool.
	Pool() workers.Pool

	// Uniforms returns the per-slot uniform ring.
	Uniforms() uniform.Ring

	// Debug returns the debug line batch, nil unless enabled with WithDebugDraw.
	Debug() debugdraw.Batch

	// State returns the current frame cycle state.
	State() State

	// SetSource sets the scene drawn each frame.
	//
	// Parameters:
	//   - src: the scene source, nil draws nothing
	SetSource(src scene.Source)

	// SetTailWork registers the single-threaded draw callback run after the
	// parallel merge. Pass nil to remove it.
	//
	// Parameters:
	//   - fn: the tail callback
	SetTailWork(fn TailFunc)

	// RequestPipelineReload asks for every pipeline to be rebuilt before the next frame.
	// Safe to call from any goroutine.
	//
	// Parameters:
	//   - recipes: edited recipes that replace the registered ones of the same name
	RequestPipelineReload(recipes ...gpu.PipelineRecipe)

	// OnPreTick acquires the next frame, snapshots the scene and uploads the
	// frame's uniforms into the slot.
	//
	// Returns:
	//   - bool: false once the renderer has failed or shutdown was requested.
	//     A skipped frame returns true with nothing pending.
	OnPreTick() bool

	// OnPostTick records the pending frame across the worker pool, merges it in
	// worker order, runs the tail work, submits and presents. Does nothing when
	// OnPreTick skipped the frame.
	OnPostTick()

	// LastFrame returns the statistics of the last presented frame.
	LastFrame() FrameStats

	// SkippedFrames returns how many frames were skipped so far.
	SkippedFrames() uint64

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, physics, input processing, and animation updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each presented frame.
	//
	// Parameters:
	//   - callback: function to call each render frame, receiving the delta time in seconds
	SetRenderCallback(callback func(deltaTime float32))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Run starts the tick and render goroutines and blocks until Quit is called,
	// the window closes or the renderer fails. With a window, Run must be called
	// from the goroutine that created it.
	Run()

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()

	// Close stops the worker pool and releases every GPU resource the engine
	// created. Safe to call multiple times.
	Close()
}

var _ Engine = &engine{}

// NewEngine creates an Engine rendering through backend.
//
// Parameters:
//   - backend: the GPU backend, already bootstrapped with its presentation surface
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
//   - error: an error if the renderer could not be created
func NewEngine(backend gpu.Backend, options ...EngineBuilderOption) (Engine, error) {
	e := &engine{
		id:              uuid.New(),
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		profiler:        profiler.NewProfiler(),
		engineTickRate:  time.Second / 60,
		backend:         backend,
		framesInFlight:  frame.DefaultFramesInFlight,
		workerCount:     workers.DefaultWorkers,
		mu:              &sync.Mutex{},
	}

	for _, opt := range options {
		opt(e)
	}

	ropts := []renderer.RendererBuilderOption{
		renderer.WithFramesInFlight(e.framesInFlight),
		renderer.WithWorkers(e.workerCount),
		renderer.WithResizeCallback(e.onResize),
	}
	if e.window != nil {
		ropts = append(ropts, renderer.WithExtentSource(e.window))
	}
	if e.debugEnabled {
		ropts = append(ropts, renderer.WithPipelines(debugdraw.Recipe(e.debugRecipe...)))
	}
	r, err := renderer.NewRenderer(backend, append(ropts, e.rendererOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", e.id, err)
	}
	e.renderer = r
	e.pool = workers.NewPool(r.Workers(), e.poolOptions...)
	e.uniforms = uniform.NewRing(backend, r.FramesInFlight(), e.uniformOptions...)
	if e.debugEnabled {
		e.debug = debugdraw.NewBatch(backend, r.FramesInFlight())
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(gpu.Extent2D) {
			e.renderer.RequestResize()
		})
	}

	e.logger().Info("engine created",
		slog.String("backend", backend.Type().String()),
		slog.Int("frames_in_flight", r.FramesInFlight()),
		slog.Int("workers", r.Workers()))
	return e, nil
}

// logger returns the shared logger tagged with this engine's ID.
func (e *engine) logger() *slog.Logger {
	return common.Logger().With(slog.String("engine_id", e.id.String()))
}

// onResize keeps the scene camera's aspect in step with the swapchain.
func (e *engine) onResize(extent gpu.Extent2D) {
	e.mu.Lock()
	src := e.source
	e.mu.Unlock()
	if c, ok := src.(interface{ Camera() camera.Camera }); ok && c.Camera() != nil {
		c.Camera().SetAspect(extent.Aspect())
	}
}

func (e *engine) ID() uuid.UUID {
	return e.id
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Pool() workers.Pool {
	return e.pool
}

func (e *engine) Uniforms() uniform.Ring {
	return e.uniforms
}

func (e *engine) Debug() debugdraw.Batch {
	return e.debug
}

func (e *engine) State() State {
	return State(e.state.Load())
}

func (e *engine) SetSource(src scene.Source) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = src
}

func (e *engine) SetTailWork(fn TailFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tail = fn
}

func (e *engine) RequestPipelineReload(recipes ...gpu.PipelineRecipe) {
	e.mu.Lock()
	e.reloadRecipes = append(e.reloadRecipes, recipes...)
	e.mu.Unlock()
	e.reloadRequest.Store(true)
}

func (e *engine) LastFrame() FrameStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *engine) SkippedFrames() uint64 {
	return e.skippedFrames.Load()
}

// fail marks the engine failed and raises err through the fatal handler.
func (e *engine) fail(err error, attrs ...slog.Attr) {
	if e.failed.CompareAndSwap(false, true) {
		common.Fatal(err, append(attrs, slog.String("engine_id", e.id.String()))...)
	}
}

func (e *engine) OnPreTick() bool {
	if e.failed.Load() || e.renderer.Failed() {
		return false
	}
	select {
	case <-e.quitChannel:
		return false
	default:
	}
	if e.pending != nil {
		panic("engine: OnPreTick called with a frame still pending")
	}

	if e.reloadRequest.Swap(false) {
		e.mu.Lock()
		recipes := e.reloadRecipes
		e.reloadRecipes = nil
		e.mu.Unlock()

		// A failed rebuild keeps the previous pipelines; only device loss is fatal.
		if err := e.renderer.ReloadPipelines(recipes...); err != nil && e.renderer.Failed() {
			return false
		}
	}

	e.state.Store(int32(StateAcquiring))
	f, ok, err := e.renderer.BeginFrame()
	if err != nil {
		e.state.Store(int32(StateIdle))
		return false
	}
	if !ok {
		e.state.Store(int32(StateIdle))
		e.skippedFrames.Add(1)
		if e.profilingEnabled {
			e.profiler.Skip()
		}
		e.logger().Debug("frame skipped")
		return true
	}

	e.mu.Lock()
	src := e.source
	e.mu.Unlock()

	var snap *scene.Snapshot
	if src != nil {
		snap = src.Snapshot()
	} else {
		snap = scene.NewSnapshot(nil, nil)
	}

	cam := snap.Camera.Marshal()
	lights := snap.Lighting.Marshal()
	if err := e.uniforms.Upload(f.Slot.Index, cam, lights, snap); err != nil {
		snap.Release()
		e.fail(fmt.Errorf("upload frame uniforms: %w", err), slog.Uint64("frame", f.Number), slog.Int("slot", f.Slot.Index))
		e.state.Store(int32(StateIdle))
		return false
	}

	e.pending = &pendingFrame{frame: f, snap: snap}
	return true
}

func (e *engine) OnPostTick() {
	p := e.pending
	if p == nil {
		return
	}
	e.pending = nil
	// A panic in a worker or the tail work unwinds through here; the store
	// must not stay read-locked.
	defer p.snap.Release()
	f := p.frame
	attrs := []slog.Attr{slog.Uint64("frame", f.Number), slog.Int("slot", f.Slot.Index)}

	e.mu.Lock()
	tail := e.tail
	prologue := e.prologue
	e.mu.Unlock()

	globals := e.uniforms.Slot(f.Slot.Index).Binding
	job := workers.Job{
		Context:  f.Target,
		Slot:     f.Slot.Index,
		Groups:   p.snap.Sizes(),
		DrawItem: e.drawItem(p.snap, globals),
		Prologue: prologue,
		Epilogue: e.epilogue(f, globals),
	}

	e.state.Store(int32(StateRecordingParallel))
	e.pool.BeginFrame(job, f.Slot.Fragments)

	stats, err := e.pool.Wait()
	if err != nil {
		e.fail(fmt.Errorf("record frame: %w", err), attrs...)
		e.state.Store(int32(StateIdle))
		return
	}

	e.state.Store(int32(StateMerging))
	e.pool.Merge(f.Slot.Primary)

	var tailStats recorder.Stats
	if tail != nil {
		rec := recorder.New(f.Slot.Tail)
		target := f.Target
		if res := rec.Begin(&target); res != gpu.ResultSuccess {
			e.fail(res.Err("begin tail fragment"), attrs...)
			e.state.Store(int32(StateIdle))
			return
		}
		tail(rec, f)
		if res := rec.End(); res != gpu.ResultSuccess {
			e.fail(res.Err("end tail fragment"), attrs...)
			e.state.Store(int32(StateIdle))
			return
		}
		f.Slot.Primary.ExecuteCommands(f.Slot.Tail)
		tailStats = rec.Stats()
	}
	p.snap.Release()

	e.state.Store(int32(StateSubmitting))
	if err := e.renderer.Submit(f); err != nil {
		e.state.Store(int32(StateIdle))
		return
	}
	e.state.Store(int32(StatePresenting))
	if err := e.renderer.Present(f); err != nil {
		e.state.Store(int32(StateIdle))
		return
	}
	e.state.Store(int32(StateIdle))

	e.mu.Lock()
	e.last = FrameStats{
		Number:    f.Number,
		Slot:      f.Slot.Index,
		Items:     stats.Items,
		Draws:     stats.Draws,
		Tail:      tailStats,
		PerWorker: stats.PerWorker,
	}
	e.mu.Unlock()

	if e.profilingEnabled {
		e.profiler.Tick()
	}
	e.logger().Debug("frame presented",
		slog.Uint64("frame", f.Number),
		slog.Int("slot", f.Slot.Index),
		slog.Uint64("draw_calls", stats.Draws.DrawCalls+tailStats.DrawCalls))
}

// drawItem returns the per-item recording callback. Items are drawn as one
// instance whose index addresses the item's transform in the slot's instance buffer.
func (e *engine) drawItem(snap *scene.Snapshot, globals gpu.DescriptorSet) func(rec recorder.Recorder, group, local, global int) {
	cache := e.renderer.Pipelines()
	return func(rec recorder.Recorder, group, local, global int) {
		item := snap.Item(group, local)
		if !snap.Visible(item) {
			return
		}
		p := cache.MustGet(item.Renderer.Pipeline)
		if p == nil {
			return
		}
		rec.BindPipeline(p)
		if globals != nil {
			rec.BindDescriptorSets(p, 0, globals)
		}
		if len(item.Renderer.Bindings) > 0 {
			rec.BindDescriptorSets(p, 1, item.Renderer.Bindings...)
		}
		rec.DrawMesh(item.Renderer.Mesh, 1, uint32(global))
	}
}

// epilogue flushes the debug line batch on the last worker.
func (e *engine) epilogue(f renderer.Frame, globals gpu.DescriptorSet) func(rec recorder.Recorder) {
	if e.debug == nil {
		return nil
	}
	return func(rec recorder.Recorder) {
		if e.debug.Lines() == 0 {
			return
		}
		p, err := e.renderer.Pipelines().Get(debugdraw.PipelineName)
		if err != nil {
			e.debug.Clear()
			return
		}
		var sets []gpu.DescriptorSet
		if globals != nil {
			sets = append(sets, globals)
		}
		if _, err := e.debug.Flush(rec, f.Slot.Index, p, sets...); err != nil {
			e.logger().Warn("debug draw flush failed", slog.Any("err", err))
		}
	}
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.running.Store(false)
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
		if e.window != nil && e.window.IsRunning() {
			e.window.Close()
		}
	})
}

// handle launches the tick and render goroutines, tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the uncapped (or frame-limited) render loop in its own goroutine.
// A panic raised while recording ends the loop and signals quit.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger().Error("render goroutine recovered from panic", slog.Any("panic", r))
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		if !e.OnPreTick() {
			e.signalQuit()
			return
		}
		e.OnPostTick()

		if e.renderCallback != nil {
			e.renderCallback(dt)
		}

		if e.renderFrameLimit > 0 {
			elapsed := time.Since(lastRender)
			if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

func (e *engine) Close() {
	e.signalQuit()
	e.closeOnce.Do(func() {
		if e.pending != nil {
			e.pending.snap.Release()
			e.pending = nil
		}
		e.pool.Stop()
		e.renderer.Destroy()
		e.uniforms.Destroy()
		if e.debug != nil {
			e.debug.Destroy()
		}
		e.logger().Info("engine closed")
	})
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if e.running.Load() {
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		e.engineTickRate = newRate
	}
}

func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
