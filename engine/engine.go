package engine

import (
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jamesdimick/godray-go/engine/profiler"
	"github.com/jamesdimick/godray-go/engine/renderer"
	"github.com/jamesdimick/godray-go/engine/window"
)

// Effect is a renderable screen-space effect registered with the engine.
//
// The engine owns the frame lifecycle: each render frame it opens a batched compute
// frame, calls Compute on every effect in ascending z-index order, submits the batch,
// then opens the surface render pass and calls Draw on every effect in the same order.
// When the engine shuts down it calls Release on every registered effect exactly once.
type Effect interface {
	// Compute records the effect's compute dispatches for this frame. Called between
	// BeginComputeFrame and EndComputeFrame on the engine's renderer.
	//
	// Parameters:
	//   - deltaTime: seconds elapsed since the previous render frame
	Compute(deltaTime float32)

	// Draw records the effect's draws within the surface render pass. Called between
	// BeginFrame and EndFrame on the engine's renderer.
	Draw()

	// Release frees the effect's GPU resources. Called once at engine shutdown;
	// implementations must tolerate being called again.
	Release()
}

// engine implements the Engine interface.
// Coordinates engine, render, and window threads.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer

	profiler         *profiler.Profiler
	profilingEnabled bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32)

	effects     map[int]Effect
	releaseOnce sync.Once // Ensures effect teardown runs once

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
}

// Engine is the main entry point for the engine.
// It orchestrates the engine loop, render loop, and window management.
type Engine interface {
	// Window returns the underlying window.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer driving the engine's frame lifecycle.
	//
	// Returns:
	//   - renderer.Renderer: the renderer instance, or nil if none was configured
	Renderer() renderer.Renderer

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for game logic updates.
	//
	// Parameters:
	//   - fps: target frames per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for game logic, physics, input processing, and animation updates.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called each render frame, after all
	// effects have been computed and drawn.
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

	// AddEffect registers an effect at the given z-index key.
	// Effects are computed and drawn in ascending key order during the render loop.
	//
	// Parameters:
	//   - key: the z-index determining processing order (lower runs first)
	//   - eff: the Effect to register
	AddEffect(key int, eff Effect)

	// RemoveEffect removes the effect at the given z-index key. The effect's
	// Release method is not called; the caller retains ownership.
	//
	// Parameters:
	//   - key: the z-index of the effect to remove
	RemoveEffect(key int)

	// Effect retrieves the effect registered at the given z-index key.
	// Returns nil if no effect exists at that key.
	//
	// Parameters:
	//   - key: the z-index of the effect to retrieve
	//
	// Returns:
	//   - Effect: the effect at the key, or nil if not found
	Effect(key int) Effect

	// Effects returns a copy of all registered effects keyed by z-index.
	//
	// Returns:
	//   - map[int]Effect: a copy of the effects map
	Effects() map[int]Effect

	// Run starts the main engine loop (blocks until window closes).
	// When the loop exits, every registered effect is released exactly once.
	Run()

	// Quit signals all engine goroutines to stop and shuts down the engine.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
// Initializes message channels and profiler with sensible defaults.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - options: functional options for engine configuration (profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel:  make(chan time.Duration, 1),
		quitChannel:      make(chan struct{}),
		effects:          make(map[int]Effect),
		running:          false,
		wg:               sync.WaitGroup{},
		profiler:         profiler.NewProfiler(),
		profilingEnabled: false,
		engineTickRate:   time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if e.renderer != nil {
				e.renderer.Resize(width, height)
			}
		})
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) Run() {
	e.handle()
	e.window.ProcessMessages()
	e.signalQuit()
	e.wg.Wait()
	e.releaseEffects()
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
// Uses sync.Once to ensure the channel is only closed once.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		e.running = false
		close(e.quitChannel)
	})
}

// releaseEffects tears down every registered effect. Runs once even if both
// Run and Quit paths reach it.
func (e *engine) releaseEffects() {
	e.releaseOnce.Do(func() {
		for _, eff := range e.effects {
			eff.Release()
		}
	})
}

// handle launches the engine, render, and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleRender()
	go e.handleQuit()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
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
// Iterates registered effects in ascending z-index order, executing the full frame
// lifecycle: batched compute dispatch, then the surface render pass.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleRender() {
	defer e.wg.Done()
	// Recover from panics inside the render goroutine to avoid crashing the whole process.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
			now := time.Now()
			dt := float32(now.Sub(lastRender).Seconds())
			lastRender = now

			// Process all effects in ascending z-index order.
			// The engine owns the frame lifecycle: one compute submission, then
			// BeginFrame once, Draw each effect, EndFrame + Present once.
			keys := make([]int, 0, len(e.effects))
			for k := range e.effects {
				keys = append(keys, k)
			}
			sort.Ints(keys)

			if len(keys) > 0 && e.renderer != nil && e.renderer.Available() {
				// Phase 1 compute: batch all effect dispatches into a single GPU submission
				if err := e.renderer.BeginComputeFrame(); err == nil {
					for _, k := range keys {
						e.effects[k].Compute(dt)
					}
					e.renderer.EndComputeFrame()
				}

				// Phase 2 render: batch all effect draws into a single render pass
				if err := e.renderer.BeginFrame(); err == nil {
					for _, k := range keys {
						e.effects[k].Draw()
					}
					e.renderer.EndFrame()
					e.renderer.Present()
				}
			}

			if e.renderCallback != nil {
				e.renderCallback(dt)
			}

			if e.profilingEnabled && e.profiler != nil {
				e.profiler.Tick()
			}

			// Frame rate limiting
			if e.renderFrameLimit > 0 {
				elapsed := time.Since(lastRender)
				if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
					time.Sleep(remaining)
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed, then decrements the WaitGroup.
func (e *engine) handleQuit() {
	defer e.wg.Done()
	<-e.quitChannel
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled = true
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled = false
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Second / time.Duration(fps)

	if e.running {
		// Send to channel for immediate update in running engine loop
		// Non-blocking send - if channel is full, replace the pending value
		select {
		case e.tickRateChannel <- newRate:
		default:
			// Channel has a pending update, drain and send new value
			select {
			case <-e.tickRateChannel:
			default:
			}
			e.tickRateChannel <- newRate
		}
	} else {
		// Engine not running, just update the field
		e.engineTickRate = newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called each render frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Second / time.Duration(fps)
}

func (e *engine) AddEffect(key int, eff Effect) {
	e.effects[key] = eff
}

func (e *engine) RemoveEffect(key int) {
	delete(e.effects, key)
}

func (e *engine) Effect(key int) Effect {
	return e.effects[key]
}

func (e *engine) Effects() map[int]Effect {
	cp := make(map[int]Effect, len(e.effects))
	for k, v := range e.effects {
		cp[k] = v
	}
	return cp
}
