// Package godray implements a screen-space volumetric light scattering effect.
//
// Each frame the effect runs a four-stage compute chain per render view: a sun
// disk is rasterized against scene depth, streaked toward the viewer with a
// radial blur, softened with a separable gaussian blur, then composited over
// the scene color at full render resolution. Intermediate images ping-pong
// between two shared textures, one array layer per view, so stereo rendering
// reuses the same allocations. The composited result is drawn to the surface
// during the engine's render pass.
package godray

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/jamesdimick/godray-go/common"
	"github.com/jamesdimick/godray-go/engine/light"
	"github.com/jamesdimick/godray-go/engine/renderer/bindcache"
	"github.com/jamesdimick/godray-go/engine/renderer/pipeline"
	"github.com/jamesdimick/godray-go/engine/renderer/shader"
	"github.com/jamesdimick/godray-go/engine/renderer/viewport"
)

const (
	pipelineKeySundisk      = "godray-sundisk"
	pipelineKeyRadialBlur   = "godray-radial-blur"
	pipelineKeyGaussianBlur = "godray-gaussian-blur"
	pipelineKeyOverlay      = "godray-overlay"
	pipelineKeyBlit         = "godray-blit"

	contextKeyIntermediate = "godray-intermediate"
	contextKeyComposite    = "godray-composite"

	// All stages dispatch 8x8 workgroup tiles.
	workgroupTile = 8

	bindCacheCapacity = 256

	// Distance the sun direction is scaled by to place a directional light
	// far enough away that parallax is negligible.
	sunDistance = 10000.0
)

// Renderer is the subset of the rendering system the effect depends on.
// The engine's concrete renderer satisfies it.
type Renderer interface {
	Available() bool
	Pipeline(key string) pipeline.Pipeline
	RegisterPipelines(pipelines ...pipeline.Pipeline) error
	RemovePipeline(key string)
	CreateStorageTexture(label string, width, height, layers uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.Texture, error)
	CreateTextureLayerView(tex *wgpu.Texture, layer uint32) (*wgpu.TextureView, error)
	CreateSampler(label string, data common.SamplerStagingData) (*wgpu.Sampler, error)
	CreateUniformBuffer(label string, size uint64) (*wgpu.Buffer, error)
	CreateBindGroup(descriptor *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error)
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte)
	DispatchCompute(pipelineKey string, bindGroups []*wgpu.BindGroup, workGroupCount [3]uint32)
	Blit(pipelineKey string, bindGroups []*wgpu.BindGroup)
}

// View carries the per-view inputs the effect needs for one render view.
type View struct {
	// InverseView is the column-major 4x4 world-to-eye matrix.
	InverseView []float32

	// Projection is the column-major 4x4 eye-to-clip matrix.
	Projection []float32

	// EyeOffset is the per-eye convergence offset added to the sun's
	// normalized device coordinates after the perspective divide.
	// Zero for mono rendering.
	EyeOffset [2]float32

	// SceneColor is the view's scene color image, sampled during compositing.
	SceneColor *wgpu.TextureView

	// SceneDepth is the view's scene depth image, a single-channel float
	// storage texture read during the sun disk stage.
	SceneDepth *wgpu.TextureView
}

// FrameData describes the render target and views for one frame.
type FrameData struct {
	RenderWidth  uint32
	RenderHeight uint32
	Views        []View
}

// godRay is the implementation of the GodRay interface.
type godRay struct {
	mu *sync.Mutex
	r  Renderer

	sun light.Sun

	halfSize               bool
	sunSize                float32
	sunFadeSize            float32
	radialBlurSamples      int
	radialBlurRadius       float32
	radialBlurEffectAmount float32
	gaussianBlurSize       float32

	frame *FrameData

	syncInit bool
	initPool worker.DynamicWorkerPool
	initDone atomic.Bool
	enabled  atomic.Bool
	initErr  error

	nearestSampler *wgpu.Sampler
	linearSampler  *wgpu.Sampler

	bindGroups bindcache.Cache
	contexts   viewport.Manager
	params     *paramsArena

	releaseSampler func(*wgpu.Sampler)
	releaseBuffer  func(*wgpu.Buffer)

	composite *viewport.Target

	releaseOnce sync.Once
}

// GodRay defines the interface for the volumetric light scattering effect.
// It satisfies the engine's Effect contract and adds the configuration surface.
type GodRay interface {
	// Compute records this frame's compute dispatches (all four stages for every
	// view). A frame with a zero-sized render target, no views, or an unavailable
	// device is skipped silently.
	//
	// Parameters:
	//   - deltaTime: seconds elapsed since the previous render frame (unused)
	Compute(deltaTime float32)

	// Draw blits the composited result to the surface within the engine's
	// render pass. No-op until a frame has been computed.
	Draw()

	// Release frees the effect's GPU resources: the five pipelines it
	// registered, both samplers, the parameter buffer, all cached bind groups,
	// and the intermediate texture contexts. Runs at most once; a partially
	// initialized effect releases only what exists. Safe to call multiple times.
	Release()

	// Err reports a fatal initialization failure (a shader that failed to
	// compile or a pipeline that could not be created). The effect stays
	// permanently disabled when this is non-nil. An absent GPU device is not
	// an error; the effect is silently disabled in that case.
	//
	// Returns:
	//   - error: the initialization error, or nil
	Err() error

	// SetFrameData provides the render target size and per-view inputs for
	// subsequent frames. Call before each Compute whenever views or matrices
	// change.
	//
	// Parameters:
	//   - frame: the frame description
	SetFrameData(frame FrameData)

	// SetHalfSize toggles half-resolution intermediates. When enabled, the
	// sun disk and blur stages run at half the render resolution and the
	// result is upscaled during compositing.
	//
	// Parameters:
	//   - halfSize: true to run intermediates at half resolution
	SetHalfSize(halfSize bool)

	// SetSunSize sets the sun disk radius in effect-space pixels.
	//
	// Parameters:
	//   - size: the disk radius
	SetSunSize(size float32)

	// SetSunFadeSize sets the width of the disk's falloff band in effect-space pixels.
	//
	// Parameters:
	//   - size: the fade band width
	SetSunFadeSize(size float32)

	// SetRadialBlurSamples sets the radial blur sample count, clamped to [4, 32].
	//
	// Parameters:
	//   - samples: samples per pixel along the blur ray
	SetRadialBlurSamples(samples int)

	// SetRadialBlurRadius sets the radial blur reach in effect-space pixels.
	//
	// Parameters:
	//   - radius: the blur radius
	SetRadialBlurRadius(radius float32)

	// SetRadialBlurEffectAmount sets the radial blur intensity multiplier.
	//
	// Parameters:
	//   - amount: the intensity multiplier
	SetRadialBlurEffectAmount(amount float32)

	// SetGaussianBlurSize sets the gaussian kernel reach in pixels, clamped to [5, 50].
	//
	// Parameters:
	//   - size: the kernel reach
	SetGaussianBlurSize(size float32)
}

var _ GodRay = &godRay{}

// NewGodRay creates the effect and schedules its GPU initialization.
// Initialization runs as a fire-and-forget task on an internal worker so
// construction never blocks; frames before it completes are no-ops. A renderer
// without a usable device leaves the effect permanently and silently disabled.
// Panics if r is nil.
//
// Parameters:
//   - r: the renderer the effect records its work through
//   - opts: variadic list of GodRayBuilderOption functions to configure the effect
//
// Returns:
//   - GodRay: a new instance of GodRay
func NewGodRay(r Renderer, opts ...GodRayBuilderOption) GodRay {
	if r == nil {
		panic("godray: renderer must not be nil")
	}

	g := &godRay{
		mu:                     &sync.Mutex{},
		r:                      r,
		sun:                    light.NewSun(),
		sunSize:                100,
		sunFadeSize:            50,
		radialBlurSamples:      16,
		radialBlurRadius:       100,
		radialBlurEffectAmount: 0.9,
		gaussianBlurSize:       10,
		releaseSampler:         func(s *wgpu.Sampler) { s.Release() },
		releaseBuffer:          func(b *wgpu.Buffer) { b.Release() },
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.bindGroups == nil {
		g.bindGroups = bindcache.NewCache(r, bindCacheCapacity)
	}
	if g.contexts == nil {
		g.contexts = viewport.NewManager(r)
	}

	if g.syncInit {
		g.initialize()
		return g
	}

	g.initPool = worker.NewDynamicWorkerPool(1, 16, 1*time.Second)
	g.initPool.SubmitTask(worker.Task{
		ID: 0,
		Do: func() (any, error) {
			g.initialize()
			return nil, nil
		},
	})

	return g
}

// initialize creates the samplers, parameter arena, and all five pipelines.
// A missing device disables the effect without error; any other failure is
// recorded as fatal via initErr.
func (g *godRay) initialize() {
	g.mu.Lock()
	defer g.mu.Unlock()
	defer g.initDone.Store(true)

	if !g.r.Available() {
		return
	}

	nearest, err := g.r.CreateSampler("godray nearest", common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeNearest,
		MinFilter:    wgpu.FilterModeNearest,
	})
	if err != nil {
		g.initErr = err
		return
	}
	g.nearestSampler = nearest

	linear, err := g.r.CreateSampler("godray linear", common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeLinear,
		MinFilter:    wgpu.FilterModeLinear,
	})
	if err != nil {
		g.initErr = err
		return
	}
	g.linearSampler = linear

	arena, err := newParamsArena(g.r, initialParamsSlots, g.releaseBuffer)
	if err != nil {
		g.initErr = err
		return
	}
	g.params = arena

	err = g.r.RegisterPipelines(
		pipeline.NewPipeline(pipelineKeySundisk, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(shader.NewShader(pipelineKeySundisk, shader.ShaderTypeCompute, sundiskSource))),
		pipeline.NewPipeline(pipelineKeyRadialBlur, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(shader.NewShader(pipelineKeyRadialBlur, shader.ShaderTypeCompute, radialBlurSource))),
		pipeline.NewPipeline(pipelineKeyGaussianBlur, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(shader.NewShader(pipelineKeyGaussianBlur, shader.ShaderTypeCompute, gaussianBlurSource))),
		pipeline.NewPipeline(pipelineKeyOverlay, pipeline.PipelineTypeCompute,
			pipeline.WithComputeShader(shader.NewShader(pipelineKeyOverlay, shader.ShaderTypeCompute, overlaySource))),
		pipeline.NewPipeline(pipelineKeyBlit, pipeline.PipelineTypeRender,
			pipeline.WithVertexShader(shader.NewShader(pipelineKeyBlit+"-vs", shader.ShaderTypeVertex, blitSource)),
			pipeline.WithFragmentShader(shader.NewShader(pipelineKeyBlit+"-fs", shader.ShaderTypeFragment, blitSource))),
	)
	if err != nil {
		g.initErr = err
		return
	}

	g.enabled.Store(true)
}

func (g *godRay) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.initErr
}

func (g *godRay) SetFrameData(frame FrameData) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frame = &frame
}

func (g *godRay) SetHalfSize(halfSize bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.halfSize = halfSize
}

func (g *godRay) SetSunSize(size float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sunSize = size
}

func (g *godRay) SetSunFadeSize(size float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sunFadeSize = size
}

func (g *godRay) SetRadialBlurSamples(samples int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.radialBlurSamples = common.Clamp(samples, minRadialBlurSamples, maxRadialBlurSamples)
}

func (g *godRay) SetRadialBlurRadius(radius float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.radialBlurRadius = radius
}

func (g *godRay) SetRadialBlurEffectAmount(amount float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.radialBlurEffectAmount = amount
}

func (g *godRay) SetGaussianBlurSize(size float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gaussianBlurSize = common.Clamp(size, minGaussianBlurSize, maxGaussianBlurSize)
}

const (
	minRadialBlurSamples = 4
	maxRadialBlurSamples = 32
	minGaussianBlurSize  = 5.0
	maxGaussianBlurSize  = 50.0
)

func (g *godRay) Compute(_ float32) {
	if !g.initDone.Load() || !g.enabled.Load() {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	frame := g.frame
	if frame == nil || frame.RenderWidth == 0 || frame.RenderHeight == 0 || len(frame.Views) == 0 {
		return
	}
	if !g.r.Available() {
		return
	}

	effectW, effectH := frame.RenderWidth, frame.RenderHeight
	sunSize, sunFade, radius := g.sunSize, g.sunFadeSize, g.radialBlurRadius
	if g.halfSize {
		effectW /= 2
		effectH /= 2
		// These are expressed in the intermediate buffer's pixel space.
		sunSize /= 2
		sunFade /= 2
		radius /= 2
	}
	if effectW == 0 || effectH == 0 {
		return
	}

	layers := uint32(len(frame.Views))
	pair, err := g.contexts.EnsurePair(contextKeyIntermediate, effectW, effectH, layers, wgpu.TextureFormatRGBA16Float)
	if err != nil {
		return
	}
	composite, err := g.contexts.EnsureTarget(contextKeyComposite, frame.RenderWidth, frame.RenderHeight, layers, wgpu.TextureFormatRGBA16Float)
	if err != nil {
		return
	}
	g.composite = composite

	g.params.reset()

	effectGrid := dispatchGrid(effectW, effectH)
	renderGrid := dispatchGrid(frame.RenderWidth, frame.RenderHeight)
	renderW, renderH := float32(frame.RenderWidth), float32(frame.RenderHeight)
	fw, fh := float32(effectW), float32(effectH)

	for i, view := range frame.Views {
		ndcX, ndcY := projectSun(g.sun.Direction(), view)
		sunX := (ndcX*0.5 + 0.5) * fw
		sunY := (1 - (ndcY*0.5 + 0.5)) * fh

		// Sun disk into the write side, then swap so it becomes current.
		g.dispatchStage(pipelineKeySundisk, effectGrid,
			[]float32{renderW, renderH, fw, fh, sunX, sunY, sunSize, sunFade},
			[][]wgpu.BindGroupEntry{
				{{Binding: 0, TextureView: view.SceneDepth}},
				{{Binding: 0, TextureView: pair.Other().Views[i]}},
			})
		pair.Swap()

		// Streak toward the sun.
		g.dispatchStage(pipelineKeyRadialBlur, effectGrid,
			[]float32{fw, fh, sunX, sunY, float32(g.radialBlurSamples), radius, g.radialBlurEffectAmount, 0},
			[][]wgpu.BindGroupEntry{
				{{Binding: 0, TextureView: pair.Current().Views[i]}},
				{{Binding: 0, TextureView: pair.Other().Views[i]}},
			})
		pair.Swap()

		// Separable gaussian, horizontal then vertical.
		g.dispatchStage(pipelineKeyGaussianBlur, effectGrid,
			[]float32{fw, fh, g.gaussianBlurSize, 0},
			[][]wgpu.BindGroupEntry{
				{{Binding: 0, TextureView: pair.Current().Views[i]}},
				{{Binding: 0, TextureView: pair.Other().Views[i]}},
			})
		pair.Swap()

		g.dispatchStage(pipelineKeyGaussianBlur, effectGrid,
			[]float32{fw, fh, 0, g.gaussianBlurSize},
			[][]wgpu.BindGroupEntry{
				{{Binding: 0, TextureView: pair.Current().Views[i]}},
				{{Binding: 0, TextureView: pair.Other().Views[i]}},
			})
		pair.Swap()

		// Composite over scene color at full render resolution.
		g.dispatchStage(pipelineKeyOverlay, renderGrid,
			[]float32{renderW, renderH, 0, 0},
			[][]wgpu.BindGroupEntry{
				{
					{Binding: 0, Sampler: g.linearSampler},
					{Binding: 1, TextureView: pair.Current().Views[i]},
					{Binding: 2, Sampler: g.nearestSampler},
					{Binding: 3, TextureView: view.SceneColor},
				},
				{{Binding: 0, TextureView: composite.Views[i]}},
			})
	}
}

// dispatchStage records one compute dispatch: stage parameters go into the next
// arena slot, bind groups come from the content-addressed cache, and the
// parameter slot is bound as the final group at its byte offset.
func (g *godRay) dispatchStage(key string, grid [3]uint32, paramValues []float32, groups [][]wgpu.BindGroupEntry) {
	p := g.r.Pipeline(key)
	if p == nil {
		return
	}

	offset, err := g.params.push(g.r, paramValues)
	if err != nil {
		return
	}

	bindGroups := make([]*wgpu.BindGroup, 0, len(groups)+1)
	for gi, entries := range groups {
		bg, err := g.bindGroups.Get(key, p.BindGroupLayout(gi), entries)
		if err != nil {
			return
		}
		bindGroups = append(bindGroups, bg)
	}

	paramsGroup, err := g.bindGroups.Get(key+" params", p.BindGroupLayout(len(groups)), []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: g.params.buffer, Offset: offset, Size: uint64(len(paramValues)) * 4},
	})
	if err != nil {
		return
	}
	bindGroups = append(bindGroups, paramsGroup)

	g.r.DispatchCompute(key, bindGroups, grid)
}

func (g *godRay) Draw() {
	if !g.initDone.Load() || !g.enabled.Load() {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.composite == nil || len(g.composite.Views) == 0 {
		return
	}

	p := g.r.Pipeline(pipelineKeyBlit)
	if p == nil {
		return
	}

	bg, err := g.bindGroups.Get(pipelineKeyBlit, p.BindGroupLayout(0), []wgpu.BindGroupEntry{
		{Binding: 0, Sampler: g.linearSampler},
		{Binding: 1, TextureView: g.composite.Views[0]},
	})
	if err != nil {
		return
	}

	g.r.Blit(pipelineKeyBlit, []*wgpu.BindGroup{bg})
}

func (g *godRay) Release() {
	g.releaseOnce.Do(func() {
		g.mu.Lock()
		defer g.mu.Unlock()

		g.enabled.Store(false)

		if g.nearestSampler != nil {
			g.releaseSampler(g.nearestSampler)
			g.nearestSampler = nil
		}
		if g.linearSampler != nil {
			g.releaseSampler(g.linearSampler)
			g.linearSampler = nil
		}
		g.params.release()
		g.bindGroups.Purge()
		g.contexts.ReleaseAll()
		g.composite = nil

		// Unregistered keys (failed or skipped init) are no-ops.
		for _, key := range []string{
			pipelineKeySundisk,
			pipelineKeyRadialBlur,
			pipelineKeyGaussianBlur,
			pipelineKeyOverlay,
			pipelineKeyBlit,
		} {
			g.r.RemovePipeline(key)
		}
	})
}

// dispatchGrid computes the workgroup counts covering the given pixel extent
// with 8x8 tiles. Every pixel is covered and the grid never exceeds the extent
// by more than one tile per axis.
func dispatchGrid(width, height uint32) [3]uint32 {
	return [3]uint32{
		(width + workgroupTile - 1) / workgroupTile,
		(height + workgroupTile - 1) / workgroupTile,
		1,
	}
}

// projectSun places the sun far along its direction, transforms it through the
// view's world-to-eye and projection matrices, and returns its normalized
// device coordinates with the view's eye offset applied after the perspective
// divide.
func projectSun(dir [3]float32, view View) (float32, float32) {
	world := []float32{dir[0] * sunDistance, dir[1] * sunDistance, dir[2] * sunDistance, 1}

	eye := make([]float32, 4)
	common.TransformVec4(eye, view.InverseView, world)

	clip := make([]float32, 4)
	common.TransformVec4(clip, view.Projection, eye)

	ndcX, ndcY := clip[0], clip[1]
	if clip[3] != 0 {
		ndcX /= clip[3]
		ndcY /= clip[3]
	}

	return ndcX + view.EyeOffset[0], ndcY + view.EyeOffset[1]
}
