package renderer

import (
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/jamesdimick/godray-go/common"
	"github.com/jamesdimick/godray-go/engine/renderer/pipeline"
	"github.com/jamesdimick/godray-go/engine/window"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
}

// Renderer defines the interface for the rendering system.
//
// This is a high-level API designed to simplify rendering tasks into a streamlined and idiomatic flow.
// The Renderer manages a cache of pipelines, allowing for easy retrieval and management of these resources.
// The Renderer also implements a backend which allows for multiple backend API implementations to exist.
type Renderer interface {
	// Available reports whether the underlying backend holds a usable GPU device.
	// When false, all rendering operations are silent no-ops and resource creation
	// returns errors.
	//
	// Returns:
	//   - bool: true if rendering is possible
	Available() bool

	// Pipeline retrieves the cached Pipeline associated with the given key.
	// If the Pipeline does not exist, this will return nil.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves the entire cache of Pipelines.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines registers one or more pipelines by creating the corresponding GPU
	// pipeline objects (render or compute) via the backend, then caching them by PipelineKey.
	// Pipelines whose keys are already registered are skipped to avoid duplicate GPU resource creation.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// RemovePipeline unregisters the Pipeline with the given key and releases its GPU
	// objects (the pipeline itself and its bind group layouts) via the backend. A key
	// that was never registered is a no-op. Call at effect teardown for the pipelines
	// the effect owns.
	//
	// Parameters:
	//   - key: the unique identifier of the Pipeline to remove
	RemovePipeline(key string)

	// SetPipeline adds or updates a Pipeline in the cache with the given key.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to add or update in the cache
	//   - p: the Pipeline to add or update in the cache
	SetPipeline(key string, p pipeline.Pipeline)

	// SetPipelines replaces the entire pipeline cache with the provided map of Pipelines.
	//
	// Parameters:
	//   - pipelines: a map of pipeline keys to their corresponding Pipeline objects to set as the new cache
	SetPipelines(pipelines map[string]pipeline.Pipeline)

	// Resize configures the underlying backend to handle a new surface size.
	// This should be called when re-sizing the window or when the surface size should change.
	// Zero-sized dimensions are ignored.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// CreateStorageTexture creates a 2D texture (optionally with array layers) usable as a
	// compute storage image and for sampling.
	//
	// Parameters:
	//   - label: debug label for the texture
	//   - width: texture width in texels
	//   - height: texture height in texels
	//   - layers: number of array layers (1 for a plain 2D texture)
	//   - format: the texel format
	//   - usage: the texture usage flags
	//
	// Returns:
	//   - *wgpu.Texture: the created texture (caller must release when done)
	//   - error: an error if texture creation fails
	CreateStorageTexture(label string, width, height, layers uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.Texture, error)

	// CreateTextureLayerView creates a 2D view of a single array layer of a texture.
	//
	// Parameters:
	//   - tex: the texture to view
	//   - layer: the array layer index
	//
	// Returns:
	//   - *wgpu.TextureView: the layer view (caller must release when done)
	//   - error: an error if view creation fails
	CreateTextureLayerView(tex *wgpu.Texture, layer uint32) (*wgpu.TextureView, error)

	// CreateSampler creates a GPU sampler from the provided staging data.
	//
	// Parameters:
	//   - label: debug label for the sampler
	//   - data: the sampler configuration
	//
	// Returns:
	//   - *wgpu.Sampler: the created sampler (caller must release when done)
	//   - error: an error if sampler creation fails
	CreateSampler(label string, data common.SamplerStagingData) (*wgpu.Sampler, error)

	// CreateUniformBuffer creates a uniform buffer writable via WriteBuffer.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - size: the buffer size in bytes
	//
	// Returns:
	//   - *wgpu.Buffer: the created buffer (caller must release when done)
	//   - error: an error if buffer creation fails
	CreateUniformBuffer(label string, size uint64) (*wgpu.Buffer, error)

	// CreateBindGroup creates a bind group from a fully populated descriptor.
	//
	// Parameters:
	//   - descriptor: the bind group descriptor
	//
	// Returns:
	//   - *wgpu.BindGroup: the created bind group (caller must release when done)
	//   - error: an error if bind group creation fails
	CreateBindGroup(descriptor *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error)

	// WriteBuffer writes data into a GPU buffer at the given byte offset via the queue.
	//
	// Parameters:
	//   - buf: the target buffer
	//   - offset: the byte offset into the buffer
	//   - data: the bytes to write
	WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte)

	// BeginComputeFrame creates a single command encoder for batching all compute dispatches
	// within a frame into one GPU submission. Must be paired with EndComputeFrame after all
	// DispatchCompute calls for the frame.
	//
	// Returns:
	//   - error: an error if the command encoder could not be created
	BeginComputeFrame() error

	// EndComputeFrame finishes the batched compute command encoder and submits the resulting
	// command buffer to the GPU queue. Must be called after BeginComputeFrame and all
	// DispatchCompute calls for the frame.
	EndComputeFrame()

	// DispatchCompute looks up the cached compute Pipeline by key, then encodes a compute pass
	// within the current batched compute frame started by BeginComputeFrame. Dispatches recorded
	// into the same frame execute in program order; each observes the writes of all prior
	// dispatches in the sequence.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached compute Pipeline to use
	//   - bindGroups: the bind groups to set, indexed by group
	//   - workGroupCount: the number of workgroups to dispatch in the x, y, and z dimensions
	DispatchCompute(pipelineKey string, bindGroups []*wgpu.BindGroup, workGroupCount [3]uint32)

	// BeginFrame acquires the swapchain texture and begins the main render pass.
	// Must be paired with EndFrame after all Blit invocations within a single frame.
	//
	// Returns:
	//   - error: an error if the swapchain texture could not be acquired
	BeginFrame() error

	// Blit looks up the cached render Pipeline by key and encodes a fullscreen-triangle draw
	// within the current render pass. Multiple Blit invocations can be made between BeginFrame
	// and EndFrame.
	//
	// Parameters:
	//   - pipelineKey: the unique identifier for the cached render Pipeline to use
	//   - bindGroups: the bind groups to set, indexed by group
	Blit(pipelineKey string, bindGroups []*wgpu.BindGroup)

	// EndFrame ends the current render pass and submits the command buffer to the GPU.
	// Does not present the surface; call Present() after EndFrame to display the frame.
	// Must be called after BeginFrame and all Blit invocations within a single frame.
	EndFrame()

	// Present presents the surface to the display and releases the swapchain texture.
	// Must be called once per frame after EndFrame.
	Present()

	// SetPresentMode sets the surface present mode which controls how frames are delivered to the display.
	// A call to Resize is required after changing this for the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use (VSync or Uncapped)
	SetPresentMode(mode PresentMode)
}

var _ Renderer = &renderer{}

// NewRenderer creates a new Renderer instance with the specified backend type and window.
// The window provides the platform-specific surface descriptor for WebGPU surface creation.
// If no GPU adapter or device can be acquired the Renderer is still returned; Available()
// reports false and rendering operations degrade to no-ops.
//
// Parameters:
//   - backendType: the type of rendering backend to use (e.g., WGPU)
//   - window: the Window providing the surface descriptor and initial dimensions
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: a new instance of Renderer configured with the specified backend and options
func NewRenderer(backendType RendererBackendType, window window.Window, options ...RendererBuilderOption) Renderer {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
	}

	// Apply options first so config flags (e.g. forceFallbackAdapter) are
	// available before the backend requests a GPU adapter.
	for _, opt := range options {
		opt(r)
	}

	if r.backend == nil {
		switch backendType {
		case BackendTypeWGPU:
			fallthrough
		default:
			r.backend = newWGPURendererBackend(window.SurfaceDescriptor(), r.forceFallbackAdapter)
		}
	}

	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}

	r.backend.ConfigureSurface(window.Width(), window.Height())
	return r
}

func (r *renderer) Available() bool {
	return r.backend.Available()
}

func (r *renderer) Resize(width, height int) {
	r.backend.ConfigureSurface(width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		switch p.Type() {
		case pipeline.PipelineTypeCompute:
			if err := r.backend.RegisterComputePipeline(p); err != nil {
				return err
			}
		case pipeline.PipelineTypeRender:
			if err := r.backend.RegisterRenderPipeline(p); err != nil {
				return err
			}
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) RemovePipeline(key string) {
	r.mu.Lock()
	p, exists := r.pipelineCache[key]
	if exists {
		delete(r.pipelineCache, key)
	}
	r.mu.Unlock()

	if !exists {
		return
	}
	r.backend.ReleasePipeline(p)
}

func (r *renderer) SetPipeline(key string, p pipeline.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelineCache[key] = p
}

func (r *renderer) SetPipelines(pipelines map[string]pipeline.Pipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelineCache = pipelines
}

func (r *renderer) CreateStorageTexture(label string, width, height, layers uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.Texture, error) {
	return r.backend.CreateStorageTexture(label, width, height, layers, format, usage)
}

func (r *renderer) CreateTextureLayerView(tex *wgpu.Texture, layer uint32) (*wgpu.TextureView, error) {
	return r.backend.CreateTextureLayerView(tex, layer)
}

func (r *renderer) CreateSampler(label string, data common.SamplerStagingData) (*wgpu.Sampler, error) {
	return r.backend.CreateSampler(label, data)
}

func (r *renderer) CreateUniformBuffer(label string, size uint64) (*wgpu.Buffer, error) {
	return r.backend.CreateUniformBuffer(label, size)
}

func (r *renderer) CreateBindGroup(descriptor *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	return r.backend.CreateBindGroup(descriptor)
}

func (r *renderer) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) {
	r.backend.WriteBuffer(buf, offset, data)
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) EndComputeFrame() {
	r.backend.EndComputeFrame()
}

func (r *renderer) DispatchCompute(pipelineKey string, bindGroups []*wgpu.BindGroup, workGroupCount [3]uint32) {
	r.mu.Lock()
	p, exists := r.pipelineCache[pipelineKey]
	r.mu.Unlock()

	if !exists {
		return
	}

	r.backend.DispatchCompute(p, bindGroups, workGroupCount)
}

func (r *renderer) BeginFrame() error {
	return r.backend.BeginFrame()
}

func (r *renderer) Blit(pipelineKey string, bindGroups []*wgpu.BindGroup) {
	r.mu.Lock()
	p, exists := r.pipelineCache[pipelineKey]
	r.mu.Unlock()

	if !exists {
		return
	}

	r.backend.Blit(p, bindGroups)
}

func (r *renderer) EndFrame() {
	r.backend.EndFrame()
}

func (r *renderer) Present() {
	r.backend.Present()
}
