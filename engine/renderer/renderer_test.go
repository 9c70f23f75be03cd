package renderer

import (
	"sync"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/jamesdimick/godray-go/common"
	"github.com/jamesdimick/godray-go/engine/renderer/pipeline"
	"github.com/jamesdimick/godray-go/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	available bool

	registeredCompute []string
	registeredRender  []string
	released          []string

	computeFrames int
	dispatches    []struct {
		key        string
		workGroups [3]uint32
		bindGroups []*wgpu.BindGroup
	}
	blits []string
}

var _ RendererBackend = &fakeBackend{}

func (f *fakeBackend) Available() bool            { return f.available }
func (f *fakeBackend) Device() *wgpu.Device       { return nil }
func (f *fakeBackend) Queue() *wgpu.Queue         { return nil }
func (f *fakeBackend) Instance() *wgpu.Instance   { return nil }
func (f *fakeBackend) Adapter() *wgpu.Adapter     { return nil }
func (f *fakeBackend) Surface() *wgpu.Surface     { return nil }
func (f *fakeBackend) SetDevice(*wgpu.Device)     {}
func (f *fakeBackend) SetQueue(*wgpu.Queue)       {}
func (f *fakeBackend) SetInstance(*wgpu.Instance) {}
func (f *fakeBackend) SetAdapter(*wgpu.Adapter)   {}
func (f *fakeBackend) SetSurface(*wgpu.Surface)   {}
func (f *fakeBackend) ConfigureSurface(int, int)  {}
func (f *fakeBackend) SetPresentMode(PresentMode) {}

func (f *fakeBackend) RegisterComputePipeline(p pipeline.Pipeline) error {
	f.registeredCompute = append(f.registeredCompute, p.PipelineKey())
	return nil
}

func (f *fakeBackend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	f.registeredRender = append(f.registeredRender, p.PipelineKey())
	return nil
}

func (f *fakeBackend) ReleasePipeline(p pipeline.Pipeline) {
	f.released = append(f.released, p.PipelineKey())
}

func (f *fakeBackend) CreateStorageTexture(string, uint32, uint32, uint32, wgpu.TextureFormat, wgpu.TextureUsage) (*wgpu.Texture, error) {
	return &wgpu.Texture{}, nil
}

func (f *fakeBackend) CreateTextureLayerView(*wgpu.Texture, uint32) (*wgpu.TextureView, error) {
	return &wgpu.TextureView{}, nil
}

func (f *fakeBackend) CreateSampler(string, common.SamplerStagingData) (*wgpu.Sampler, error) {
	return &wgpu.Sampler{}, nil
}

func (f *fakeBackend) CreateUniformBuffer(string, uint64) (*wgpu.Buffer, error) {
	return &wgpu.Buffer{}, nil
}

func (f *fakeBackend) CreateBindGroup(*wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	return &wgpu.BindGroup{}, nil
}

func (f *fakeBackend) WriteBuffer(*wgpu.Buffer, uint64, []byte) {}

func (f *fakeBackend) BeginComputeFrame() error {
	f.computeFrames++
	return nil
}

func (f *fakeBackend) EndComputeFrame() {}

func (f *fakeBackend) DispatchCompute(p pipeline.Pipeline, bindGroups []*wgpu.BindGroup, workGroupCount [3]uint32) {
	f.dispatches = append(f.dispatches, struct {
		key        string
		workGroups [3]uint32
		bindGroups []*wgpu.BindGroup
	}{p.PipelineKey(), workGroupCount, bindGroups})
}

func (f *fakeBackend) BeginFrame() error { return nil }

func (f *fakeBackend) Blit(p pipeline.Pipeline, _ []*wgpu.BindGroup) {
	f.blits = append(f.blits, p.PipelineKey())
}

func (f *fakeBackend) EndFrame() {}
func (f *fakeBackend) Present()  {}

const rendererTestComputeSource = `
@group(0) @binding(0) var dst: texture_storage_2d<rgba16float, write>;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
	textureStore(dst, vec2<i32>(id.xy), vec4<f32>(0.0));
}
`

func newTestRenderer(backend RendererBackend) *renderer {
	return &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backend:       backend,
	}
}

func TestRegisterPipelinesRoutesByType(t *testing.T) {
	fb := &fakeBackend{available: true}
	r := newTestRenderer(fb)

	cs := shader.NewShader("test-compute", shader.ShaderTypeCompute, rendererTestComputeSource)
	p := pipeline.NewPipeline("test-compute", pipeline.PipelineTypeCompute, pipeline.WithComputeShader(cs))

	require.NoError(t, r.RegisterPipelines(p))
	assert.Equal(t, []string{"test-compute"}, fb.registeredCompute)
	assert.Empty(t, fb.registeredRender)
	assert.Same(t, p, r.Pipeline("test-compute"))
}

func TestRegisterPipelinesSkipsDuplicates(t *testing.T) {
	fb := &fakeBackend{available: true}
	r := newTestRenderer(fb)

	cs := shader.NewShader("dupe", shader.ShaderTypeCompute, rendererTestComputeSource)
	p := pipeline.NewPipeline("dupe", pipeline.PipelineTypeCompute, pipeline.WithComputeShader(cs))

	require.NoError(t, r.RegisterPipelines(p))
	require.NoError(t, r.RegisterPipelines(p))
	assert.Len(t, fb.registeredCompute, 1)
}

func TestRemovePipelineReleasesAndUnregisters(t *testing.T) {
	fb := &fakeBackend{available: true}
	r := newTestRenderer(fb)

	cs := shader.NewShader("removable", shader.ShaderTypeCompute, rendererTestComputeSource)
	p := pipeline.NewPipeline("removable", pipeline.PipelineTypeCompute, pipeline.WithComputeShader(cs))
	require.NoError(t, r.RegisterPipelines(p))
	require.NotNil(t, r.Pipeline("removable"))

	r.RemovePipeline("removable")

	assert.Nil(t, r.Pipeline("removable"))
	assert.Equal(t, []string{"removable"}, fb.released)

	// Removing again, or removing a key that never existed, touches nothing.
	r.RemovePipeline("removable")
	r.RemovePipeline("missing")
	assert.Len(t, fb.released, 1)
}

func TestDispatchComputeUnknownKeyIsNoOp(t *testing.T) {
	fb := &fakeBackend{available: true}
	r := newTestRenderer(fb)

	r.DispatchCompute("missing", nil, [3]uint32{1, 1, 1})
	assert.Empty(t, fb.dispatches)
}

func TestDispatchComputePassesWorkgroups(t *testing.T) {
	fb := &fakeBackend{available: true}
	r := newTestRenderer(fb)

	cs := shader.NewShader("dispatch", shader.ShaderTypeCompute, rendererTestComputeSource)
	p := pipeline.NewPipeline("dispatch", pipeline.PipelineTypeCompute, pipeline.WithComputeShader(cs))
	require.NoError(t, r.RegisterPipelines(p))

	bg := &wgpu.BindGroup{}
	r.DispatchCompute("dispatch", []*wgpu.BindGroup{bg}, [3]uint32{3, 5, 1})

	require.Len(t, fb.dispatches, 1)
	assert.Equal(t, "dispatch", fb.dispatches[0].key)
	assert.Equal(t, [3]uint32{3, 5, 1}, fb.dispatches[0].workGroups)
	assert.Same(t, bg, fb.dispatches[0].bindGroups[0])
}

func TestBlitUnknownKeyIsNoOp(t *testing.T) {
	fb := &fakeBackend{available: true}
	r := newTestRenderer(fb)

	r.Blit("missing", nil)
	assert.Empty(t, fb.blits)
}

func TestAvailableDelegatesToBackend(t *testing.T) {
	assert.False(t, newTestRenderer(&fakeBackend{}).Available())
	assert.True(t, newTestRenderer(&fakeBackend{available: true}).Available())
}
