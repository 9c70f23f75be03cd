package godray

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/jamesdimick/godray-go/common"
	"github.com/jamesdimick/godray-go/engine/light"
	"github.com/jamesdimick/godray-go/engine/renderer/bindcache"
	"github.com/jamesdimick/godray-go/engine/renderer/pipeline"
	"github.com/jamesdimick/godray-go/engine/renderer/shader"
	"github.com/jamesdimick/godray-go/engine/renderer/viewport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferWrite struct {
	buffer *wgpu.Buffer
	offset uint64
	data   []byte
}

type dispatchRecord struct {
	key        string
	bindGroups []*wgpu.BindGroup
	grid       [3]uint32
}

type blitRecord struct {
	key        string
	bindGroups []*wgpu.BindGroup
}

// fakeEffectRenderer satisfies the effect's Renderer interface without a GPU.
// Pipeline registration parses the real shader sources and installs one
// placeholder layout per declared bind group so bind group lookups resolve.
type fakeEffectRenderer struct {
	available  bool
	samplerErr error

	pipelines        map[string]pipeline.Pipeline
	removedPipelines []string

	texturesCreated   int
	viewsCreated      int
	samplersCreated   int
	buffersCreated    int
	bindGroupsCreated int

	writes     []bufferWrite
	dispatches []dispatchRecord
	blits      []blitRecord
}

func newFakeEffectRenderer() *fakeEffectRenderer {
	return &fakeEffectRenderer{
		available: true,
		pipelines: map[string]pipeline.Pipeline{},
	}
}

func (f *fakeEffectRenderer) Available() bool {
	return f.available
}

func (f *fakeEffectRenderer) Pipeline(key string) pipeline.Pipeline {
	return f.pipelines[key]
}

func (f *fakeEffectRenderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	for _, p := range pipelines {
		groups := map[int]struct{}{}
		for _, st := range []shader.ShaderType{shader.ShaderTypeVertex, shader.ShaderTypeFragment, shader.ShaderTypeCompute} {
			s := p.Shader(st)
			if s == nil {
				continue
			}
			for group := range s.BindGroupLayoutDescriptors() {
				groups[group] = struct{}{}
			}
		}
		layouts := make([]*wgpu.BindGroupLayout, len(groups))
		for i := range layouts {
			layouts[i] = &wgpu.BindGroupLayout{}
		}
		p.SetBindGroupLayouts(layouts)
		f.pipelines[p.PipelineKey()] = p
	}
	return nil
}

func (f *fakeEffectRenderer) RemovePipeline(key string) {
	if _, ok := f.pipelines[key]; !ok {
		return
	}
	delete(f.pipelines, key)
	f.removedPipelines = append(f.removedPipelines, key)
}

func (f *fakeEffectRenderer) CreateStorageTexture(_ string, _, _, _ uint32, _ wgpu.TextureFormat, _ wgpu.TextureUsage) (*wgpu.Texture, error) {
	f.texturesCreated++
	return &wgpu.Texture{}, nil
}

func (f *fakeEffectRenderer) CreateTextureLayerView(_ *wgpu.Texture, _ uint32) (*wgpu.TextureView, error) {
	f.viewsCreated++
	return &wgpu.TextureView{}, nil
}

func (f *fakeEffectRenderer) CreateSampler(_ string, _ common.SamplerStagingData) (*wgpu.Sampler, error) {
	if f.samplerErr != nil {
		return nil, f.samplerErr
	}
	f.samplersCreated++
	return &wgpu.Sampler{}, nil
}

func (f *fakeEffectRenderer) CreateUniformBuffer(_ string, _ uint64) (*wgpu.Buffer, error) {
	f.buffersCreated++
	return &wgpu.Buffer{}, nil
}

func (f *fakeEffectRenderer) CreateBindGroup(_ *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	f.bindGroupsCreated++
	return &wgpu.BindGroup{}, nil
}

func (f *fakeEffectRenderer) WriteBuffer(buf *wgpu.Buffer, offset uint64, data []byte) {
	copied := make([]byte, len(data))
	copy(copied, data)
	f.writes = append(f.writes, bufferWrite{buffer: buf, offset: offset, data: copied})
}

func (f *fakeEffectRenderer) DispatchCompute(pipelineKey string, bindGroups []*wgpu.BindGroup, workGroupCount [3]uint32) {
	f.dispatches = append(f.dispatches, dispatchRecord{key: pipelineKey, bindGroups: bindGroups, grid: workGroupCount})
}

func (f *fakeEffectRenderer) Blit(pipelineKey string, bindGroups []*wgpu.BindGroup) {
	f.blits = append(f.blits, blitRecord{key: pipelineKey, bindGroups: bindGroups})
}

var _ Renderer = &fakeEffectRenderer{}

type releaseCounters struct {
	samplers   int
	buffers    int
	bindGroups int
	textures   int
	views      int
}

// newTestGodRay builds a synchronously initialized effect against the fake
// renderer, with release paths rerouted to counters so teardown never touches
// real GPU handles.
func newTestGodRay(fake *fakeEffectRenderer, opts ...GodRayBuilderOption) (*godRay, *releaseCounters) {
	counters := &releaseCounters{}
	base := []GodRayBuilderOption{
		WithSynchronousInit(true),
		func(g *godRay) {
			g.releaseSampler = func(*wgpu.Sampler) { counters.samplers++ }
			g.releaseBuffer = func(*wgpu.Buffer) { counters.buffers++ }
			g.bindGroups = bindcache.NewCache(fake, bindCacheCapacity,
				bindcache.WithReleaseFunc(func(*wgpu.BindGroup) { counters.bindGroups++ }))
			g.contexts = viewport.NewManager(fake, viewport.WithReleaseFuncs(
				func(*wgpu.Texture) { counters.textures++ },
				func(*wgpu.TextureView) { counters.views++ },
			))
		},
	}
	g := NewGodRay(fake, append(base, opts...)...)
	return g.(*godRay), counters
}

func testFrame(width, height uint32, views int) FrameData {
	frame := FrameData{RenderWidth: width, RenderHeight: height}
	for i := 0; i < views; i++ {
		inverseView := make([]float32, 16)
		common.Identity(inverseView)
		projection := make([]float32, 16)
		common.Perspective(projection, float32(math.Pi)/3, float32(width)/float32(max(height, 1)), 0.1, 1000)
		frame.Views = append(frame.Views, View{
			InverseView: inverseView,
			Projection:  projection,
			SceneColor:  &wgpu.TextureView{},
			SceneDepth:  &wgpu.TextureView{},
		})
	}
	return frame
}

func floatsFrom(t *testing.T, data []byte) []float32 {
	t.Helper()
	require.Zero(t, len(data)%4)
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

func TestDispatchGridCoversExtent(t *testing.T) {
	tests := []struct {
		name          string
		width, height uint32
		want          [3]uint32
	}{
		{"single tile", 8, 8, [3]uint32{1, 1, 1}},
		{"partial tile rounds up", 9, 8, [3]uint32{2, 1, 1}},
		{"one pixel", 1, 1, [3]uint32{1, 1, 1}},
		{"full hd", 1920, 1080, [3]uint32{240, 135, 1}},
		{"half of full hd", 960, 540, [3]uint32{120, 68, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, dispatchGrid(tc.width, tc.height))
		})
	}
}

func TestNewGodRayPanicsOnNilRenderer(t *testing.T) {
	assert.Panics(t, func() { NewGodRay(nil) })
}

func TestUnavailableDeviceDisablesSilently(t *testing.T) {
	fake := newFakeEffectRenderer()
	fake.available = false

	g, _ := newTestGodRay(fake)
	require.NoError(t, g.Err())

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)
	g.Draw()

	assert.Zero(t, fake.samplersCreated)
	assert.Zero(t, fake.buffersCreated)
	assert.Zero(t, fake.texturesCreated)
	assert.Empty(t, fake.dispatches)
	assert.Empty(t, fake.blits)
}

func TestInitFailureReportsErrorAndDisables(t *testing.T) {
	fake := newFakeEffectRenderer()
	fake.samplerErr = errors.New("sampler creation failed")

	g, _ := newTestGodRay(fake)
	require.Error(t, g.Err())

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)
	g.Draw()

	assert.Empty(t, fake.dispatches)
	assert.Empty(t, fake.blits)
}

func TestComputeSkipsEmptyFrames(t *testing.T) {
	tests := []struct {
		name  string
		frame *FrameData
	}{
		{"no frame data", nil},
		{"zero width", func() *FrameData { f := testFrame(0, 1080, 1); return &f }()},
		{"zero height", func() *FrameData { f := testFrame(1920, 0, 1); return &f }()},
		{"no views", &FrameData{RenderWidth: 1920, RenderHeight: 1080}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fake := newFakeEffectRenderer()
			g, _ := newTestGodRay(fake)
			if tc.frame != nil {
				g.SetFrameData(*tc.frame)
			}
			g.Compute(0.016)
			assert.Empty(t, fake.dispatches)
			assert.Zero(t, fake.texturesCreated)
		})
	}
}

func TestComputeRunsFullStageChain(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, _ := newTestGodRay(fake, WithHalfSize(true))

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)

	require.Len(t, fake.dispatches, 5)
	assert.Equal(t, pipelineKeySundisk, fake.dispatches[0].key)
	assert.Equal(t, pipelineKeyRadialBlur, fake.dispatches[1].key)
	assert.Equal(t, pipelineKeyGaussianBlur, fake.dispatches[2].key)
	assert.Equal(t, pipelineKeyGaussianBlur, fake.dispatches[3].key)
	assert.Equal(t, pipelineKeyOverlay, fake.dispatches[4].key)

	// Blur stages run on the 960x540 intermediates, compositing at full 1920x1080.
	for _, d := range fake.dispatches[:4] {
		assert.Equal(t, [3]uint32{120, 68, 1}, d.grid)
	}
	assert.Equal(t, [3]uint32{240, 135, 1}, fake.dispatches[4].grid)

	// Two intermediates to ping-pong between plus the composite target.
	assert.Equal(t, 3, fake.texturesCreated)
	assert.Equal(t, 3, fake.viewsCreated)
}

func TestHalfSizeHalvesEffectSpaceParameters(t *testing.T) {
	full := newFakeEffectRenderer()
	gFull, _ := newTestGodRay(full, WithSunSize(100, 50), WithRadialBlur(16, 100, 0.9))
	gFull.SetFrameData(testFrame(1920, 1080, 1))
	gFull.Compute(0.016)

	half := newFakeEffectRenderer()
	gHalf, _ := newTestGodRay(half, WithSunSize(100, 50), WithRadialBlur(16, 100, 0.9), WithHalfSize(true))
	gHalf.SetFrameData(testFrame(1920, 1080, 1))
	gHalf.Compute(0.016)

	require.GreaterOrEqual(t, len(full.writes), 2)
	require.GreaterOrEqual(t, len(half.writes), 2)

	fullSundisk := floatsFrom(t, full.writes[0].data)
	halfSundisk := floatsFrom(t, half.writes[0].data)
	require.Len(t, fullSundisk, 8)
	require.Len(t, halfSundisk, 8)

	assert.Equal(t, []float32{1920, 1080, 1920, 1080}, fullSundisk[:4])
	assert.Equal(t, []float32{1920, 1080, 960, 540}, halfSundisk[:4])
	assert.Equal(t, float32(100), fullSundisk[6])
	assert.Equal(t, float32(50), fullSundisk[7])
	assert.Equal(t, float32(50), halfSundisk[6])
	assert.Equal(t, float32(25), halfSundisk[7])

	fullRadial := floatsFrom(t, full.writes[1].data)
	halfRadial := floatsFrom(t, half.writes[1].data)
	require.Len(t, fullRadial, 8)
	require.Len(t, halfRadial, 8)

	assert.Equal(t, []float32{1920, 1080}, fullRadial[:2])
	assert.Equal(t, []float32{960, 540}, halfRadial[:2])
	assert.Equal(t, float32(16), fullRadial[4])
	assert.Equal(t, float32(100), fullRadial[5])
	assert.Equal(t, float32(50), halfRadial[5])
	assert.InDelta(t, 0.9, fullRadial[6], 1e-6)
}

func TestGaussianBlurRunsHorizontalThenVertical(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, _ := newTestGodRay(fake, WithGaussianBlurSize(12))

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)

	require.GreaterOrEqual(t, len(fake.writes), 4)
	horizontal := floatsFrom(t, fake.writes[2].data)
	vertical := floatsFrom(t, fake.writes[3].data)

	assert.Equal(t, []float32{1920, 1080, 12, 0}, horizontal)
	assert.Equal(t, []float32{1920, 1080, 0, 12}, vertical)
}

func TestOverheadSunProjectsToTopCenter(t *testing.T) {
	fake := newFakeEffectRenderer()
	// Default sun points straight up; the camera looks down -Z from the origin.
	g, _ := newTestGodRay(fake)

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)

	require.NotEmpty(t, fake.writes)
	sundisk := floatsFrom(t, fake.writes[0].data)
	require.Len(t, sundisk, 8)

	assert.InDelta(t, 960, sundisk[4], 1e-3)
	assert.Less(t, sundisk[5], float32(0))
}

func TestSunAheadProjectsToScreenCenter(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, _ := newTestGodRay(fake, WithSun(light.NewSun(light.WithDirection(0, 0, -1))))

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)

	require.NotEmpty(t, fake.writes)
	sundisk := floatsFrom(t, fake.writes[0].data)
	require.Len(t, sundisk, 8)

	assert.InDelta(t, 960, sundisk[4], 1e-2)
	assert.InDelta(t, 540, sundisk[5], 1e-2)
}

func TestEyeOffsetShiftsProjectedSun(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, _ := newTestGodRay(fake, WithSun(light.NewSun(light.WithDirection(0, 0, -1))))

	frame := testFrame(1920, 1080, 1)
	frame.Views[0].EyeOffset = [2]float32{0.5, 0}
	g.SetFrameData(frame)
	g.Compute(0.016)

	require.NotEmpty(t, fake.writes)
	sundisk := floatsFrom(t, fake.writes[0].data)

	// An offset of +0.5 in normalized device coordinates is a quarter screen.
	assert.InDelta(t, 960+480, sundisk[4], 1e-2)
	assert.InDelta(t, 540, sundisk[5], 1e-2)
}

func TestRepeatedComputeReusesCachedResources(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, _ := newTestGodRay(fake)
	g.SetFrameData(testFrame(1920, 1080, 1))

	g.Compute(0.016)
	textures := fake.texturesCreated
	views := fake.viewsCreated
	groups := fake.bindGroupsCreated

	g.Compute(0.016)

	assert.Equal(t, textures, fake.texturesCreated)
	assert.Equal(t, views, fake.viewsCreated)
	assert.Equal(t, groups, fake.bindGroupsCreated)
	assert.Len(t, fake.dispatches, 10)
}

func TestResizeRecreatesIntermediates(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, counters := newTestGodRay(fake)

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)
	require.Equal(t, 3, fake.texturesCreated)

	g.SetFrameData(testFrame(1280, 720, 1))
	g.Compute(0.016)

	assert.Equal(t, 6, fake.texturesCreated)
	assert.Equal(t, 3, counters.textures)
	assert.Equal(t, 3, counters.views)
}

func TestStereoViewsDispatchFullChainPerView(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, _ := newTestGodRay(fake)

	g.SetFrameData(testFrame(1920, 1080, 2))
	g.Compute(0.016)

	require.Len(t, fake.dispatches, 10)
	for i := 0; i < 2; i++ {
		base := i * 5
		assert.Equal(t, pipelineKeySundisk, fake.dispatches[base].key)
		assert.Equal(t, pipelineKeyOverlay, fake.dispatches[base+4].key)
	}

	// Layered textures are shared across views, one array layer each.
	assert.Equal(t, 3, fake.texturesCreated)
	assert.Equal(t, 6, fake.viewsCreated)
}

func TestDrawBlitsComposite(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, _ := newTestGodRay(fake)

	g.Draw()
	assert.Empty(t, fake.blits, "draw before any compute should be a no-op")

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)
	g.Draw()

	require.Len(t, fake.blits, 1)
	assert.Equal(t, pipelineKeyBlit, fake.blits[0].key)
	require.Len(t, fake.blits[0].bindGroups, 1)

	created := fake.bindGroupsCreated
	g.Draw()
	assert.Equal(t, created, fake.bindGroupsCreated)
	assert.Len(t, fake.blits, 2)
}

func TestSetterClampsFlowIntoDispatchParameters(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, _ := newTestGodRay(fake)

	g.SetRadialBlurSamples(100)
	g.SetGaussianBlurSize(1)
	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)

	require.GreaterOrEqual(t, len(fake.writes), 3)
	radial := floatsFrom(t, fake.writes[1].data)
	horizontal := floatsFrom(t, fake.writes[2].data)

	assert.Equal(t, float32(maxRadialBlurSamples), radial[4])
	assert.Equal(t, float32(minGaussianBlurSize), horizontal[2])
}

func TestReleaseRemovesStagePipelines(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, _ := newTestGodRay(fake)

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)

	g.Release()

	expected := []string{
		pipelineKeySundisk,
		pipelineKeyRadialBlur,
		pipelineKeyGaussianBlur,
		pipelineKeyOverlay,
		pipelineKeyBlit,
	}
	assert.ElementsMatch(t, expected, fake.removedPipelines)
	for _, key := range expected {
		assert.Nil(t, fake.Pipeline(key))
	}

	g.Release()
	assert.Len(t, fake.removedPipelines, len(expected))
}

func TestReleaseWithoutDeviceRemovesNothing(t *testing.T) {
	fake := newFakeEffectRenderer()
	fake.available = false

	g, _ := newTestGodRay(fake)
	g.Release()

	assert.Empty(t, fake.removedPipelines)
}

func TestReleaseIsIdempotent(t *testing.T) {
	fake := newFakeEffectRenderer()
	g, counters := newTestGodRay(fake)

	g.SetFrameData(testFrame(1920, 1080, 1))
	g.Compute(0.016)
	cachedGroups := fake.bindGroupsCreated

	g.Release()

	assert.Equal(t, 2, counters.samplers)
	assert.Equal(t, 1, counters.buffers)
	assert.Equal(t, cachedGroups, counters.bindGroups)
	assert.Equal(t, 3, counters.textures)
	assert.Equal(t, 3, counters.views)

	g.Release()

	assert.Equal(t, 2, counters.samplers)
	assert.Equal(t, 1, counters.buffers)
	assert.Equal(t, cachedGroups, counters.bindGroups)

	g.Compute(0.016)
	assert.Len(t, fake.dispatches, 5, "compute after release should be disabled")
}
