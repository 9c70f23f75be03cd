package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComputeSource = `
struct BlurParams {
	center_x: f32,
	center_y: f32,
	blur_size: f32,
	intensity: f32,
	samples: f32,
	effect_w: f32,
	effect_h: f32,
	reserved: f32,
}

@group(0) @binding(0) var src_texture: texture_storage_2d<r32float, read>;
@group(1) @binding(0) var dst_texture: texture_storage_2d<r32float, write>;
@group(2) @binding(0) var<uniform> params: BlurParams;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
}
`

const testBlitSource = `
struct VertexOutput {
	@builtin(position) position: vec4<f32>,
	@location(0) uv: vec2<f32>,
}

@group(0) @binding(0) var color_sampler: sampler;
@group(0) @binding(1) var color_texture: texture_2d<f32>;

@vertex
fn vs_main(@builtin(vertex_index) idx: u32) -> VertexOutput {
	var out: VertexOutput;
	return out;
}

@fragment
fn fs_main(in: VertexOutput) -> @location(0) vec4<f32> {
	return vec4<f32>(0.0);
}
`

func TestNewShaderComputeParsing(t *testing.T) {
	s := NewShader("blur", ShaderTypeCompute, testComputeSource)

	assert.Equal(t, "blur", s.Key())
	assert.Equal(t, "main", s.EntryPoint())
	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())
	assert.Equal(t, ShaderTypeCompute, s.ShaderType())

	require.NotNil(t, s.Module())
	assert.Equal(t, "blur", s.Module().Label)
	assert.Equal(t, testComputeSource, s.Module().WGSLDescriptor.Code)
}

func TestNewShaderBindGroupLayouts(t *testing.T) {
	s := NewShader("blur", ShaderTypeCompute, testComputeSource)

	layouts := s.BindGroupLayoutDescriptors()
	require.Len(t, layouts, 3)

	src := s.BindGroupLayoutDescriptor(0)
	require.Len(t, src.Entries, 1)
	assert.Equal(t, uint32(0), src.Entries[0].Binding)
	assert.Equal(t, wgpu.ShaderStageCompute, src.Entries[0].Visibility)
	assert.Equal(t, wgpu.TextureFormatR32Float, src.Entries[0].StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessReadOnly, src.Entries[0].StorageTexture.Access)
	assert.Equal(t, wgpu.TextureViewDimension2D, src.Entries[0].StorageTexture.ViewDimension)

	dst := s.BindGroupLayoutDescriptor(1)
	require.Len(t, dst.Entries, 1)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, dst.Entries[0].StorageTexture.Access)

	params := s.BindGroupLayoutDescriptor(2)
	require.Len(t, params.Entries, 1)
	assert.Equal(t, wgpu.BufferBindingTypeUniform, params.Entries[0].Buffer.Type)
	assert.Equal(t, uint64(32), params.Entries[0].Buffer.MinBindingSize)
}

func TestNewShaderRenderEntryPoints(t *testing.T) {
	vs := NewShader("blit_vs", ShaderTypeVertex, testBlitSource)
	fs := NewShader("blit_fs", ShaderTypeFragment, testBlitSource)

	assert.Equal(t, "vs_main", vs.EntryPoint())
	assert.Equal(t, "fs_main", fs.EntryPoint())

	layout := fs.BindGroupLayoutDescriptor(0)
	require.Len(t, layout.Entries, 2)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, layout.Entries[0].Sampler.Type)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, layout.Entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, layout.Entries[1].Texture.ViewDimension)
}

func TestNewShaderPanicsOnEmptySource(t *testing.T) {
	assert.Panics(t, func() {
		NewShader("broken", ShaderTypeCompute, "")
	})
}

func TestNewShaderPanicsOnMissingEntryPoint(t *testing.T) {
	assert.Panics(t, func() {
		NewShader("broken", ShaderTypeCompute, testBlitSource)
	})
}

func TestParseWorkgroupSizeDefaults(t *testing.T) {
	assert.Equal(t, [3]uint32{1, 1, 1}, parseWorkgroupSize("@compute fn main() {}"))
	assert.Equal(t, [3]uint32{64, 1, 1}, parseWorkgroupSize("@compute @workgroup_size(64) fn main() {}"))
	assert.Equal(t, [3]uint32{8, 8, 1}, parseWorkgroupSize("@compute @workgroup_size(8, 8) fn main() {}"))
}

func TestParseBindGroupLayoutsSkipsComments(t *testing.T) {
	source := `
// @group(0) @binding(0) var ghost: sampler;
/* @group(1) @binding(0) var ghost2: sampler; */
@group(0) @binding(0) var real_sampler: sampler;
`
	layouts := parseBindGroupLayouts(source, wgpu.ShaderStageFragment)
	require.Len(t, layouts, 1)
	require.Len(t, layouts[0].Entries, 1)
}

func TestComputeStructSizesNested(t *testing.T) {
	structs := parseStructBlocks(stripComments(`
struct Inner {
	a: vec3<f32>,
	b: f32,
}
struct Outer {
	inner: Inner,
	c: f32,
}
`))
	sizes := computeStructSizes(structs)

	require.Contains(t, sizes, "Inner")
	require.Contains(t, sizes, "Outer")
	assert.Equal(t, uint64(16), sizes["Inner"].size)
	assert.Equal(t, uint64(32), sizes["Outer"].size)
}
