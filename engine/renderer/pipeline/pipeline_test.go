package pipeline

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/jamesdimick/godray-go/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComputeSource = `
@group(0) @binding(0) var out_texture: texture_storage_2d<r32float, write>;

@compute @workgroup_size(8, 8, 1)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
}
`

func TestNewPipelineDefaults(t *testing.T) {
	p := NewPipeline("test", PipelineTypeRender)

	assert.Equal(t, "test", p.PipelineKey())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.False(t, p.BlendEnabled())
	assert.Equal(t, wgpu.CullModeNone, p.CullMode())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleList, p.Topology())
	assert.Equal(t, wgpu.ColorWriteMaskAll, p.WriteMask())
	require.NotNil(t, p.BlendState())
}

func TestNewPipelineComputeShaderOption(t *testing.T) {
	cs := shader.NewShader("test_cs", shader.ShaderTypeCompute, testComputeSource)
	p := NewPipeline("test", PipelineTypeCompute, WithComputeShader(cs))

	assert.Equal(t, PipelineTypeCompute, p.Type())
	assert.Same(t, cs, p.Shader(shader.ShaderTypeCompute))
	assert.Nil(t, p.Shader(shader.ShaderTypeVertex))
	assert.Nil(t, p.Pipeline())
}
