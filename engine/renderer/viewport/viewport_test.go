package viewport

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	textures int
	views    int
	texErr   error
}

func (f *fakeBackend) CreateStorageTexture(string, uint32, uint32, uint32, wgpu.TextureFormat, wgpu.TextureUsage) (*wgpu.Texture, error) {
	if f.texErr != nil {
		return nil, f.texErr
	}
	f.textures++
	return &wgpu.Texture{}, nil
}

func (f *fakeBackend) CreateTextureLayerView(*wgpu.Texture, uint32) (*wgpu.TextureView, error) {
	f.views++
	return &wgpu.TextureView{}, nil
}

func noReleases() ManagerBuilderOption {
	return WithReleaseFuncs(func(*wgpu.Texture) {}, func(*wgpu.TextureView) {})
}

func TestEnsurePairStableHandlesForSameSize(t *testing.T) {
	fb := &fakeBackend{}
	m := NewManager(fb, noReleases())

	first, err := m.EnsurePair("main", 640, 360, 2, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)
	second, err := m.EnsurePair("main", 640, 360, 2, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first.Targets[0].Texture, second.Targets[0].Texture)
	assert.Equal(t, 2, fb.textures)
	assert.Equal(t, 4, fb.views) // 2 textures x 2 layers
}

func TestEnsurePairRecreatesOnResize(t *testing.T) {
	fb := &fakeBackend{}
	releasedTextures := 0
	releasedViews := 0
	m := NewManager(fb, WithReleaseFuncs(
		func(*wgpu.Texture) { releasedTextures++ },
		func(*wgpu.TextureView) { releasedViews++ },
	))

	first, err := m.EnsurePair("main", 640, 360, 1, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)
	second, err := m.EnsurePair("main", 960, 540, 1, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, uint32(960), second.Targets[0].Width)
	assert.Equal(t, 2, releasedTextures)
	assert.Equal(t, 2, releasedViews)
	assert.Equal(t, 4, fb.textures)
}

func TestEnsurePairIndependentKeys(t *testing.T) {
	fb := &fakeBackend{}
	m := NewManager(fb, noReleases())

	left, err := m.EnsurePair("left-eye", 640, 360, 1, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)
	right, err := m.EnsurePair("right-eye", 640, 360, 1, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)

	assert.NotSame(t, left, right)
	assert.Equal(t, 4, fb.textures)
}

func TestPairSwapAlternatesSides(t *testing.T) {
	m := NewManager(&fakeBackend{}, noReleases())

	pair, err := m.EnsurePair("main", 64, 64, 1, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)

	a := pair.Current()
	b := pair.Other()
	assert.NotSame(t, a, b)

	pair.Swap()
	assert.Same(t, b, pair.Current())
	assert.Same(t, a, pair.Other())

	pair.Swap()
	assert.Same(t, a, pair.Current())
}

func TestEnsureTargetRecreatesOnFormatChange(t *testing.T) {
	fb := &fakeBackend{}
	m := NewManager(fb, noReleases())

	first, err := m.EnsureTarget("composite", 640, 360, 1, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)
	second, err := m.EnsureTarget("composite", 640, 360, 1, wgpu.TextureFormatRGBA8Unorm)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, second.Format)
}

func TestReleaseAllAccountsForEveryResource(t *testing.T) {
	fb := &fakeBackend{}
	releasedTextures := 0
	releasedViews := 0
	m := NewManager(fb, WithReleaseFuncs(
		func(*wgpu.Texture) { releasedTextures++ },
		func(*wgpu.TextureView) { releasedViews++ },
	))

	_, err := m.EnsurePair("main", 64, 64, 2, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)
	_, err = m.EnsureTarget("composite", 64, 64, 2, wgpu.TextureFormatRGBA16Float)
	require.NoError(t, err)

	m.ReleaseAll()
	assert.Equal(t, fb.textures, releasedTextures)
	assert.Equal(t, fb.views, releasedViews)
}

func TestEnsurePairPropagatesBackendError(t *testing.T) {
	fb := &fakeBackend{texErr: errors.New("device lost")}
	m := NewManager(fb, noReleases())

	_, err := m.EnsurePair("main", 64, 64, 1, wgpu.TextureFormatRGBA16Float)
	require.Error(t, err)
}

func TestNewManagerPanicsOnNilBackend(t *testing.T) {
	assert.Panics(t, func() { NewManager(nil) })
}
