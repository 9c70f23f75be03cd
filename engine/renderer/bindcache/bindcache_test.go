package bindcache

import (
	"errors"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	creates int
	err     error
}

func (f *fakeDevice) CreateBindGroup(*wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.creates++
	return &wgpu.BindGroup{}, nil
}

func noRelease(*wgpu.BindGroup) {}

func TestGetReturnsIdenticalBindGroupForSameResources(t *testing.T) {
	dev := &fakeDevice{}
	c := NewCache(dev, 8, WithReleaseFunc(noRelease))

	layout := &wgpu.BindGroupLayout{}
	view := &wgpu.TextureView{}
	entries := []wgpu.BindGroupEntry{
		{Binding: 0, TextureView: view},
	}

	first, err := c.Get("stage", layout, entries)
	require.NoError(t, err)
	second, err := c.Get("stage", layout, entries)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, dev.creates)
	assert.Equal(t, 1, c.Len())
}

func TestGetDistinguishesResourceIdentity(t *testing.T) {
	dev := &fakeDevice{}
	c := NewCache(dev, 8, WithReleaseFunc(noRelease))

	layout := &wgpu.BindGroupLayout{}
	viewA := &wgpu.TextureView{}
	viewB := &wgpu.TextureView{}

	a, err := c.Get("stage", layout, []wgpu.BindGroupEntry{{Binding: 0, TextureView: viewA}})
	require.NoError(t, err)
	b, err := c.Get("stage", layout, []wgpu.BindGroupEntry{{Binding: 0, TextureView: viewB}})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, dev.creates)
}

func TestGetDistinguishesBufferOffsets(t *testing.T) {
	dev := &fakeDevice{}
	c := NewCache(dev, 8, WithReleaseFunc(noRelease))

	layout := &wgpu.BindGroupLayout{}
	buf := &wgpu.Buffer{}

	a, err := c.Get("params", layout, []wgpu.BindGroupEntry{{Binding: 0, Buffer: buf, Offset: 0, Size: 32}})
	require.NoError(t, err)
	b, err := c.Get("params", layout, []wgpu.BindGroupEntry{{Binding: 0, Buffer: buf, Offset: 256, Size: 32}})
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, dev.creates)
}

func TestEvictionReleasesLeastRecentlyUsed(t *testing.T) {
	dev := &fakeDevice{}
	released := 0
	c := NewCache(dev, 2, WithReleaseFunc(func(*wgpu.BindGroup) { released++ }))

	layout := &wgpu.BindGroupLayout{}
	for range 3 {
		view := &wgpu.TextureView{}
		_, err := c.Get("stage", layout, []wgpu.BindGroupEntry{{Binding: 0, TextureView: view}})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, released)
}

func TestPurgeReleasesEverything(t *testing.T) {
	dev := &fakeDevice{}
	released := 0
	c := NewCache(dev, 8, WithReleaseFunc(func(*wgpu.BindGroup) { released++ }))

	layout := &wgpu.BindGroupLayout{}
	for range 3 {
		view := &wgpu.TextureView{}
		_, err := c.Get("stage", layout, []wgpu.BindGroupEntry{{Binding: 0, TextureView: view}})
		require.NoError(t, err)
	}

	c.Purge()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 3, released)
}

func TestGetPropagatesDeviceError(t *testing.T) {
	dev := &fakeDevice{err: errors.New("device lost")}
	c := NewCache(dev, 8, WithReleaseFunc(noRelease))

	_, err := c.Get("stage", &wgpu.BindGroupLayout{}, nil)
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestNewCachePanicsOnBadArguments(t *testing.T) {
	assert.Panics(t, func() { NewCache(nil, 8) })
	assert.Panics(t, func() { NewCache(&fakeDevice{}, 0) })
}
