// Package viewport manages per-viewport GPU texture contexts for multi-pass effects.
//
// Each context owns the intermediate textures an effect ping-pongs between, plus any
// single render targets, keyed by viewport. Contexts are sized to the viewport and
// recreated wholesale when the viewport size changes; stale textures and views are
// released before their replacements are created so resize never leaks GPU memory.
package viewport

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// Backend is the subset of the renderer backend the context manager needs.
type Backend interface {
	CreateStorageTexture(label string, width, height, layers uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpu.Texture, error)
	CreateTextureLayerView(tex *wgpu.Texture, layer uint32) (*wgpu.TextureView, error)
}

// Target is a single GPU texture with one view per array layer.
type Target struct {
	Texture *wgpu.Texture
	Views   []*wgpu.TextureView

	Width  uint32
	Height uint32
	Layers uint32
	Format wgpu.TextureFormat
}

// TexturePair is a ping/pong pair of identically sized targets. The pair tracks which
// side is current; multi-pass effects read from the current side, write to the other,
// then Swap.
type TexturePair struct {
	Targets [2]*Target

	index int
}

// Current returns the target holding the most recently written result.
//
// Returns:
//   - *Target: the current side of the pair
func (p *TexturePair) Current() *Target {
	return p.Targets[p.index]
}

// Other returns the target the next pass should write into.
//
// Returns:
//   - *Target: the non-current side of the pair
func (p *TexturePair) Other() *Target {
	return p.Targets[1-p.index]
}

// Swap makes the other side current. Call after a pass that wrote into Other.
func (p *TexturePair) Swap() {
	p.index = 1 - p.index
}

// manager is the implementation of the Manager interface.
type manager struct {
	mu *sync.Mutex

	backend Backend
	pairs   map[string]*TexturePair
	targets map[string]*Target
	release releaseFuncs
}

type releaseFuncs struct {
	texture func(*wgpu.Texture)
	view    func(*wgpu.TextureView)
}

// Manager defines the interface for per-viewport texture context management.
type Manager interface {
	// EnsurePair returns the ping/pong texture pair for the given key, creating it on first
	// use. If the pair exists but its size, layer count, or format differs, the old pair is
	// released and a new one created. The returned pair's handles are stable across calls
	// with unchanged parameters.
	//
	// Parameters:
	//   - key: the viewport identity the pair belongs to
	//   - width: target width in texels
	//   - height: target height in texels
	//   - layers: number of array layers (one per view for multi-view rendering)
	//   - format: the texel format
	//
	// Returns:
	//   - *TexturePair: the pair for this key
	//   - error: an error if texture or view creation fails
	EnsurePair(key string, width, height, layers uint32, format wgpu.TextureFormat) (*TexturePair, error)

	// EnsureTarget returns the single render target for the given key, creating it on first
	// use and recreating it when size, layer count, or format changes.
	//
	// Parameters:
	//   - key: the viewport identity the target belongs to
	//   - width: target width in texels
	//   - height: target height in texels
	//   - layers: number of array layers
	//   - format: the texel format
	//
	// Returns:
	//   - *Target: the target for this key
	//   - error: an error if texture or view creation fails
	EnsureTarget(key string, width, height, layers uint32, format wgpu.TextureFormat) (*Target, error)

	// Release releases the pair and target held under the given key, if any.
	//
	// Parameters:
	//   - key: the viewport identity to release
	Release(key string)

	// ReleaseAll releases every pair and target held by the manager. Call at teardown.
	ReleaseAll()
}

var _ Manager = &manager{}

// NewManager creates a texture context manager backed by the given backend.
// Panics if backend is nil.
//
// Parameters:
//   - backend: the backend used to create textures and views
//   - opts: variadic list of ManagerBuilderOption functions to configure the manager
//
// Returns:
//   - Manager: a new instance of Manager
func NewManager(backend Backend, opts ...ManagerBuilderOption) Manager {
	if backend == nil {
		panic("viewport: backend must not be nil")
	}
	m := &manager{
		mu:      &sync.Mutex{},
		backend: backend,
		pairs:   make(map[string]*TexturePair),
		targets: make(map[string]*Target),
		release: releaseFuncs{
			texture: func(t *wgpu.Texture) { t.Release() },
			view:    func(v *wgpu.TextureView) { v.Release() },
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *manager) EnsurePair(key string, width, height, layers uint32, format wgpu.TextureFormat) (*TexturePair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pair, ok := m.pairs[key]; ok {
		if pair.Targets[0].matches(width, height, layers, format) {
			return pair, nil
		}
		m.releasePair(pair)
		delete(m.pairs, key)
	}

	pair := &TexturePair{}
	for i := range pair.Targets {
		target, err := m.createTarget(fmt.Sprintf("%s ping-pong %d", key, i), width, height, layers, format)
		if err != nil {
			// release the half that succeeded
			if i > 0 {
				m.releaseTarget(pair.Targets[0])
			}
			return nil, err
		}
		pair.Targets[i] = target
	}

	m.pairs[key] = pair
	return pair, nil
}

func (m *manager) EnsureTarget(key string, width, height, layers uint32, format wgpu.TextureFormat) (*Target, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if target, ok := m.targets[key]; ok {
		if target.matches(width, height, layers, format) {
			return target, nil
		}
		m.releaseTarget(target)
		delete(m.targets, key)
	}

	target, err := m.createTarget(key, width, height, layers, format)
	if err != nil {
		return nil, err
	}

	m.targets[key] = target
	return target, nil
}

func (m *manager) Release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if pair, ok := m.pairs[key]; ok {
		m.releasePair(pair)
		delete(m.pairs, key)
	}
	if target, ok := m.targets[key]; ok {
		m.releaseTarget(target)
		delete(m.targets, key)
	}
}

func (m *manager) ReleaseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, pair := range m.pairs {
		m.releasePair(pair)
		delete(m.pairs, key)
	}
	for key, target := range m.targets {
		m.releaseTarget(target)
		delete(m.targets, key)
	}
}

func (t *Target) matches(width, height, layers uint32, format wgpu.TextureFormat) bool {
	return t.Width == width && t.Height == height && t.Layers == layers && t.Format == format
}

func (m *manager) createTarget(label string, width, height, layers uint32, format wgpu.TextureFormat) (*Target, error) {
	tex, err := m.backend.CreateStorageTexture(
		label,
		width, height, layers,
		format,
		wgpu.TextureUsageStorageBinding|wgpu.TextureUsageTextureBinding,
	)
	if err != nil {
		return nil, err
	}

	views := make([]*wgpu.TextureView, layers)
	for layer := uint32(0); layer < layers; layer++ {
		view, err := m.backend.CreateTextureLayerView(tex, layer)
		if err != nil {
			for _, v := range views[:layer] {
				m.release.view(v)
			}
			m.release.texture(tex)
			return nil, err
		}
		views[layer] = view
	}

	return &Target{
		Texture: tex,
		Views:   views,
		Width:   width,
		Height:  height,
		Layers:  layers,
		Format:  format,
	}, nil
}

func (m *manager) releasePair(pair *TexturePair) {
	for _, target := range pair.Targets {
		m.releaseTarget(target)
	}
}

func (m *manager) releaseTarget(target *Target) {
	if target == nil {
		return
	}
	for _, view := range target.Views {
		m.release.view(view)
	}
	m.release.texture(target.Texture)
}
