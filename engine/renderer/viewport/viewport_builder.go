package viewport

import "github.com/cogentcore/webgpu/wgpu"

// ManagerBuilderOption is a functional option applied to a manager during construction via NewManager.
type ManagerBuilderOption func(*manager)

// WithReleaseFuncs overrides the functions used to release textures and views when
// contexts are recreated or released. The defaults call Release on the GPU objects.
//
// Parameters:
//   - texture: the function invoked for each texture leaving the manager
//   - view: the function invoked for each texture view leaving the manager
//
// Returns:
//   - ManagerBuilderOption: a function that applies the release options to a manager
func WithReleaseFuncs(texture func(*wgpu.Texture), view func(*wgpu.TextureView)) ManagerBuilderOption {
	return func(m *manager) {
		if texture != nil {
			m.release.texture = texture
		}
		if view != nil {
			m.release.view = view
		}
	}
}
