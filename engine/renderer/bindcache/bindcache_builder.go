package bindcache

import "github.com/cogentcore/webgpu/wgpu"

// CacheBuilderOption is a functional option applied to a cache during construction via NewCache.
type CacheBuilderOption func(*cache)

// WithReleaseFunc overrides the function used to release bind groups evicted or purged
// from the cache. The default calls Release on the bind group.
//
// Parameters:
//   - release: the function invoked for each bind group leaving the cache
//
// Returns:
//   - CacheBuilderOption: a function that applies the release option to a cache
func WithReleaseFunc(release func(*wgpu.BindGroup)) CacheBuilderOption {
	return func(c *cache) {
		if release != nil {
			c.release = release
		}
	}
}
