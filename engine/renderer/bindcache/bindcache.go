// Package bindcache provides a content-addressed cache of GPU bind groups.
//
// Bind groups are keyed by the identity of the resources they reference (buffers,
// buffer offsets, samplers, texture views) together with the layout they target.
// Requesting a bind group for an identical resource combination returns the same
// GPU object without touching the device, so per-frame binding-set lookups are
// allocation-free on the steady state. The cache is bounded; least recently used
// bind groups are released when the bound is exceeded.
package bindcache

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Device is the subset of the renderer backend the cache needs to create bind groups.
type Device interface {
	CreateBindGroup(descriptor *wgpu.BindGroupDescriptor) (*wgpu.BindGroup, error)
}

// cache is the implementation of the Cache interface.
type cache struct {
	mu *sync.Mutex

	device  Device
	entries *lru.Cache[string, *wgpu.BindGroup]
	release func(*wgpu.BindGroup)
}

// Cache defines the interface for a content-addressed bind group cache.
type Cache interface {
	// Get returns a bind group for the given layout and entries, creating one via the
	// device on first use. Subsequent calls with entries referencing the same resources
	// at the same offsets return the identical cached bind group.
	//
	// Parameters:
	//   - label: debug label used when a new bind group must be created
	//   - layout: the bind group layout the entries target
	//   - entries: the resource bindings
	//
	// Returns:
	//   - *wgpu.BindGroup: the cached or newly created bind group (owned by the cache)
	//   - error: an error if bind group creation fails
	Get(label string, layout *wgpu.BindGroupLayout, entries []wgpu.BindGroupEntry) (*wgpu.BindGroup, error)

	// Len reports the number of bind groups currently held by the cache.
	//
	// Returns:
	//   - int: the number of cached bind groups
	Len() int

	// Purge releases every cached bind group and empties the cache. Call this when the
	// resources the bind groups reference are being destroyed, such as on a viewport
	// resize or at teardown.
	Purge()
}

var _ Cache = &cache{}

// NewCache creates a bind group cache bounded to the given capacity.
// Panics if device is nil or capacity is not positive.
//
// Parameters:
//   - device: the device used to create bind groups on cache misses
//   - capacity: the maximum number of bind groups to retain
//   - opts: variadic list of CacheBuilderOption functions to configure the cache
//
// Returns:
//   - Cache: a new instance of Cache
func NewCache(device Device, capacity int, opts ...CacheBuilderOption) Cache {
	if device == nil {
		panic("bindcache: device must not be nil")
	}
	if capacity <= 0 {
		panic("bindcache: capacity must be positive")
	}

	c := &cache{
		mu:      &sync.Mutex{},
		device:  device,
		release: func(bg *wgpu.BindGroup) { bg.Release() },
	}
	for _, opt := range opts {
		opt(c)
	}

	entries, err := lru.NewWithEvict(capacity, func(_ string, bg *wgpu.BindGroup) {
		c.release(bg)
	})
	if err != nil {
		panic("bindcache: " + err.Error())
	}
	c.entries = entries

	return c
}

func (c *cache) Get(label string, layout *wgpu.BindGroupLayout, entries []wgpu.BindGroupEntry) (*wgpu.BindGroup, error) {
	key := cacheKey(layout, entries)

	c.mu.Lock()
	defer c.mu.Unlock()

	if bg, ok := c.entries.Get(key); ok {
		return bg, nil
	}

	bg, err := c.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bind group %q: %w", label, err)
	}

	c.entries.Add(key, bg)
	return bg, nil
}

func (c *cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

func (c *cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Purge()
}

// cacheKey derives a content key from the layout identity and each entry's
// binding slot, resource identity, and buffer range. Pointer identity is what
// matters: two views of the same texture are distinct resources, and a
// recreated texture produces new pointers and therefore new keys.
func cacheKey(layout *wgpu.BindGroupLayout, entries []wgpu.BindGroupEntry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%p", layout)
	for _, e := range entries {
		fmt.Fprintf(&sb, "|%d:%p:%p:%p:%d:%d", e.Binding, e.Buffer, e.Sampler, e.TextureView, e.Offset, e.Size)
	}
	return sb.String()
}
