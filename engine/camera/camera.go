package camera

import (
	"math"
	"sync"

	"github.com/jamesdimick/godray-go/common"
)

// cameraImpl is the implementation of the Camera interface.
// It orbits a target point using spherical coordinates and derives its
// matrices from the orbit state and perspective settings.
type cameraImpl struct {
	mu *sync.Mutex

	up [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	target    [3]float32
	radius    float32
	azimuth   float32
	elevation float32

	minElevation float32
	maxElevation float32
	minRadius    float32
	maxRadius    float32

	orbitSpeed float32
	zoomSpeed  float32

	viewMatrix        [16]float32
	projectionMatrix  [16]float32
	inverseViewMatrix [16]float32
}

// Camera defines the interface for an orbit camera. The camera circles a
// target point at a configurable radius and exposes the column-major matrices
// a render view needs: the world-to-eye view matrix, its inverse, and the
// perspective projection.
type Camera interface {
	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Position returns the camera's world-space position derived from the
	// orbit state.
	//
	// Returns:
	//   - x, y, z: world-space camera position
	Position() (x, y, z float32)

	// Target returns the look-at point.
	//
	// Returns:
	//   - x, y, z: world-space target position
	Target() (x, y, z float32)

	// ViewMatrix returns the current 4x4 world-to-eye matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// InverseViewMatrix returns the inverse of the current view matrix
	// as 16 floats (column-major), the eye-to-world transform.
	//
	// Returns:
	//   - [16]float32: the inverse view matrix
	InverseViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 perspective matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// Orbit rotates the camera around the target. Elevation is clamped so the
	// camera never flips over the poles.
	//
	// Parameters:
	//   - deltaAzimuth: horizontal rotation in radians, scaled by the orbit speed
	//   - deltaElevation: vertical rotation in radians, scaled by the orbit speed
	Orbit(deltaAzimuth, deltaElevation float32)

	// Zoom adjusts the orbit radius, clamped to the radius bounds.
	// Positive delta zooms in.
	//
	// Parameters:
	//   - delta: zoom amount scaled by the zoom speed
	Zoom(delta float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	// Call from the window resize callback.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetTarget sets the look-at point and recomputes matrices.
	//
	// Parameters:
	//   - x, y, z: world-space coordinates
	SetTarget(x, y, z float32)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new orbit Camera with default perspective settings,
// positioned on the -Z side of the origin looking at it.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:           &sync.Mutex{},
		up:           [3]float32{0, 1, 0},
		fov:          45.0 * (math.Pi / 180.0), // radians
		aspect:       1.0,
		near:         0.1,
		far:          10000.0,
		radius:       10,
		minElevation: -1.55,
		maxElevation: 1.55,
		minRadius:    0.5,
		maxRadius:    20000,
		orbitSpeed:   1.0,
		zoomSpeed:    1.0,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Position() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position()
}

func (c *cameraImpl) Target() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target[0], c.target[1], c.target[2]
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) InverseViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseViewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) Orbit(deltaAzimuth, deltaElevation float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth += deltaAzimuth * c.orbitSpeed
	c.elevation = common.Clamp(c.elevation+deltaElevation*c.orbitSpeed, c.minElevation, c.maxElevation)
	c.updateMatrices()
}

func (c *cameraImpl) Zoom(delta float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.radius = common.Clamp(c.radius-delta*c.zoomSpeed, c.minRadius, c.maxRadius)
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.updateMatrices()
}

func (c *cameraImpl) SetTarget(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = [3]float32{x, y, z}
	c.updateMatrices()
}

// position derives the world-space camera position from the spherical orbit
// coordinates. Caller must hold the mutex.
func (c *cameraImpl) position() (x, y, z float32) {
	cosEl := float32(math.Cos(float64(c.elevation)))
	x = c.target[0] + c.radius*cosEl*float32(math.Sin(float64(c.azimuth)))
	y = c.target[1] + c.radius*float32(math.Sin(float64(c.elevation)))
	z = c.target[2] + c.radius*cosEl*float32(math.Cos(float64(c.azimuth)))
	return x, y, z
}

// updateMatrices recalculates the view, inverse view, and projection matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	px, py, pz := c.position()

	common.LookAt(c.viewMatrix[:],
		px, py, pz,
		c.target[0], c.target[1], c.target[2],
		c.up[0], c.up[1], c.up[2],
	)

	common.Perspective(c.projectionMatrix[:],
		c.fov, c.aspect, c.near, c.far,
	)

	common.Invert4(c.inverseViewMatrix[:], c.viewMatrix[:])
}
