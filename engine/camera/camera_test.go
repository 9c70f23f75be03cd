package camera

import (
	"math"
	"testing"

	"github.com/jamesdimick/godray-go/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPositionIsOnZAxis(t *testing.T) {
	cam := NewCamera(WithRadius(10))

	x, y, z := cam.Position()
	assert.InDelta(t, 0, x, 1e-5)
	assert.InDelta(t, 0, y, 1e-5)
	assert.InDelta(t, 10, z, 1e-5)
}

func TestOrbitClampsElevation(t *testing.T) {
	cam := NewCamera(WithRadius(10)).(*cameraImpl)

	cam.Orbit(0, 100)
	assert.InDelta(t, 1.55, cam.elevation, 1e-5)

	cam.Orbit(0, -200)
	assert.InDelta(t, -1.55, cam.elevation, 1e-5)
}

func TestZoomClampsToRadiusBounds(t *testing.T) {
	cam := NewCamera(WithRadius(10), WithRadiusBounds(2, 50)).(*cameraImpl)

	cam.Zoom(100)
	assert.InDelta(t, 2, cam.radius, 1e-5)

	cam.Zoom(-1000)
	assert.InDelta(t, 50, cam.radius, 1e-5)
}

func TestInverseViewUndoesView(t *testing.T) {
	cam := NewCamera(
		WithRadius(25),
		WithAzimuth(0.7),
		WithElevation(0.4),
		WithTarget(3, -2, 8),
	)

	view := cam.ViewMatrix()
	inverse := cam.InverseViewMatrix()

	product := make([]float32, 16)
	common.Mul4(product, inverse[:], view[:])

	identity := make([]float32, 16)
	common.Identity(identity)
	for i := range identity {
		assert.InDelta(t, identity[i], product[i], 1e-4)
	}
}

func TestSetAspectUpdatesProjection(t *testing.T) {
	cam := NewCamera(WithFov(float32(math.Pi) / 2))

	square := cam.ProjectionMatrix()
	cam.SetAspect(2)
	wide := cam.ProjectionMatrix()

	require.NotZero(t, square[0])
	assert.InDelta(t, square[0]/2, wide[0], 1e-5)
	assert.Equal(t, square[5], wide[5])
}
