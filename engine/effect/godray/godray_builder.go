package godray

import (
	"github.com/jamesdimick/godray-go/common"
	"github.com/jamesdimick/godray-go/engine/light"
)

// GodRayBuilderOption is a functional option applied to a godRay during construction via NewGodRay.
type GodRayBuilderOption func(*godRay)

// WithSun sets the directional sun the effect projects each frame.
// Without this option the effect creates a default sun pointing straight up.
//
// Parameters:
//   - sun: the sun light to track
//
// Returns:
//   - GodRayBuilderOption: a function that applies the sun option to a godRay
func WithSun(sun light.Sun) GodRayBuilderOption {
	return func(g *godRay) {
		if sun != nil {
			g.sun = sun
		}
	}
}

// WithHalfSize runs the sun disk and blur stages at half the render resolution
// and upscales during compositing. Roughly quarters the fill cost of the blur
// chain at a small quality cost.
//
// Parameters:
//   - halfSize: true to run intermediates at half resolution
//
// Returns:
//   - GodRayBuilderOption: a function that applies the half-size option to a godRay
func WithHalfSize(halfSize bool) GodRayBuilderOption {
	return func(g *godRay) {
		g.halfSize = halfSize
	}
}

// WithSunSize sets the sun disk radius and falloff band width in effect-space pixels.
//
// Parameters:
//   - size: the disk radius
//   - fadeSize: the fade band width
//
// Returns:
//   - GodRayBuilderOption: a function that applies the sun size options to a godRay
func WithSunSize(size, fadeSize float32) GodRayBuilderOption {
	return func(g *godRay) {
		g.sunSize = size
		g.sunFadeSize = fadeSize
	}
}

// WithRadialBlur configures the radial blur stage. Samples are clamped to [4, 32].
//
// Parameters:
//   - samples: samples per pixel along the blur ray
//   - radius: the blur reach in effect-space pixels
//   - effectAmount: the intensity multiplier
//
// Returns:
//   - GodRayBuilderOption: a function that applies the radial blur options to a godRay
func WithRadialBlur(samples int, radius, effectAmount float32) GodRayBuilderOption {
	return func(g *godRay) {
		g.radialBlurSamples = common.Clamp(samples, minRadialBlurSamples, maxRadialBlurSamples)
		g.radialBlurRadius = radius
		g.radialBlurEffectAmount = effectAmount
	}
}

// WithGaussianBlurSize sets the gaussian kernel reach in pixels, clamped to [5, 50].
//
// Parameters:
//   - size: the kernel reach
//
// Returns:
//   - GodRayBuilderOption: a function that applies the gaussian blur option to a godRay
func WithGaussianBlurSize(size float32) GodRayBuilderOption {
	return func(g *godRay) {
		g.gaussianBlurSize = common.Clamp(size, minGaussianBlurSize, maxGaussianBlurSize)
	}
}

// WithSynchronousInit performs GPU initialization during construction on the
// calling thread instead of deferring it to the internal worker. Intended for
// hosts that manage device-thread affinity themselves.
//
// Parameters:
//   - sync: true to initialize synchronously
//
// Returns:
//   - GodRayBuilderOption: a function that applies the init option to a godRay
func WithSynchronousInit(sync bool) GodRayBuilderOption {
	return func(g *godRay) {
		g.syncInit = sync
	}
}
