package light

import "math"

// SunBuilderOption is a function that configures a Sun instance during construction.
type SunBuilderOption func(*sunImpl)

// WithDirection is an option builder that sets the world-space direction toward the sun.
// The direction is normalized before storing.
//
// Parameters:
//   - x: the x direction component
//   - y: the y direction component
//   - z: the z direction component
//
// Returns:
//   - SunBuilderOption: a function that applies the direction option to a sunImpl
func WithDirection(x, y, z float32) SunBuilderOption {
	return func(s *sunImpl) {
		s.direction = normalize3(x, y, z)
	}
}

// WithColor is an option builder that sets the RGB color of the sun light.
//
// Parameters:
//   - r: the red color component
//   - g: the green color component
//   - b: the blue color component
//
// Returns:
//   - SunBuilderOption: a function that applies the color option to a sunImpl
func WithColor(r, g, b float32) SunBuilderOption {
	return func(s *sunImpl) {
		s.color = [3]float32{r, g, b}
	}
}

// WithIntensity is an option builder that sets the scalar intensity multiplier.
//
// Parameters:
//   - intensity: the intensity value
//
// Returns:
//   - SunBuilderOption: a function that applies the intensity option to a sunImpl
func WithIntensity(intensity float32) SunBuilderOption {
	return func(s *sunImpl) {
		s.intensity = intensity
	}
}

// WithEnabled is an option builder that sets whether the sun is active for rendering.
//
// Parameters:
//   - enabled: true to enable the sun
//
// Returns:
//   - SunBuilderOption: a function that applies the enabled option to a sunImpl
func WithEnabled(enabled bool) SunBuilderOption {
	return func(s *sunImpl) {
		s.enabled = enabled
	}
}

// normalize3 normalizes a 3-component vector. Returns a zero vector if the input
// has zero length.
func normalize3(x, y, z float32) [3]float32 {
	length := float32(math.Sqrt(float64(x*x + y*y + z*z)))
	if length == 0 {
		return [3]float32{0, 0, 0}
	}
	inv := 1.0 / length
	return [3]float32{x * inv, y * inv, z * inv}
}
