package light

// sunImpl is the implementation of the Sun interface.
type sunImpl struct {
	direction [3]float32
	color     [3]float32
	intensity float32
	enabled   bool
}

// Sun defines the interface for the directional sun light.
//
// The sun has no position, only a world-space direction pointing from the scene
// toward the light source. Screen-space effects project this direction through
// the active camera to locate the sun on screen each frame.
type Sun interface {
	// Direction returns the normalized world-space direction toward the sun.
	//
	// Returns:
	//   - [3]float32: normalized direction as (x, y, z)
	Direction() [3]float32

	// Color returns the RGB color of the sun light.
	//
	// Returns:
	//   - [3]float32: color as (r, g, b)
	Color() [3]float32

	// Intensity returns the scalar intensity multiplier for the sun.
	//
	// Returns:
	//   - float32: the intensity value
	Intensity() float32

	// Enabled returns whether the sun is active for rendering.
	//
	// Returns:
	//   - bool: true if the sun is enabled
	Enabled() bool

	// SetDirection sets the world-space direction toward the sun and normalizes it.
	//
	// Parameters:
	//   - x, y, z: direction components (will be normalized)
	SetDirection(x, y, z float32)

	// SetColor sets the RGB color of the sun light.
	//
	// Parameters:
	//   - r, g, b: color components
	SetColor(r, g, b float32)

	// SetIntensity sets the scalar intensity multiplier.
	//
	// Parameters:
	//   - intensity: the intensity value
	SetIntensity(intensity float32)

	// SetEnabled enables or disables the sun for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)
}

var _ Sun = &sunImpl{}

// NewSun creates a new directional Sun with sensible defaults and any provided
// options applied. The default sun sits directly overhead, its direction
// pointing straight up at (0, 1, 0), with white light.
//
// Parameters:
//   - opts: variadic list of SunBuilderOption functions to configure the sun
//
// Returns:
//   - Sun: a new Sun instance
func NewSun(opts ...SunBuilderOption) Sun {
	s := &sunImpl{
		direction: [3]float32{0, 1, 0},
		color:     [3]float32{1, 1, 1},
		intensity: 1.0,
		enabled:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sunImpl) Direction() [3]float32 {
	return s.direction
}

func (s *sunImpl) Color() [3]float32 {
	return s.color
}

func (s *sunImpl) Intensity() float32 {
	return s.intensity
}

func (s *sunImpl) Enabled() bool {
	return s.enabled
}

func (s *sunImpl) SetDirection(x, y, z float32) {
	s.direction = normalize3(x, y, z)
}

func (s *sunImpl) SetColor(r, g, b float32) {
	s.color = [3]float32{r, g, b}
}

func (s *sunImpl) SetIntensity(intensity float32) {
	s.intensity = intensity
}

func (s *sunImpl) SetEnabled(enabled bool) {
	s.enabled = enabled
}
