package particle

import "github.com/go-gl/mathgl/mgl32"

// SystemBuilderOption is a functional option used to configure a System during construction.
type SystemBuilderOption func(*system)

// WithCapacity sets the fixed element count M.
//
// Parameters:
//   - m: the capacity, 100000 by default
//
// Returns:
//   - SystemBuilderOption: a function that sets the capacity
func WithCapacity(m uint32) SystemBuilderOption {
	return func(s *system) {
		s.capacity = m
	}
}

// WithEmitCount sets the number of activation attempts per frame, capped by the emit dispatch
// width and the capacity.
func WithEmitCount(n uint32) SystemBuilderOption {
	return func(s *system) {
		s.emitCount = n
	}
}

// WithDrawMode selects fixed-capacity or indirect billboard instancing.
//
// Parameters:
//   - mode: DrawFixed or DrawIndirect
//
// Returns:
//   - SystemBuilderOption: a function that sets the draw mode
func WithDrawMode(mode DrawMode) SystemBuilderOption {
	return func(s *system) {
		s.mode = mode
	}
}

// WithForceCenter sets the collision sphere, xyz center and w radius.
func WithForceCenter(c mgl32.Vec4) SystemBuilderOption {
	return func(s *system) {
		s.scene.ForceCenter = c
	}
}

// WithColors replaces the particle palette.
func WithColors(colors [ColorCount]mgl32.Vec4) SystemBuilderOption {
	return func(s *system) {
		s.scene.ParticleColors = colors
	}
}
