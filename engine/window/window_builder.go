package window

// WindowBuilderOption is a functional option used to configure the window before it is created.
type WindowBuilderOption func(*settings)

// settings is the creation-time configuration of a window.
type settings struct {
	title     string
	width     int
	height    int
	minWidth  int
	minHeight int
	maxWidth  int
	maxHeight int
	resizable bool
}

func defaultSettings() settings {
	return settings{
		title:     "oxy samples",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 200,
		maxWidth:  3840,
		maxHeight: 2160,
		resizable: true,
	}
}

// normalized orders the limits and clamps the initial size into them.
func (s settings) normalized() settings {
	s.minWidth, s.minHeight = max(s.minWidth, 1), max(s.minHeight, 1)
	s.maxWidth, s.maxHeight = max(s.maxWidth, s.minWidth), max(s.maxHeight, s.minHeight)
	s.width = min(max(s.width, s.minWidth), s.maxWidth)
	s.height = min(max(s.height, s.minHeight), s.maxHeight)
	return s
}

// WithTitle sets the window title.
//
// Parameters:
//   - title: text shown in the title bar
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithTitle(title string) WindowBuilderOption {
	return func(s *settings) {
		s.title = title
	}
}

// WithWidth sets the requested client width in screen coordinates. The framebuffer may be larger
// on high-DPI displays.
func WithWidth(width int) WindowBuilderOption {
	return func(s *settings) {
		s.width = width
	}
}

// WithHeight sets the requested client height in screen coordinates.
func WithHeight(height int) WindowBuilderOption {
	return func(s *settings) {
		s.height = height
	}
}

// WithSizeLimits bounds interactive resizing. The initial size is clamped into the limits.
//
// Parameters:
//   - minWidth, minHeight: the smallest client size
//   - maxWidth, maxHeight: the largest client size
//
// Returns:
//   - WindowBuilderOption: option function to apply
func WithSizeLimits(minWidth, minHeight, maxWidth, maxHeight int) WindowBuilderOption {
	return func(s *settings) {
		s.minWidth, s.minHeight = minWidth, minHeight
		s.maxWidth, s.maxHeight = maxWidth, maxHeight
	}
}

// WithResizable allows or forbids interactive resizing.
func WithResizable(resizable bool) WindowBuilderOption {
	return func(s *settings) {
		s.resizable = resizable
	}
}
