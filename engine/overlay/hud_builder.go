package overlay

import "image/color"

// HUDBuilderOption is a functional option used to configure a HUD during construction.
type HUDBuilderOption func(*hud)

// WithPanelSize sets the panel extent in pixels.
//
// Parameters:
//   - width, height: the panel extent, 256x48 by default
//
// Returns:
//   - HUDBuilderOption: a function that sets the panel size
func WithPanelSize(width, height int) HUDBuilderOption {
	return func(h *hud) {
		h.width = max(width, 1)
		h.height = max(height, 1)
	}
}

// WithMargin sets the distance in pixels between the panel and the top-left corner.
func WithMargin(px int) HUDBuilderOption {
	return func(h *hud) {
		h.margin = px
	}
}

// WithBackground sets the panel background behind the text.
func WithBackground(c color.RGBA) HUDBuilderOption {
	return func(h *hud) {
		h.background = c
	}
}
