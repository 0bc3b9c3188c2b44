package overlay

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// Chain renders overlays in order onto the same target. The first error stops the chain.
type Chain []Overlay

func (c Chain) Render(cmd gpu.CommandContext, slot int, target Target) error {
	for _, o := range c {
		if o == nil {
			continue
		}
		if err := o.Render(cmd, slot, target); err != nil {
			return err
		}
	}
	return nil
}

// Toggle shows or hides an overlay. Visibility may be flipped from any goroutine; a hidden
// overlay records nothing.
type Toggle struct {
	overlay Overlay
	hidden  atomic.Bool
}

// NewToggle wraps ov, initially visible.
func NewToggle(ov Overlay) *Toggle {
	return &Toggle{overlay: ov}
}

// Flip inverts the visibility and reports whether the overlay is now visible.
func (t *Toggle) Flip() bool {
	for {
		hidden := t.hidden.Load()
		if t.hidden.CompareAndSwap(hidden, !hidden) {
			return hidden
		}
	}
}

func (t *Toggle) Visible() bool {
	return !t.hidden.Load()
}

func (t *Toggle) Render(cmd gpu.CommandContext, slot int, target Target) error {
	if t.hidden.Load() || t.overlay == nil {
		return nil
	}
	return t.overlay.Render(cmd, slot, target)
}
