package overlay

import (
	_ "embed"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/Carmen-Shannon/oxy-samples/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

//go:embed assets/hud.wgsl
var hudSource string

const (
	slotPanel   uint32 = 0
	slotText    uint32 = 1
	slotSampler uint32 = 2
)

// lineHeight is the advance between text rows of basicfont.Face7x13.
const lineHeight = 14

// hud is the implementation of the HUD interface.
type hud struct {
	device    gpu.Device
	ring      frame_ring.Ring
	pipelines *pipeline.Set

	width, height int
	margin        int
	background    color.RGBA

	// textures holds one text image per frame slot, written only while the slot is recorded.
	textures []texture.Texture
	panelCB  frame_ring.ConstantBuffer

	mu    sync.Mutex
	lines []string
}

// HUD is a text panel composited over the lit image. The text is rasterized on the CPU with
// basicfont into a per-slot texture and drawn as an alpha-blended quad in the top-left corner.
type HUD interface {
	Overlay

	// SetLines replaces the displayed text. Safe to call from any goroutine.
	SetLines(lines ...string)

	// Lines returns a copy of the displayed text.
	Lines() []string

	// Destroy releases the panel textures. The caller must have waited for the device to idle.
	Destroy()
}

var _ HUD = &hud{}

// NewHUD creates the panel textures and the overlay pipeline.
//
// Parameters:
//   - device: the device owning the panel resources
//   - ring: the frame ring the panel textures and constants are replicated across
//   - target: the format of the render target the panel is composited onto
//   - options: a variadic list of HUDBuilderOption functions
//
// Returns:
//   - HUD: the panel
//   - error: error if the pipeline or a texture cannot be created
func NewHUD(device gpu.Device, ring frame_ring.Ring, target gpu.Format, options ...HUDBuilderOption) (HUD, error) {
	h := &hud{
		device:     device,
		ring:       ring,
		width:      256,
		height:     48,
		margin:     8,
		background: color.RGBA{A: 160},
	}
	for _, opt := range options {
		opt(h)
	}

	set, err := pipeline.Build(device, pipeline.NewPipeline(pipeline.Overlay, gpu.PipelineKindRender,
		pipeline.WithVertexShader(gpu.ShaderSource{Label: "hud", Code: hudSource, EntryPoint: "vs_hud"}),
		pipeline.WithFragmentShader(gpu.ShaderSource{Label: "hud", Code: hudSource, EntryPoint: "fs_hud"}),
		pipeline.WithReference(hudProgram),
		pipeline.WithTopology(gpu.TopologyTriangleStrip),
		pipeline.WithColorFormats(target),
		pipeline.WithBlendMode(gpu.BlendAlpha),
		pipeline.WithDepthTestEnabled(false),
		pipeline.WithDepthWriteEnabled(false),
		pipeline.WithBindings(
			gpu.BindingDesc{Slot: slotPanel, Type: gpu.BindingConstantBuffer, Stages: gpu.StageVertex},
			gpu.BindingDesc{Slot: slotText, Type: gpu.BindingTexture, Stages: gpu.StageFragment},
		),
		pipeline.WithStaticSamplers(gpu.SamplerDesc{Slot: slotSampler, Filter: gpu.FilterPoint, Clamp: true}),
	))
	if err != nil {
		return nil, fmt.Errorf("hud pipeline: %w", err)
	}
	h.pipelines = set

	blank := common.TextureStagingData{Width: uint32(h.width), Height: uint32(h.height), Pixels: make([]byte, h.width*h.height*4)}
	for i := range ring.Count() {
		tex, err := texture.Create(device, fmt.Sprintf("hud %d", i), blank)
		if err != nil {
			h.Destroy()
			return nil, fmt.Errorf("hud texture: %w", err)
		}
		h.textures = append(h.textures, tex)
	}
	if h.panelCB, err = ring.NewConstantBuffer("hud panel", 16); err != nil {
		h.Destroy()
		return nil, fmt.Errorf("hud constants: %w", err)
	}
	return h, nil
}

func (h *hud) SetLines(lines ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines[:0], lines...)
}

func (h *hud) Lines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.lines...)
}

// rasterize draws the current lines over the panel background.
func (h *hud) rasterize() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, h.width, h.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(h.background), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: basicfont.Face7x13,
	}
	for i, line := range h.Lines() {
		d.Dot = fixed.P(4, basicfont.Face7x13.Ascent+2+i*lineHeight)
		d.DrawString(line)
	}
	return img
}

// PanelRect returns the panel corners in normalized device coordinates for a target of the given
// extent: x0, y0 at the top-left and x1, y1 at the bottom-right.
func PanelRect(width, height, margin, targetWidth, targetHeight int) mgl32.Vec4 {
	tw, th := float32(max(targetWidth, 1)), float32(max(targetHeight, 1))
	x0 := -1 + 2*float32(margin)/tw
	y0 := 1 - 2*float32(margin)/th
	return mgl32.Vec4{x0, y0, x0 + 2*float32(width)/tw, y0 - 2*float32(height)/th}
}

func (h *hud) Render(cmd gpu.CommandContext, slot int, target Target) error {
	if len(h.Lines()) == 0 {
		return nil
	}
	if slot < 0 || slot >= len(h.textures) {
		return fmt.Errorf("hud: slot %d out of range", slot)
	}

	img := h.rasterize()
	tex := h.textures[slot]
	if err := h.device.WriteTexture(tex.Resource.Handle, img.Pix, uint32(h.width), uint32(h.height)); err != nil {
		return fmt.Errorf("hud text upload: %w", err)
	}
	rect := make([]byte, 16)
	common.PutVec4(rect, 0, PanelRect(h.width, h.height, h.margin, target.Width, target.Height))
	if err := h.ring.WriteConstants(slot, h.panelCB, rect); err != nil {
		return fmt.Errorf("hud constants: %w", err)
	}

	cmd.BeginEvent("HUD")
	cmd.SetPipeline(h.pipelines.Get(pipeline.Overlay))
	cmd.SetConstantBuffer(slotPanel, h.panelCB.Handle(slot))
	cmd.SetShaderResource(slotText, tex.SRV)
	cmd.DrawInstanced(4, 1, 0, 0)
	cmd.EndEvent()
	return nil
}

func (h *hud) Destroy() {
	for _, tex := range h.textures {
		h.device.Descriptors().Release(tex.SRV, 0)
		if tex.Resource.Handle.Valid() {
			h.device.Destroy(tex.Resource.Handle)
		}
	}
	h.textures = nil
}

var hudProgram = software.RenderProgram{
	Vertex: func(in software.VertexInput, b software.Bindings) software.VertexOutput {
		rect := common.Vec4At(b.Constants(slotPanel), 0)
		u, v := float32(in.VertexID&1), float32(in.VertexID>>1)
		var out software.VertexOutput
		out.Position = mgl32.Vec4{rect[0] + (rect[2]-rect[0])*u, rect[1] + (rect[3]-rect[1])*v, 0, 1}
		out.Varyings[0] = mgl32.Vec4{u, v, 0, 0}
		return out
	},
	Fragment: func(in software.FragmentInput, b software.Bindings) software.FragmentOutput {
		uv := in.Varyings[0]
		var out software.FragmentOutput
		out.Colors[0] = b.Texture(slotText).Sample(uv[0], uv[1])
		return out
	},
}
