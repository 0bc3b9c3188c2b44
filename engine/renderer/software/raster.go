package software

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// trianglesPerBatch bounds how many set-up triangles are held before rasterizing them.
const trianglesPerBatch = 4096

// minClipW rejects triangles crossing the camera plane. There is no near-plane clipping.
const minClipW = 1e-6

type drawCall struct {
	indexed       bool
	count         uint32
	instances     uint32
	first         uint32
	baseVertex    int32
	firstInstance uint32
}

// setupTri is a triangle in pixel space with y pointing down and counter-clockwise pixel winding,
// so every edge function is positive inside.
type setupTri struct {
	x, y, z [3]float32
	invW    [3]float32
	vary    [3][MaxVaryings]mgl32.Vec4
	area    float32
	front   bool

	minX, maxX, minY, maxY int
}

type rasterTargets struct {
	colors []*texture
	depth  *texture
	width  int
	height int
}

func (ex *executor) targets() rasterTargets {
	var rt rasterTargets
	for _, d := range ex.rtvs {
		if t, ok := ex.dev.textures[d.Resource]; ok {
			rt.colors = append(rt.colors, t)
		}
	}
	if ex.dsv != nil {
		rt.depth = ex.dev.textures[ex.dsv.Resource]
	}
	switch {
	case len(rt.colors) > 0:
		rt.width, rt.height = rt.colors[0].width(), rt.colors[0].height()
	case rt.depth != nil:
		rt.width, rt.height = rt.depth.width(), rt.depth.height()
	}
	return rt
}

func (ex *executor) draw(call drawCall) {
	p := ex.render
	if p == nil || call.count == 0 || call.instances == 0 {
		return
	}
	rt := ex.targets()
	if rt.width == 0 {
		return
	}
	vp := ex.viewport
	if !ex.viewportSet {
		vp = gpu.Viewport{Width: float32(rt.width), Height: float32(rt.height), MaxDepth: 1}
	}
	if vp.MinDepth == 0 && vp.MaxDepth == 0 {
		vp.MaxDepth = 1
	}
	b := ex.bindings()
	streams := ex.streams()

	batch := make([]setupTri, 0, trianglesPerBatch)
	flush := func() {
		ex.rasterize(batch, rt, b)
		batch = batch[:0]
	}

	verts := make([]VertexOutput, call.count)
	for inst := call.firstInstance; inst < call.firstInstance+call.instances; inst++ {
		for i := range call.count {
			id, ok := ex.vertexID(call, i)
			if !ok {
				verts[i] = VertexOutput{}
				continue
			}
			in := VertexInput{VertexID: id, InstanceID: inst}
			streams.fetch(&in)
			verts[i] = p.program.Vertex(in, b)
		}
		assemble(p.desc.Topology, verts, func(v0, v1, v2 *VertexOutput) {
			if t, ok := setup(v0, v1, v2, vp, p.desc.CullMode, rt); ok {
				batch = append(batch, t)
				if len(batch) == trianglesPerBatch {
					flush()
				}
			}
		})
	}
	if len(batch) > 0 {
		flush()
	}
}

func (ex *executor) vertexID(call drawCall, i uint32) (uint32, bool) {
	if !call.indexed {
		return call.first + i, true
	}
	if ex.ib == nil {
		return 0, false
	}
	buf, ok := ex.dev.buffers[ex.ib.Buffer]
	if !ok {
		return 0, false
	}
	size := ex.ib.Format.Size()
	off := ex.ib.Offset + uint64(call.first+i)*size
	if off+size > uint64(len(buf.data)) {
		return 0, false
	}
	var idx uint32
	if size == 2 {
		idx = uint32(binary.LittleEndian.Uint16(buf.data[off:]))
	} else {
		idx = binary.LittleEndian.Uint32(buf.data[off:])
	}
	return uint32(int64(idx) + int64(call.baseVertex)), true
}

type vertexStream struct {
	data   []byte
	layout gpu.VertexBufferLayout
	offset uint64
	stride uint64
}

type vertexStreams []vertexStream

func (ex *executor) streams() vertexStreams {
	out := make(vertexStreams, 0, len(ex.render.desc.VertexLayout))
	for i, layout := range ex.render.desc.VertexLayout {
		view, ok := ex.vbs[uint32(i)]
		if !ok {
			continue
		}
		buf, ok := ex.dev.buffers[view.Buffer]
		if !ok {
			continue
		}
		stride := layout.Stride
		if view.Stride != 0 {
			stride = view.Stride
		}
		out = append(out, vertexStream{data: buf.data, layout: layout, offset: view.Offset, stride: stride})
	}
	return out
}

func (s vertexStreams) fetch(in *VertexInput) {
	for _, st := range s {
		elem := uint64(in.VertexID)
		if st.layout.PerInstance {
			elem = uint64(in.InstanceID)
		}
		base := st.offset + elem*st.stride
		for _, a := range st.layout.Attributes {
			if a.Location >= MaxAttributes {
				continue
			}
			off := base + a.Offset
			if off+a.Format.Size() > uint64(len(st.data)) {
				continue
			}
			var v mgl32.Vec4
			v[3] = 1
			for k := range a.Format.Components() {
				word := binary.LittleEndian.Uint32(st.data[off+uint64(k)*4:])
				if a.Format == gpu.VertexFormatUint32x4 {
					v[k] = float32(word)
				} else {
					v[k] = math.Float32frombits(word)
				}
			}
			in.Attributes[a.Location] = v
		}
	}
}

func assemble(topo gpu.Topology, verts []VertexOutput, emit func(v0, v1, v2 *VertexOutput)) {
	switch topo {
	case gpu.TopologyTriangleStrip:
		for i := 0; i+2 < len(verts); i++ {
			if i%2 == 0 {
				emit(&verts[i], &verts[i+1], &verts[i+2])
			} else {
				emit(&verts[i+1], &verts[i], &verts[i+2])
			}
		}
	default:
		for i := 0; i+2 < len(verts); i += 3 {
			emit(&verts[i], &verts[i+1], &verts[i+2])
		}
	}
}

func setup(v0, v1, v2 *VertexOutput, vp gpu.Viewport, cull gpu.CullMode, rt rasterTargets) (setupTri, bool) {
	var t setupTri
	src := [3]*VertexOutput{v0, v1, v2}
	var ndc [3]mgl32.Vec3
	for i, v := range src {
		w := v.Position[3]
		if w < minClipW {
			return t, false
		}
		ndc[i] = mgl32.Vec3{v.Position[0] / w, v.Position[1] / w, v.Position[2] / w}
		t.x[i] = vp.X + (ndc[i][0]+1)*0.5*vp.Width
		t.y[i] = vp.Y + (1-ndc[i][1])*0.5*vp.Height
		t.z[i] = vp.MinDepth + ndc[i][2]*(vp.MaxDepth-vp.MinDepth)
		t.invW[i] = 1 / w
		t.vary[i] = v.Varyings
	}

	// Counter-clockwise in y-up NDC is front facing.
	ndcArea := (ndc[1][0]-ndc[0][0])*(ndc[2][1]-ndc[0][1]) - (ndc[1][1]-ndc[0][1])*(ndc[2][0]-ndc[0][0])
	if ndcArea == 0 {
		return t, false
	}
	t.front = ndcArea > 0
	if (cull == gpu.CullBack && !t.front) || (cull == gpu.CullFront && t.front) {
		return t, false
	}

	t.area = edge(t.x[0], t.y[0], t.x[1], t.y[1], t.x[2], t.y[2])
	if t.area < 0 {
		t.x[1], t.x[2] = t.x[2], t.x[1]
		t.y[1], t.y[2] = t.y[2], t.y[1]
		t.z[1], t.z[2] = t.z[2], t.z[1]
		t.invW[1], t.invW[2] = t.invW[2], t.invW[1]
		t.vary[1], t.vary[2] = t.vary[2], t.vary[1]
		t.area = -t.area
	}

	t.minX = max(int(math32.Floor(min(t.x[0], t.x[1], t.x[2]))), 0)
	t.maxX = min(int(math32.Ceil(max(t.x[0], t.x[1], t.x[2]))), rt.width-1)
	t.minY = max(int(math32.Floor(min(t.y[0], t.y[1], t.y[2]))), 0)
	t.maxY = min(int(math32.Ceil(max(t.y[0], t.y[1], t.y[2]))), rt.height-1)
	if t.minX > t.maxX || t.minY > t.maxY {
		return t, false
	}
	return t, true
}

// edge is the signed doubled area of (a, b, p); positive when p lies left of a->b in pixel space.
func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// owns breaks ties for pixels exactly on an edge, so a shared edge is claimed by exactly one of
// the two triangles that traverse it in opposite directions.
func owns(ax, ay, bx, by float32) bool {
	dy := by - ay
	return dy > 0 || (dy == 0 && bx-ax < 0)
}

// rasterize splits the targets into row bands and shades each band on the worker pool. Within a
// band triangles are processed in submission order, so blending is deterministic.
func (ex *executor) rasterize(tris []setupTri, rt rasterTargets, b Bindings) {
	bands := ex.dev.rasterWorkers
	if ex.dev.pool == nil || bands <= 1 || rt.height < bands*4 {
		ex.rasterBand(tris, rt, b, 0, rt.height-1)
		return
	}

	rows := (rt.height + bands - 1) / bands
	var wg sync.WaitGroup
	for band := range bands {
		y0 := band * rows
		y1 := min(y0+rows, rt.height) - 1
		if y0 > y1 {
			break
		}
		wg.Add(1)
		ex.dev.pool.SubmitTask(worker.Task{
			ID: band,
			Do: func() (any, error) {
				defer wg.Done()
				ex.rasterBand(tris, rt, b, y0, y1)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (ex *executor) rasterBand(tris []setupTri, rt rasterTargets, b Bindings, y0, y1 int) {
	desc := &ex.render.desc
	frag := ex.render.program.Fragment
	for ti := range tris {
		t := &tris[ti]
		top, bottom := max(t.minY, y0), min(t.maxY, y1)
		own0 := owns(t.x[1], t.y[1], t.x[2], t.y[2])
		own1 := owns(t.x[2], t.y[2], t.x[0], t.y[0])
		own2 := owns(t.x[0], t.y[0], t.x[1], t.y[1])
		for py := top; py <= bottom; py++ {
			fy := float32(py) + 0.5
			for px := t.minX; px <= t.maxX; px++ {
				fx := float32(px) + 0.5
				w0 := edge(t.x[1], t.y[1], t.x[2], t.y[2], fx, fy)
				w1 := edge(t.x[2], t.y[2], t.x[0], t.y[0], fx, fy)
				w2 := edge(t.x[0], t.y[0], t.x[1], t.y[1], fx, fy)
				if w0 < 0 || w1 < 0 || w2 < 0 ||
					(w0 == 0 && !own0) || (w1 == 0 && !own1) || (w2 == 0 && !own2) {
					continue
				}
				b0, b1, b2 := w0/t.area, w1/t.area, w2/t.area
				z := b0*t.z[0] + b1*t.z[1] + b2*t.z[2]
				if z < 0 || z > 1 {
					continue
				}
				if rt.depth != nil && (desc.DepthTest || desc.DepthWrite) {
					if desc.DepthTest && !depthPasses(desc.DepthCompare, z, rt.depth.load(px, py)[0]) {
						continue
					}
				}

				if frag != nil {
					in := FragmentInput{Position: mgl32.Vec4{fx, fy, z, 1}, FrontFacing: t.front}
					p0, p1, p2 := b0*t.invW[0], b1*t.invW[1], b2*t.invW[2]
					norm := 1 / (p0 + p1 + p2)
					for k := range MaxVaryings {
						in.Varyings[k] = t.vary[0][k].Mul(p0 * norm).Add(t.vary[1][k].Mul(p1 * norm)).Add(t.vary[2][k].Mul(p2 * norm))
					}
					out := frag(in, b)
					if out.Discard {
						continue
					}
					for i, target := range rt.colors {
						target.store(px, py, blend(desc.Blend, out.Colors[i], target.load(px, py)))
					}
				}
				if rt.depth != nil && desc.DepthWrite {
					rt.depth.store(px, py, [4]float32{z, 0, 0, 0})
				}
			}
		}
	}
}

func depthPasses(f gpu.CompareFunc, z, stored float32) bool {
	switch f {
	case gpu.CompareLess:
		return z < stored
	case gpu.CompareLessEqual:
		return z <= stored
	case gpu.CompareEqual:
		return z == stored
	}
	return true
}

func blend(mode gpu.BlendMode, src mgl32.Vec4, dst [4]float32) [4]float32 {
	a := src[3]
	switch mode {
	case gpu.BlendAlpha:
		return [4]float32{
			src[0]*a + dst[0]*(1-a),
			src[1]*a + dst[1]*(1-a),
			src[2]*a + dst[2]*(1-a),
			a + dst[3]*(1-a),
		}
	case gpu.BlendAdditive:
		return [4]float32{src[0]*a + dst[0], src[1]*a + dst[1], src[2]*a + dst[2], a + dst[3]}
	}
	return [4]float32(src)
}
