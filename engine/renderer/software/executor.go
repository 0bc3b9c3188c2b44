package software

import (
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
)

// executor holds the binding state of one command context while the queue runs it. Every method
// runs with deviceImpl.mem held.
type executor struct {
	dev *deviceImpl

	render  *renderPipeline
	compute *computePipeline

	rtvs        []gpu.Descriptor
	dsv         *gpu.Descriptor
	viewport    gpu.Viewport
	viewportSet bool

	cbs  map[uint32]gpu.Handle
	srvs map[uint32]gpu.Handle
	uavs map[uint32]gpu.Handle
	sos  map[uint32]gpu.Handle
	vbs  map[uint32]gpu.VertexBufferView
	ib   *gpu.IndexBufferView
}

func newExecutor(d *deviceImpl) *executor {
	ex := &executor{dev: d}
	ex.clearBindings()
	return ex
}

func (ex *executor) clearBindings() {
	ex.cbs = make(map[uint32]gpu.Handle)
	ex.srvs = make(map[uint32]gpu.Handle)
	ex.uavs = make(map[uint32]gpu.Handle)
	ex.sos = make(map[uint32]gpu.Handle)
	ex.vbs = make(map[uint32]gpu.VertexBufferView)
	ex.ib = nil
}

func (ex *executor) setPipeline(p gpu.Pipeline) {
	ex.render, ex.compute = nil, nil
	switch pp := p.(type) {
	case *renderPipeline:
		ex.render = pp
	case *computePipeline:
		ex.compute = pp
	}
	ex.clearBindings()
}

func (ex *executor) clearColor(h gpu.Handle, c [4]float32) {
	if t, ok := ex.dev.textures[h]; ok {
		t.fill(c)
	}
}

func (ex *executor) copyBuffer(dst gpu.Handle, dstOffset uint64, src gpu.Handle, srcOffset uint64, size uint64) {
	d, ok1 := ex.dev.buffers[dst]
	s, ok2 := ex.dev.buffers[src]
	if !ok1 || !ok2 || dstOffset+size > uint64(len(d.data)) || srcOffset+size > uint64(len(s.data)) {
		common.Logger().Warn("copy buffer out of range", "size", size)
		return
	}
	copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
}

func (ex *executor) dispatch(x, y, z uint32) {
	if ex.compute == nil {
		return
	}
	b := ex.bindings()
	ws := ex.compute.desc.WorkgroupSize
	prog := ex.compute.program
	for gz := range z {
		for gy := range y {
			for gx := range x {
				for lz := range ws[2] {
					for ly := range ws[1] {
						for lx := range ws[0] {
							prog(Invocation{
								GroupID:  [3]uint32{gx, gy, gz},
								LocalID:  [3]uint32{lx, ly, lz},
								GlobalID: [3]uint32{gx*ws[0] + lx, gy*ws[1] + ly, gz*ws[2] + lz},
							}, b)
						}
					}
				}
			}
		}
	}
}

func (ex *executor) drawIndirect(args gpu.Handle, offset uint64) {
	buf, ok := ex.dev.buffers[args]
	if !ok || offset+20 > uint64(len(buf.data)) {
		return
	}
	a := buf.data[offset:]
	ex.draw(drawCall{
		indexed:       true,
		count:         binary.LittleEndian.Uint32(a[0:]),
		instances:     binary.LittleEndian.Uint32(a[4:]),
		first:         binary.LittleEndian.Uint32(a[8:]),
		baseVertex:    int32(binary.LittleEndian.Uint32(a[12:])),
		firstInstance: binary.LittleEndian.Uint32(a[16:]),
	})
}

// bindingSet resolves bound handles to memory for reference programs.
type bindingSet struct {
	cbs  map[uint32][]byte
	bufs map[uint32][]byte
	texs map[uint32]*TextureView
}

var _ Bindings = &bindingSet{}

func (b *bindingSet) Constants(slot uint32) []byte      { return b.cbs[slot] }
func (b *bindingSet) Buffer(slot uint32) []byte         { return b.bufs[slot] }
func (b *bindingSet) Texture(slot uint32) *TextureView { return b.texs[slot] }

func (ex *executor) bindings() *bindingSet {
	b := &bindingSet{
		cbs:  make(map[uint32][]byte, len(ex.cbs)),
		bufs: make(map[uint32][]byte, len(ex.srvs)+len(ex.uavs)+len(ex.sos)),
		texs: make(map[uint32]*TextureView, len(ex.srvs)),
	}
	for slot, h := range ex.cbs {
		if buf, ok := ex.dev.buffers[h]; ok {
			b.cbs[slot] = buf.data
		}
	}
	for slot, h := range ex.srvs {
		if buf, ok := ex.dev.buffers[h]; ok {
			b.bufs[slot] = buf.data
		}
		if t, ok := ex.dev.textures[h]; ok {
			b.texs[slot] = t.view()
		}
	}
	for slot, h := range ex.uavs {
		if buf, ok := ex.dev.buffers[h]; ok {
			b.bufs[slot] = buf.data
		}
	}
	for slot, h := range ex.sos {
		if buf, ok := ex.dev.buffers[h]; ok {
			b.bufs[slot] = buf.data
		}
	}
	return b
}
