package streamout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/model"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const size = 16

type fixture struct {
	dev    software.Device
	ring   frame_ring.Ring
	mesh   model.MeshData
	skel   *model.Skeleton
	so     Capture
	target overlay.Target
	rt     gpu.Resource
}

// rig is a box at the origin and a second box parented to node 1.
func rig() model.MeshData {
	m := model.MeshData{Name: "rig", Nodes: []model.Node{
		{Name: "root", Parent: -1, Local: model.IdentityTransform()},
		{Name: "arm", Parent: 0, Local: model.IdentityTransform()},
	}}
	model.Append(&m, model.Box("base", mgl32.Vec3{2, 2, 2}), 0, -1)
	model.Append(&m, model.Box("arm", mgl32.Vec3{1, 1, 1}), 0, 1)
	return m
}

func newFixture(t *testing.T, opts ...CaptureBuilderOption) fixture {
	t.Helper()
	d := software.NewDevice(software.WithRasterWorkers(2))
	t.Cleanup(func() { _ = d.Close() })

	ring, err := frame_ring.NewRing(d, frame_ring.WithSlotCount(2))
	require.NoError(t, err)
	rt, err := d.CreateTexture(gpu.TextureDesc{Label: "target", Width: size, Height: size, Format: gpu.FormatRGBA32Float, Usage: gpu.TextureUsageRenderTarget, InitialState: gpu.StateRenderTarget})
	require.NoError(t, err)
	rtv, err := d.CreateView(rt, gpu.ViewRenderTarget)
	require.NoError(t, err)

	mesh := rig()
	skel, err := model.NewSkeleton(mesh.Nodes)
	require.NoError(t, err)
	c, err := NewCapture(d, ring, &mesh, gpu.FormatRGBA32Float, size, size, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.WaitIdle(ctx)
		c.Destroy()
		ring.Destroy()
	})

	eye := mgl32.Vec3{0, 0, 20}
	c.Scene().SetCamera(mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}), common.PerspectiveZO(mgl32.DegToRad(60), 1, 1, 100), eye)
	return fixture{dev: d, ring: ring, mesh: mesh, skel: skel, so: c, rt: rt, target: overlay.Target{RTV: rtv, Format: gpu.FormatRGBA32Float, Width: size, Height: size}}
}

// frame records one submission through the ring and waits for it to retire.
func (f fixture) frame(t *testing.T, record func(cmd gpu.CommandContext, slot int)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slot := f.ring.AcquireSlot()
	require.NoError(t, f.ring.WaitForSlot(ctx, slot))
	require.NoError(t, f.ring.Reset(slot))
	record(f.ring.Context(slot), slot)
	_, err := f.ring.Submit(slot)
	require.NoError(t, err)
	require.NoError(t, f.dev.WaitIdle(ctx))
}

func (f fixture) render(t *testing.T) {
	t.Helper()
	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		require.NoError(t, f.so.Render(cmd, slot, f.target))
	})
}

func (f fixture) captured(t *testing.T) []byte {
	t.Helper()
	raw, err := f.dev.ReadBuffer(f.so.Output().Handle, 0, uint64(f.so.IndexCount())*VertexStride)
	require.NoError(t, err)
	return raw
}

func TestIndexRecordsApplyBatchOffsets(t *testing.T) {
	mesh := rig()
	records := IndexRecords(&mesh)
	require.Len(t, records, len(mesh.Indices)*IndexRecordSize)

	for bi, b := range mesh.Batches {
		for i := b.IndexOffset; i < b.IndexOffset+b.IndexCount; i++ {
			o := int(i) * IndexRecordSize
			assert.Equal(t, mesh.Indices[i]+uint32(b.VertexOffset), common.Uint32At(records, o), "batch %d index %d", bi, i)
			assert.Equal(t, uint32(b.Node+1), common.Uint32At(records, o+4), "batch %d index %d", bi, i)
		}
	}
}

func TestSourceVerticesDefaultNormal(t *testing.T) {
	mesh := model.MeshData{Name: "bare", Positions: []mgl32.Vec3{{1, 2, 3}}}
	buf := SourceVertices(&mesh)
	require.Len(t, buf, SourceVertexSize)
	assert.Equal(t, mgl32.Vec4{1, 2, 3, 1}, common.Vec4At(buf, 0))
	assert.Equal(t, mgl32.Vec4{0, 1, 0, 0}, common.Vec4At(buf, 16))
}

func TestNewCaptureRejectsOversizedHierarchy(t *testing.T) {
	d := software.NewDevice()
	t.Cleanup(func() { _ = d.Close() })
	ring, err := frame_ring.NewRing(d)
	require.NoError(t, err)
	t.Cleanup(ring.Destroy)

	mesh := rig()
	for len(mesh.Nodes) < MaxNodes {
		mesh.Nodes = append(mesh.Nodes, model.Node{Parent: 0, Local: model.IdentityTransform()})
	}
	_, err = NewCapture(d, ring, &mesh, gpu.FormatRGBA32Float, size, size)
	assert.ErrorContains(t, err, "palette holds")
}

func TestCaptureTransformsThroughPalette(t *testing.T) {
	f := newFixture(t)
	arm := f.skel.Find("arm")
	local := model.IdentityTransform()
	local.Translation = mgl32.Vec3{5, 0, 0}
	f.skel.SetLocal(arm, local)
	f.skel.Update()
	f.so.SetPose(f.skel)
	f.render(t)

	out := f.captured(t)
	for bi, b := range f.mesh.Batches {
		world := f.skel.World(b.Node)
		for i := b.IndexOffset; i < b.IndexOffset+b.IndexCount; i++ {
			src := int(int64(f.mesh.Indices[i]) + int64(b.VertexOffset))
			want := world.Mul4x1(f.mesh.Positions[src].Vec4(1)).Vec3()
			v := DecodeVertex(out, i)
			assert.True(t, want.ApproxEqual(v.Position), "batch %d index %d: %v != %v", bi, i, want, v.Position)
			assert.InDelta(t, 1, v.Normal.Len(), 1e-5)
			assert.Equal(t, f.mesh.UVs[src], v.UV)
		}
	}

	filled, err := f.dev.ReadBuffer(f.so.Filled().Handle, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, f.so.IndexCount()*VertexStride, common.Uint32At(filled, 0))
}

func TestOutputStateAroundDraw(t *testing.T) {
	f := newFixture(t)
	f.dev.ResetTrace()
	f.render(t)
	out := f.so.Output().Handle

	states := map[string]gpu.ResourceState{}
	for _, e := range f.dev.Events() {
		states[e.Name] = e.States[out]
	}
	assert.Equal(t, gpu.StateStreamOut, states[EventCapture])
	assert.Equal(t, gpu.StateVertexOrConstantBuffer, states[EventDraw])
	assert.Equal(t, gpu.StateStreamOut, f.dev.Tracker().Snapshot()[out])
	assert.Equal(t, gpu.StateStreamOut, f.so.Output().State)

	var ops []string
	var draws [][3]uint32
	for _, e := range f.dev.Trace() {
		switch e.Op {
		case software.TraceDispatch:
			ops = append(ops, "dispatch "+e.Pipeline)
			assert.Equal(t, [3]uint32{f.so.IndexCount()/WorkgroupSize + 1, 1, 1}, e.Counts)
		case software.TraceBarrier:
			require.Len(t, e.Barriers, 1)
			ops = append(ops, e.Barriers[0].Before.String()+"->"+e.Barriers[0].After.String())
		case software.TraceDraw:
			draws = append(draws, e.Counts)
		}
	}
	assert.Equal(t, []string{
		"dispatch StreamOutCapture",
		"StreamOut->VertexOrConstantBuffer",
		"VertexOrConstantBuffer->StreamOut",
	}, ops)
	require.Len(t, draws, len(f.mesh.Batches))
	for i, b := range f.mesh.Batches {
		assert.Equal(t, [3]uint32{b.IndexCount, 1, 0}, draws[i])
	}
}

func TestCaptureRequiresStreamOutState(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slot := f.ring.AcquireSlot()
	require.NoError(t, f.ring.WaitForSlot(ctx, slot))
	require.NoError(t, f.ring.Reset(slot))
	require.NoError(t, f.so.WriteConstants(slot))

	cmd := f.ring.Context(slot)
	_, toVertex, _ := f.so.Output().Transition(gpu.StateVertexOrConstantBuffer)
	cmd.ResourceBarrier(toVertex)
	f.so.RecordCapture(cmd, slot)

	_, err := f.ring.Submit(slot)
	var se *gpu.StateError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, "streamout.vertices", se.Label)
	assert.Equal(t, gpu.StateVertexOrConstantBuffer, se.Actual)
}

func TestRecordDrawRejectsMismatchedTarget(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.so.Resize(8, 8))
	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		require.NoError(t, f.so.WriteConstants(slot))
		f.so.RecordCapture(cmd, slot)
		assert.ErrorIs(t, f.so.RecordDraw(cmd, slot, f.target), ErrTargetSize)
	})
	assert.Equal(t, gpu.StateStreamOut, f.so.Output().State)
	assert.Error(t, f.so.Resize(0, 8))
}

func TestCapturedStreamCoversTarget(t *testing.T) {
	f := newFixture(t, WithAlbedo(mgl32.Vec3{1, 0.5, 0.25}, 0.5))
	f.so.SetPose(f.skel)
	f.render(t)

	out, err := f.dev.ReadTexture(f.rt.Handle)
	require.NoError(t, err)
	center := out.At(size/2, size/2)
	assert.Equal(t, float32(1), center[3])
	assert.Greater(t, center[0], center[2])
	assert.Zero(t, out.At(0, 0)[3])
}
