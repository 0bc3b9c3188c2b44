package particle

import (
	"context"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/Carmen-Shannon/oxy-samples/engine/overlay"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/frame_ring"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/software"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dev    software.Device
	ring   frame_ring.Ring
	sys    System
	target overlay.Target
	rt     gpu.Resource
}

func newFixture(t *testing.T, opts ...SystemBuilderOption) fixture {
	t.Helper()
	d := software.NewDevice(software.WithRasterWorkers(2))
	t.Cleanup(func() { _ = d.Close() })

	ring, err := frame_ring.NewRing(d, frame_ring.WithSlotCount(2))
	require.NoError(t, err)
	rt, err := d.CreateTexture(gpu.TextureDesc{Label: "target", Width: 16, Height: 16, Format: gpu.FormatRGBA32Float, Usage: gpu.TextureUsageRenderTarget, InitialState: gpu.StateRenderTarget})
	require.NoError(t, err)
	rtv, err := d.CreateView(rt, gpu.ViewRenderTarget)
	require.NoError(t, err)

	sys, err := NewSystem(d, ring, gpu.FormatRGBA32Float, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.WaitIdle(ctx)
		sys.Destroy()
		ring.Destroy()
	})
	return fixture{dev: d, ring: ring, sys: sys, rt: rt, target: overlay.Target{RTV: rtv, Format: gpu.FormatRGBA32Float, Width: 16, Height: 16}}
}

// frame records one submission through the ring and waits for it to retire.
func (f fixture) frame(t *testing.T, record func(cmd gpu.CommandContext, slot int)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slot := f.ring.AcquireSlot()
	require.NoError(t, f.ring.WaitForSlot(ctx, slot))
	require.NoError(t, f.ring.Reset(slot))
	cmd := f.ring.Context(slot)
	record(cmd, slot)
	_, err := f.ring.Submit(slot)
	require.NoError(t, err)
	require.NoError(t, f.dev.WaitIdle(ctx))
}

func (f fixture) aliveCount(t *testing.T) uint32 {
	t.Helper()
	raw, err := f.dev.ReadBuffer(f.sys.IndexList().Handle, f.sys.LiveCounterOffset(), 4)
	require.NoError(t, err)
	return common.Uint32At(raw, 0)
}

func (f fixture) elements(t *testing.T) []byte {
	t.Helper()
	raw, err := f.dev.ReadBuffer(f.sys.Elements().Handle, 0, uint64(f.sys.Capacity())*ElementSize)
	require.NoError(t, err)
	return raw
}

// aliveIndices returns the first n entries of the index list.
func (f fixture) aliveIndices(t *testing.T, n uint32) []uint32 {
	t.Helper()
	raw, err := f.dev.ReadBuffer(f.sys.IndexList().Handle, 0, uint64(n)*4)
	require.NoError(t, err)
	out := make([]uint32, n)
	for i := range out {
		out[i] = common.Uint32At(raw, i*4)
	}
	return out
}

func TestIndexListLayout(t *testing.T) {
	tests := []struct {
		capacity uint32
		counter  uint64
		size     uint64
	}{
		{capacity: 100000, counter: 401408, size: 401424},
		{capacity: 10, counter: 4096, size: 4112},
		{capacity: 1024, counter: 4096, size: 4112},
		{capacity: 1025, counter: 8192, size: 8208},
	}
	for _, tt := range tests {
		l := IndexListLayout{Capacity: tt.capacity}
		assert.Equal(t, tt.counter, l.CounterOffset(), "capacity %d", tt.capacity)
		assert.Equal(t, tt.size, l.Size(), "capacity %d", tt.capacity)
	}
}

func TestStateMachine(t *testing.T) {
	f := newFixture(t, WithCapacity(64))
	assert.Equal(t, Uninitialized, f.sys.State())

	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		require.NoError(t, f.sys.WriteConstants(slot))
		assert.ErrorIs(t, f.sys.RecordEmit(cmd, slot), ErrNotInitialized)
		assert.ErrorIs(t, f.sys.RecordUpdate(cmd, slot), ErrNotInitialized)
		f.sys.RecordInit(cmd, slot)
		assert.Equal(t, Initializing, f.sys.State())
		require.NoError(t, f.sys.RecordEmit(cmd, slot))
		assert.Equal(t, Steady, f.sys.State())
	})

	f.sys.Reset()
	assert.Equal(t, Uninitialized, f.sys.State())
}

func TestInitRecordedOnlyOnFirstFrame(t *testing.T) {
	f := newFixture(t, WithCapacity(100))
	for range 3 {
		f.frame(t, func(cmd gpu.CommandContext, slot int) {
			require.NoError(t, f.sys.Record(cmd, slot, f.target))
		})
	}

	var inits, emits, updates [][3]uint32
	for _, e := range f.dev.Trace() {
		if e.Op != software.TraceDispatch {
			continue
		}
		switch e.Pipeline {
		case "ParticleInit":
			inits = append(inits, e.Counts)
		case "ParticleEmit":
			emits = append(emits, e.Counts)
		case "ParticleUpdate":
			updates = append(updates, e.Counts)
		}
	}
	assert.Equal(t, [][3]uint32{{100/32 + 1, 1, 1}}, inits)
	assert.Equal(t, [][3]uint32{{2, 1, 1}, {2, 1, 1}, {2, 1, 1}}, emits)
	assert.Len(t, updates, 3)
	assert.Equal(t, Steady, f.sys.State())
}

func TestUAVBarriersSeparateStages(t *testing.T) {
	f := newFixture(t, WithCapacity(64))
	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		require.NoError(t, f.sys.Record(cmd, slot, f.target))
	})

	want := gpu.UAVBarriers(f.sys.Elements().Handle, f.sys.IndexList().Handle)
	var ops []string
	for _, e := range f.dev.Trace() {
		switch e.Op {
		case software.TraceDispatch:
			ops = append(ops, "dispatch "+e.Pipeline)
		case software.TraceBarrier:
			assert.Equal(t, want, e.Barriers)
			ops = append(ops, "uav")
		case software.TraceDraw:
			ops = append(ops, "draw "+e.Pipeline)
			assert.Equal(t, [3]uint32{6, 64, 0}, e.Counts)
		}
	}
	assert.Equal(t, []string{
		"dispatch ParticleInit", "uav",
		"dispatch ParticleEmit", "uav",
		"dispatch ParticleUpdate", "uav",
		"draw ParticleDraw",
	}, ops)
}

func TestEmitThenUpdate(t *testing.T) {
	const k = 10
	const dt = float32(0.25)
	f := newFixture(t, WithCapacity(64), WithEmitCount(k))
	f.sys.Scene().FrameDeltaTime = dt

	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		require.NoError(t, f.sys.WriteConstants(slot))
		f.sys.RecordInit(cmd, slot)
		require.NoError(t, f.sys.RecordEmit(cmd, slot))
	})
	require.Equal(t, uint32(k), f.aliveCount(t))

	before := f.elements(t)
	for _, idx := range f.aliveIndices(t, k) {
		e := DecodeElement(before, idx)
		require.True(t, e.Active, "index %d", idx)
		assert.Zero(t, e.Elapsed)
		assert.GreaterOrEqual(t, e.LifeTime, float32(lifeMin))
		assert.Less(t, e.LifeTime, float32(lifeMin+lifeSpan))
		assert.Less(t, e.ColorIndex, uint32(ColorCount))
	}

	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		require.NoError(t, f.sys.WriteConstants(slot))
		require.NoError(t, f.sys.RecordUpdate(cmd, slot))
	})
	assert.Equal(t, uint32(k), f.aliveCount(t))

	after := f.elements(t)
	for _, idx := range f.aliveIndices(t, k) {
		e := DecodeElement(after, idx)
		assert.True(t, e.Active)
		assert.Equal(t, DecodeElement(before, idx).Elapsed+dt, e.Elapsed, "index %d", idx)
	}
}

func TestEmitSaturatesAtCapacity(t *testing.T) {
	const capacity = 40
	f := newFixture(t, WithCapacity(capacity))
	for frame := range 6 {
		f.frame(t, func(cmd gpu.CommandContext, slot int) {
			require.NoError(t, f.sys.Record(cmd, slot, f.target))
		})
		n := f.aliveCount(t)
		assert.LessOrEqual(t, n, uint32(capacity), "frame %d", frame)
		assert.Equal(t, uint32(capacity), n, "frame %d", frame)
	}

	elements := f.elements(t)
	seen := map[uint32]bool{}
	for _, idx := range f.aliveIndices(t, capacity) {
		require.Less(t, idx, uint32(capacity))
		assert.False(t, seen[idx], "index %d listed twice", idx)
		seen[idx] = true
		assert.True(t, DecodeElement(elements, idx).Active)
	}
}

func TestExpiredParticlesLeaveTheList(t *testing.T) {
	f := newFixture(t, WithCapacity(32), WithEmitCount(8))
	f.sys.Scene().FrameDeltaTime = 10

	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		require.NoError(t, f.sys.Record(cmd, slot, f.target))
	})
	assert.Zero(t, f.aliveCount(t))
	elements := f.elements(t)
	for i := range uint32(32) {
		assert.False(t, DecodeElement(elements, i).Active)
	}
}

func TestCollisionSphereKeepsParticlesOutside(t *testing.T) {
	f := newFixture(t, WithCapacity(32), WithForceCenter(mgl32.Vec4{0, 1, 0, 3}))
	f.sys.Scene().FrameDeltaTime = 0.05
	for range 4 {
		f.frame(t, func(cmd gpu.CommandContext, slot int) {
			require.NoError(t, f.sys.Record(cmd, slot, f.target))
		})
	}
	elements := f.elements(t)
	for i := range uint32(32) {
		e := DecodeElement(elements, i)
		if !e.Active {
			continue
		}
		assert.GreaterOrEqual(t, e.Position.Vec3().Sub(mgl32.Vec3{0, 1, 0}).Len(), float32(3)-1e-4)
		assert.GreaterOrEqual(t, e.Position[1], float32(0))
	}
}

func lookAtOrigin(s *SceneParams) {
	eye := mgl32.Vec3{0, 0, 20}
	s.SetCamera(mgl32.LookAtV(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}), common.PerspectiveZO(mgl32.DegToRad(60), 1, 1, 100), eye)
	s.ForceCenter = mgl32.Vec4{}
}

func coveredPixels(t *testing.T, f fixture) int {
	t.Helper()
	out, err := f.dev.ReadTexture(f.rt.Handle)
	require.NoError(t, err)
	n := 0
	for y := range 16 {
		for x := range 16 {
			if out.At(x, y)[3] > 0 {
				n++
			}
		}
	}
	return n
}

func TestBillboardsCoverTheTarget(t *testing.T) {
	f := newFixture(t, WithCapacity(8))
	lookAtOrigin(f.sys.Scene())
	f.sys.Scene().FrameDeltaTime = 1.0 / 60

	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		cmd.ClearRenderTarget(f.target.RTV, [4]float32{})
		require.NoError(t, f.sys.Record(cmd, slot, f.target))
	})
	assert.Greater(t, coveredPixels(t, f), 0)
}

func TestIndirectDrawUsesAliveCount(t *testing.T) {
	f := newFixture(t, WithCapacity(16), WithEmitCount(5), WithDrawMode(DrawIndirect))
	lookAtOrigin(f.sys.Scene())
	f.sys.Scene().FrameDeltaTime = 1.0 / 60
	impl := f.sys.(*system)

	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		cmd.ClearRenderTarget(f.target.RTV, [4]float32{})
		require.NoError(t, f.sys.Record(cmd, slot, f.target))
	})
	args, err := f.dev.ReadBuffer(impl.drawArgs.Handle, 0, drawArgsSize)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), common.Uint32At(args, 0))
	assert.Equal(t, uint32(5), common.Uint32At(args, 4))
	assert.Greater(t, coveredPixels(t, f), 0)
	assert.Equal(t, gpu.StateIndirectArgument, impl.drawArgs.State)
	assert.Equal(t, gpu.StateUnorderedAccess, f.sys.IndexList().State)

	f.sys.Scene().FrameDeltaTime = 10
	f.frame(t, func(cmd gpu.CommandContext, slot int) {
		cmd.ClearRenderTarget(f.target.RTV, [4]float32{})
		require.NoError(t, f.sys.Record(cmd, slot, f.target))
	})
	args, err = f.dev.ReadBuffer(impl.drawArgs.Handle, 0, drawArgsSize)
	require.NoError(t, err)
	assert.Zero(t, common.Uint32At(args, 4))
	assert.Zero(t, coveredPixels(t, f))
}

func TestDrawModeParsing(t *testing.T) {
	m, err := ParseDrawMode("indirect")
	require.NoError(t, err)
	assert.Equal(t, DrawIndirect, m)
	assert.Equal(t, "fixed", DrawFixed.String())
	_, err = ParseDrawMode("counted")
	assert.Error(t, err)
}

func TestRandomStaysInUnitRange(t *testing.T) {
	for i := range uint32(2000) {
		r := random(i, i*7, i%4)
		require.GreaterOrEqual(t, r, float32(0))
		require.Less(t, r, float32(1))
	}
}
