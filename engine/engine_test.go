package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSample struct {
	frames    atomic.Int32
	ticks     atomic.Int32
	teardowns atomic.Int32
	failAt    int32
	failWith  error
	panicAt   int32

	mu      sync.Mutex
	resizes [][2]int
	// afterStop records whether a frame ran after teardown started.
	afterStop atomic.Bool
}

func (s *fakeSample) Tick(float32) { s.ticks.Add(1) }

func (s *fakeSample) RenderFrame(ctx context.Context, dt float32) error {
	if s.teardowns.Load() > 0 {
		s.afterStop.Store(true)
	}
	n := s.frames.Add(1)
	if s.panicAt > 0 && n == s.panicAt {
		panic("boom")
	}
	if s.failAt > 0 && n == s.failAt {
		return s.failWith
	}
	time.Sleep(time.Millisecond)
	return nil
}

func (s *fakeSample) Resize(ctx context.Context, w, h int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizes = append(s.resizes, [2]int{w, h})
	return nil
}

func (s *fakeSample) Teardown(ctx context.Context) error {
	s.teardowns.Add(1)
	_, ok := ctx.Deadline()
	if !ok {
		return errors.New("teardown without deadline")
	}
	return nil
}

func TestRunStopsAfterFrameBudget(t *testing.T) {
	s := &fakeSample{}
	e := NewEngine(s, WithMaxFrames(5), WithTickRate(1000))
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, int32(5), s.frames.Load())
	assert.Equal(t, int32(1), s.teardowns.Load())
	assert.False(t, s.afterStop.Load())
}

func TestFatalFrameErrorStopsAndTearsDown(t *testing.T) {
	s := &fakeSample{failAt: 3, failWith: gpu.ErrFenceTimeout}
	e := NewEngine(s)
	err := e.Run(context.Background())
	assert.ErrorIs(t, err, gpu.ErrFenceTimeout)
	assert.ErrorContains(t, err, "frame 2")
	assert.Equal(t, int32(3), s.frames.Load())
	assert.Equal(t, int32(1), s.teardowns.Load())
}

func TestRenderPanicIsFatal(t *testing.T) {
	s := &fakeSample{panicAt: 2}
	err := NewEngine(s).Run(context.Background())
	assert.ErrorIs(t, err, ErrRenderPanic)
	assert.Equal(t, int32(1), s.teardowns.Load())
}

func TestContextCancelIsCleanStop(t *testing.T) {
	s := &fakeSample{}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, NewEngine(s).Run(ctx))
	assert.Positive(t, s.frames.Load())
	assert.Equal(t, int32(1), s.teardowns.Load())
}

func TestResizeKeepsLatestRequest(t *testing.T) {
	s := &fakeSample{}
	e := NewEngine(s, WithMaxFrames(3))
	e.RequestResize(640, 480)
	e.RequestResize(800, 600)
	e.RequestResize(0, 0)
	e.RequestResize(1024, 768)
	require.NoError(t, e.Run(context.Background()))

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, [][2]int{{1024, 768}}, s.resizes)
}

func TestQuitIsIdempotent(t *testing.T) {
	s := &fakeSample{}
	e := NewEngine(s)
	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Quit()
		e.Quit()
	}()
	require.NoError(t, e.Run(context.Background()))
	assert.Equal(t, int32(1), s.teardowns.Load())
}
