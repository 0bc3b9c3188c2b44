package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestTickReportsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var reports []Stats
	p := NewProfiler(WithInterval(time.Second), WithClock(clock.now), WithReport(func(s Stats) {
		reports = append(reports, s)
	}))

	for range 59 {
		clock.t = clock.t.Add(10 * time.Millisecond)
		assert.False(t, p.Tick())
	}
	clock.t = time.Unix(0, 0).Add(time.Second)
	require.True(t, p.Tick())

	require.Len(t, reports, 1)
	assert.InDelta(t, 60, reports[0].FPS, 1e-9)
	assert.InDelta(t, 1000.0/60, reports[0].FrameMS, 1e-3)
	assert.Equal(t, reports[0], p.Last())
	assert.Greater(t, reports[0].HeapMB, 0.0)
}

func TestStatsLines(t *testing.T) {
	s := Stats{FPS: 59.94, FrameMS: 16.683, HeapMB: 12.34, GCCount: 7}
	assert.Equal(t, []string{"59.9 fps  16.68 ms", "heap 12.3 MB  gc 7"}, s.Lines())
}

func TestStartCPUProfileDisabled(t *testing.T) {
	stop := StartCPUProfile("")
	assert.NotPanics(t, stop)
}
