package profiler

import (
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-samples/common"
	"github.com/pkg/profile"
)

// Stats is one reporting interval of frame and memory statistics.
type Stats struct {
	FPS float64
	// FrameMS is the mean frame time over the interval in milliseconds.
	FrameMS float64
	// HeapMB is the live heap size.
	HeapMB float64
	// AllocRateMB is the heap allocation churn in MB per second.
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	// SysMB is the total memory obtained from the OS.
	SysMB float64
}

// Lines formats the stats for the HUD, one short line per row.
func (s Stats) Lines() []string {
	return []string{
		fmt.Sprintf("%.1f fps  %.2f ms", s.FPS, s.FrameMS),
		fmt.Sprintf("heap %.1f MB  gc %d", s.HeapMB, s.GCCount),
	}
}

// Profiler tracks frame rate and memory statistics for performance monitoring.
// Logs stats at a configurable interval and hands them to an optional report callback.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	last     Stats
	now      func() time.Time
	onReport func(Stats)
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Parameters:
//   - opts: a variadic list of ProfilerOption functions
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(opts ...ProfilerOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Last returns the stats of the most recent interval.
func (p *Profiler) Last() Stats {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, frame time, heap usage, allocation rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were reported this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	s := Stats{
		FPS:     float64(p.frameCount) / elapsed.Seconds(),
		FrameMS: float64(elapsed.Microseconds()) / 1000 / float64(p.frameCount),
		HeapMB:  float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:   float64(p.memStats.Sys) / 1024 / 1024,
		GCCount: p.memStats.NumGC,
	}
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	s.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	if s.GCCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses.
		s.LastPauseUs = p.memStats.PauseNs[(s.GCCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if s.GCCount-startIdx > 256 {
			startIdx = s.GCCount - 256
		}
		for i := startIdx; i < s.GCCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	common.Logger().Info("profiler",
		"fps", s.FPS,
		"frame_ms", s.FrameMS,
		"heap_mb", s.HeapMB,
		"alloc_rate_mb", s.AllocRateMB,
		"gc", s.GCCount,
		"gc_last_us", s.LastPauseUs,
		"gc_max_us", s.MaxPauseUs,
		"sys_mb", s.SysMB,
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.last = s
	if p.onReport != nil {
		p.onReport(s)
	}
	return true
}

// StartCPUProfile starts a CPU profile written as cpu.pprof into the directory of path.
// An empty path disables profiling and returns a no-op stopper.
//
// Parameters:
//   - path: the profile destination; only its directory is used
//
// Returns:
//   - func(): stops the profile and flushes it
func StartCPUProfile(path string) func() {
	if path == "" {
		return func() {}
	}
	dir := filepath.Dir(path)
	common.Logger().Info("cpu profiling enabled", "dir", dir)
	stopper := profile.Start(profile.CPUProfile, profile.ProfilePath(dir), profile.Quiet, profile.NoShutdownHook)
	return stopper.Stop
}
