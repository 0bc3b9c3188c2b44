package profiler

import "time"

// ProfilerOption is a functional option used to configure a Profiler during construction.
type ProfilerOption func(*Profiler)

// WithInterval sets how often stats are reported.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerOption: a function that sets the interval
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithReport sets a callback receiving the stats of every interval, typically feeding the HUD.
func WithReport(fn func(Stats)) ProfilerOption {
	return func(p *Profiler) {
		p.onReport = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerOption {
	return func(p *Profiler) {
		p.now = now
	}
}
