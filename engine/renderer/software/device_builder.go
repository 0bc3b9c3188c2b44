package software

import "runtime"

// DeviceBuilderOption configures a software Device.
type DeviceBuilderOption func(*deviceImpl)

// WithLabel sets the device label.
func WithLabel(label string) DeviceBuilderOption {
	return func(d *deviceImpl) {
		d.label = label
	}
}

// WithManualRetire holds every submission on the queue until Retire releases it. Tests use it to
// keep frames in flight deterministically.
func WithManualRetire() DeviceBuilderOption {
	return func(d *deviceImpl) {
		d.manualRetire = true
	}
}

// WithRasterWorkers sets how many row bands a draw is split into. Values below 1 rasterize on the
// queue goroutine.
func WithRasterWorkers(n int) DeviceBuilderOption {
	return func(d *deviceImpl) {
		d.rasterWorkers = n
	}
}

// WithHeapSizes sets the descriptor heap capacities.
func WithHeapSizes(shaderVisible, renderTargets, depthStencils uint32) DeviceBuilderOption {
	return func(d *deviceImpl) {
		d.heapSizes = [3]uint32{shaderVisible, renderTargets, depthStencils}
	}
}

func defaultRasterWorkers() int {
	return max(1, runtime.NumCPU()/2)
}
