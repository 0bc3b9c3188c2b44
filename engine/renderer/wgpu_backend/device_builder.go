package wgpu_backend

// DeviceBuilderOption configures a WebGPU Device.
type DeviceBuilderOption func(*deviceImpl)

// WithLabel sets the device label.
func WithLabel(label string) DeviceBuilderOption {
	return func(d *deviceImpl) {
		d.label = label
	}
}

// WithForceFallbackAdapter requests the software fallback adapter, used on machines without a GPU.
func WithForceFallbackAdapter() DeviceBuilderOption {
	return func(d *deviceImpl) {
		d.forceFallback = true
	}
}

// WithStateTracking validates every barrier and resource use against a gpu.StateTracker.
// WebGPU tracks states itself, so this only catches bugs in the frame code.
func WithStateTracking() DeviceBuilderOption {
	return func(d *deviceImpl) {
		d.tracking = true
	}
}

// WithHeapSizes sets the descriptor heap capacities.
func WithHeapSizes(shaderVisible, renderTargets, depthStencils uint32) DeviceBuilderOption {
	return func(d *deviceImpl) {
		d.heapSizes = [3]uint32{shaderVisible, renderTargets, depthStencils}
	}
}

// WithBindGroupCacheSize bounds the number of bind groups kept alive between frames.
func WithBindGroupCacheSize(n int) DeviceBuilderOption {
	return func(d *deviceImpl) {
		if n > 0 {
			d.cacheSize = n
		}
	}
}
