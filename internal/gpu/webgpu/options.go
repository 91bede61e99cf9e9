// Package webgpu implements gpu.Device on WebGPU through go-webgpu, which
// binds wgpu-native without cgo.
package webgpu

// Options configure a WebGPU device.
type Options struct {
	// LowPower requests the integrated adapter instead of the discrete one.
	LowPower bool

	// MaxBatch is the number of compute passes a command buffer encodes before
	// it closes its encoder and starts another one. Closed encoders are
	// submitted in order with the rest of the command buffer. 0 means no
	// limit.
	MaxBatch int
}

// DefaultOptions returns options for a high-performance adapter without a
// batch limit.
func DefaultOptions() Options {
	return Options{}
}
