//go:build !windows

package webgpu

import "github.com/born-ml/gpuops/internal/gpu"

// Open reports gpu.ErrUnavailable: the go-webgpu bindings are only wired on
// windows.
func Open(Options) (gpu.Device, error) {
	return nil, gpu.ErrUnavailable
}

// IsAvailable always reports false on this platform.
func IsAvailable() bool {
	return false
}
