// Package gpu defines the device capabilities operators depend on: compiling
// compute pipelines, allocating storage, and enqueueing work onto a command
// buffer. Devices and command buffers are owned by the caller; operators
// borrow them for the duration of a single call.
package gpu

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrUnavailable      = errors.New("gpu: no compatible device available")
	ErrBufferTooSmall   = errors.New("gpu: buffer too small")
	ErrAlreadySubmitted = errors.New("gpu: command buffer already submitted")
	ErrDiscarded        = errors.New("gpu: command buffer discarded")
	ErrGridTooLarge     = errors.New("gpu: dispatch grid too large")
)

// WorkgroupSize is the number of invocations per workgroup used by the
// one-dimensional element-wise shaders.
const WorkgroupSize = 256

// MaxWorkgroupsPerDimension is the WebGPU default limit on each dimension of
// a dispatch grid.
const MaxWorkgroupsPerDimension = 65535

// BufferUsage describes how a device buffer will be used.
type BufferUsage int

// Buffer usages.
const (
	// UsageStorage is a read/write storage buffer bound to compute shaders.
	UsageStorage BufferUsage = iota
	// UsageReadback is a buffer the host maps after submission to read results.
	UsageReadback
)

// String returns a human-readable name for the usage.
func (u BufferUsage) String() string {
	switch u {
	case UsageStorage:
		return "storage"
	case UsageReadback:
		return "readback"
	default:
		return fmt.Sprintf("usage(%d)", int(u))
	}
}

// Buffer is device-resident storage.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() BufferUsage
}

// Pipeline is a compiled compute shader.
type Pipeline interface {
	Name() string
}

// Workgroups is the dispatch grid of a compute pass.
type Workgroups struct {
	X, Y, Z uint32
}

// Linear returns the grid covering n elements with WorkgroupSize invocations each.
func Linear(n int) Workgroups {
	//nolint:gosec // G115: n is an element count and non-negative.
	return Workgroups{X: uint32((n + WorkgroupSize - 1) / WorkgroupSize), Y: 1, Z: 1}
}

// Validate reports ErrGridTooLarge when any dimension exceeds
// MaxWorkgroupsPerDimension.
func (g Workgroups) Validate() error {
	for _, n := range []uint32{g.X, g.Y, g.Z} {
		if n > MaxWorkgroupsPerDimension {
			return fmt.Errorf("%w: %dx%dx%d, limit %d per dimension",
				ErrGridTooLarge, g.X, g.Y, g.Z, MaxWorkgroupsPerDimension)
		}
	}
	return nil
}

// CommandBuffer records GPU work. Nothing executes until the owning device
// submits it.
type CommandBuffer interface {
	// Dispatch encodes one compute pass. Bindings are assigned to consecutive
	// binding slots starting at 0; the uniform block, if any, takes the slot
	// after the last binding.
	Dispatch(p Pipeline, groups Workgroups, uniforms []byte, bindings ...Buffer) error
	// WriteBuffer uploads host data into dst.
	WriteBuffer(dst Buffer, data []byte) error
	// CopyBuffer copies size bytes from src to dst.
	CopyBuffer(src, dst Buffer, size uint64) error
	// Discard drops the recorded work and frees what it holds. It is a no-op
	// once the buffer was submitted or discarded, so callers may defer it.
	Discard()
}

// Device compiles pipelines, allocates buffers and submits command buffers.
type Device interface {
	Name() string
	CompilePipeline(name, source string) (Pipeline, error)
	CreateBuffer(label string, size uint64, usage BufferUsage) (Buffer, error)
	ReleaseBuffer(buf Buffer)
	NewCommandBuffer() (CommandBuffer, error)
	Submit(cmd CommandBuffer) error
	ReadBuffer(buf Buffer) ([]byte, error)
	Release()
}

// CheckFits reports ErrBufferTooSmall when buf cannot hold size bytes.
func CheckFits(buf Buffer, size uint64) error {
	if buf.Size() < size {
		return fmt.Errorf("%w: %q holds %d bytes, need %d", ErrBufferTooSmall, buf.Label(), buf.Size(), size)
	}
	return nil
}
