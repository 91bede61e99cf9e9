//go:build windows

package webgpu

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"k8s.io/klog/v2"

	"github.com/born-ml/gpuops/internal/gpu"
)

// Verify that Device implements gpu.Device.
var _ gpu.Device = (*Device)(nil)

// Device is a gpu.Device backed by a WebGPU adapter.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	lowPower bool

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*Pipeline
	mu        sync.RWMutex

	pool     *BufferPool
	maxBatch int
}

// Pipeline is a compiled compute pipeline.
type Pipeline struct {
	name     string
	pipeline *wgpu.ComputePipeline
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Buffer is a device buffer. Allocations are rounded up to a multiple of 4
// bytes as WebGPU requires.
type Buffer struct {
	label  string
	size   uint64
	alloc  uint64
	usage  gpu.BufferUsage
	flags  wgpu.BufferUsage
	buffer *wgpu.Buffer
}

// Label returns the buffer label.
func (b *Buffer) Label() string { return b.label }

// Size returns the requested size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Usage returns the buffer usage.
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

// Open creates a WebGPU device as a gpu.Device.
func Open(opts Options) (gpu.Device, error) {
	d, err := New(opts)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// New creates a WebGPU device.
// Returns an error wrapping gpu.ErrUnavailable if WebGPU is not available.
func New(opts Options) (dev *Device, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			dev = nil
			err = fmt.Errorf("%w: native library not available: %v", gpu.ErrUnavailable, r)
		}
	}()

	power := wgpu.PowerPreferenceHighPerformance
	if opts.LowPower {
		power = wgpu.PowerPreferenceLowPower
	}

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: power,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("%w: failed to request adapter: %w", gpu.ErrUnavailable, adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: failed to request device: %w", gpu.ErrUnavailable, deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("%w: failed to get queue", gpu.ErrUnavailable)
	}

	d := &Device{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		lowPower:  opts.LowPower,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*Pipeline),
		pool:      NewBufferPool(device),
		maxBatch:  opts.MaxBatch,
	}
	klog.V(1).InfoS("webgpu device ready", "adapter", d.Name(), "maxBatch", opts.MaxBatch)
	return d, nil
}

// IsAvailable checks if a WebGPU adapter can be requested on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Name describes the device and the adapter preference it was opened with.
func (d *Device) Name() string {
	if d.lowPower {
		return "WebGPU (low-power)"
	}
	return "WebGPU (high-performance)"
}

// CompilePipeline compiles WGSL source with entry point main. Pipelines are
// cached by name.
func (d *Device) CompilePipeline(name, source string) (p gpu.Pipeline, err error) {
	d.mu.RLock()
	if cached, ok := d.pipelines[name]; ok {
		d.mu.RUnlock()
		return cached, nil
	}
	d.mu.RUnlock()

	// wgpu-native panics on invalid WGSL.
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("webgpu: compiling %s: %v", name, r)
		}
	}()

	shader := d.device.CreateShaderModuleWGSL(source)
	// Auto layout (nil layout).
	pipeline := &Pipeline{name: name, pipeline: d.device.CreateComputePipelineSimple(nil, shader, "main")}

	d.mu.Lock()
	d.shaders[name] = shader
	d.pipelines[name] = pipeline
	d.mu.Unlock()

	klog.V(2).InfoS("compiled pipeline", "name", name)
	return pipeline, nil
}

// usageFlags maps a buffer usage to WebGPU usage flags.
func usageFlags(usage gpu.BufferUsage) (wgpu.BufferUsage, error) {
	switch usage {
	case gpu.UsageStorage:
		return wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst, nil
	case gpu.UsageReadback:
		return wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst, nil
	default:
		return 0, fmt.Errorf("webgpu: unsupported buffer usage %s", usage)
	}
}

// align4 rounds size up to a non-zero multiple of 4.
func align4(size uint64) uint64 {
	if size == 0 {
		return 4
	}
	return (size + 3) &^ 3
}

// CreateBuffer acquires a buffer from the pool.
func (d *Device) CreateBuffer(label string, size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	flags, err := usageFlags(usage)
	if err != nil {
		return nil, err
	}
	alloc := align4(size)
	return &Buffer{
		label:  label,
		size:   size,
		alloc:  alloc,
		usage:  usage,
		flags:  flags,
		buffer: d.pool.Acquire(alloc, flags),
	}, nil
}

// ReleaseBuffer returns the buffer to the pool.
func (d *Device) ReleaseBuffer(buf gpu.Buffer) {
	b, ok := buf.(*Buffer)
	if !ok || b.buffer == nil {
		return
	}
	d.pool.Release(b.buffer, b.alloc, b.flags)
	b.buffer = nil
}

// createInitialized creates a buffer holding data, padded to align bytes.
func (d *Device) createInitialized(data []byte, usage wgpu.BufferUsage, align uint64) *wgpu.Buffer {
	//nolint:gosec // G115: slice length is non-negative.
	size := uint64(len(data))
	alignedSize := (size + align - 1) &^ (align - 1)
	if alignedSize == 0 {
		alignedSize = align
	}

	buffer := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// NewCommandBuffer starts encoding a new command buffer.
func (d *Device) NewCommandBuffer() (gpu.CommandBuffer, error) {
	return &CommandBuffer{
		device:  d,
		encoder: d.device.CreateCommandEncoder(nil),
	}, nil
}

// Submit finishes cmd and submits its encoders in order.
func (d *Device) Submit(cmd gpu.CommandBuffer) error {
	c, ok := cmd.(*CommandBuffer)
	if !ok || c.device != d {
		return fmt.Errorf("webgpu: foreign command buffer %T", cmd)
	}
	if err := c.closed(); err != nil {
		return err
	}
	c.finish()
	c.submitted = true

	d.queue.Submit(c.finished...)
	c.releaseFinished()
	c.releaseTransient()
	return nil
}

// ReadBuffer copies buf to host memory. Readback buffers are mapped directly;
// storage buffers go through a staging buffer.
func (d *Device) ReadBuffer(buf gpu.Buffer) ([]byte, error) {
	b, ok := buf.(*Buffer)
	if !ok || b.buffer == nil {
		return nil, fmt.Errorf("webgpu: foreign or released buffer %T", buf)
	}

	src := b.buffer
	if b.usage != gpu.UsageReadback {
		staging := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
			Size:  b.alloc,
		})
		defer staging.Release()

		encoder := d.device.CreateCommandEncoder(nil)
		encoder.CopyBufferToBuffer(b.buffer, 0, staging, 0, b.alloc)
		d.queue.Submit(encoder.Finish(nil))
		src = staging
	}

	if err := src.MapAsync(d.device, wgpu.MapModeRead, 0, b.alloc); err != nil {
		return nil, fmt.Errorf("webgpu: failed to map %q: %w", b.label, err)
	}
	mappedPtr := src.GetMappedRange(0, b.alloc)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), b.alloc)
	result := make([]byte, b.size)
	copy(result, mappedSlice)
	src.Unmap()

	return result, nil
}

// Release releases all WebGPU resources.
func (d *Device) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pool != nil {
		d.pool.Clear()
		d.pool = nil
	}
	for _, p := range d.pipelines {
		p.pipeline.Release()
	}
	d.pipelines = nil
	for _, s := range d.shaders {
		s.Release()
	}
	d.shaders = nil

	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// PoolStats reports buffer pool usage.
func (d *Device) PoolStats() PoolStats {
	return d.pool.Stats()
}
