//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// sizeClass groups buffers for pooling.
type sizeClass int

const (
	smallClass  sizeClass = iota // < 4KB
	mediumClass                  // 4KB-1MB
	largeClass                   // >= 1MB
)

const (
	smallThreshold  = 4 * 1024
	mediumThreshold = 1024 * 1024
	maxPoolSize     = 100 // Max buffers per class
)

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
	usage  wgpu.BufferUsage
}

// PoolStats counts pool activity.
type PoolStats struct {
	Allocated uint64
	Released  uint64
	Hits      uint64
	Misses    uint64
	Pooled    int
}

// BufferPool reuses device buffers across programs. A released buffer serves
// any later request of the same usage flags that it is large enough for.
type BufferPool struct {
	device  *wgpu.Device
	classes [3][]*pooledBuffer
	stats   PoolStats
	mu      sync.Mutex
}

// NewBufferPool creates an empty pool for device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{device: device}
}

func classify(size uint64) sizeClass {
	switch {
	case size < smallThreshold:
		return smallClass
	case size < mediumThreshold:
		return mediumClass
	default:
		return largeClass
	}
}

// Acquire returns a pooled buffer with matching usage and at least size
// bytes, or creates one.
func (p *BufferPool) Acquire(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	pool := p.classes[class]
	for i, pb := range pool {
		// Exact usage match: a readback buffer must never be bound as storage.
		if pb.size >= size && pb.usage == usage {
			p.classes[class] = append(pool[:i], pool[i+1:]...)
			p.stats.Hits++
			return pb.buffer
		}
	}

	p.stats.Misses++
	p.stats.Allocated++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: usage,
		Size:  size,
	})
}

// Release returns a buffer to the pool, or frees it when its class is full.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64, usage wgpu.BufferUsage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stats.Released++
	class := classify(size)
	if len(p.classes[class]) >= maxPoolSize {
		buffer.Release()
		return
	}
	p.classes[class] = append(p.classes[class], &pooledBuffer{buffer: buffer, size: size, usage: usage})
}

// Clear frees every pooled buffer.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.classes {
		for _, pb := range p.classes[i] {
			pb.buffer.Release()
		}
		p.classes[i] = nil
	}
}

// Stats returns a snapshot of pool activity.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.stats
	for _, pool := range p.classes {
		s.Pooled += len(pool)
	}
	return s
}
