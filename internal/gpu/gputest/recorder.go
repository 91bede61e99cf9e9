// Package gputest provides an in-memory gpu.Device that records the work
// enqueued on it, for tests that exercise operators without a GPU.
package gputest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/born-ml/gpuops/internal/gpu"
)

// Verify that Device implements gpu.Device.
var _ gpu.Device = (*Device)(nil)

// Op is one recorded command.
type Op struct {
	Kind     string // "dispatch", "write" or "copy"
	Pipeline string
	Groups   gpu.Workgroups
	Uniforms []byte
	Buffers  []string // Labels of the buffers involved, in binding order
	Size     uint64
}

// Buffer is host memory standing in for device storage.
type Buffer struct {
	label string
	usage gpu.BufferUsage
	Data  []byte
}

// Label returns the buffer label.
func (b *Buffer) Label() string { return b.label }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return uint64(len(b.Data)) }

// Usage returns the buffer usage.
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }

// Pipeline records the source it was compiled from.
type Pipeline struct {
	name   string
	Source string
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// CommandBuffer records commands in order. Writes and copies are applied to
// host memory at submission; dispatches are only recorded.
type CommandBuffer struct {
	device    *Device
	Ops       []Op
	pending   []func()
	submitted bool
	discarded bool
}

func (c *CommandBuffer) closed() error {
	switch {
	case c.submitted:
		return gpu.ErrAlreadySubmitted
	case c.discarded:
		return gpu.ErrDiscarded
	}
	return nil
}

// Device records compilations, allocations and submissions.
type Device struct {
	mu sync.Mutex

	Pipelines map[string]*Pipeline
	Buffers   map[string]*Buffer
	Released  []string
	Submitted []*CommandBuffer
	Discarded []*CommandBuffer

	// Compilations counts CompilePipeline calls per name.
	Compilations map[string]int

	// Failure injection. A non-nil error is returned by the matching call.
	CompileErr  error
	DispatchErr error
	CreateErr   error
	SubmitErr   error
}

// New creates an empty recording device.
func New() *Device {
	return &Device{
		Pipelines:    make(map[string]*Pipeline),
		Buffers:      make(map[string]*Buffer),
		Compilations: make(map[string]int),
	}
}

// Name returns the device name.
func (d *Device) Name() string { return "recorder" }

// CompilePipeline records the compilation and returns a cached pipeline.
func (d *Device) CompilePipeline(name, source string) (gpu.Pipeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Compilations[name]++
	if d.CompileErr != nil {
		return nil, d.CompileErr
	}
	if p, ok := d.Pipelines[name]; ok {
		return p, nil
	}
	p := &Pipeline{name: name, Source: source}
	d.Pipelines[name] = p
	return p, nil
}

// CreateBuffer allocates zeroed host memory.
func (d *Device) CreateBuffer(label string, size uint64, usage gpu.BufferUsage) (gpu.Buffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.CreateErr != nil {
		return nil, d.CreateErr
	}
	buf := &Buffer{label: label, usage: usage, Data: make([]byte, size)}
	d.Buffers[label] = buf
	return buf, nil
}

// ReleaseBuffer forgets the buffer.
func (d *Device) ReleaseBuffer(buf gpu.Buffer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.Buffers, buf.Label())
	d.Released = append(d.Released, buf.Label())
}

// NewCommandBuffer returns an empty command buffer bound to d.
func (d *Device) NewCommandBuffer() (gpu.CommandBuffer, error) {
	return &CommandBuffer{device: d}, nil
}

// Submit applies pending writes and copies and records the command buffer.
func (d *Device) Submit(cmd gpu.CommandBuffer) error {
	cb, ok := cmd.(*CommandBuffer)
	if !ok || cb.device != d {
		return fmt.Errorf("gputest: foreign command buffer %T", cmd)
	}
	if err := cb.closed(); err != nil {
		return err
	}
	if d.SubmitErr != nil {
		return d.SubmitErr
	}
	for _, apply := range cb.pending {
		apply()
	}
	cb.submitted = true

	d.mu.Lock()
	d.Submitted = append(d.Submitted, cb)
	d.mu.Unlock()
	return nil
}

// ReadBuffer returns a copy of the buffer contents.
func (d *Device) ReadBuffer(buf gpu.Buffer) ([]byte, error) {
	b, ok := buf.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("gputest: foreign buffer %T", buf)
	}
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out, nil
}

// Release is a no-op.
func (d *Device) Release() {}

// Dispatches returns every dispatch recorded across submitted command buffers.
func (d *Device) Dispatches() []Op {
	d.mu.Lock()
	defer d.mu.Unlock()

	var ops []Op
	for _, cb := range d.Submitted {
		for _, op := range cb.Ops {
			if op.Kind == "dispatch" {
				ops = append(ops, op)
			}
		}
	}
	return ops
}

// Dispatch records a compute pass.
func (c *CommandBuffer) Dispatch(p gpu.Pipeline, groups gpu.Workgroups, uniforms []byte, bindings ...gpu.Buffer) error {
	if err := c.closed(); err != nil {
		return err
	}
	if c.device.DispatchErr != nil {
		return c.device.DispatchErr
	}
	if p == nil {
		return errors.New("gputest: nil pipeline")
	}
	labels := make([]string, len(bindings))
	for i, b := range bindings {
		labels[i] = b.Label()
	}
	u := make([]byte, len(uniforms))
	copy(u, uniforms)
	c.Ops = append(c.Ops, Op{Kind: "dispatch", Pipeline: p.Name(), Groups: groups, Uniforms: u, Buffers: labels})
	return nil
}

// WriteBuffer records an upload.
func (c *CommandBuffer) WriteBuffer(dst gpu.Buffer, data []byte) error {
	if err := c.closed(); err != nil {
		return err
	}
	//nolint:gosec // G115: slice length is non-negative.
	if err := gpu.CheckFits(dst, uint64(len(data))); err != nil {
		return err
	}
	b, ok := dst.(*Buffer)
	if !ok {
		return fmt.Errorf("gputest: foreign buffer %T", dst)
	}
	payload := make([]byte, len(data))
	copy(payload, data)
	c.pending = append(c.pending, func() { copy(b.Data, payload) })
	//nolint:gosec // G115: slice length is non-negative.
	c.Ops = append(c.Ops, Op{Kind: "write", Buffers: []string{dst.Label()}, Size: uint64(len(data))})
	return nil
}

// CopyBuffer records a buffer-to-buffer copy.
func (c *CommandBuffer) CopyBuffer(src, dst gpu.Buffer, size uint64) error {
	if err := c.closed(); err != nil {
		return err
	}
	if err := gpu.CheckFits(src, size); err != nil {
		return err
	}
	if err := gpu.CheckFits(dst, size); err != nil {
		return err
	}
	s, ok1 := src.(*Buffer)
	d, ok2 := dst.(*Buffer)
	if !ok1 || !ok2 {
		return fmt.Errorf("gputest: foreign buffers %T, %T", src, dst)
	}
	c.pending = append(c.pending, func() { copy(d.Data[:size], s.Data[:size]) })
	c.Ops = append(c.Ops, Op{Kind: "copy", Buffers: []string{src.Label(), dst.Label()}, Size: size})
	return nil
}

// Discard drops pending writes and copies and records the command buffer.
func (c *CommandBuffer) Discard() {
	if c.closed() != nil {
		return
	}
	c.discarded = true
	c.pending = nil

	c.device.mu.Lock()
	c.device.Discarded = append(c.device.Discarded, c)
	c.device.mu.Unlock()
}
