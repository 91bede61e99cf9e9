//go:build windows

package webgpu

import (
	"fmt"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/born-ml/gpuops/internal/gpu"
)

// CommandBuffer encodes compute passes and copies for a single submission.
// Once MaxBatch passes are encoded the current encoder is finished and a new
// one started. Submit sends the encoders in order.
type CommandBuffer struct {
	device   *Device
	encoder  *wgpu.CommandEncoder
	passes   int
	finished []*wgpu.CommandBuffer

	// Uniform and staging buffers and bind groups live until submission.
	transient  []*wgpu.Buffer
	bindGroups []*wgpu.BindGroup

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

func (c *CommandBuffer) buffer(b gpu.Buffer) (*Buffer, error) {
	wb, ok := b.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("webgpu: foreign buffer %T", b)
	}
	if wb.buffer == nil {
		return nil, fmt.Errorf("webgpu: buffer %q was released", wb.label)
	}
	return wb, nil
}

// Dispatch encodes one compute pass.
func (c *CommandBuffer) Dispatch(p gpu.Pipeline, groups gpu.Workgroups, uniforms []byte, bindings ...gpu.Buffer) error {
	if err := c.closed(); err != nil {
		return err
	}
	pipeline, ok := p.(*Pipeline)
	if !ok {
		return fmt.Errorf("webgpu: foreign pipeline %T", p)
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(bindings)+1)
	for i, b := range bindings {
		wb, err := c.buffer(b)
		if err != nil {
			return err
		}
		//nolint:gosec // G115: binding count is small.
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), wb.buffer, 0, wb.alloc))
	}
	if len(uniforms) > 0 {
		// Uniform buffers require 16-byte alignment.
		ub := c.device.createInitialized(uniforms, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst, 16)
		c.transient = append(c.transient, ub)
		//nolint:gosec // G115: binding count and uniform size are small.
		entries = append(entries, wgpu.BufferBindingEntry(uint32(len(bindings)), ub, 0, uint64((len(uniforms)+15)&^15)))
	}

	bindGroupLayout := pipeline.pipeline.GetBindGroupLayout(0)
	bindGroup := c.device.device.CreateBindGroupSimple(bindGroupLayout, entries)
	c.bindGroups = append(c.bindGroups, bindGroup)

	computePass := c.encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline.pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(groups.X, groups.Y, groups.Z)
	computePass.End()

	c.passes++
	if c.device.maxBatch > 0 && c.passes >= c.device.maxBatch {
		c.finish()
		c.encoder = c.device.device.CreateCommandEncoder(nil)
	}
	return nil
}

// WriteBuffer stages data in a mapped buffer and encodes a copy into dst.
func (c *CommandBuffer) WriteBuffer(dst gpu.Buffer, data []byte) error {
	if err := c.closed(); err != nil {
		return err
	}
	//nolint:gosec // G115: slice length is non-negative.
	if err := gpu.CheckFits(dst, uint64(len(data))); err != nil {
		return err
	}
	wb, err := c.buffer(dst)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	staging := c.device.createInitialized(data, wgpu.BufferUsageCopySrc, 4)
	c.transient = append(c.transient, staging)
	//nolint:gosec // G115: slice length is non-negative.
	c.encoder.CopyBufferToBuffer(staging, 0, wb.buffer, 0, align4(uint64(len(data))))
	return nil
}

// CopyBuffer encodes a buffer-to-buffer copy. Sizes are rounded up to 4 bytes
// within the allocations.
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
	s, err := c.buffer(src)
	if err != nil {
		return err
	}
	d, err := c.buffer(dst)
	if err != nil {
		return err
	}
	c.encoder.CopyBufferToBuffer(s.buffer, 0, d.buffer, 0, align4(size))
	return nil
}

// finish closes the current encoder if it recorded anything.
func (c *CommandBuffer) finish() {
	if c.encoder == nil {
		return
	}
	c.finished = append(c.finished, c.encoder.Finish(nil))
	c.encoder = nil
	c.passes = 0
}

// Discard releases the open encoder, the finished encoders and the transient
// buffers without submitting anything.
func (c *CommandBuffer) Discard() {
	if c.closed() != nil {
		return
	}
	c.discarded = true
	if c.encoder != nil {
		c.encoder.Release()
		c.encoder = nil
	}
	c.releaseFinished()
	c.releaseTransient()
}

func (c *CommandBuffer) releaseFinished() {
	for _, cb := range c.finished {
		cb.Release()
	}
	c.finished = nil
}

func (c *CommandBuffer) releaseTransient() {
	for _, bg := range c.bindGroups {
		bg.Release()
	}
	c.bindGroups = nil
	for _, b := range c.transient {
		b.Release()
	}
	c.transient = nil
}
