//go:build windows

package webgpu

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/born-ml/gpuops/internal/gpu"
)

const reluWGSL = `
@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read_write> result: array<f32>;

struct Params { size: u32 }
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.size) { return; }
    result[idx] = max(input[idx], 0.0);
}
`

func newTestDevice(t *testing.T, opts Options) *Device {
	t.Helper()
	if !IsAvailable() {
		t.Skip("WebGPU not available")
	}
	d, err := New(opts)
	if err != nil {
		t.Fatalf("failed to create device: %v", err)
	}
	t.Cleanup(d.Release)
	return d
}

func encode(values []float32) []byte {
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decode(raw []byte) []float32 {
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out
}

func TestDeviceRelu(t *testing.T) {
	for _, maxBatch := range []int{0, 1} {
		d := newTestDevice(t, Options{MaxBatch: maxBatch})

		input := []float32{-1, 2, -3, 4, 0, 5}
		size := uint64(4 * len(input))
		in, err := d.CreateBuffer("in", size, gpu.UsageStorage)
		if err != nil {
			t.Fatalf("CreateBuffer failed: %v", err)
		}
		out, _ := d.CreateBuffer("out", size, gpu.UsageStorage)
		fetch, _ := d.CreateBuffer("fetch", size, gpu.UsageReadback)

		p, err := d.CompilePipeline("relu", reluWGSL)
		if err != nil {
			t.Fatalf("CompilePipeline failed: %v", err)
		}

		cmd, _ := d.NewCommandBuffer()
		uniforms := make([]byte, 16)
		binary.LittleEndian.PutUint32(uniforms, uint32(len(input)))
		if err := cmd.WriteBuffer(in, encode(input)); err != nil {
			t.Fatalf("WriteBuffer failed: %v", err)
		}
		if err := cmd.Dispatch(p, gpu.Linear(len(input)), uniforms, in, out); err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}
		if err := cmd.CopyBuffer(out, fetch, size); err != nil {
			t.Fatalf("CopyBuffer failed: %v", err)
		}
		if err := d.Submit(cmd); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
		if err := d.Submit(cmd); err != gpu.ErrAlreadySubmitted {
			t.Errorf("second Submit = %v, want ErrAlreadySubmitted", err)
		}

		raw, err := d.ReadBuffer(fetch)
		if err != nil {
			t.Fatalf("ReadBuffer failed: %v", err)
		}
		expected := []float32{0, 2, 0, 4, 0, 5}
		for i, v := range decode(raw) {
			if v != expected[i] {
				t.Errorf("maxBatch %d: result[%d] = %v, want %v", maxBatch, i, v, expected[i])
			}
		}
	}
}

func TestDevicePipelineCache(t *testing.T) {
	d := newTestDevice(t, DefaultOptions())

	p1, err := d.CompilePipeline("relu", reluWGSL)
	if err != nil {
		t.Fatalf("CompilePipeline failed: %v", err)
	}
	p2, _ := d.CompilePipeline("relu", reluWGSL)
	if p1 != p2 {
		t.Error("expected the cached pipeline on second compile")
	}
}

func TestBufferPoolReuse(t *testing.T) {
	d := newTestDevice(t, DefaultOptions())

	buf, _ := d.CreateBuffer("a", 1024, gpu.UsageStorage)
	d.ReleaseBuffer(buf)
	if _, err := d.CreateBuffer("b", 512, gpu.UsageStorage); err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	if _, err := d.CreateBuffer("c", 512, gpu.UsageReadback); err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}

	stats := d.PoolStats()
	if stats.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("Expected 2 misses, got %d", stats.Misses)
	}
	if stats.Released != 1 {
		t.Errorf("Expected 1 release, got %d", stats.Released)
	}
}

func TestCommandBufferDiscard(t *testing.T) {
	d := newTestDevice(t, Options{MaxBatch: 1})

	buf, _ := d.CreateBuffer("buf", 16, gpu.UsageStorage)
	out, _ := d.CreateBuffer("out", 16, gpu.UsageStorage)
	p, err := d.CompilePipeline("relu", reluWGSL)
	if err != nil {
		t.Fatalf("CompilePipeline failed: %v", err)
	}

	cmd, _ := d.NewCommandBuffer()
	if err := cmd.WriteBuffer(buf, encode([]float32{1, 2, 3, 4})); err != nil {
		t.Fatalf("WriteBuffer failed: %v", err)
	}
	if err := cmd.Dispatch(p, gpu.Linear(4), make([]byte, 16), buf, out); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	cmd.Discard()
	cmd.Discard()

	c := cmd.(*CommandBuffer)
	if c.encoder != nil || len(c.finished) != 0 || len(c.transient) != 0 || len(c.bindGroups) != 0 {
		t.Errorf("Discard left resources: encoder=%v finished=%d transient=%d bindGroups=%d",
			c.encoder != nil, len(c.finished), len(c.transient), len(c.bindGroups))
	}
	if err := d.Submit(cmd); !errors.Is(err, gpu.ErrDiscarded) {
		t.Errorf("Submit after Discard = %v, want ErrDiscarded", err)
	}
}
