package operators

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
)

// pipelineKernel holds the device a kernel was built for and the compute
// pipeline it compiles on first use.
type pipelineKernel struct {
	device   gpu.Device
	name     string
	source   string
	pipeline gpu.Pipeline
}

func newPipelineKernel(device gpu.Device, name, source string) pipelineKernel {
	return pipelineKernel{device: device, name: name, source: source}
}

func (k *pipelineKernel) ensurePipeline() (gpu.Pipeline, error) {
	if k.pipeline != nil {
		return k.pipeline, nil
	}
	if k.device == nil {
		return nil, errors.Errorf("kernel %s has no device", k.name)
	}
	p, err := k.device.CompilePipeline(k.name, k.source)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling %s pipeline", k.name)
	}
	k.pipeline = p
	return p, nil
}

// deviceBuffer returns the storage assigned to v, checking it can hold v.
func deviceBuffer(v *graph.Variable) (gpu.Buffer, error) {
	if v.Buffer == nil {
		return nil, errors.Errorf("variable %q has no device buffer", v.Name)
	}
	if err := gpu.CheckFits(v.Buffer, v.ByteSize()); err != nil {
		return nil, errors.Wrapf(err, "variable %s", v)
	}
	return v.Buffer, nil
}

// uniformBlock packs 32-bit words into a uniform block padded to 16 bytes.
type uniformBlock []uint32

func (u uniformBlock) bytes() []byte {
	size := (len(u)*4 + 15) &^ 15
	buf := make([]byte, size)
	for i, w := range u {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func u32(n int) uint32 {
	//nolint:gosec // G115: sizes and dimensions are validated non-negative.
	return uint32(n)
}

func f32bits(f float32) uint32 {
	return math.Float32bits(f)
}
