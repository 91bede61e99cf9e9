package operators

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
)

// fetchPreview caps the number of values DelogOutput prints.
const fetchPreview = 16

// FetchParam binds the device result X to the fetch variable Out, whose
// buffer is host-readable. Col is the fetch slot.
type FetchParam struct {
	Input  *graph.Variable
	Output *graph.Variable
	Col    int
}

// NewFetchParam binds a fetch parameter block.
func NewFetchParam(desc *graph.OpDesc, scope *graph.Scope) (*FetchParam, error) {
	input, err := inputVar(desc, scope, "X")
	if err != nil {
		return nil, err
	}
	output, err := outputVar(desc, scope, "Out")
	if err != nil {
		return nil, err
	}
	col, err := attrInt(desc, "col")
	if err != nil {
		return nil, err
	}
	if col < 0 {
		return nil, configErr(desc.Type, "col", "must be non-negative")
	}
	return &FetchParam{Input: input, Output: output, Col: col}, nil
}

// OutputDesc describes the output variable.
func (p *FetchParam) OutputDesc() string { return describeVars(p.Output) }

// FetchKernel copies results into a readback buffer.
type FetchKernel struct {
	device gpu.Device
}

// NewFetchKernel creates a fetch kernel for device.
func NewFetchKernel(device gpu.Device) *FetchKernel {
	return &FetchKernel{device: device}
}

// Compute encodes the copy from X's buffer to Out's readback buffer.
func (k *FetchKernel) Compute(p *FetchParam, cmd gpu.CommandBuffer) error {
	if k.device == nil {
		return execErr(FetchType, errors.New("kernel has no device"))
	}
	if !p.Output.Shape.Equal(p.Input.Shape) {
		return execErr(FetchType, errors.Errorf("output %s does not match input %s", p.Output, p.Input))
	}
	src, err := deviceBuffer(p.Input)
	if err != nil {
		return execErr(FetchType, err)
	}
	dst, err := deviceBuffer(p.Output)
	if err != nil {
		return execErr(FetchType, err)
	}
	if dst.Usage() != gpu.UsageReadback {
		return execErr(FetchType, errors.Errorf("fetch buffer %q is %s, want %s", dst.Label(), dst.Usage(), gpu.UsageReadback))
	}
	if err := cmd.CopyBuffer(src, dst, p.Input.ByteSize()); err != nil {
		return execErr(FetchType, errors.Wrap(err, "copy"))
	}
	return nil
}

// FetchOp is the fetch operator.
type FetchOp struct {
	*Operator[*FetchParam, *FetchKernel]
}

// NewFetchOp creates a fetch operator.
func NewFetchOp(device gpu.Device, desc *graph.OpDesc, scope *graph.Scope) (*FetchOp, error) {
	op, err := NewOperator(device, desc, scope, NewFetchParam, NewFetchKernel)
	if err != nil {
		return nil, err
	}
	return &FetchOp{op}, nil
}

// InferShape gives Out the shape of X.
func (op *FetchOp) InferShape() error {
	p := op.Param()
	p.Output.Shape = p.Input.Shape.Clone()
	p.Output.DType = p.Input.DType
	return nil
}

// DelogOutput logs the fetched values read back into Out.
func (op *FetchOp) DelogOutput() {
	p := op.Param()
	values := p.Output.Data
	if len(values) > fetchPreview {
		values = values[:fetchPreview]
	}
	klog.InfoS("fetch output", "var", p.Output.Name, "shape", []int(p.Output.Shape),
		"count", len(p.Output.Data), "values", values)
}
