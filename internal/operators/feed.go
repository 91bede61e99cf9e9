package operators

import (
	"github.com/pkg/errors"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
	"github.com/born-ml/gpuops/internal/tensor"
)

// FeedParam binds the host-side feed variable X to the device variable Out.
// Col is the feed slot.
type FeedParam struct {
	Input  *graph.Variable
	Output *graph.Variable
	Col    int
}

// NewFeedParam binds a feed parameter block.
func NewFeedParam(desc *graph.OpDesc, scope *graph.Scope) (*FeedParam, error) {
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
	return &FeedParam{Input: input, Output: output, Col: col}, nil
}

// OutputDesc describes the output variable.
func (p *FeedParam) OutputDesc() string { return describeVars(p.Output) }

// FeedKernel uploads host data.
type FeedKernel struct {
	device gpu.Device
}

// NewFeedKernel creates a feed kernel for device.
func NewFeedKernel(device gpu.Device) *FeedKernel {
	return &FeedKernel{device: device}
}

// Compute encodes the upload of X's host data into Out's buffer.
func (k *FeedKernel) Compute(p *FeedParam, cmd gpu.CommandBuffer) error {
	if k.device == nil {
		return execErr(FeedType, errors.New("kernel has no device"))
	}
	want := p.Output.Shape.NumElements()
	if len(p.Input.Data) != want {
		return execErr(FeedType, errors.Errorf("feed %q holds %d values, %s needs %d",
			p.Input.Name, len(p.Input.Data), p.Output, want))
	}
	if p.Output.DType != tensor.Float32 {
		return execErr(FeedType, errors.Errorf("unsupported output type %s", p.Output.DType))
	}
	out, err := deviceBuffer(p.Output)
	if err != nil {
		return execErr(FeedType, err)
	}
	if err := cmd.WriteBuffer(out, tensor.EncodeFloat32(p.Input.Data)); err != nil {
		return execErr(FeedType, errors.Wrap(err, "upload"))
	}
	return nil
}

// FeedOp is the feed operator.
type FeedOp struct {
	*Operator[*FeedParam, *FeedKernel]
}

// NewFeedOp creates a feed operator.
func NewFeedOp(device gpu.Device, desc *graph.OpDesc, scope *graph.Scope) (*FeedOp, error) {
	op, err := NewOperator(device, desc, scope, NewFeedParam, NewFeedKernel)
	if err != nil {
		return nil, err
	}
	return &FeedOp{op}, nil
}

// InferShape gives Out the shape of the fed data when X carries one, and
// otherwise keeps Out's declared shape.
func (op *FeedOp) InferShape() error {
	p := op.Param()
	if len(p.Input.Shape) > 0 {
		p.Output.Shape = p.Input.Shape.Clone()
	}
	if len(p.Output.Shape) == 0 {
		return configErr(FeedType, "Out", "shape unknown: neither the feed nor its output declares one")
	}
	return nil
}
