package operators

import (
	"github.com/pkg/errors"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
	"github.com/born-ml/gpuops/internal/tensor"
)

// ElementwiseAddParam binds X, Y and Out. Y spans dimensions
// [Axis, Axis+rank(Y)) of X and is repeated over the rest; Axis -1 aligns Y
// with the trailing dimensions.
type ElementwiseAddParam struct {
	InputX *graph.Variable
	InputY *graph.Variable
	Output *graph.Variable
	Axis   int
}

// NewElementwiseAddParam binds an elementwise_add parameter block.
func NewElementwiseAddParam(desc *graph.OpDesc, scope *graph.Scope) (*ElementwiseAddParam, error) {
	x, err := inputVar(desc, scope, "X")
	if err != nil {
		return nil, err
	}
	y, err := inputVar(desc, scope, "Y")
	if err != nil {
		return nil, err
	}
	out, err := outputVar(desc, scope, "Out")
	if err != nil {
		return nil, err
	}
	axis, err := attrInt(desc, "axis")
	if err != nil {
		return nil, err
	}
	if axis < -1 {
		return nil, configErr(desc.Type, "axis", "must be -1 or a dimension index")
	}
	return &ElementwiseAddParam{InputX: x, InputY: y, Output: out, Axis: axis}, nil
}

// OutputDesc describes the output variable.
func (p *ElementwiseAddParam) OutputDesc() string { return describeVars(p.Output) }

// ElementwiseAddKernel dispatches elementwiseAddShader.
type ElementwiseAddKernel struct {
	pipelineKernel
}

// NewElementwiseAddKernel creates an elementwise_add kernel for device.
func NewElementwiseAddKernel(device gpu.Device) *ElementwiseAddKernel {
	return &ElementwiseAddKernel{newPipelineKernel(device, ElementwiseAddType, elementwiseAddShader)}
}

// Compute encodes Out = X + broadcast(Y).
func (k *ElementwiseAddKernel) Compute(p *ElementwiseAddParam, cmd gpu.CommandBuffer) error {
	bc, err := tensor.BroadcastAtAxis(p.InputX.Shape, p.InputY.Shape, p.Axis)
	if err != nil {
		return execErr(ElementwiseAddType, err)
	}
	if !p.Output.Shape.Equal(p.InputX.Shape) {
		return execErr(ElementwiseAddType, errors.Errorf("output %s does not match x %s", p.Output, p.InputX))
	}
	n := p.InputX.Shape.NumElements()
	groups := gpu.Linear(n)
	if err := groups.Validate(); err != nil {
		return execErr(ElementwiseAddType, errors.Wrapf(err, "x %s", p.InputX))
	}
	pipeline, err := k.ensurePipeline()
	if err != nil {
		return execErr(ElementwiseAddType, err)
	}
	x, err := deviceBuffer(p.InputX)
	if err != nil {
		return execErr(ElementwiseAddType, err)
	}
	y, err := deviceBuffer(p.InputY)
	if err != nil {
		return execErr(ElementwiseAddType, err)
	}
	out, err := deviceBuffer(p.Output)
	if err != nil {
		return execErr(ElementwiseAddType, err)
	}

	uniforms := uniformBlock{u32(n), u32(bc.N), u32(bc.Post)}.bytes()
	if err := cmd.Dispatch(pipeline, groups, uniforms, x, y, out); err != nil {
		return execErr(ElementwiseAddType, errors.Wrap(err, "dispatch"))
	}
	return nil
}

// ElementwiseAddOp is the elementwise_add operator.
type ElementwiseAddOp struct {
	*Operator[*ElementwiseAddParam, *ElementwiseAddKernel]
}

// NewElementwiseAddOp creates an elementwise_add operator.
func NewElementwiseAddOp(device gpu.Device, desc *graph.OpDesc, scope *graph.Scope) (*ElementwiseAddOp, error) {
	op, err := NewOperator(device, desc, scope, NewElementwiseAddParam, NewElementwiseAddKernel)
	if err != nil {
		return nil, err
	}
	return &ElementwiseAddOp{op}, nil
}

// InferShape checks that Y broadcasts over X and gives Out the shape of X.
func (op *ElementwiseAddOp) InferShape() error {
	p := op.Param()
	if _, err := tensor.BroadcastAtAxis(p.InputX.Shape, p.InputY.Shape, p.Axis); err != nil {
		return configErr(ElementwiseAddType, "Y", err.Error())
	}
	p.Output.Shape = p.InputX.Shape.Clone()
	p.Output.DType = p.InputX.DType
	return nil
}
