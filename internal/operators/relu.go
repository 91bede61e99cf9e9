package operators

import (
	"github.com/pkg/errors"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
)

// ReluParam binds relu's X and Out.
type ReluParam struct {
	Input  *graph.Variable
	Output *graph.Variable
}

// NewReluParam binds a relu parameter block.
func NewReluParam(desc *graph.OpDesc, scope *graph.Scope) (*ReluParam, error) {
	input, err := inputVar(desc, scope, "X")
	if err != nil {
		return nil, err
	}
	output, err := outputVar(desc, scope, "Out")
	if err != nil {
		return nil, err
	}
	return &ReluParam{Input: input, Output: output}, nil
}

// OutputDesc describes the output variable.
func (p *ReluParam) OutputDesc() string { return describeVars(p.Output) }

// ReluKernel dispatches reluShader.
type ReluKernel struct {
	pipelineKernel
}

// NewReluKernel creates a relu kernel for device.
func NewReluKernel(device gpu.Device) *ReluKernel {
	return &ReluKernel{newPipelineKernel(device, ReluType, reluShader)}
}

// Compute encodes relu over the whole input.
func (k *ReluKernel) Compute(p *ReluParam, cmd gpu.CommandBuffer) error {
	if !p.Input.Shape.Equal(p.Output.Shape) {
		return execErr(ReluType, errors.Errorf("output %s does not match input %s", p.Output, p.Input))
	}
	n := p.Input.Shape.NumElements()
	groups := gpu.Linear(n)
	if err := groups.Validate(); err != nil {
		return execErr(ReluType, errors.Wrapf(err, "input %s", p.Input))
	}
	pipeline, err := k.ensurePipeline()
	if err != nil {
		return execErr(ReluType, err)
	}
	in, err := deviceBuffer(p.Input)
	if err != nil {
		return execErr(ReluType, err)
	}
	out, err := deviceBuffer(p.Output)
	if err != nil {
		return execErr(ReluType, err)
	}

	uniforms := uniformBlock{u32(n)}.bytes()
	if err := cmd.Dispatch(pipeline, groups, uniforms, in, out); err != nil {
		return execErr(ReluType, errors.Wrap(err, "dispatch"))
	}
	return nil
}

// ReluOp is the relu operator.
type ReluOp struct {
	*Operator[*ReluParam, *ReluKernel]
}

// NewReluOp creates a relu operator.
func NewReluOp(device gpu.Device, desc *graph.OpDesc, scope *graph.Scope) (*ReluOp, error) {
	op, err := NewOperator(device, desc, scope, NewReluParam, NewReluKernel)
	if err != nil {
		return nil, err
	}
	return &ReluOp{op}, nil
}

// InferShape gives Out the shape of X.
func (op *ReluOp) InferShape() error {
	p := op.Param()
	p.Output.Shape = p.Input.Shape.Clone()
	p.Output.DType = p.Input.DType
	return nil
}
