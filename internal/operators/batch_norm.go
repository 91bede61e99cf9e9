package operators

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
)

// BatchNormParam binds inference-mode batch normalization: X and Y plus the
// per-channel Scale, Bias, Mean and Variance weights.
type BatchNormParam struct {
	Input    *graph.Variable
	Scale    *graph.Variable
	Bias     *graph.Variable
	Mean     *graph.Variable
	Variance *graph.Variable
	Output   *graph.Variable
	Epsilon  float32
	Momentum float32
	IsTest   bool
}

// NewBatchNormParam binds a batch_norm parameter block.
func NewBatchNormParam(desc *graph.OpDesc, scope *graph.Scope) (*BatchNormParam, error) {
	p := &BatchNormParam{}
	vars := []struct {
		dst  **graph.Variable
		role string
		bind func(*graph.OpDesc, *graph.Scope, string) (*graph.Variable, error)
	}{
		{&p.Input, "X", inputVar},
		{&p.Scale, "Scale", inputVar},
		{&p.Bias, "Bias", inputVar},
		{&p.Mean, "Mean", inputVar},
		{&p.Variance, "Variance", inputVar},
		{&p.Output, "Y", outputVar},
	}
	for _, v := range vars {
		bound, err := v.bind(desc, scope, v.role)
		if err != nil {
			return nil, err
		}
		*v.dst = bound
	}

	var err error
	if p.Epsilon, err = attrFloat(desc, "epsilon"); err != nil {
		return nil, err
	}
	if p.Momentum, err = attrFloatOr(desc, "momentum", 0.9); err != nil {
		return nil, err
	}
	if p.IsTest, err = attrBoolOr(desc, "is_test", true); err != nil {
		return nil, err
	}
	return p, nil
}

// OutputDesc describes the output variable.
func (p *BatchNormParam) OutputDesc() string { return describeVars(p.Output) }

// BatchNormKernel dispatches batchNormShader.
type BatchNormKernel struct {
	pipelineKernel
}

// NewBatchNormKernel creates a batch_norm kernel for device.
func NewBatchNormKernel(device gpu.Device) *BatchNormKernel {
	return &BatchNormKernel{newPipelineKernel(device, BatchNormType, batchNormShader)}
}

// Compute encodes per-channel normalization of X into Y.
func (k *BatchNormKernel) Compute(p *BatchNormParam, cmd gpu.CommandBuffer) error {
	if !p.IsTest {
		return execErr(BatchNormType, errors.New("training mode is not supported"))
	}
	shape := p.Input.Shape
	if len(shape) < 2 {
		return execErr(BatchNormType, errors.Errorf("input %s needs a channel dimension", p.Input))
	}
	if err := shape.Validate(); err != nil {
		return execErr(BatchNormType, errors.Wrapf(err, "input %s", p.Input))
	}
	if !p.Output.Shape.Equal(shape) {
		return execErr(BatchNormType, errors.Errorf("output %s does not match input %s", p.Output, p.Input))
	}
	channels := shape[1]
	for _, w := range []*graph.Variable{p.Scale, p.Bias, p.Mean, p.Variance} {
		if w.Shape.NumElements() != channels {
			return execErr(BatchNormType, errors.Errorf("%s has %d values for %d channels", w, w.Shape.NumElements(), channels))
		}
	}
	n := shape.NumElements()
	groups := gpu.Linear(n)
	if err := groups.Validate(); err != nil {
		return execErr(BatchNormType, errors.Wrapf(err, "input %s", p.Input))
	}

	pipeline, err := k.ensurePipeline()
	if err != nil {
		return execErr(BatchNormType, err)
	}
	bindings := make([]gpu.Buffer, 0, 6)
	for _, v := range []*graph.Variable{p.Input, p.Scale, p.Bias, p.Mean, p.Variance, p.Output} {
		buf, err := deviceBuffer(v)
		if err != nil {
			return execErr(BatchNormType, err)
		}
		bindings = append(bindings, buf)
	}

	spatial := n / (shape[0] * channels)
	uniforms := uniformBlock{u32(n), u32(channels), u32(spatial), f32bits(p.Epsilon)}.bytes()
	if err := cmd.Dispatch(pipeline, groups, uniforms, bindings...); err != nil {
		return execErr(BatchNormType, errors.Wrap(err, "dispatch"))
	}
	return nil
}

// BatchNormOp is the batch_norm operator.
type BatchNormOp struct {
	*Operator[*BatchNormParam, *BatchNormKernel]
}

// NewBatchNormOp creates a batch_norm operator.
func NewBatchNormOp(device gpu.Device, desc *graph.OpDesc, scope *graph.Scope) (*BatchNormOp, error) {
	op, err := NewOperator(device, desc, scope, NewBatchNormParam, NewBatchNormKernel)
	if err != nil {
		return nil, err
	}
	return &BatchNormOp{op}, nil
}

// InferShape gives Y the shape of X after checking the per-channel weights.
func (op *BatchNormOp) InferShape() error {
	p := op.Param()
	if len(p.Input.Shape) < 2 {
		return configErr(BatchNormType, "X", fmt.Sprintf("shape %v has no channel dimension", []int(p.Input.Shape)))
	}
	channels := p.Input.Shape[1]
	for _, w := range []*graph.Variable{p.Scale, p.Bias, p.Mean, p.Variance} {
		if len(w.Shape) > 0 && w.Shape.NumElements() != channels {
			return configErr(BatchNormType, w.Name, fmt.Sprintf("shape %v does not match %d channels", []int(w.Shape), channels))
		}
	}
	p.Output.Shape = p.Input.Shape.Clone()
	p.Output.DType = p.Input.DType
	return nil
}
