package operators

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
	"github.com/born-ml/gpuops/internal/tensor"
)

// Conv2DParam binds a 2D convolution over NCHW input with an
// [out_channels, in_channels/groups, kH, kW] filter.
type Conv2DParam struct {
	Input     *graph.Variable
	Filter    *graph.Variable
	Output    *graph.Variable
	Strides   [2]int
	Paddings  [2]int
	Dilations [2]int
	Groups    int
}

// NewConv2DParam binds a conv2d parameter block. The filter must be a
// persistable input.
func NewConv2DParam(desc *graph.OpDesc, scope *graph.Scope) (*Conv2DParam, error) {
	input, err := inputVar(desc, scope, "Input")
	if err != nil {
		return nil, err
	}
	filter, err := paraVar(desc, scope, "Filter")
	if err != nil {
		return nil, err
	}
	output, err := outputVar(desc, scope, "Output")
	if err != nil {
		return nil, err
	}

	p := &Conv2DParam{Input: input, Filter: filter, Output: output}
	if p.Strides, err = attrPair(desc, "strides"); err != nil {
		return nil, err
	}
	if p.Paddings, err = attrPair(desc, "paddings"); err != nil {
		return nil, err
	}
	if p.Dilations, err = attrPair(desc, "dilations"); err != nil {
		return nil, err
	}
	if p.Groups, err = attrInt(desc, "groups"); err != nil {
		return nil, err
	}

	if p.Strides[0] <= 0 || p.Strides[1] <= 0 {
		return nil, configErr(desc.Type, "strides", fmt.Sprintf("must be positive, got %v", p.Strides))
	}
	if p.Dilations[0] <= 0 || p.Dilations[1] <= 0 {
		return nil, configErr(desc.Type, "dilations", fmt.Sprintf("must be positive, got %v", p.Dilations))
	}
	if p.Paddings[0] < 0 || p.Paddings[1] < 0 {
		return nil, configErr(desc.Type, "paddings", fmt.Sprintf("must be non-negative, got %v", p.Paddings))
	}
	if p.Groups <= 0 {
		return nil, configErr(desc.Type, "groups", fmt.Sprintf("must be positive, got %d", p.Groups))
	}
	return p, nil
}

// OutputDesc describes the output variable.
func (p *Conv2DParam) OutputDesc() string { return describeVars(p.Output) }

// OutputShape computes the NCHW output shape for the bound input and filter.
func (p *Conv2DParam) OutputShape() (tensor.Shape, error) {
	in, f := p.Input.Shape, p.Filter.Shape
	if len(in) != 4 {
		return nil, fmt.Errorf("input shape %v is not NCHW", []int(in))
	}
	if len(f) != 4 {
		return nil, fmt.Errorf("filter shape %v is not [out, in/groups, kH, kW]", []int(f))
	}
	if f[1]*p.Groups != in[1] {
		return nil, fmt.Errorf("filter %v with %d groups does not match %d input channels", []int(f), p.Groups, in[1])
	}

	out := tensor.Shape{in[0], f[0], 0, 0}
	for i := 0; i < 2; i++ {
		extent := p.Dilations[i]*(f[2+i]-1) + 1
		out[2+i] = (in[2+i]+2*p.Paddings[i]-extent)/p.Strides[i] + 1
		if out[2+i] <= 0 {
			return nil, fmt.Errorf("spatial dimension %d of input %v is smaller than the filter extent %d",
				i, []int(in), extent)
		}
	}
	return out, nil
}

// Conv2DKernel dispatches conv2dShader. It supports a single group, no
// dilation, and square strides and paddings.
type Conv2DKernel struct {
	pipelineKernel
}

// NewConv2DKernel creates a conv2d kernel for device.
func NewConv2DKernel(device gpu.Device) *Conv2DKernel {
	return &Conv2DKernel{newPipelineKernel(device, Conv2DType, conv2dShader)}
}

// Compute encodes the convolution of Input by Filter into Output.
func (k *Conv2DKernel) Compute(p *Conv2DParam, cmd gpu.CommandBuffer) error {
	switch {
	case p.Groups != 1:
		return execErr(Conv2DType, errors.Errorf("unsupported groups %d", p.Groups))
	case p.Dilations != [2]int{1, 1}:
		return execErr(Conv2DType, errors.Errorf("unsupported dilations %v", p.Dilations))
	case p.Strides[0] != p.Strides[1]:
		return execErr(Conv2DType, errors.Errorf("unsupported anisotropic strides %v", p.Strides))
	case p.Paddings[0] != p.Paddings[1]:
		return execErr(Conv2DType, errors.Errorf("unsupported anisotropic paddings %v", p.Paddings))
	}

	want, err := p.OutputShape()
	if err != nil {
		return execErr(Conv2DType, err)
	}
	if !p.Output.Shape.Equal(want) {
		return execErr(Conv2DType, errors.Errorf("output %s, want shape %v", p.Output, []int(want)))
	}
	groups := gpu.Workgroups{
		X: u32((want[3] + conv2dWorkgroup - 1) / conv2dWorkgroup),
		Y: u32((want[2] + conv2dWorkgroup - 1) / conv2dWorkgroup),
		Z: u32(want[0] * want[1]),
	}
	if err := groups.Validate(); err != nil {
		return execErr(Conv2DType, errors.Wrapf(err, "output %s", p.Output))
	}

	pipeline, err := k.ensurePipeline()
	if err != nil {
		return execErr(Conv2DType, err)
	}
	bindings := make([]gpu.Buffer, 0, 3)
	for _, v := range []*graph.Variable{p.Input, p.Filter, p.Output} {
		buf, err := deviceBuffer(v)
		if err != nil {
			return execErr(Conv2DType, err)
		}
		bindings = append(bindings, buf)
	}

	in, f := p.Input.Shape, p.Filter.Shape
	uniforms := uniformBlock{
		u32(in[0]), u32(in[1]), u32(in[2]), u32(in[3]),
		u32(f[0]), u32(f[2]), u32(f[3]),
		u32(p.Strides[0]), u32(p.Paddings[0]),
	}.bytes()
	if err := cmd.Dispatch(pipeline, groups, uniforms, bindings...); err != nil {
		return execErr(Conv2DType, errors.Wrap(err, "dispatch"))
	}
	return nil
}

// Conv2DOp is the conv2d operator.
type Conv2DOp struct {
	*Operator[*Conv2DParam, *Conv2DKernel]
}

// NewConv2DOp creates a conv2d operator.
func NewConv2DOp(device gpu.Device, desc *graph.OpDesc, scope *graph.Scope) (*Conv2DOp, error) {
	op, err := NewOperator(device, desc, scope, NewConv2DParam, NewConv2DKernel)
	if err != nil {
		return nil, err
	}
	return &Conv2DOp{op}, nil
}

// InferShape computes Output from Input, Filter and the conv attributes.
func (op *Conv2DOp) InferShape() error {
	p := op.Param()
	out, err := p.OutputShape()
	if err != nil {
		return configErr(Conv2DType, "Input", err.Error())
	}
	p.Output.Shape = out
	p.Output.DType = p.Input.DType
	return nil
}
