package operators

import (
	"k8s.io/klog/v2"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
)

// Param is a parameter block: the typed, immutable configuration of one
// operator, bound from a graph description and scope.
type Param interface {
	// OutputDesc describes the operator's outputs for diagnostics.
	OutputDesc() string
}

// Kernel executes an operator kind on a device for a given parameter block.
type Kernel[P Param] interface {
	Compute(param P, cmd gpu.CommandBuffer) error
}

// Runnable is the kind-independent view of an operator used by drivers.
type Runnable interface {
	Type() string
	Run(device gpu.Device, cmd gpu.CommandBuffer) error
	RunImpl(device gpu.Device, cmd gpu.CommandBuffer) error
	InferShape() error
	DelogOutput()
}

// Operator binds one parameter block and one kernel to the metadata of a
// graph node. Both are fixed at construction.
type Operator[P Param, K Kernel[P]] struct {
	opType     string
	inputs     map[string][]string
	paraInputs map[string][]string
	outputs    map[string][]string
	attrs      map[string]graph.Attr
	param      P
	kernel     K
}

// NewOperator copies the node metadata, builds the kernel for device, then
// binds the parameter block. A parameter error is returned unchanged and no
// operator is produced.
func NewOperator[P Param, K Kernel[P]](
	device gpu.Device,
	desc *graph.OpDesc,
	scope *graph.Scope,
	newParam func(desc *graph.OpDesc, scope *graph.Scope) (P, error),
	newKernel func(device gpu.Device) K,
) (*Operator[P, K], error) {
	op := &Operator[P, K]{
		opType:     desc.Type,
		inputs:     graph.CloneRoles(desc.Inputs),
		paraInputs: graph.CloneRoles(desc.ParaInputs),
		outputs:    graph.CloneRoles(desc.Outputs),
		attrs:      graph.CloneAttrs(desc.Attrs),
	}
	op.kernel = newKernel(device)

	param, err := newParam(desc, scope)
	if err != nil {
		return nil, err
	}
	op.param = param
	return op, nil
}

// Type returns the operator kind.
func (o *Operator[P, K]) Type() string { return o.opType }

// Inputs returns a copy of the non-persistable input roles.
func (o *Operator[P, K]) Inputs() map[string][]string { return graph.CloneRoles(o.inputs) }

// ParaInputs returns a copy of the persistable input roles.
func (o *Operator[P, K]) ParaInputs() map[string][]string { return graph.CloneRoles(o.paraInputs) }

// Outputs returns a copy of the output roles.
func (o *Operator[P, K]) Outputs() map[string][]string { return graph.CloneRoles(o.outputs) }

// Attrs returns a copy of the attributes.
func (o *Operator[P, K]) Attrs() map[string]graph.Attr { return graph.CloneAttrs(o.attrs) }

// Param returns the bound parameter block.
func (o *Operator[P, K]) Param() P { return o.param }

// Kernel returns the bound kernel.
func (o *Operator[P, K]) Kernel() K { return o.kernel }

// Run executes the operator. Errors from RunImpl are returned as is.
func (o *Operator[P, K]) Run(device gpu.Device, cmd gpu.CommandBuffer) error {
	return o.RunImpl(device, cmd)
}

// RunImpl encodes the kernel for this operator's parameter block onto cmd.
// The kernel is bound to its own device at construction.
func (o *Operator[P, K]) RunImpl(_ gpu.Device, cmd gpu.CommandBuffer) error {
	return o.kernel.Compute(o.param, cmd)
}

// DelogOutput logs the operator's outputs. Kinds override it to dump values.
func (o *Operator[P, K]) DelogOutput() {
	klog.Infof("%s: has no implementation", o.opType)
}

// String identifies the operator and its outputs.
func (o *Operator[P, K]) String() string {
	return o.opType + ": " + o.param.OutputDesc()
}
