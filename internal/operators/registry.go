package operators

import (
	"fmt"
	"slices"
	"sort"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
)

// Operator kinds.
const (
	FetchType          = "fetch"
	FeedType           = "feed"
	Conv2DType         = "conv2d"
	BatchNormType      = "batch_norm"
	ReluType           = "relu"
	ElementwiseAddType = "elementwise_add"
)

// OpInfo lists the argument roles an operator kind expects.
type OpInfo struct {
	Inputs  []string
	Outputs []string
}

var builtinOpInfos = map[string]OpInfo{
	Conv2DType:         {Inputs: []string{"Input"}, Outputs: []string{"Output"}},
	BatchNormType:      {Inputs: []string{"X"}, Outputs: []string{"Y"}},
	ReluType:           {Inputs: []string{"X"}, Outputs: []string{"Out"}},
	ElementwiseAddType: {Inputs: []string{"X", "Y"}, Outputs: []string{"Out"}},
	FeedType:           {Inputs: []string{"X"}, Outputs: []string{"Out"}},
	FetchType:          {Inputs: []string{"X"}, Outputs: []string{"Out"}},
}

// OpInfos returns a copy of the argument-role table of the built-in kinds.
// Kinds added with Registry.Register are not listed; Registry.Info covers
// every kind a registry knows.
func OpInfos() map[string]OpInfo {
	infos := make(map[string]OpInfo, len(builtinOpInfos))
	for kind, info := range builtinOpInfos {
		infos[kind] = info.clone()
	}
	return infos
}

func (i OpInfo) clone() OpInfo {
	return OpInfo{Inputs: slices.Clone(i.Inputs), Outputs: slices.Clone(i.Outputs)}
}

// Creator builds a fully constructed operator from a graph description.
type Creator func(device gpu.Device, desc *graph.OpDesc, scope *graph.Scope) (Runnable, error)

// CreatorOf adapts the static constructor of a concrete operator type.
func CreatorOf[O Runnable](provide func(gpu.Device, *graph.OpDesc, *graph.Scope) (O, error)) Creator {
	return func(device gpu.Device, desc *graph.OpDesc, scope *graph.Scope) (Runnable, error) {
		op, err := provide(device, desc, scope)
		if err != nil {
			return nil, err
		}
		return op, nil
	}
}

type registration struct {
	info   OpInfo
	create Creator
}

// Registry maps operator kinds to their argument roles and creators.
type Registry struct {
	entries map[string]registration
}

// NewRegistry creates a registry with all built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(Conv2DType, builtinOpInfos[Conv2DType], CreatorOf(NewConv2DOp))
	r.Register(BatchNormType, builtinOpInfos[BatchNormType], CreatorOf(NewBatchNormOp))
	r.Register(ReluType, builtinOpInfos[ReluType], CreatorOf(NewReluOp))
	r.Register(ElementwiseAddType, builtinOpInfos[ElementwiseAddType], CreatorOf(NewElementwiseAddOp))
	r.Register(FeedType, builtinOpInfos[FeedType], CreatorOf(NewFeedOp))
	r.Register(FetchType, builtinOpInfos[FetchType], CreatorOf(NewFetchOp))

	return r
}

// Register adds or replaces an operator kind. The zero Registry is empty
// and ready to use.
func (r *Registry) Register(opType string, info OpInfo, create Creator) {
	if r.entries == nil {
		r.entries = make(map[string]registration)
	}
	r.entries[opType] = registration{info: info.clone(), create: create}
}

// Info returns the argument roles of an operator kind, including kinds added
// with Register.
func (r *Registry) Info(opType string) (OpInfo, bool) {
	e, ok := r.entries[opType]
	if !ok {
		return OpInfo{}, false
	}
	return e.info.clone(), true
}

// Get returns the creator of an operator kind.
func (r *Registry) Get(opType string) (Creator, bool) {
	e, ok := r.entries[opType]
	return e.create, ok
}

// Validate checks that desc binds every argument role its kind declares.
func (r *Registry) Validate(desc *graph.OpDesc) error {
	e, ok := r.entries[desc.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedOp, desc.Type)
	}
	for _, role := range e.info.Inputs {
		if !desc.HasInput(role) {
			return configErr(desc.Type, role, "input role not bound")
		}
	}
	for _, role := range e.info.Outputs {
		if !desc.HasOutput(role) {
			return configErr(desc.Type, role, "output role not bound")
		}
	}
	return nil
}

// Create validates desc and builds the operator for its kind.
func (r *Registry) Create(device gpu.Device, desc *graph.OpDesc, scope *graph.Scope) (Runnable, error) {
	if err := r.Validate(desc); err != nil {
		return nil, err
	}
	return r.entries[desc.Type].create(device, desc, scope)
}

// SupportedOps returns the registered kinds in sorted order.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.entries))
	for op := range r.entries {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}
