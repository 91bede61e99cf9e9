// Package executor drives a program through the operator registry: it builds
// every node in program order, infers shapes, assigns device buffers and runs
// inference passes on a single command buffer each.
package executor

import (
	"context"
	"fmt"
	"slices"

	"k8s.io/klog/v2"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/graph"
	"github.com/born-ml/gpuops/internal/operators"
	"github.com/born-ml/gpuops/internal/tensor"
)

// Executor runs one program on one device. It is not safe for concurrent use.
type Executor struct {
	log     klog.Logger
	device  gpu.Device
	scope   *graph.Scope
	ops     []operators.Runnable
	feeds   map[string]*graph.Variable
	feedOut map[string]*graph.Variable
	fetches []*graph.Variable
	buffers []gpu.Buffer
	debug   bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithDebug logs every operator's outputs after each pass.
func WithDebug(debug bool) Option {
	return func(e *Executor) { e.debug = debug }
}

// New builds the operators of prog with reg, infers shapes, allocates one
// buffer per variable and uploads the persistable weights. Node failures are
// reported with the node index and kind; the operator error stays reachable
// through errors.As.
func New(ctx context.Context, device gpu.Device, prog *graph.Program, reg *operators.Registry, opts ...Option) (*Executor, error) {
	scope, err := prog.NewScope()
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}

	e := &Executor{
		log:     klog.FromContext(ctx),
		device:  device,
		scope:   scope,
		feeds:   make(map[string]*graph.Variable),
		feedOut: make(map[string]*graph.Variable),
	}
	for _, opt := range opts {
		opt(e)
	}

	for i, desc := range prog.OpDescs(scope) {
		op, err := reg.Create(device, desc, scope)
		if err != nil {
			return nil, nodeErr(i, desc.Type, err)
		}
		if err := op.InferShape(); err != nil {
			return nil, nodeErr(i, desc.Type, err)
		}
		switch o := op.(type) {
		case *operators.FeedOp:
			p := o.Param()
			e.feeds[p.Input.Name] = p.Input
			e.feedOut[p.Input.Name] = p.Output
		case *operators.FetchOp:
			e.fetches = append(e.fetches, o.Param().Output)
		}
		e.ops = append(e.ops, op)
	}
	e.log.V(1).Info("built program", "name", prog.Name, "ops", len(e.ops), "vars", scope.Len())

	if err := e.allocate(); err != nil {
		e.Release()
		return nil, err
	}
	if err := e.uploadWeights(); err != nil {
		e.Release()
		return nil, err
	}
	return e, nil
}

func nodeErr(i int, opType string, err error) error {
	return fmt.Errorf("executor: op #%d (%s): %w", i, opType, err)
}

// allocate assigns a buffer to every shaped variable except host-side feeds.
// Fetch outputs get readback buffers.
func (e *Executor) allocate() error {
	for _, name := range e.scope.Names() {
		v, _ := e.scope.Var(name)
		if _, isFeed := e.feeds[name]; isFeed || len(v.Shape) == 0 {
			continue
		}
		if v.DType != tensor.Float32 {
			return fmt.Errorf("executor: variable %s: only float32 device storage is supported", v)
		}
		if err := v.Shape.Validate(); err != nil {
			return fmt.Errorf("executor: variable %s: %w", v, err)
		}

		usage := gpu.UsageStorage
		if slices.Contains(e.fetches, v) {
			usage = gpu.UsageReadback
		}
		buf, err := e.device.CreateBuffer(name, v.ByteSize(), usage)
		if err != nil {
			return fmt.Errorf("executor: allocating %s: %w", v, err)
		}
		v.Buffer = buf
		e.buffers = append(e.buffers, buf)
	}
	e.log.V(2).Info("allocated buffers", "count", len(e.buffers))
	return nil
}

// uploadWeights writes every persistable variable's values in one submission.
func (e *Executor) uploadWeights() error {
	cmd, err := e.device.NewCommandBuffer()
	if err != nil {
		return fmt.Errorf("executor: %w", err)
	}
	defer cmd.Discard()
	uploaded := 0
	for _, name := range e.scope.Names() {
		v, _ := e.scope.Var(name)
		if !v.Persistable || v.Buffer == nil {
			continue
		}
		if len(v.Data) != v.Shape.NumElements() {
			return fmt.Errorf("executor: weight %s has %d values, want %d", v, len(v.Data), v.Shape.NumElements())
		}
		if err := cmd.WriteBuffer(v.Buffer, tensor.EncodeFloat32(v.Data)); err != nil {
			return fmt.Errorf("executor: uploading %s: %w", v, err)
		}
		uploaded++
	}
	if err := e.device.Submit(cmd); err != nil {
		return fmt.Errorf("executor: uploading weights: %w", err)
	}
	e.log.V(2).Info("uploaded weights", "count", uploaded)
	return nil
}

// Predict runs one inference pass. feeds maps feed variable names to their
// values; the result maps fetch variable names to the values read back.
func (e *Executor) Predict(ctx context.Context, feeds map[string][]float32) (map[string][]float32, error) {
	for name, data := range feeds {
		v, ok := e.feeds[name]
		if !ok {
			return nil, fmt.Errorf("executor: %q is not a feed variable", name)
		}
		v.Data = slices.Clone(data)
	}

	cmd, err := e.device.NewCommandBuffer()
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}
	defer cmd.Discard()
	for i, op := range e.ops {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("executor: before op #%d (%s): %w", i, op.Type(), err)
		}
		if err := op.Run(e.device, cmd); err != nil {
			return nil, nodeErr(i, op.Type(), err)
		}
	}
	if err := e.device.Submit(cmd); err != nil {
		return nil, fmt.Errorf("executor: submit: %w", err)
	}

	results := make(map[string][]float32, len(e.fetches))
	for _, v := range e.fetches {
		raw, err := e.device.ReadBuffer(v.Buffer)
		if err != nil {
			return nil, fmt.Errorf("executor: reading %s: %w", v, err)
		}
		values, err := tensor.DecodeFloats(raw[:v.ByteSize()], v.DType)
		if err != nil {
			return nil, fmt.Errorf("executor: decoding %s: %w", v, err)
		}
		v.Data = values
		results[v.Name] = values
	}

	if e.debug {
		for _, op := range e.ops {
			op.DelogOutput()
		}
	}
	e.log.V(1).Info("predict done", "ops", len(e.ops), "fetches", len(results))
	return results, nil
}

// Ops returns the operators in program order.
func (e *Executor) Ops() []operators.Runnable {
	return slices.Clone(e.ops)
}

// Scope returns the scope holding the program's variables.
func (e *Executor) Scope() *graph.Scope {
	return e.scope
}

// FeedNames returns the feed variable names in sorted order.
func (e *Executor) FeedNames() []string {
	names := make([]string, 0, len(e.feeds))
	for name := range e.feeds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// FeedShape returns the shape the values of a feed variable must fill.
func (e *Executor) FeedShape(name string) (tensor.Shape, bool) {
	out, ok := e.feedOut[name]
	if !ok {
		return nil, false
	}
	return out.Shape.Clone(), true
}

// Release returns every buffer to the device. The device itself stays open.
func (e *Executor) Release() {
	for _, buf := range e.buffers {
		e.device.ReleaseBuffer(buf)
	}
	e.buffers = nil
}
