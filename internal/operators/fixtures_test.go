package operators

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/gpu/gputest"
	"github.com/born-ml/gpuops/internal/graph"
	"github.com/born-ml/gpuops/internal/tensor"
)

func addVar(scope *graph.Scope, name string, shape tensor.Shape, persistable bool) *graph.Variable {
	v := scope.NewVar(name)
	v.Shape = shape
	v.Persistable = persistable
	return v
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i) - float32(n)/2
	}
	return out
}

// fixture returns a valid description of kind with its variables declared in
// a fresh scope. Output shapes are left for InferShape.
func fixture(t *testing.T, kind string) (*graph.OpDesc, *graph.Scope) {
	t.Helper()
	scope := graph.NewScope()

	var inputs, outputs map[string][]string
	var attrs map[string]graph.Attr
	switch kind {
	case Conv2DType:
		addVar(scope, "x", tensor.Shape{1, 3, 5, 5}, false)
		addVar(scope, "w", tensor.Shape{4, 3, 3, 3}, true)
		addVar(scope, "y", nil, false)
		inputs = map[string][]string{"Input": {"x"}, "Filter": {"w"}}
		outputs = map[string][]string{"Output": {"y"}}
		attrs = map[string]graph.Attr{
			"strides":   graph.IntsAttr(1, 1),
			"paddings":  graph.IntsAttr(1, 1),
			"dilations": graph.IntsAttr(1, 1),
			"groups":    graph.IntAttr(1),
		}
	case BatchNormType:
		addVar(scope, "x", tensor.Shape{1, 4, 2, 2}, false)
		for _, w := range []string{"scale", "bias", "mean", "variance"} {
			addVar(scope, w, tensor.Shape{4}, true)
		}
		addVar(scope, "y", nil, false)
		inputs = map[string][]string{
			"X": {"x"}, "Scale": {"scale"}, "Bias": {"bias"}, "Mean": {"mean"}, "Variance": {"variance"},
		}
		outputs = map[string][]string{"Y": {"y"}}
		attrs = map[string]graph.Attr{"epsilon": graph.FloatAttr(1e-5), "is_test": graph.BoolAttr(true)}
	case ReluType:
		addVar(scope, "x", tensor.Shape{1, 4, 2, 2}, false)
		addVar(scope, "out", nil, false)
		inputs = map[string][]string{"X": {"x"}}
		outputs = map[string][]string{"Out": {"out"}}
	case ElementwiseAddType:
		addVar(scope, "x", tensor.Shape{1, 4, 2, 2}, false)
		addVar(scope, "y", tensor.Shape{4}, true)
		addVar(scope, "out", nil, false)
		inputs = map[string][]string{"X": {"x"}, "Y": {"y"}}
		outputs = map[string][]string{"Out": {"out"}}
		attrs = map[string]graph.Attr{"axis": graph.IntAttr(1)}
	case FeedType:
		feed := addVar(scope, "feed", tensor.Shape{1, 3, 2, 2}, false)
		feed.Data = ramp(12)
		addVar(scope, "image", nil, false)
		inputs = map[string][]string{"X": {"feed"}}
		outputs = map[string][]string{"Out": {"image"}}
		attrs = map[string]graph.Attr{"col": graph.IntAttr(0)}
	case FetchType:
		addVar(scope, "result", tensor.Shape{1, 4}, false)
		addVar(scope, "fetch", nil, false)
		inputs = map[string][]string{"X": {"result"}}
		outputs = map[string][]string{"Out": {"fetch"}}
		attrs = map[string]graph.Attr{"col": graph.IntAttr(0)}
	default:
		t.Fatalf("no fixture for %q", kind)
	}
	return graph.NewOpDesc(kind, inputs, outputs, attrs, scope), scope
}

// allocate assigns a device buffer to every variable with a known shape.
// Variables named in readback get host-readable buffers.
func allocate(t *testing.T, dev gpu.Device, scope *graph.Scope, readback ...string) {
	t.Helper()
	rb := make(map[string]bool, len(readback))
	for _, name := range readback {
		rb[name] = true
	}
	for _, name := range scope.Names() {
		v, _ := scope.Var(name)
		if len(v.Shape) == 0 {
			continue
		}
		usage := gpu.UsageStorage
		if rb[name] {
			usage = gpu.UsageReadback
		}
		buf, err := dev.CreateBuffer(name, v.ByteSize(), usage)
		require.NoError(t, err)
		v.Buffer = buf
	}
}

// prepare creates kind on a recorder device, infers shapes and allocates buffers.
func prepare(t *testing.T, kind string) (*gputest.Device, Runnable, *graph.Scope) {
	t.Helper()
	dev := gputest.New()
	desc, scope := fixture(t, kind)
	op, err := NewRegistry().Create(dev, desc, scope)
	require.NoError(t, err)
	require.NoError(t, op.InferShape())

	var readback []string
	if kind == FetchType {
		readback = []string{"fetch"}
	}
	allocate(t, dev, scope, readback...)
	return dev, op, scope
}
