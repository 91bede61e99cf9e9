package operators

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpuops/internal/gpu"
	"github.com/born-ml/gpuops/internal/gpu/gputest"
	"github.com/born-ml/gpuops/internal/graph"
)

var allKinds = []string{Conv2DType, BatchNormType, ReluType, ElementwiseAddType, FeedType, FetchType}

// metadata exposes the copied description fields of any built-in operator.
type metadata interface {
	Inputs() map[string][]string
	ParaInputs() map[string][]string
	Outputs() map[string][]string
	Attrs() map[string]graph.Attr
}

func TestOperatorCopiesDescription(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(kind, func(t *testing.T) {
			desc, scope := fixture(t, kind)
			op, err := NewRegistry().Create(gputest.New(), desc, scope)
			require.NoError(t, err)
			require.NotNil(t, op)

			assert.Equal(t, kind, op.Type())
			m, ok := op.(metadata)
			require.True(t, ok, "%T does not expose its metadata", op)
			assert.Equal(t, desc.Inputs, m.Inputs())
			assert.Equal(t, desc.ParaInputs, m.ParaInputs())
			assert.Equal(t, desc.Outputs, m.Outputs())
			assert.Equal(t, desc.Attrs, m.Attrs())

			// Later edits to the description are not observed.
			desc.Type = "changed"
			desc.Outputs["Extra"] = []string{"z"}
			assert.Equal(t, kind, op.Type())
			assert.NotContains(t, m.Outputs(), "Extra")
		})
	}
}

func TestOperatorAccessorsReturnCopies(t *testing.T) {
	desc, scope := fixture(t, Conv2DType)
	op, err := NewConv2DOp(gputest.New(), desc, scope)
	require.NoError(t, err)

	op.Inputs()["Input"][0] = "mutated"
	op.Attrs()["strides"].Ints[0] = 9
	assert.Equal(t, []string{"x"}, op.Inputs()["Input"])
	assert.Equal(t, []int64{1, 1}, op.Attrs()["strides"].Ints)
}

func TestMissingRequiredFieldsFailConstruction(t *testing.T) {
	tests := []struct {
		kind   string
		field  string
		mutate func(d *graph.OpDesc)
	}{
		{Conv2DType, "strides", func(d *graph.OpDesc) { delete(d.Attrs, "strides") }},
		{Conv2DType, "groups", func(d *graph.OpDesc) { d.Attrs["groups"] = graph.StringAttr("one") }},
		{Conv2DType, "paddings", func(d *graph.OpDesc) { d.Attrs["paddings"] = graph.IntsAttr(1) }},
		{Conv2DType, "Filter", func(d *graph.OpDesc) { delete(d.ParaInputs, "Filter") }},
		{Conv2DType, "strides", func(d *graph.OpDesc) { d.Attrs["strides"] = graph.IntsAttr(0, 1) }},
		{BatchNormType, "epsilon", func(d *graph.OpDesc) { delete(d.Attrs, "epsilon") }},
		{BatchNormType, "is_test", func(d *graph.OpDesc) { d.Attrs["is_test"] = graph.IntAttr(1) }},
		{BatchNormType, "Variance", func(d *graph.OpDesc) { delete(d.ParaInputs, "Variance") }},
		{ReluType, "X", func(d *graph.OpDesc) { d.Inputs["X"] = []string{"nowhere"} }},
		{ElementwiseAddType, "axis", func(d *graph.OpDesc) { delete(d.Attrs, "axis") }},
		{ElementwiseAddType, "axis", func(d *graph.OpDesc) { d.Attrs["axis"] = graph.IntAttr(-3) }},
		{FeedType, "col", func(d *graph.OpDesc) { delete(d.Attrs, "col") }},
		{FetchType, "col", func(d *graph.OpDesc) { d.Attrs["col"] = graph.FloatAttr(0.5) }},
	}

	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.field, func(t *testing.T) {
			desc, scope := fixture(t, tt.kind)
			tt.mutate(desc)

			create, ok := NewRegistry().Get(tt.kind)
			require.True(t, ok)
			op, err := create(gputest.New(), desc, scope)
			require.Error(t, err)
			assert.Nil(t, op, "no operator may be returned on failure")

			var cfg *ConfigurationError
			require.ErrorAs(t, err, &cfg)
			assert.Equal(t, tt.kind, cfg.Op)
			assert.Equal(t, tt.field, cfg.Field)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestConstructionWithoutScopeFails(t *testing.T) {
	desc, _ := fixture(t, ReluType)
	op, err := NewReluOp(gputest.New(), desc, nil)
	assert.Nil(t, op)
	assert.ErrorIs(t, err, ErrConfiguration)
}

// recordingKernel records every Compute call and returns err.
type recordingKernel struct {
	params []*ReluParam
	cmds   []gpu.CommandBuffer
	err    error
}

func (k *recordingKernel) Compute(p *ReluParam, cmd gpu.CommandBuffer) error {
	k.params = append(k.params, p)
	k.cmds = append(k.cmds, cmd)
	return k.err
}

func newRecordingOp(t *testing.T, err error) *Operator[*ReluParam, *recordingKernel] {
	t.Helper()
	desc, scope := fixture(t, ReluType)
	op, opErr := NewOperator(gputest.New(), desc, scope, NewReluParam,
		func(gpu.Device) *recordingKernel { return &recordingKernel{err: err} })
	require.NoError(t, opErr)
	return op
}

func TestRunComputesOnceWithOwnParam(t *testing.T) {
	first := newRecordingOp(t, nil)
	second := newRecordingOp(t, nil)
	dev := gputest.New()
	cmd, err := dev.NewCommandBuffer()
	require.NoError(t, err)

	require.NoError(t, first.Run(dev, cmd))

	k := first.Kernel()
	require.Len(t, k.params, 1)
	assert.Same(t, first.Param(), k.params[0])
	assert.Same(t, cmd, k.cmds[0])
	assert.Empty(t, second.Kernel().params, "a sibling kernel is never invoked")
}

func TestRunReturnsIdenticalError(t *testing.T) {
	want := &ExecutionError{Op: ReluType, Err: errors.New("device lost")}
	op := newRecordingOp(t, want)
	param, kernel := op.Param(), op.Kernel()

	dev := gputest.New()
	cmd, err := dev.NewCommandBuffer()
	require.NoError(t, err)

	err = op.Run(dev, cmd)
	assert.Same(t, want, err, "Run must not wrap kernel errors")
	assert.Same(t, param, op.Param())
	assert.Same(t, kernel, op.Kernel())
	assert.Len(t, kernel.params, 1)
}

func TestSiblingOperatorsAreIndependent(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(kind, func(t *testing.T) {
			dev := gputest.New()
			reg := NewRegistry()
			descA, scopeA := fixture(t, kind)
			descB, scopeB := fixture(t, kind)

			a, err := reg.Create(dev, descA, scopeA)
			require.NoError(t, err)
			b, err := reg.Create(dev, descB, scopeB)
			require.NoError(t, err)

			pa, ka := partsOf(t, a)
			pb, kb := partsOf(t, b)
			assert.NotSame(t, pa, pb)
			assert.NotSame(t, ka, kb)
		})
	}
}

// partsOf returns the parameter block and kernel of a built-in operator.
func partsOf(t *testing.T, op Runnable) (any, any) {
	t.Helper()
	switch o := op.(type) {
	case *Conv2DOp:
		return o.Param(), o.Kernel()
	case *BatchNormOp:
		return o.Param(), o.Kernel()
	case *ReluOp:
		return o.Param(), o.Kernel()
	case *ElementwiseAddOp:
		return o.Param(), o.Kernel()
	case *FeedOp:
		return o.Param(), o.Kernel()
	case *FetchOp:
		return o.Param(), o.Kernel()
	default:
		t.Fatalf("unexpected operator %T", op)
		return nil, nil
	}
}

func TestDelogOutput(t *testing.T) {
	for _, kind := range allKinds {
		_, op, _ := prepare(t, kind)
		assert.NotPanics(t, op.DelogOutput, kind)
	}
}

func TestOperatorString(t *testing.T) {
	_, op, _ := prepare(t, ReluType)
	s, ok := op.(interface{ String() string })
	require.True(t, ok)
	assert.Equal(t, "relu: out[1 4 2 2](float32)", s.String())
}
