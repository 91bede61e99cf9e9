package gputest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpuops/internal/gpu"
)

func TestRecorderAppliesWritesAtSubmit(t *testing.T) {
	d := New()
	src, err := d.CreateBuffer("src", 8, gpu.UsageStorage)
	require.NoError(t, err)
	dst, err := d.CreateBuffer("dst", 8, gpu.UsageReadback)
	require.NoError(t, err)

	cmd, err := d.NewCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cmd.WriteBuffer(src, []byte{1, 2, 3, 4, 5, 6, 7, 8}))
	require.NoError(t, cmd.CopyBuffer(src, dst, 4))

	before, err := d.ReadBuffer(dst)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 8), before, "nothing runs before submission")

	require.NoError(t, d.Submit(cmd))
	after, err := d.ReadBuffer(dst)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, after)

	assert.ErrorIs(t, d.Submit(cmd), gpu.ErrAlreadySubmitted)
	assert.ErrorIs(t, cmd.WriteBuffer(src, []byte{1}), gpu.ErrAlreadySubmitted)
}

func TestRecorderDiscard(t *testing.T) {
	d := New()
	buf, err := d.CreateBuffer("buf", 4, gpu.UsageStorage)
	require.NoError(t, err)

	cmd, err := d.NewCommandBuffer()
	require.NoError(t, err)
	require.NoError(t, cmd.WriteBuffer(buf, []byte{9, 9, 9, 9}))
	cmd.Discard()
	cmd.Discard()

	require.Len(t, d.Discarded, 1)
	assert.Equal(t, make([]byte, 4), d.Buffers["buf"].Data, "discarded writes never land")
	assert.ErrorIs(t, d.Submit(cmd), gpu.ErrDiscarded)
	assert.ErrorIs(t, cmd.WriteBuffer(buf, []byte{1}), gpu.ErrDiscarded)
	assert.Empty(t, d.Submitted)

	// Discarding after submission does nothing.
	submitted, _ := d.NewCommandBuffer()
	require.NoError(t, d.Submit(submitted))
	submitted.Discard()
	assert.Len(t, d.Discarded, 1)
}

func TestRecorderDispatch(t *testing.T) {
	d := New()
	p, err := d.CompilePipeline("relu", "fn main() {}")
	require.NoError(t, err)
	again, err := d.CompilePipeline("relu", "fn main() {}")
	require.NoError(t, err)
	assert.Same(t, p, again)
	assert.Equal(t, 2, d.Compilations["relu"])

	in, _ := d.CreateBuffer("in", 16, gpu.UsageStorage)
	out, _ := d.CreateBuffer("out", 16, gpu.UsageStorage)
	cmd, _ := d.NewCommandBuffer()
	require.NoError(t, cmd.Dispatch(p, gpu.Linear(4), []byte{4, 0, 0, 0}, in, out))
	assert.Empty(t, d.Dispatches(), "unsubmitted work is not reported")

	require.NoError(t, d.Submit(cmd))
	ops := d.Dispatches()
	require.Len(t, ops, 1)
	assert.Equal(t, "relu", ops[0].Pipeline)
	assert.Equal(t, []string{"in", "out"}, ops[0].Buffers)
	assert.Equal(t, gpu.Workgroups{X: 1, Y: 1, Z: 1}, ops[0].Groups)
}

func TestRecorderFailureInjection(t *testing.T) {
	d := New()
	boom := errors.New("boom")

	d.CompileErr = boom
	_, err := d.CompilePipeline("x", "")
	assert.ErrorIs(t, err, boom)

	d.CreateErr = boom
	_, err = d.CreateBuffer("x", 4, gpu.UsageStorage)
	assert.ErrorIs(t, err, boom)

	d.SubmitErr = boom
	cmd, _ := d.NewCommandBuffer()
	assert.ErrorIs(t, d.Submit(cmd), boom)
}

func TestRecorderRejectsForeignAndOversized(t *testing.T) {
	d := New()
	small, _ := d.CreateBuffer("small", 4, gpu.UsageStorage)
	cmd, _ := d.NewCommandBuffer()
	assert.ErrorIs(t, cmd.WriteBuffer(small, make([]byte, 8)), gpu.ErrBufferTooSmall)

	other, _ := New().NewCommandBuffer()
	assert.Error(t, d.Submit(other))

	d.ReleaseBuffer(small)
	assert.Equal(t, []string{"small"}, d.Released)
	assert.NotContains(t, d.Buffers, "small")
}
