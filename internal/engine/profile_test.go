package engine

import (
	"testing"

	"github.com/born-ml/runtime/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileSquares(t *testing.T) {
	e := newTestEngine(t)

	result, info, err := Profile(e, func() *Tensor {
		x := mustMake(t, e, []float32{1, 2, 3}, 3)
		y := mustRun(t, e, tensor.KernelSquare, nil, x)
		y.Dispose()
		y = mustRun(t, e, tensor.KernelSquare, nil, x)
		y.Dispose()
		return x
	})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, mustRead(t, result))

	assert.Equal(t, []string{"square", "square"}, info.KernelNames())
	assert.Equal(t, 1, info.NewTensors)
	assert.Equal(t, 12, info.NewBytes)
	assert.Equal(t, 24, info.PeakBytes)

	k := info.Kernels[0]
	assert.Equal(t, 12, k.BytesAdded)
	assert.Equal(t, 1, k.TensorsAdded)
	assert.Equal(t, 24, k.TotalBytesSnapshot)
	assert.Equal(t, []tensor.Shape{{3}}, k.InputShapes)
	assert.Equal(t, []tensor.Shape{{3}}, k.OutputShapes)
	assert.Contains(t, info.String(), "2 kernels")
}

func TestProfileNested(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1, 2}, 2)

	_, outer, err := Profile(e, func() *Tensor {
		neg := mustRun(t, e, tensor.KernelNeg, nil, x)
		_, inner, err := Profile(e, func() *Tensor {
			return mustRun(t, e, tensor.KernelSquare, nil, neg)
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"square"}, inner.KernelNames())
		assert.Equal(t, 24, inner.PeakBytes, "peak is an absolute total")
		return neg
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"neg", "square"}, outer.KernelNames())
	assert.Equal(t, 2, outer.NewTensors)
	assert.Empty(t, e.profiles)
}

func TestProfilePanic(t *testing.T) {
	e := newTestEngine(t)
	_, _, err := Profile(e, func() *Tensor {
		x := mustMake(t, e, []float32{1}, 1)
		_, err := e.RunKernel(tensor.KernelMatMul, []*Tensor{x, x}, nil)
		panic(err)
	})
	assert.Error(t, err)
	assert.Empty(t, e.profiles)
}
