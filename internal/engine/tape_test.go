package engine

import (
	"context"
	"testing"

	"github.com/born-ml/runtime/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradientOfKernelWithoutGradient(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1, 2}, 2)

	_, err := e.Grad(func(x *Tensor) *Tensor {
		return mustRun(t, e, kernelDouble, nil, x)
	})(x)
	assert.ErrorIs(t, err, ErrTapeReplay)
	assert.Contains(t, err.Error(), kernelDouble)
	assert.Equal(t, 1, e.NumLiveTensors())
}

func TestGradientOfUnrelatedSourceIsZero(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1, 2}, 2)
	c := mustMake(t, e, []int32{5, 6}, 2)

	grads, err := e.Grads(func(xs ...*Tensor) *Tensor {
		return mustRun(t, e, kernelDouble, nil, xs[1])
	})([]*Tensor{x, c})
	require.Error(t, err, "the path through the doubling kernel has no gradient")
	assert.Nil(t, grads)

	grad, err := e.Grad(func(*Tensor) *Tensor {
		return mustRun(t, e, kernelDouble, nil, c)
	})(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, grad.DType())
	assert.Equal(t, []float32{0, 0}, mustRead(t, grad))
	assert.Equal(t, 3, e.NumLiveTensors())
}

func TestGradientSeedShapeMismatch(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1, 2}, 2)
	dy := mustMake(t, e, []float32{1, 2, 3}, 3)

	_, err := e.Grad(func(x *Tensor) *Tensor { return x })(x, dy)
	assert.ErrorIs(t, err, ErrTapeReplay)
	assert.Equal(t, 2, e.NumLiveTensors())
}

func TestGradientOfIdentityFunction(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1, 2}, 2)

	y, grad, err := e.ValueAndGrad(func(x *Tensor) *Tensor { return x })(x)
	require.NoError(t, err)
	assert.NotEqual(t, x.ID(), y.ID(), "results are owned by the caller")
	assert.Equal(t, x.DataID(), y.DataID())
	assert.Equal(t, []float32{1, 1}, mustRead(t, grad))

	y.Dispose()
	assert.False(t, x.IsDisposed())
}

func TestGradientForwardFailure(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1, 2}, 2)

	_, err := e.Grad(func(x *Tensor) *Tensor {
		_, err := x.Data(context.Background())
		panic(err)
	})(x)
	assert.ErrorIs(t, err, ErrSuspendInScope)
	assert.Empty(t, e.tapes)
	assert.Len(t, e.scopes, 1)
	assert.Equal(t, 1, e.NumLiveTensors())
}

func TestGradientsValidation(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1}, 1)

	_, _, err := e.Gradients(func() *Tensor { return x }, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	x.Dispose()
	_, _, err = e.Gradients(func() *Tensor { return x }, []*Tensor{x}, nil)
	assert.ErrorIs(t, err, ErrDisposedTensor)
}

func TestCustomGradValidation(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1}, 1)

	f := e.CustomGrad(func(inputs []*Tensor, save func(...*Tensor)) (*Tensor, func(*Tensor, []*Tensor) []*Tensor) {
		save(inputs[0])
		return mustRun(t, e, tensor.KernelNeg, nil, inputs[0]), nil
	})
	_, err := f(x)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 1, e.NumLiveTensors())
}

func TestNonErrorPanicRestoresState(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1, 2}, 2)

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = e.Grad(func(x *Tensor) *Tensor {
			_, _, _ = Profile(e, func() *Tensor {
				_, _ = e.CustomGrad(func(inputs []*Tensor, save func(...*Tensor)) (*Tensor, func(*Tensor, []*Tensor) []*Tensor) {
					save(inputs[0])
					panic("boom")
				})(x)
				return nil
			})
			return x
		})(x)
	})
	assert.Empty(t, e.tapes)
	assert.Empty(t, e.profiles)
	assert.Zero(t, e.kernelDepth)
	assert.Len(t, e.scopes, 1)
	assert.Equal(t, 1, e.NumLiveTensors())
	require.NoError(t, e.Ready(context.Background()))
}
