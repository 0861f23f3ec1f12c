package ops

import (
	"math"
	"testing"

	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grad(t *testing.T, e *engine.Engine, f func(x *engine.Tensor) *engine.Tensor, x *engine.Tensor, dy ...*engine.Tensor) any {
	t.Helper()
	g, err := e.Grad(f)(x, dy...)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), g.Shape())
	return values(t, g)
}

func grads(t *testing.T, e *engine.Engine, f func(xs ...*engine.Tensor) *engine.Tensor, xs ...*engine.Tensor) []any {
	t.Helper()
	gs, err := e.Grads(f)(xs)
	require.NoError(t, err)
	require.Len(t, gs, len(xs))
	result := make([]any, len(gs))
	for i, g := range gs {
		assert.Equal(t, xs[i].Shape(), g.Shape())
		result[i] = values(t, g)
	}
	return result
}

func TestSquareGradient(t *testing.T) {
	e := newEngine(t)
	x := FromSlice(e, []float32{1, 2, 3})
	assert.Equal(t, []float32{2, 4, 6}, grad(t, e, Square, x))

	dy := FromSlice(e, []float32{1, 10, 100})
	assert.Equal(t, []float32{2, 40, 600}, grad(t, e, Square, x, dy))
}

func TestGradientAccumulation(t *testing.T) {
	e := newEngine(t)
	x := FromSlice(e, []float32{1, 2, 3})
	assert.Equal(t, []float32{2, 2, 2}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Add(x, x)
	}, x))

	// x*x + x: 2x + 1
	assert.Equal(t, []float32{3, 5, 7}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Add(Mul(x, x), x)
	}, x))
}

func TestGradientReleasesIntermediates(t *testing.T) {
	e := newEngine(t)
	x := FromSlice(e, []float32{1, 2, 3})
	before := e.Memory()

	y, g, err := e.ValueAndGrad(func(x *engine.Tensor) *engine.Tensor {
		return Sum(Exp(Square(x)))
	})(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{}, y.Shape())

	after := e.Memory()
	assert.Equal(t, before.NumTensors+2, after.NumTensors)
	assert.Equal(t, before.NumBytes+4+12, after.NumBytes)
	g.Dispose()
	y.Dispose()
	assert.Equal(t, before, e.Memory())
}

func TestBroadcastGradients(t *testing.T) {
	e := newEngine(t)
	a := FromSlice(e, []float32{1, 2, 3}, 3, 1)
	b := Ones(e, tensor.Shape{3, 4}, tensor.Float32)

	gs := grads(t, e, func(xs ...*engine.Tensor) *engine.Tensor { return Add(xs[0], xs[1]) }, a, b)
	assert.Equal(t, []float32{4, 4, 4}, gs[0])
	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}, gs[1])

	x := FromSlice(e, []float32{1, 2, 3, 4}, 2, 2)
	s := Scalar(e, float32(3))
	gs = grads(t, e, func(xs ...*engine.Tensor) *engine.Tensor { return Sub(xs[0], xs[1]) }, x, s)
	assert.Equal(t, []float32{1, 1, 1, 1}, gs[0])
	assert.Equal(t, []float32{-4}, gs[1])

	gs = grads(t, e, func(xs ...*engine.Tensor) *engine.Tensor { return Mul(xs[0], xs[1]) }, x, s)
	assert.Equal(t, []float32{3, 3, 3, 3}, gs[0])
	assert.Equal(t, []float32{10}, gs[1])
}

func TestElementwiseGradients(t *testing.T) {
	e := newEngine(t)

	a, b := FromSlice(e, []float32{6}), FromSlice(e, []float32{2})
	gs := grads(t, e, func(xs ...*engine.Tensor) *engine.Tensor { return Div(xs[0], xs[1]) }, a, b)
	assert.Equal(t, []float32{0.5}, gs[0])
	assert.Equal(t, []float32{-1.5}, gs[1])

	assert.Equal(t, []float32{-1, -1}, grad(t, e, Neg, FromSlice(e, []float32{1, 2})))
	assert.Equal(t, []float32{1}, grad(t, e, Exp, FromSlice(e, []float32{0})))
	assert.Equal(t, []float32{0.5}, grad(t, e, Log, FromSlice(e, []float32{2})))
	assert.Equal(t, []float32{0.25}, grad(t, e, Sqrt, FromSlice(e, []float32{4})))
	assert.Equal(t, []float32{0, 1}, grad(t, e, Relu, FromSlice(e, []float32{-1, 2})))
	assert.Equal(t, []float32{0, 0}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Step(x, 0)
	}, FromSlice(e, []float32{-1, 2})))
}

func TestReductionGradients(t *testing.T) {
	e := newEngine(t)
	x := FromSlice(e, []float32{1, 2, 3, 4, 5, 6}, 2, 3)

	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Sum(x, 1)
	}, x))

	dy := FromSlice(e, []float32{1, 2, 3}, 1, 3)
	assert.Equal(t, []float32{1, 2, 3, 1, 2, 3}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return SumKeepDims(x, 0)
	}, x, dy))

	v := FromSlice(e, []float32{1, 2, 3, 4})
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Mean(x)
	}, v))
}

func TestShapeGradients(t *testing.T) {
	e := newEngine(t)
	x := FromSlice(e, []float32{1, 2, 3, 4, 5, 6}, 2, 3)
	w := FromSlice(e, []float32{1, 2, 3, 4, 5, 6}, 3, 2)

	assert.Equal(t, []float32{1, 3, 5, 2, 4, 6}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Sum(Mul(Transpose(x), w))
	}, x))

	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Sum(Mul(Reshape(x, 3, -1), w))
	}, x))

	v := FromSlice(e, []float32{1, 2, 3, 4})
	assert.Equal(t, []float32{0, 0, 6, 8}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		parts := Split(x, 2, 0)
		return Square(parts[1])
	}, v), "unused split outputs get zero gradients")

	a, b := FromSlice(e, []float32{1}), FromSlice(e, []float32{1, 1})
	weights := FromSlice(e, []float32{1, 2, 3})
	gs := grads(t, e, func(xs ...*engine.Tensor) *engine.Tensor {
		return Mul(Concat(0, xs...), weights)
	}, a, b)
	assert.Equal(t, []float32{1}, gs[0])
	assert.Equal(t, []float32{2, 3}, gs[1])

	assert.Equal(t, []float32{1, 1, 1, 1, 1, 1}, grad(t, e, Clone, x))
}

func TestMatMulGradient(t *testing.T) {
	e := newEngine(t)
	a := FromSlice(e, []float32{1, 2}, 1, 2)
	b := FromSlice(e, []float32{3, 4}, 2, 1)
	gs := grads(t, e, func(xs ...*engine.Tensor) *engine.Tensor { return MatMul(xs[0], xs[1]) }, a, b)
	assert.Equal(t, []float32{3, 4}, gs[0])
	assert.Equal(t, []float32{1, 2}, gs[1])
}

func TestIntegerSourcesGetFloatGradients(t *testing.T) {
	e := newEngine(t)
	x := FromSlice(e, []int32{1, 2})

	g, err := e.Grad(func(x *engine.Tensor) *engine.Tensor { return Add(x, x) })(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, g.DType())
	assert.Equal(t, []float32{2, 2}, values(t, g))

	three := FromSlice(e, []float32{3, 3})
	assert.Equal(t, []float32{3, 3}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Mul(Cast(x, tensor.Float32), three)
	}, x))

	assert.Equal(t, []float32{2, 4}, grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Mul(x, x)
	}, x))
}

// numericalGradient computes the gradient of f using central finite differences.
func numericalGradient(f func(float64) float64, x, epsilon float64) float64 {
	return (f(x+epsilon) - f(x-epsilon)) / (2 * epsilon)
}

// TestNumericalGradient_Composite checks f(x) = sum(exp(x) * x / (x + 2)) against
// finite differences.
func TestNumericalGradient_Composite(t *testing.T) {
	e := newEngine(t)
	points := []float64{-1.5, -0.2, 0.3, 1.7}
	x := FromSlice(e, points)
	two := Scalar(e, 2.0)

	got := grad(t, e, func(x *engine.Tensor) *engine.Tensor {
		return Sum(Div(Mul(Exp(x), x), Add(x, two)))
	}, x).([]float64)

	f := func(v float64) float64 { return math.Exp(v) * v / (v + 2) }
	for i, p := range points {
		assert.InDelta(t, numericalGradient(f, p, 1e-6), got[i], 1e-5, "x=%v", p)
	}
}
