// Package ops implements tensor operations on top of engine.RunKernel and registers their
// gradients with the engine.
//
// Operations report failures by panicking with an error, the way kernels do: inside
// engine.Gradients, Tidy-based helpers and Profile the panic is turned back into a
// returned error. Use Try to do the same elsewhere.
//
// Supported operations:
//   - Element-wise arithmetic with broadcasting: Add, Sub, Mul, Div
//   - Element-wise math: Neg, Square, Exp, Log, Sqrt, Relu, Step
//   - Reductions: Sum, SumKeepDims, Mean
//   - Shape manipulation: Reshape, Transpose, Split, SplitSizes, Concat, Clone
//   - Linear algebra: MatMul
//   - Conversion and creation: Cast, FromSlice, Scalar, Fill, Zeros, Ones, ZerosLike, OnesLike
package ops

import (
	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Try runs fn and returns the error it panicked with, if any.
func Try(fn func()) error {
	return exceptions.TryCatch[error](fn)
}

// runN runs a kernel on the engine of its first input.
func runN(name string, attrs tensor.Attrs, inputs ...*engine.Tensor) []*engine.Tensor {
	if len(inputs) == 0 || inputs[0] == nil {
		exceptions.Panicf("%s: missing input tensor", name)
	}
	outs, err := inputs[0].Engine().RunKernel(name, inputs, attrs)
	if err != nil {
		panic(err)
	}
	return outs
}

func run(name string, attrs tensor.Attrs, inputs ...*engine.Tensor) *engine.Tensor {
	return runN(name, attrs, inputs...)[0]
}

// must panics with err if it is not nil.
func must[T any](v T, err error) T {
	if err != nil {
		panic(errors.WithStack(err))
	}
	return v
}
