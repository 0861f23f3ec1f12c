// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides the differentiable tensor operations of the Born runtime.
//
// Operations run on the engine of their first input and panic with an error on failure;
// engine.Tidy-based code, gradient functions and engine.Profile turn the panic back into
// an error. Use Try elsewhere:
//
//	err := ops.Try(func() {
//	    y = ops.MatMul(a, b)
//	})
package ops

import (
	"github.com/born-ml/runtime/engine"
	"github.com/born-ml/runtime/internal/ops"
	"github.com/born-ml/runtime/tensor"
)

// Try runs fn and returns the error it panicked with, if any.
func Try(fn func()) error { return ops.Try(fn) }

// FromSlice creates a tensor holding values. Without dims the tensor is 1D.
func FromSlice[T tensor.Element](e *engine.Engine, values []T, dims ...int) *engine.Tensor {
	return ops.FromSlice(e, values, dims...)
}

// Scalar creates a rank 0 tensor.
func Scalar[T tensor.Element](e *engine.Engine, value T) *engine.Tensor {
	return ops.Scalar(e, value)
}

// Fill creates a tensor with every element set to value.
func Fill(e *engine.Engine, shape tensor.Shape, value float64, dtype tensor.DataType) *engine.Tensor {
	return ops.Fill(e, shape, value, dtype)
}

// Zeros creates a tensor of zeros.
func Zeros(e *engine.Engine, shape tensor.Shape, dtype tensor.DataType) *engine.Tensor {
	return ops.Zeros(e, shape, dtype)
}

// Ones creates a tensor of ones.
func Ones(e *engine.Engine, shape tensor.Shape, dtype tensor.DataType) *engine.Tensor {
	return ops.Ones(e, shape, dtype)
}

// ZerosLike creates zeros with the shape and dtype of x.
func ZerosLike(x *engine.Tensor) *engine.Tensor { return ops.ZerosLike(x) }

// OnesLike creates ones with the shape and dtype of x.
func OnesLike(x *engine.Tensor) *engine.Tensor { return ops.OnesLike(x) }

// Add returns a + b, broadcasting.
func Add(a, b *engine.Tensor) *engine.Tensor { return ops.Add(a, b) }

// Sub returns a - b, broadcasting.
func Sub(a, b *engine.Tensor) *engine.Tensor { return ops.Sub(a, b) }

// Mul returns a * b, broadcasting.
func Mul(a, b *engine.Tensor) *engine.Tensor { return ops.Mul(a, b) }

// Div returns a / b, broadcasting.
func Div(a, b *engine.Tensor) *engine.Tensor { return ops.Div(a, b) }

// Neg returns -x.
func Neg(x *engine.Tensor) *engine.Tensor { return ops.Neg(x) }

// Square returns x * x.
func Square(x *engine.Tensor) *engine.Tensor { return ops.Square(x) }

// Exp returns e^x.
func Exp(x *engine.Tensor) *engine.Tensor { return ops.Exp(x) }

// Log returns the natural logarithm of x.
func Log(x *engine.Tensor) *engine.Tensor { return ops.Log(x) }

// Sqrt returns the square root of x.
func Sqrt(x *engine.Tensor) *engine.Tensor { return ops.Sqrt(x) }

// Relu returns max(x, 0).
func Relu(x *engine.Tensor) *engine.Tensor { return ops.Relu(x) }

// Step returns 1 where x > 0 and alpha elsewhere.
func Step(x *engine.Tensor, alpha float64) *engine.Tensor { return ops.Step(x, alpha) }

// MatMul returns the matrix product of the 2D tensors a and b.
func MatMul(a, b *engine.Tensor) *engine.Tensor { return ops.MatMul(a, b) }

// Sum adds the elements of x along axes, or along every axis when none is given.
func Sum(x *engine.Tensor, axes ...int) *engine.Tensor { return ops.Sum(x, axes...) }

// SumKeepDims is Sum keeping the reduced axes with size 1.
func SumKeepDims(x *engine.Tensor, axes ...int) *engine.Tensor { return ops.SumKeepDims(x, axes...) }

// Mean averages the elements of x along axes, or along every axis when none is given.
func Mean(x *engine.Tensor, axes ...int) *engine.Tensor { return ops.Mean(x, axes...) }

// Reshape returns a tensor sharing the data of x under a new shape; one dimension may be -1.
func Reshape(x *engine.Tensor, dims ...int) *engine.Tensor { return ops.Reshape(x, dims...) }

// Transpose permutes the axes of x, reversing them without perm.
func Transpose(x *engine.Tensor, perm ...int) *engine.Tensor { return ops.Transpose(x, perm...) }

// Split cuts x into n equal parts along axis.
func Split(x *engine.Tensor, n, axis int) []*engine.Tensor { return ops.Split(x, n, axis) }

// SplitSizes cuts x along axis into parts of the given sizes.
func SplitSizes(x *engine.Tensor, sizes []int, axis int) []*engine.Tensor {
	return ops.SplitSizes(x, sizes, axis)
}

// Concat joins xs along axis.
func Concat(axis int, xs ...*engine.Tensor) *engine.Tensor { return ops.Concat(axis, xs...) }

// Clone returns a new handle on the data of x.
func Clone(x *engine.Tensor) *engine.Tensor { return ops.Clone(x) }

// Cast converts x to dtype.
func Cast(x *engine.Tensor, dtype tensor.DataType) *engine.Tensor { return ops.Cast(x, dtype) }
