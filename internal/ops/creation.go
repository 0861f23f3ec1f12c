package ops

import (
	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/tensor"
)

// FromSlice creates a tensor holding values with the given shape. Without dims the
// tensor is 1D.
func FromSlice[T tensor.Element](e *engine.Engine, values []T, dims ...int) *engine.Tensor {
	shape := tensor.Shape(dims)
	if len(dims) == 0 {
		shape = tensor.Shape{len(values)}
	}
	return must(e.MakeTensor(values, shape, tensor.DataTypeOf[T]()))
}

// Scalar creates a rank 0 tensor.
func Scalar[T tensor.Element](e *engine.Engine, value T) *engine.Tensor {
	return must(e.MakeTensor([]T{value}, tensor.Shape{}, tensor.DataTypeOf[T]()))
}

// Fill creates a tensor with every element set to value.
func Fill(e *engine.Engine, shape tensor.Shape, value float64, dtype tensor.DataType) *engine.Tensor {
	outs := must(e.RunKernel(tensor.KernelFill, nil, tensor.Attrs{
		tensor.AttrShape: []int(shape.Clone()),
		tensor.AttrValue: value,
		tensor.AttrDType: dtype,
	}))
	return outs[0]
}

// Zeros creates a tensor of zeros.
func Zeros(e *engine.Engine, shape tensor.Shape, dtype tensor.DataType) *engine.Tensor {
	return Fill(e, shape, 0, dtype)
}

// Ones creates a tensor of ones.
func Ones(e *engine.Engine, shape tensor.Shape, dtype tensor.DataType) *engine.Tensor {
	return Fill(e, shape, 1, dtype)
}

// ZerosLike creates zeros with the shape and dtype of x.
func ZerosLike(x *engine.Tensor) *engine.Tensor {
	return Zeros(x.Engine(), x.Shape(), x.DType())
}

// OnesLike creates ones with the shape and dtype of x.
func OnesLike(x *engine.Tensor) *engine.Tensor {
	return Ones(x.Engine(), x.Shape(), x.DType())
}
