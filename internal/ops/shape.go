package ops

import (
	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
)

// Reshape returns a tensor sharing the data of x under a new shape. One dimension may be
// -1, inferred from the others.
func Reshape(x *engine.Tensor, dims ...int) *engine.Tensor {
	shape := inferShape(x.Size(), dims)
	return run(tensor.KernelReshape, tensor.Attrs{tensor.AttrShape: []int(shape)}, x)
}

func inferShape(size int, dims []int) tensor.Shape {
	shape := make(tensor.Shape, len(dims))
	copy(shape, dims)
	inferred := -1
	known := 1
	for i, d := range shape {
		switch {
		case d == -1 && inferred >= 0:
			exceptions.Panicf("reshape: more than one inferred dimension in %v", dims)
		case d == -1:
			inferred = i
		case d < 0:
			exceptions.Panicf("reshape: invalid dimension %d in %v", d, dims)
		default:
			known *= d
		}
	}
	if inferred >= 0 {
		if known == 0 || size%known != 0 {
			exceptions.Panicf("reshape: cannot infer dimension of %v for %d elements", dims, size)
		}
		shape[inferred] = size / known
	}
	return shape
}

// Transpose permutes the axes of x. Without perm, the axes are reversed.
func Transpose(x *engine.Tensor, perm ...int) *engine.Tensor {
	attrs := tensor.Attrs{}
	if len(perm) > 0 {
		attrs[tensor.AttrPerm] = append([]int(nil), perm...)
	}
	return run(tensor.KernelTranspose, attrs, x)
}

// Split cuts x into n equal parts along axis.
func Split(x *engine.Tensor, n, axis int) []*engine.Tensor {
	return runN(tensor.KernelSplit, tensor.Attrs{tensor.AttrNumSplits: n, tensor.AttrAxis: axis}, x)
}

// SplitSizes cuts x along axis into parts of the given sizes.
func SplitSizes(x *engine.Tensor, sizes []int, axis int) []*engine.Tensor {
	return runN(tensor.KernelSplit, tensor.Attrs{tensor.AttrSizes: append([]int(nil), sizes...), tensor.AttrAxis: axis}, x)
}

// Concat joins xs along axis.
func Concat(axis int, xs ...*engine.Tensor) *engine.Tensor {
	return run(tensor.KernelConcat, tensor.Attrs{tensor.AttrAxis: axis}, xs...)
}

// Clone returns a new handle on the data of x.
func Clone(x *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelIdentity, nil, x)
}

// Cast converts x to dtype. Casting to the same dtype copies.
func Cast(x *engine.Tensor, dtype tensor.DataType) *engine.Tensor {
	return run(tensor.KernelCast, tensor.Attrs{tensor.AttrDType: dtype}, x)
}
