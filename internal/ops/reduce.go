package ops

import (
	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/tensor"
)

// Sum adds the elements of x along axes, or along every axis when none is given.
// Bool and uint8 tensors are summed as int32.
func Sum(x *engine.Tensor, axes ...int) *engine.Tensor {
	return run(tensor.KernelSum, sumAttrs(axes, false), x)
}

// SumKeepDims is Sum keeping the reduced axes with size 1.
func SumKeepDims(x *engine.Tensor, axes ...int) *engine.Tensor {
	return run(tensor.KernelSum, sumAttrs(axes, true), x)
}

// Mean averages the elements of x along axes, or along every axis when none is given.
// Float dtypes only.
func Mean(x *engine.Tensor, axes ...int) *engine.Tensor {
	shape := x.Shape()
	normalized := must(shape.NormalizeAxes(axes))
	count := 1
	for _, axis := range normalized {
		count *= shape[axis]
	}
	sum := Sum(x, axes...)
	n := Fill(x.Engine(), tensor.Shape{}, float64(count), sum.DType())
	return Div(sum, n)
}

func sumAttrs(axes []int, keepDims bool) tensor.Attrs {
	attrs := tensor.Attrs{tensor.AttrKeepDims: keepDims}
	if len(axes) > 0 {
		attrs[tensor.AttrAxes] = append([]int(nil), axes...)
	}
	return attrs
}
