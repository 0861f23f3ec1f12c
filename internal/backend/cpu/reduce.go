package cpu

import (
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
)

// SumDType returns the dtype produced by summing a tensor of the given dtype.
// Bool and uint8 sums are promoted to int32 so they cannot overflow a byte.
func SumDType(dtype tensor.DataType) tensor.DataType {
	switch dtype {
	case tensor.Bool, tensor.Uint8:
		return tensor.Int32
	default:
		return dtype
	}
}

// sumKernel reduces over the "axes" attribute (all axes when absent). With "keepDims" the
// reduced axes are kept with size 1.
func sumKernel(_ *CPUBackend, inputs []*tensor.RawTensor, attrs tensor.Attrs) []*tensor.RawTensor {
	const op = tensor.KernelSum
	checkNumInputs(op, inputs, 1)
	x := inputs[0]

	rawAxes, err := attrs.Ints(tensor.AttrAxes)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	keepDims, err := attrs.Bool(tensor.AttrKeepDims)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	axes, err := x.Shape().NormalizeAxes(rawAxes)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}

	shape := x.Shape()
	outShape := shape.Reduced(axes, keepDims)
	// Strides into the output for each input axis; reduced axes contribute nothing.
	outStrides := shape.Reduced(axes, true).ComputeStrides()
	for _, axis := range axes {
		outStrides[axis] = 0
	}
	inStrides := shape.ComputeStrides()

	result := newResult(op, outShape, SumDType(x.DType()))
	switch x.DType() {
	case tensor.Float32:
		sumOp(x.AsFloat32(), result.AsFloat32(), inStrides, outStrides)
	case tensor.Float64:
		sumOp(x.AsFloat64(), result.AsFloat64(), inStrides, outStrides)
	case tensor.Int32:
		sumOp(x.AsInt32(), result.AsInt32(), inStrides, outStrides)
	case tensor.Int64:
		sumOp(x.AsInt64(), result.AsInt64(), inStrides, outStrides)
	case tensor.Uint8, tensor.Bool:
		src := make([]int32, x.NumElements())
		for i, v := range x.Float64s() {
			src[i] = int32(v)
		}
		sumOp(src, result.AsInt32(), inStrides, outStrides)
	case tensor.Float16:
		out := make([]float32, outShape.NumElements())
		sumOp(widenFloat16(x.AsFloat16()), out, inStrides, outStrides)
		narrowFloat16(result.AsFloat16(), out)
	default:
		exceptions.Panicf("%s: unsupported dtype %s", op, x.DType())
	}
	return []*tensor.RawTensor{result}
}

func sumOp[T number](src, dst []T, inStrides, outStrides []int) {
	for i := range dst {
		dst[i] = 0
	}
	for i, v := range src {
		dst[computeFlatIndex(i, inStrides, outStrides)] += v
	}
}
