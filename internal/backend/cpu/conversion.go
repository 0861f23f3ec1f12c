package cpu

import (
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/x448/float16"
)

// fillKernel creates a tensor of attribute "shape" and "dtype" with every element set to
// attribute "value".
func fillKernel(_ *CPUBackend, inputs []*tensor.RawTensor, attrs tensor.Attrs) []*tensor.RawTensor {
	const op = tensor.KernelFill
	checkNumInputs(op, inputs, 0)

	shape, err := attrs.Ints(tensor.AttrShape)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	dtype, err := attrs.DType(tensor.AttrDType, tensor.Float32)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}

	result := newResult(op, tensor.Shape(shape), dtype)
	if dtype == tensor.String {
		s, ok := attrs[tensor.AttrValue].(string)
		if !ok {
			exceptions.Panicf("%s: string tensors need a string value, got %T", op, attrs[tensor.AttrValue])
		}
		dst := result.AsStrings()
		for i := range dst {
			dst[i] = s
		}
		return []*tensor.RawTensor{result}
	}

	value, err := attrs.Float(tensor.AttrValue, 0)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	setAll(result, value)
	return []*tensor.RawTensor{result}
}

func setAll(r *tensor.RawTensor, value float64) {
	switch r.DType() {
	case tensor.Float32:
		fillSlice(r.AsFloat32(), float32(value))
	case tensor.Float64:
		fillSlice(r.AsFloat64(), value)
	case tensor.Int32:
		fillSlice(r.AsInt32(), int32(value))
	case tensor.Int64:
		fillSlice(r.AsInt64(), int64(value))
	case tensor.Uint8:
		fillSlice(r.AsUint8(), uint8(value))
	case tensor.Bool:
		fillSlice(r.AsBool(), value != 0)
	case tensor.Float16:
		fillSlice(r.AsFloat16(), float16.Fromfloat32(float32(value)))
	default:
		exceptions.Panicf("fill: unsupported dtype %s", r.DType())
	}
}

func fillSlice[T any](dst []T, v T) {
	for i := range dst {
		dst[i] = v
	}
}

// castKernel converts to attribute "dtype". Numeric conversions go through float64,
// except between integer types where values are converted directly.
func castKernel(_ *CPUBackend, inputs []*tensor.RawTensor, attrs tensor.Attrs) []*tensor.RawTensor {
	const op = tensor.KernelCast
	checkNumInputs(op, inputs, 1)
	x := inputs[0]

	dtype, err := attrs.DType(tensor.AttrDType, x.DType())
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	if x.DType() == dtype {
		return []*tensor.RawTensor{x.Clone()}
	}
	if x.DType() == tensor.String || dtype == tensor.String {
		exceptions.Panicf("%s: cannot cast %s to %s", op, x.DType(), dtype)
	}

	result := newResult(op, x.Shape(), dtype)
	if x.DType() == tensor.Int64 && dtype == tensor.Int32 {
		castSlice(x.AsInt64(), result.AsInt32())
		return []*tensor.RawTensor{result}
	}
	if x.DType() == tensor.Int32 && dtype == tensor.Int64 {
		castSlice(x.AsInt32(), result.AsInt64())
		return []*tensor.RawTensor{result}
	}

	src := x.Float64s()
	switch dtype {
	case tensor.Float32:
		castSlice(src, result.AsFloat32())
	case tensor.Float64:
		copy(result.AsFloat64(), src)
	case tensor.Int32:
		castSlice(src, result.AsInt32())
	case tensor.Int64:
		castSlice(src, result.AsInt64())
	case tensor.Uint8:
		castSlice(src, result.AsUint8())
	case tensor.Bool:
		dst := result.AsBool()
		for i, v := range src {
			dst[i] = v != 0
		}
	case tensor.Float16:
		dst := result.AsFloat16()
		for i, v := range src {
			dst[i] = float16.Fromfloat32(float32(v))
		}
	default:
		exceptions.Panicf("%s: unsupported target dtype %s", op, dtype)
	}
	return []*tensor.RawTensor{result}
}

func castSlice[From, To number](src []From, dst []To) {
	for i, v := range src {
		dst[i] = To(v)
	}
}
