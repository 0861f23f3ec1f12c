package tensor

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// RawTensor is the host-side representation of a tensor's contents: a flat row-major
// byte buffer with typed views. Backends that keep data in host memory use it as their
// storage unit; it is also the common currency for cross-backend staging.
//
// String tensors keep their elements in a separate slice, since they have no fixed size.
type RawTensor struct {
	data   []byte
	strs   []string
	shape  Shape
	stride []int
	dtype  DataType
}

// NewRaw creates a new RawTensor with the given shape and type.
// Memory is allocated and zeroed.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid shape")
	}

	numElements := shape.NumElements()
	r := &RawTensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
	}
	if dtype == String {
		r.strs = make([]string, numElements)
	} else {
		r.data = make([]byte, numElements*dtype.Size())
	}
	return r, nil
}

// FromValues copies a flat Go slice into a new RawTensor of the given shape.
// The dtype is inferred from the slice type.
func FromValues(values any, shape Shape) (*RawTensor, error) {
	n, err := NumValues(values)
	if err != nil {
		return nil, err
	}
	if n != shape.NumElements() {
		return nil, errors.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), n)
	}
	r, err := NewRaw(shape, inferDataType(values))
	if err != nil {
		return nil, err
	}
	switch v := values.(type) {
	case []float32:
		copy(r.AsFloat32(), v)
	case []float64:
		copy(r.AsFloat64(), v)
	case []int32:
		copy(r.AsInt32(), v)
	case []int64:
		copy(r.AsInt64(), v)
	case []uint8:
		copy(r.AsUint8(), v)
	case []bool:
		copy(r.AsBool(), v)
	case []float16.Float16:
		copy(r.AsFloat16(), v)
	case []string:
		copy(r.strs, v)
	}
	return r, nil
}

// NumValues returns the length of a flat slice of a supported element type.
func NumValues(values any) (int, error) {
	switch v := values.(type) {
	case []float32:
		return len(v), nil
	case []float64:
		return len(v), nil
	case []int32:
		return len(v), nil
	case []int64:
		return len(v), nil
	case []uint8:
		return len(v), nil
	case []bool:
		return len(v), nil
	case []float16.Float16:
		return len(v), nil
	case []string:
		return len(v), nil
	default:
		return 0, errors.Errorf("unsupported values type %T", values)
	}
}

// DataTypeOfValues returns the DataType of a flat slice of a supported element type.
func DataTypeOfValues(values any) (DataType, error) {
	if _, err := NumValues(values); err != nil {
		return 0, err
	}
	return inferDataType(values), nil
}

// ByteSizeOf returns the number of bytes held by a flat slice. For strings this is the
// sum of the string lengths, which is an estimate of what a backend really holds.
func ByteSizeOf(values any) int {
	if strs, ok := values.([]string); ok {
		total := 0
		for _, s := range strs {
			total += len(s)
		}
		return total
	}
	n, err := NumValues(values)
	if err != nil {
		return 0
	}
	return n * inferDataType(values).Size()
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	if r.dtype == String {
		return ByteSizeOf(r.strs)
	}
	return len(r.data)
}

// Data returns the raw byte slice.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.data
}

// Reshaped returns a view of the same buffer under a new shape with the same
// number of elements.
func (r *RawTensor) Reshaped(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, errors.Errorf("cannot reshape %v (%d elements) into %v", r.shape, r.NumElements(), shape)
	}
	return &RawTensor{
		data:   r.data,
		strs:   r.strs,
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  r.dtype,
	}, nil
}

func (r *RawTensor) checkType(want DataType) {
	if r.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", r.dtype, want))
	}
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	r.checkType(Float32)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	r.checkType(Float64)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	r.checkType(Int32)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (r *RawTensor) AsInt64() []int64 {
	r.checkType(Int64)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*int64)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (r *RawTensor) AsUint8() []uint8 {
	r.checkType(Uint8)
	return r.data // Already []byte = []uint8
}

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (r *RawTensor) AsBool() []bool {
	r.checkType(Bool)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*bool)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsFloat16 interprets the data as []float16.Float16.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16() []float16.Float16 {
	r.checkType(Float16)
	if len(r.data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy performance, bounds checked by NumElements()
	return unsafe.Slice((*float16.Float16)(unsafe.Pointer(&r.data[0])), r.NumElements())
}

// AsStrings returns the string elements.
// Panics if the tensor's dtype is not String.
func (r *RawTensor) AsStrings() []string {
	r.checkType(String)
	return r.strs
}

// Values returns a copy of the contents as a flat Go slice of the tensor's element type.
func (r *RawTensor) Values() any {
	switch r.dtype {
	case Float32:
		return append([]float32(nil), r.AsFloat32()...)
	case Float64:
		return append([]float64(nil), r.AsFloat64()...)
	case Int32:
		return append([]int32(nil), r.AsInt32()...)
	case Int64:
		return append([]int64(nil), r.AsInt64()...)
	case Uint8:
		return append([]uint8(nil), r.AsUint8()...)
	case Bool:
		return append([]bool(nil), r.AsBool()...)
	case Float16:
		return append([]float16.Float16(nil), r.AsFloat16()...)
	case String:
		return append([]string(nil), r.strs...)
	default:
		panic(fmt.Sprintf("values: unsupported dtype %s", r.dtype))
	}
}

// Float64s returns the contents converted to float64. Strings are not supported.
func (r *RawTensor) Float64s() []float64 {
	out := make([]float64, r.NumElements())
	switch r.dtype {
	case Float32:
		for i, v := range r.AsFloat32() {
			out[i] = float64(v)
		}
	case Float64:
		copy(out, r.AsFloat64())
	case Int32:
		for i, v := range r.AsInt32() {
			out[i] = float64(v)
		}
	case Int64:
		for i, v := range r.AsInt64() {
			out[i] = float64(v)
		}
	case Uint8:
		for i, v := range r.AsUint8() {
			out[i] = float64(v)
		}
	case Bool:
		for i, v := range r.AsBool() {
			if v {
				out[i] = 1
			}
		}
	case Float16:
		for i, v := range r.AsFloat16() {
			out[i] = float64(v.Float32())
		}
	default:
		panic(fmt.Sprintf("float64s: unsupported dtype %s", r.dtype))
	}
	return out
}

// Clone creates a deep copy of the RawTensor.
func (r *RawTensor) Clone() *RawTensor {
	return &RawTensor{
		data:   append([]byte(nil), r.data...),
		strs:   append([]string(nil), r.strs...),
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
	}
}

// String returns a short description of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor[%s]%v", r.dtype, r.shape)
}
