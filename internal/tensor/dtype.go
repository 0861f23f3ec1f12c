// Package tensor provides the core tensor types shared by the engine and its backends:
// data types, shapes, host buffers, data identities and the Backend contract.
package tensor

import "github.com/x448/float16"

// Element is a constraint for Go types that map to a DataType.
type Element interface {
	float32 | float64 | int32 | int64 | uint8 | bool | float16.Float16 | string
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Float16
	String
)

// Size returns the byte size of one element of the data type.
// String has no fixed size and reports 0; see Measurable.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	case Float16:
		return 2
	case String:
		return 0
	default:
		panic("unknown data type")
	}
}

// Measurable reports whether the byte size of a tensor of this type follows from its shape.
func (dt DataType) Measurable() bool {
	return dt != String
}

// IsFloat reports whether the type is a floating point type.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64 || dt == Float16
}

// IsNumeric reports whether arithmetic kernels accept the type.
func (dt DataType) IsNumeric() bool {
	return dt != Bool && dt != String
}

// GradientType returns the dtype used for gradients flowing into a tensor of this type.
// Integer and bool tensors receive float32 gradients.
func (dt DataType) GradientType() DataType {
	if dt.IsFloat() {
		return dt
	}
	return Float32
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Float16:
		return "float16"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// DataTypeOf infers the DataType from a generic element type T.
func DataTypeOf[T Element]() DataType {
	var dummy T
	return inferDataType(any(dummy))
}

// inferDataType infers the DataType from a scalar or a slice value.
func inferDataType(v any) DataType {
	switch v.(type) {
	case float32, []float32:
		return Float32
	case float64, []float64:
		return Float64
	case int32, []int32:
		return Int32
	case int64, []int64:
		return Int64
	case uint8, []uint8:
		return Uint8
	case bool, []bool:
		return Bool
	case float16.Float16, []float16.Float16:
		return Float16
	case string, []string:
		return String
	default:
		panic("unsupported type")
	}
}
