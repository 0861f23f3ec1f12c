// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/runtime/internal/tensor"
)

// RawTensor is a host buffer with a shape and a dtype.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType()
//   - Type-safe zero-copy data access via AsFloat32(), AsInt64(), etc.
//   - Copies via Values() and Clone()
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
//	data := raw.AsFloat32()  // Type-safe access
//	clone := raw.Clone()     // Independent copy
type RawTensor = tensor.RawTensor

// Shape represents tensor dimensions.
type Shape = tensor.Shape

// DataType identifies the element type of a tensor.
type DataType = tensor.DataType

// Element is the constraint of Go element types with a DataType.
type Element = tensor.Element

// Data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Bool    = tensor.Bool
	Float16 = tensor.Float16
	String  = tensor.String
)

// NewRaw allocates a zeroed buffer.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromValues creates a buffer holding a copy of values, a flat slice of a supported
// element type.
func FromValues(values any, shape Shape) (*RawTensor, error) {
	return tensor.FromValues(values, shape)
}

// DataTypeOf returns the DataType of the Go type T.
func DataTypeOf[T Element]() DataType {
	return tensor.DataTypeOf[T]()
}

// BroadcastShapes returns the shape two operands broadcast to.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
