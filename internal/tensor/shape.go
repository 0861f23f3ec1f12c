package tensor

import (
	"github.com/pkg/errors"
)

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks if the shape is valid (no negative dimensions).
// Zero-sized dimensions are allowed and yield empty tensors.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return errors.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// NormalizeAxes resolves negative axes and validates them against the rank.
// An empty list means every axis.
func (s Shape) NormalizeAxes(axes []int) ([]int, error) {
	if len(axes) == 0 {
		all := make([]int, len(s))
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	seen := make(map[int]bool, len(axes))
	out := make([]int, 0, len(axes))
	for _, axis := range axes {
		a := axis
		if a < 0 {
			a += len(s)
		}
		if a < 0 || a >= len(s) {
			return nil, errors.Errorf("axis %d out of range for rank %d", axis, len(s))
		}
		if seen[a] {
			return nil, errors.Errorf("axis %d repeated in %v", axis, axes)
		}
		seen[a] = true
		out = append(out, a)
	}
	return out, nil
}

// Reduced returns the shape left after summing over axes.
// With keepDims the reduced axes stay with size 1.
func (s Shape) Reduced(axes []int, keepDims bool) Shape {
	reduced := make(map[int]bool, len(axes))
	for _, a := range axes {
		reduced[a] = true
	}
	out := make(Shape, 0, len(s))
	for i, dim := range s {
		switch {
		case !reduced[i]:
			out = append(out, dim)
		case keepDims:
			out = append(out, 1)
		}
	}
	return out
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Rules:
// 1. Compare shapes element-wise from right to left
// 2. Dimensions are compatible if:
//   - They are equal, OR
//   - One of them is 1
//
// 3. Missing dimensions are treated as 1
//
// Returns the broadcasted shape, a flag indicating if broadcasting is needed, and an error if incompatible.
//
// Examples:
//
//	(3, 1) + (3, 5) -> (3, 5), true, nil
//	(1, 5) + (3, 5) -> (3, 5), true, nil
//	(3, 5) + (3, 5) -> (3, 5), false, nil
//	(3, 4) + (3, 5) -> nil, false, Error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	maxLen := max(len(a), len(b))
	result := make(Shape, maxLen)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < maxLen; i++ {
		aIdx := len(a) - 1 - i
		bIdx := len(b) - 1 - i

		aDim := 1
		if aIdx >= 0 {
			aDim = a[aIdx]
		}

		bDim := 1
		if bIdx >= 0 {
			bDim = b[bIdx]
		}

		switch {
		case aDim == bDim:
			result[maxLen-1-i] = aDim
		case aDim == 1:
			result[maxLen-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[maxLen-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, errors.Errorf("shapes not compatible for broadcasting: %v vs %v (dimension %d: %d vs %d)",
				a, b, maxLen-1-i, aDim, bDim)
		}
	}

	return result, needsBroadcast, nil
}

// BroadcastAxes returns the axes of outShape along which inShape was broadcast,
// in the coordinates of outShape. Summing a gradient over them and reshaping to
// inShape undoes the broadcast.
func BroadcastAxes(inShape, outShape Shape) []int {
	var axes []int
	offset := len(outShape) - len(inShape)
	for i := range outShape {
		j := i - offset
		if j < 0 || (inShape[j] == 1 && outShape[i] != 1) {
			axes = append(axes, i)
		}
	}
	return axes
}
