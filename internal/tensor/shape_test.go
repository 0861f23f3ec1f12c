package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeNumElements(t *testing.T) {
	assert.Equal(t, 1, Shape{}.NumElements())
	assert.Equal(t, 24, Shape{2, 3, 4}.NumElements())
	assert.Equal(t, 0, Shape{2, 0}.NumElements())
}

func TestShapeComputeStrides(t *testing.T) {
	assert.Equal(t, []int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{1, 5}, Shape{3, 5}, Shape{3, 5}, true, false},
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{Shape{}, Shape{2, 2}, Shape{2, 2}, true, false},
		{Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}

	for _, tt := range tests {
		got, broadcast, err := BroadcastShapes(tt.a, tt.b)
		if tt.wantErr {
			assert.Error(t, err, "%v vs %v", tt.a, tt.b)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.broadcast, broadcast, "%v vs %v", tt.a, tt.b)
	}
}

func TestBroadcastAxes(t *testing.T) {
	assert.Equal(t, []int{1}, BroadcastAxes(Shape{3, 1}, Shape{3, 5}))
	assert.Equal(t, []int{0, 1}, BroadcastAxes(Shape{}, Shape{2, 2}))
	assert.Equal(t, []int{0}, BroadcastAxes(Shape{4}, Shape{2, 4}))
	assert.Empty(t, BroadcastAxes(Shape{2, 4}, Shape{2, 4}))
}

func TestNormalizeAxes(t *testing.T) {
	s := Shape{2, 3, 4}

	axes, err := s.NormalizeAxes(nil)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, axes)

	axes, err = s.NormalizeAxes([]int{-1, 0})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, axes)

	_, err = s.NormalizeAxes([]int{3})
	assert.Error(t, err)

	_, err = s.NormalizeAxes([]int{1, -2})
	assert.Error(t, err)
}

func TestShapeReduced(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, Shape{2, 4}, s.Reduced([]int{1}, false))
	assert.Equal(t, Shape{2, 1, 4}, s.Reduced([]int{1}, true))
	assert.Equal(t, Shape{}, s.Reduced([]int{0, 1, 2}, false))
}

func TestDataTypeHelpers(t *testing.T) {
	assert.Equal(t, 2, Float16.Size())
	assert.Equal(t, 0, String.Size())
	assert.False(t, String.Measurable())
	assert.True(t, Float16.IsFloat())
	assert.Equal(t, Float32, Int32.GradientType())
	assert.Equal(t, Float64, Float64.GradientType())
	assert.Equal(t, Int64, DataTypeOf[int64]())
	assert.Equal(t, "float16", Float16.String())
}

func TestAttrs(t *testing.T) {
	attrs := Attrs{AttrAxis: 1, AttrAxes: []int{0, 2}, AttrKeepDims: true, AttrValue: 2, AttrDType: Int32}

	axis, err := attrs.Int(AttrAxis, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, axis)

	axes, err := attrs.Ints(AttrAxes)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, axes)

	keep, err := attrs.Bool(AttrKeepDims)
	require.NoError(t, err)
	assert.True(t, keep)

	v, err := attrs.Float(AttrValue, 0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	dt, err := attrs.DType(AttrDType, Float32)
	require.NoError(t, err)
	assert.Equal(t, Int32, dt)

	_, err = Attrs{AttrAxis: "x"}.Int(AttrAxis, 0)
	assert.Error(t, err)
}

func TestNewDataIDUnique(t *testing.T) {
	a, b := NewDataID(), NewDataID()
	assert.NotEqual(t, a, b)
}
