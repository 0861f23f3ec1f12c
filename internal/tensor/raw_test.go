package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// RawTensor Tests

func TestRawTensorAsInt64(t *testing.T) {
	raw, _ := NewRaw(Shape{3, 2}, Int64)
	data := raw.AsInt64()

	if len(data) != 6 {
		t.Errorf("AsInt64 length = %d, want 6", len(data))
	}

	// Modify and verify zero-copy
	data[0] = 42
	if raw.AsInt64()[0] != 42 {
		t.Error("AsInt64 should return zero-copy slice")
	}
}

func TestRawTensorAsUint8(t *testing.T) {
	raw, _ := NewRaw(Shape{4, 4}, Uint8)
	data := raw.AsUint8()

	if len(data) != 16 {
		t.Errorf("AsUint8 length = %d, want 16", len(data))
	}

	data[0] = 255
	if raw.AsUint8()[0] != 255 {
		t.Error("AsUint8 should return zero-copy slice")
	}
}

func TestRawTensorAsBool(t *testing.T) {
	raw, _ := NewRaw(Shape{2, 2}, Bool)
	data := raw.AsBool()

	if len(data) != 4 {
		t.Errorf("AsBool length = %d, want 4", len(data))
	}

	data[0] = true
	if raw.AsBool()[0] != true {
		t.Error("AsBool should return zero-copy slice")
	}
}

func TestRawTensorWrongTypePanics(t *testing.T) {
	raw, _ := NewRaw(Shape{2}, Float32)
	assert.Panics(t, func() { raw.AsInt32() })
}

func TestRawTensorEmpty(t *testing.T) {
	raw, err := NewRaw(Shape{0, 3}, Float32)
	require.NoError(t, err)
	assert.Equal(t, 0, raw.NumElements())
	assert.Empty(t, raw.AsFloat32())
	assert.Equal(t, 0, raw.ByteSize())
}

func TestNewRawInvalidShape(t *testing.T) {
	_, err := NewRaw(Shape{2, -1}, Float32)
	assert.Error(t, err)
}

func TestFromValues(t *testing.T) {
	tests := []struct {
		name     string
		values   any
		shape    Shape
		dtype    DataType
		byteSize int
	}{
		{"float32", []float32{1, 2, 3, 4}, Shape{2, 2}, Float32, 16},
		{"float64", []float64{1, 2}, Shape{2}, Float64, 16},
		{"int32", []int32{1, 2, 3}, Shape{3}, Int32, 12},
		{"int64", []int64{7}, Shape{}, Int64, 8},
		{"bool", []bool{true, false}, Shape{2}, Bool, 2},
		{"float16", []float16.Float16{float16.Fromfloat32(1.5)}, Shape{1}, Float16, 2},
		{"string", []string{"ab", "cde"}, Shape{2}, String, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := FromValues(tt.values, tt.shape)
			require.NoError(t, err)
			assert.Equal(t, tt.dtype, raw.DType())
			assert.Equal(t, tt.byteSize, raw.ByteSize())
			assert.Equal(t, tt.values, raw.Values())
		})
	}
}

func TestFromValuesMismatch(t *testing.T) {
	_, err := FromValues([]float32{1, 2, 3}, Shape{2, 2})
	assert.Error(t, err)

	_, err = FromValues([]uint16{1}, Shape{1})
	assert.Error(t, err)
}

func TestRawTensorValuesIsCopy(t *testing.T) {
	raw, err := FromValues([]float32{1, 2}, Shape{2})
	require.NoError(t, err)
	vals := raw.Values().([]float32)
	vals[0] = 100
	assert.Equal(t, float32(1), raw.AsFloat32()[0])
}

func TestRawTensorReshaped(t *testing.T) {
	raw, err := FromValues([]int32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)

	view, err := raw.Reshaped(Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, view.Strides())
	view.AsInt32()[0] = 9
	assert.Equal(t, int32(9), raw.AsInt32()[0], "reshape shares the buffer")

	_, err = raw.Reshaped(Shape{4})
	assert.Error(t, err)
}

func TestRawTensorFloat64s(t *testing.T) {
	raw, err := FromValues([]float16.Float16{float16.Fromfloat32(0.5), float16.Fromfloat32(-2)}, Shape{2})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -2}, raw.Float64s())

	b, err := FromValues([]bool{true, false}, Shape{2})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, b.Float64s())
}

func TestRawTensorClone(t *testing.T) {
	raw, err := FromValues([]float32{1, 2}, Shape{2})
	require.NoError(t, err)
	clone := raw.Clone()
	clone.AsFloat32()[0] = 5
	assert.Equal(t, float32(1), raw.AsFloat32()[0])
}

func TestByteSizeOf(t *testing.T) {
	assert.Equal(t, 12, ByteSizeOf([]float32{1, 2, 3}))
	assert.Equal(t, 6, ByteSizeOf([]string{"a", "bb", "ccc"}))
	assert.Equal(t, 0, ByteSizeOf(42))
}
