// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/born-ml/runtime/internal/backend/cpu"
	"github.com/born-ml/runtime/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

// TestBackendInterface verifies that cpu.CPUBackend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = (*cpu.CPUBackend)(nil)
}

// TestRawTensorAPI verifies RawTensor type alias exposes expected API.
func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, raw.Shape())
	assert.Equal(t, tensor.Float32, raw.DType())
	assert.Equal(t, 24, raw.ByteSize())

	values, err := tensor.FromValues([]int64{1, 2}, tensor.Shape{2})
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, values.DType())
	assert.Equal(t, tensor.Float16, tensor.DataTypeOf[float16.Float16]())
}

func TestBroadcastShapes(t *testing.T) {
	shape, broadcast, err := tensor.BroadcastShapes(tensor.Shape{3, 1}, tensor.Shape{4})
	require.NoError(t, err)
	assert.True(t, broadcast)
	assert.Equal(t, tensor.Shape{3, 4}, shape)
}
