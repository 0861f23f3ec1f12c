package engine

import (
	"context"
	"fmt"

	"github.com/born-ml/runtime/internal/tensor"
)

// TensorID identifies a tensor handle within its engine.
type TensorID uint64

// Tensor is an immutable handle on a data buffer. Several handles may share one buffer
// (reshape, saved-for-backward copies, variables); the buffer is released when the last
// of them is disposed.
type Tensor struct {
	id     TensorID
	shape  tensor.Shape
	dtype  tensor.DataType
	dataID tensor.DataID
	engine *Engine
}

// ID returns the handle id.
func (t *Tensor) ID() TensorID {
	return t.id
}

// Shape returns a copy of the tensor shape.
func (t *Tensor) Shape() tensor.Shape {
	return t.shape.Clone()
}

// DType returns the element type.
func (t *Tensor) DType() tensor.DataType {
	return t.dtype
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Size returns the number of elements.
func (t *Tensor) Size() int {
	return t.shape.NumElements()
}

// DataID returns the identity of the underlying buffer.
func (t *Tensor) DataID() tensor.DataID {
	return t.dataID
}

// Engine returns the engine owning the tensor.
func (t *Tensor) Engine() *Engine {
	return t.engine
}

// Info describes the tensor the way backends see it.
func (t *Tensor) Info() tensor.Info {
	return tensor.Info{DataID: t.dataID, Shape: t.shape.Clone(), DType: t.dtype}
}

// IsDisposed reports whether the handle was disposed.
func (t *Tensor) IsDisposed() bool {
	_, live := t.engine.live[t.id]
	return !live
}

// Dispose releases the handle. Disposing twice is a no-op.
func (t *Tensor) Dispose() {
	t.engine.Dispose(t)
}

// Data reads the tensor contents, as a flat slice of the element type.
func (t *Tensor) Data(ctx context.Context) (any, error) {
	return t.engine.Read(ctx, t)
}

// DataSync reads the tensor contents without suspending.
func (t *Tensor) DataSync() (any, error) {
	return t.engine.ReadSync(t)
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor#%d[%s]%v", t.id, t.dtype, []int(t.shape))
}
