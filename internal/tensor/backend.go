package tensor

import (
	"context"
	"fmt"
	"sync/atomic"
)

// DataID identifies a backend-owned data buffer. Several tensor handles may alias the
// same DataID (reshape, clone); the engine counts those references.
type DataID uint64

var lastDataID atomic.Uint64

// NewDataID returns a process-wide unique DataID. Backends call it for kernel outputs so
// that ids never collide across backend instances.
func NewDataID() DataID {
	return DataID(lastDataID.Add(1))
}

// String implements fmt.Stringer.
func (id DataID) String() string {
	return fmt.Sprintf("data#%d", uint64(id))
}

// Info describes a buffer as seen by a backend: its identity, shape and dtype.
type Info struct {
	DataID DataID
	Shape  Shape
	DType  DataType
}

// Backend defines the contract between the engine and a compute backend.
// A backend owns the data buffers it materializes and executes kernels by name.
//
// Implementations:
//   - cpu: pure Go kernels over host buffers (internal/backend/cpu)
//   - test doubles wrapping the CPU backend (async and failing factories)
//
// Kernels report failures either as returned errors or by panicking with an error
// value; the engine converts both into errors naming the kernel and the backend.
type Backend interface {
	// RunKernel executes the named kernel. Outputs are new buffers owned by the backend.
	RunKernel(name string, inputs []Info, attrs Attrs) ([]Info, error)

	// Write materializes values (a flat slice, see FromValues) under the given DataID.
	Write(id DataID, values any, shape Shape, dtype DataType) error

	// Read returns a copy of the buffer contents, waiting for the device if needed.
	Read(ctx context.Context, id DataID) (any, error)

	// ReadSync returns a copy of the buffer contents without suspending.
	ReadSync(id DataID) (any, error)

	// DisposeData releases one buffer.
	DisposeData(id DataID) error

	// NumDataIDs reports how many buffers the backend currently holds.
	NumDataIDs() int

	// Dispose releases every resource owned by the backend. The backend is unusable afterwards.
	Dispose() error
}

// BackendMemory is what a backend may add to the engine's memory report.
type BackendMemory struct {
	Unreliable bool
	Reasons    []string
}

// MemoryReporter is implemented by backends that can describe their own memory usage.
type MemoryReporter interface {
	Memory() BackendMemory
}
