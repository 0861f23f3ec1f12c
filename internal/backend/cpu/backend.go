// Package cpu implements the reference CPU backend: buffers live in host memory as
// tensor.RawTensor values and kernels are plain Go loops, parallelized over large
// element counts with internal/parallel.
package cpu

import (
	"context"
	"sync"

	"github.com/born-ml/runtime/internal/parallel"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// kernelFunc computes the outputs of one kernel. Misuse (bad dtype, bad shape) panics
// with an error built by exceptions.Panicf; RunKernel turns it into a returned error.
type kernelFunc func(cpu *CPUBackend, inputs []*tensor.RawTensor, attrs tensor.Attrs) []*tensor.RawTensor

// kernels maps kernel names to their implementation.
var kernels = map[string]kernelFunc{
	tensor.KernelAdd:       binaryKernel(tensor.KernelAdd),
	tensor.KernelSub:       binaryKernel(tensor.KernelSub),
	tensor.KernelMul:       binaryKernel(tensor.KernelMul),
	tensor.KernelDiv:       binaryKernel(tensor.KernelDiv),
	tensor.KernelNeg:       unaryKernel(tensor.KernelNeg),
	tensor.KernelSquare:    unaryKernel(tensor.KernelSquare),
	tensor.KernelRelu:      unaryKernel(tensor.KernelRelu),
	tensor.KernelStep:      unaryKernel(tensor.KernelStep),
	tensor.KernelExp:       floatUnaryKernel(tensor.KernelExp),
	tensor.KernelLog:       floatUnaryKernel(tensor.KernelLog),
	tensor.KernelSqrt:      floatUnaryKernel(tensor.KernelSqrt),
	tensor.KernelSum:       sumKernel,
	tensor.KernelFill:      fillKernel,
	tensor.KernelCast:      castKernel,
	tensor.KernelSplit:     splitKernel,
	tensor.KernelConcat:    concatKernel,
	tensor.KernelTranspose: transposeKernel,
	tensor.KernelMatMul:    matMulKernel,
}

// CPUBackend implements tensor.Backend on host memory.
type CPUBackend struct {
	mu       sync.RWMutex
	data     map[tensor.DataID]*tensor.RawTensor
	par      parallel.Config
	disposed bool
}

// New creates a new CPU backend with the default parallel configuration.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend using the given parallel configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		data: make(map[tensor.DataID]*tensor.RawTensor),
		par:  cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "cpu"
}

// Kernels returns the names of the kernels this backend implements.
func (cpu *CPUBackend) Kernels() []string {
	names := make([]string, 0, len(kernels))
	for name := range kernels {
		names = append(names, name)
	}
	return names
}

// RunKernel executes the named kernel and stores its outputs under fresh DataIDs.
func (cpu *CPUBackend) RunKernel(name string, inputs []tensor.Info, attrs tensor.Attrs) ([]tensor.Info, error) {
	fn, found := kernels[name]
	if !found {
		return nil, errors.Errorf("cpu: kernel %q is not implemented", name)
	}

	raws := make([]*tensor.RawTensor, len(inputs))
	cpu.mu.RLock()
	if cpu.disposed {
		cpu.mu.RUnlock()
		return nil, errors.New("cpu: backend already disposed")
	}
	for i, in := range inputs {
		raw, ok := cpu.data[in.DataID]
		if !ok {
			cpu.mu.RUnlock()
			return nil, errors.Errorf("cpu: kernel %q input #%d: unknown %s", name, i, in.DataID)
		}
		// Engine-level aliases (reshape) share the buffer under a different shape.
		if !raw.Shape().Equal(in.Shape) {
			view, err := raw.Reshaped(in.Shape)
			if err != nil {
				cpu.mu.RUnlock()
				return nil, errors.Wrapf(err, "cpu: kernel %q input #%d", name, i)
			}
			raw = view
		}
		raws[i] = raw
	}
	cpu.mu.RUnlock()

	var outs []*tensor.RawTensor
	err := exceptions.TryCatch[error](func() {
		outs = fn(cpu, raws, attrs)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "cpu: kernel %q", name)
	}

	infos := make([]tensor.Info, len(outs))
	cpu.mu.Lock()
	defer cpu.mu.Unlock()
	for i, out := range outs {
		id := tensor.NewDataID()
		cpu.data[id] = out
		infos[i] = tensor.Info{DataID: id, Shape: out.Shape().Clone(), DType: out.DType()}
	}
	if klog.V(3).Enabled() {
		klog.Infof("cpu: kernel %q produced %d outputs", name, len(infos))
	}
	return infos, nil
}

// Write copies values into a new buffer stored under id.
func (cpu *CPUBackend) Write(id tensor.DataID, values any, shape tensor.Shape, dtype tensor.DataType) error {
	raw, err := tensor.FromValues(values, shape)
	if err != nil {
		return errors.WithMessagef(err, "cpu: write %s", id)
	}
	if raw.DType() != dtype {
		return errors.Errorf("cpu: write %s: values are %s, expected %s", id, raw.DType(), dtype)
	}
	cpu.mu.Lock()
	defer cpu.mu.Unlock()
	if cpu.disposed {
		return errors.New("cpu: backend already disposed")
	}
	if _, exists := cpu.data[id]; exists {
		return errors.Errorf("cpu: write %s: id already in use", id)
	}
	cpu.data[id] = raw
	return nil
}

// Read returns a copy of the buffer contents. The CPU backend never has to wait.
func (cpu *CPUBackend) Read(ctx context.Context, id tensor.DataID) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cpu.ReadSync(id)
}

// ReadSync returns a copy of the buffer contents.
func (cpu *CPUBackend) ReadSync(id tensor.DataID) (any, error) {
	cpu.mu.RLock()
	defer cpu.mu.RUnlock()
	raw, ok := cpu.data[id]
	if !ok {
		return nil, errors.Errorf("cpu: read: unknown %s", id)
	}
	return raw.Values(), nil
}

// Raw returns the stored buffer, for tests and for backends built on top of this one.
func (cpu *CPUBackend) Raw(id tensor.DataID) (*tensor.RawTensor, bool) {
	cpu.mu.RLock()
	defer cpu.mu.RUnlock()
	raw, ok := cpu.data[id]
	return raw, ok
}

// DisposeData releases one buffer.
func (cpu *CPUBackend) DisposeData(id tensor.DataID) error {
	cpu.mu.Lock()
	defer cpu.mu.Unlock()
	if _, ok := cpu.data[id]; !ok {
		return errors.Errorf("cpu: dispose: unknown %s", id)
	}
	delete(cpu.data, id)
	return nil
}

// NumDataIDs reports how many buffers are held.
func (cpu *CPUBackend) NumDataIDs() int {
	cpu.mu.RLock()
	defer cpu.mu.RUnlock()
	return len(cpu.data)
}

// Dispose drops every buffer. Further use of the backend fails.
func (cpu *CPUBackend) Dispose() error {
	cpu.mu.Lock()
	defer cpu.mu.Unlock()
	cpu.data = make(map[tensor.DataID]*tensor.RawTensor)
	cpu.disposed = true
	return nil
}

// newResult allocates an output buffer, panicking on an invalid shape.
func newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		exceptions.Panicf("%s: failed to create result tensor: %v", op, err)
	}
	return result
}
