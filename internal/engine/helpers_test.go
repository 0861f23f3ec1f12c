package engine

import (
	"context"
	"testing"

	"github.com/born-ml/runtime/internal/backend/cpu"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/stretchr/testify/require"
)

const (
	// kernelDouble is only known to testBackend and has no registered gradient.
	kernelDouble = "test_double"

	// kernelEcho returns its input buffer instead of a new one.
	kernelEcho = "test_echo"
)

// testBackend is a CPU backend under another name, with an extra kernel.
type testBackend struct {
	*cpu.CPUBackend
}

func (b *testBackend) RunKernel(name string, inputs []tensor.Info, attrs tensor.Attrs) ([]tensor.Info, error) {
	switch name {
	case kernelDouble:
		return b.CPUBackend.RunKernel(tensor.KernelAdd, []tensor.Info{inputs[0], inputs[0]}, attrs)
	case kernelEcho:
		return []tensor.Info{inputs[0]}, nil
	}
	return b.CPUBackend.RunKernel(name, inputs, attrs)
}

func cpuFactory(context.Context) (tensor.Backend, error) {
	return &testBackend{CPUBackend: cpu.New()}, nil
}

// newTestEngine returns an engine with a single CPU backend registered as "cpu".
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Config{Name: t.Name()})
	require.NoError(t, e.RegisterBackend("cpu", cpuFactory, 1))
	t.Cleanup(e.Reset)
	return e
}

func mustMake(t *testing.T, e *Engine, values any, shape ...int) *Tensor {
	t.Helper()
	dtype, err := tensor.DataTypeOfValues(values)
	require.NoError(t, err)
	x, err := e.MakeTensor(values, tensor.Shape(shape), dtype)
	require.NoError(t, err)
	return x
}

func mustRun(t *testing.T, e *Engine, name string, attrs tensor.Attrs, inputs ...*Tensor) *Tensor {
	t.Helper()
	outs, err := e.RunKernel(name, inputs, attrs)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	return outs[0]
}

func mustRead(t *testing.T, x *Tensor) any {
	t.Helper()
	values, err := x.DataSync()
	require.NoError(t, err)
	return values
}
