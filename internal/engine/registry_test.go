package engine

import (
	"context"
	"testing"
	"time"

	"github.com/born-ml/runtime/internal/backend/cpu"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityFallbackOnFailingFactory(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Reset()

	instance := cpu.New()
	require.NoError(t, e.RegisterBackend("custom-cpu", func(context.Context) (tensor.Backend, error) {
		return instance, nil
	}, 103))
	require.NoError(t, e.RegisterBackend("custom-high-priority", func(context.Context) (tensor.Backend, error) {
		return nil, errors.New("fails")
	}, 104))

	backend, err := e.Backend()
	require.NoError(t, err)
	assert.Same(t, instance, backend)
	assert.Equal(t, "custom-cpu", e.BackendName())

	statuses := e.Backends()
	require.Len(t, statuses, 2)
	assert.Equal(t, "custom-high-priority", statuses[0].Name)
	assert.Equal(t, StateFailed, statuses[0].State)
	assert.ErrorIs(t, statuses[0].Err, ErrBackendInit)
	assert.Equal(t, "custom-cpu", statuses[1].Name)
	assert.Equal(t, StateReady, statuses[1].State)
	assert.True(t, statuses[1].Active)
}

func TestFailedFactoryIsNotRetried(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Reset()

	calls := 0
	require.NoError(t, e.RegisterBackend("flaky", func(context.Context) (tensor.Backend, error) {
		calls++
		exceptions.Panicf("device lost")
		return nil, nil
	}, 1))

	_, err := e.Backend()
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
	_, err = e.Backend()
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
	assert.Equal(t, 1, calls)
	assert.Nil(t, e.FindBackend("flaky"))

	// Failed names can be registered again.
	require.NoError(t, e.RegisterBackend("flaky", cpuFactory, 1))
	backend, err := e.Backend()
	require.NoError(t, err)
	assert.NotNil(t, backend)
}

func TestRegisterDuplicate(t *testing.T) {
	e := newTestEngine(t)
	err := e.RegisterBackend("cpu", cpuFactory, 5)
	assert.ErrorIs(t, err, ErrDuplicateName)

	err = e.RegisterBackend("", cpuFactory, 5)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.NotNil(t, e.FindBackendFactory("cpu"))
	assert.Nil(t, e.FindBackendFactory("gpu"))
}

func TestNoBackendRegistered(t *testing.T) {
	e := New(DefaultConfig())
	_, err := e.Backend()
	assert.ErrorIs(t, err, ErrNoBackendAvailable)

	_, err = e.MakeTensor([]float32{1}, tensor.Shape{1}, tensor.Float32)
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
}

func TestAsyncBackendNotReadyUntilReady(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Reset()

	instance := cpu.New()
	release := make(chan struct{})
	require.NoError(t, e.RegisterAsyncBackend("async", func(ctx context.Context) (tensor.Backend, error) {
		select {
		case <-release:
			return instance, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, 1))

	future := e.SetBackend("async")
	_, err := e.Backend()
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, "async", e.BackendName())
	assert.Equal(t, StateInitializing, e.Backends()[0].State)

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Ready(ctx))
	ok, err := future.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	backend, err := e.Backend()
	require.NoError(t, err)
	assert.Same(t, instance, backend)
}

func TestAsyncFailureFallsBackOnReady(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Reset()

	require.NoError(t, e.RegisterAsyncBackend("gpu", func(context.Context) (tensor.Backend, error) {
		return nil, errors.New("no adapter")
	}, 10))
	require.NoError(t, e.RegisterBackend("cpu", cpuFactory, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Ready(ctx))
	assert.Equal(t, "cpu", e.BackendName())

	ok, err := e.SetBackend("gpu").Wait(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrBackendInit)

	// The explicit choice failed: selection falls back to the priority order.
	_, err = e.Backend()
	require.NoError(t, err)
	assert.Equal(t, "cpu", e.BackendName())
}

func TestRemovePendingAsyncBackend(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Reset()

	require.NoError(t, e.RegisterAsyncBackend("slow", func(ctx context.Context) (tensor.Backend, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 1))
	future := e.SetBackend("slow")
	require.NoError(t, e.RemoveBackend("slow"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ok, err := future.Wait(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrBackendInit)
	assert.Equal(t, "", e.BackendName())
	assert.Empty(t, e.Backends())
}

func TestReadyCanceled(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Reset()

	require.NoError(t, e.RegisterAsyncBackend("slow", func(ctx context.Context) (tensor.Backend, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, 1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Ready(ctx), context.Canceled)
}

func TestReadyInsideScope(t *testing.T) {
	e := newTestEngine(t)
	e.StartScope("inner")
	err := e.Ready(context.Background())
	e.EndScope()
	assert.ErrorIs(t, err, ErrSuspendInScope)
	assert.NoError(t, e.Ready(context.Background()))
}

func TestSetBackend(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.RegisterBackend("other", cpuFactory, 0))

	ok, err := e.SetBackend("other").Wait(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "other", e.BackendName())

	ok, err = e.SetBackend("missing").Wait(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrUnknownBackend)
	assert.Equal(t, "other", e.BackendName())
}

func TestDefaultBackendConfig(t *testing.T) {
	e := New(Config{DefaultBackend: "low"})
	defer e.Reset()
	require.NoError(t, e.RegisterBackend("low", cpuFactory, 1))
	require.NoError(t, e.RegisterBackend("high", cpuFactory, 2))

	_, err := e.Backend()
	require.NoError(t, err)
	assert.Equal(t, "low", e.BackendName())
}

func TestRegistrationOrderBreaksTies(t *testing.T) {
	e := New(DefaultConfig())
	defer e.Reset()
	require.NoError(t, e.RegisterBackend("first", cpuFactory, 1))
	require.NoError(t, e.RegisterBackend("second", cpuFactory, 1))

	_, err := e.Backend()
	require.NoError(t, err)
	assert.Equal(t, "first", e.BackendName())
}

func TestRemoveBackendDropsItsTensors(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.RegisterBackend("other", cpuFactory, 0))

	x := mustMake(t, e, []float32{1, 2, 3}, 3)
	require.NoError(t, e.MoveData(x, "other"))
	y := mustMake(t, e, []float32{1}, 1)

	require.NoError(t, e.RemoveBackend("other"))
	assert.True(t, x.IsDisposed())
	assert.False(t, y.IsDisposed())
	assert.Equal(t, 1, e.Memory().NumTensors)
	assert.Equal(t, 4, e.Memory().NumBytes)

	assert.ErrorIs(t, e.RemoveBackend("other"), ErrUnknownBackend)

	require.NoError(t, e.RemoveBackend("cpu"))
	assert.Equal(t, "", e.BackendName())
	assert.Equal(t, 0, e.Memory().NumTensors)
}

func TestReset(t *testing.T) {
	e := newTestEngine(t)
	x := mustMake(t, e, []float32{1, 2}, 2)
	e.StartScope("open")
	_, err := e.Variable(x, true, "w")
	require.NoError(t, err)

	e.Reset()
	assert.True(t, x.IsDisposed())
	assert.Empty(t, e.Backends())
	assert.Empty(t, e.Variables())
	assert.Equal(t, MemoryInfo{}, e.Memory())
	// The open scope is gone too: Ready only complains about the empty registry.
	assert.ErrorIs(t, e.Ready(context.Background()), ErrNoBackendAvailable)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(EnvBackend, "cpu")
	t.Setenv(EnvCheckNumerics, "true")
	cfg := ConfigFromEnv()
	assert.Equal(t, "cpu", cfg.DefaultBackend)
	assert.True(t, cfg.CheckNumerics)

	t.Setenv(EnvCheckNumerics, "maybe")
	assert.False(t, ConfigFromEnv().CheckNumerics)
}
