package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Factory creates a backend instance. Factories registered with RegisterAsyncBackend run
// on their own goroutine and should honor ctx, which is canceled when the backend is
// removed or the engine reset.
type Factory func(ctx context.Context) (tensor.Backend, error)

// registration is one entry of the backend registry.
type registration struct {
	name     string
	factory  Factory
	async    bool
	priority int
	seq      int

	instance tensor.Backend
	initErr  error
	pending  *Future
	cancel   context.CancelFunc
}

// BackendState describes a registered backend in Backends.
type BackendState string

// Backend states.
const (
	StateRegistered   BackendState = "registered"
	StateInitializing BackendState = "initializing"
	StateReady        BackendState = "ready"
	StateFailed       BackendState = "failed"
)

// BackendStatus is one line of the Backends listing.
type BackendStatus struct {
	Name     string
	Priority int
	Async    bool
	Active   bool
	State    BackendState
	Err      error
}

// Future is the eventual outcome of SetBackend.
type Future struct {
	once sync.Once
	done chan struct{}
	ok   bool
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolvedFuture(ok bool, err error) *Future {
	f := newFuture()
	f.resolve(ok, err)
	return f
}

func (f *Future) resolve(ok bool, err error) {
	f.once.Do(func() {
		f.ok, f.err = ok, err
		close(f.done)
	})
}

// Done is closed once the outcome is known.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the outcome is known or ctx is done.
func (f *Future) Wait(ctx context.Context) (bool, error) {
	select {
	case <-f.done:
		return f.ok, f.err
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func wrapInitError(name string, err error) error {
	return errors.Wrapf(ErrBackendInit, "backend %q: %v", name, err)
}

// RegisterBackend registers a factory creating the backend synchronously. The factory is
// not called until the backend is needed. Higher priorities are preferred by
// auto-selection; ties go to the earliest registration.
//
// A name can only be registered again after its initialization failed.
func (e *Engine) RegisterBackend(name string, factory Factory, priority int) error {
	return e.register(name, factory, priority, false)
}

// RegisterAsyncBackend registers a factory that is run on a separate goroutine. Until it
// finishes, synchronous use of the backend fails with ErrNotReady.
func (e *Engine) RegisterAsyncBackend(name string, factory Factory, priority int) error {
	return e.register(name, factory, priority, true)
}

func (e *Engine) register(name string, factory Factory, priority int, async bool) error {
	if name == "" || factory == nil {
		return errors.Wrap(ErrInvalidArgument, "backend registration needs a name and a factory")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if reg, found := e.registry[name]; found && reg.initErr == nil {
		return errors.Wrapf(ErrDuplicateName, "backend %q", name)
	}
	e.regSeq++
	e.registry[name] = &registration{
		name:     name,
		factory:  factory,
		async:    async,
		priority: priority,
		seq:      e.regSeq,
	}
	klog.V(1).Infof("%s: registered backend %q (priority %d, async=%v)", e, name, priority, async)
	return nil
}

// RemoveBackend disposes the backend instance, drops every tensor whose data lived there,
// cancels a pending initialization and unregisters the name.
func (e *Engine) RemoveBackend(name string) error {
	e.mu.Lock()
	reg, found := e.registry[name]
	if !found {
		e.mu.Unlock()
		return errors.Wrapf(ErrUnknownBackend, "remove %q", name)
	}
	delete(e.registry, name)
	if e.activeName == name {
		e.activeName = ""
	}
	e.mu.Unlock()

	e.dropBackendData(name)
	e.shutdownRegistration(name, reg)
	klog.V(1).Infof("%s: removed backend %q", e, name)
	return nil
}

// FindBackendFactory returns the factory registered under name, or nil.
func (e *Engine) FindBackendFactory(name string) Factory {
	e.mu.Lock()
	defer e.mu.Unlock()
	if reg, found := e.registry[name]; found {
		return reg.factory
	}
	return nil
}

// FindBackend returns the instance registered under name, creating it on first use.
// It returns nil for unknown or failed backends, and for asynchronous ones still
// initializing (their initialization is started).
func (e *Engine) FindBackend(name string) tensor.Backend {
	reg := e.lookup(name)
	if reg == nil {
		return nil
	}
	backend, err := e.initBackend(reg)
	if err != nil {
		return nil
	}
	return backend
}

// SetBackend makes name the active backend. The future resolves to true once the backend
// is initialized; asynchronous backends are active right away but fail with ErrNotReady
// until then.
func (e *Engine) SetBackend(name string) *Future {
	e.mu.Lock()
	reg, found := e.registry[name]
	if !found {
		e.mu.Unlock()
		return resolvedFuture(false, errors.Wrapf(ErrUnknownBackend, "set %q", name))
	}
	e.activeName = name
	switch {
	case reg.instance != nil:
		e.mu.Unlock()
		return resolvedFuture(true, nil)
	case reg.initErr != nil:
		err := reg.initErr
		e.mu.Unlock()
		return resolvedFuture(false, err)
	case reg.async:
		f := e.startAsyncInitLocked(reg)
		e.mu.Unlock()
		return f
	}
	e.mu.Unlock()

	_, err := e.initBackend(reg)
	return resolvedFuture(err == nil, err)
}

// BackendName returns the name of the active backend, or "" if none was selected yet.
func (e *Engine) BackendName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeName
}

// Backend returns the active backend, selecting one if needed.
//
// Without an explicit choice, backends are tried by descending priority and the first one
// whose factory succeeds becomes active; failures are recorded and never retried. If the
// best candidate is asynchronous and still initializing, ErrNotReady is returned. If the
// explicitly chosen backend failed, selection falls back to the priority order.
func (e *Engine) Backend() (tensor.Backend, error) {
	backend, _, err := e.activeBackend()
	return backend, err
}

// activeBackend is Backend, also returning the backend name.
func (e *Engine) activeBackend() (tensor.Backend, string, error) {
	e.mu.Lock()
	name := e.activeName
	reg := e.registry[name]
	e.mu.Unlock()

	if reg != nil {
		backend, err := e.initBackend(reg)
		if err == nil {
			return backend, name, nil
		}
		if !errors.Is(err, ErrBackendInit) {
			return nil, name, err
		}
		klog.Warningf("%s: active backend %q failed, falling back to auto-selection: %v", e, name, err)
		e.setActiveName(name, "")
	}

	for _, reg := range e.candidates() {
		backend, err := e.initBackend(reg)
		switch {
		case err == nil:
			e.setActiveName("", reg.name)
			klog.V(1).Infof("%s: selected backend %q", e, reg.name)
			return backend, reg.name, nil
		case errors.Is(err, ErrNotReady):
			return nil, reg.name, err
		}
	}
	return nil, "", errors.Wrapf(ErrNoBackendAvailable, "%s", e)
}

// setActiveName changes the active name only if it still is from.
func (e *Engine) setActiveName(from, to string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeName == from {
		e.activeName = to
	}
}

// Ready waits until a backend is initialized and active: the chosen one if any, else the
// candidates in priority order, falling back on failures. Concurrent calls share a single
// search.
func (e *Engine) Ready(ctx context.Context) error {
	if e.inScope() {
		return errors.Wrap(ErrSuspendInScope, "ready")
	}
	_, err, _ := e.readyGroup.Do("ready", func() (any, error) {
		return nil, e.ready(ctx)
	})
	return err
}

func (e *Engine) ready(ctx context.Context) error {
	e.mu.Lock()
	name := e.activeName
	reg := e.registry[name]
	e.mu.Unlock()

	if reg != nil {
		err := e.await(ctx, reg)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		klog.Warningf("%s: active backend %q failed, falling back to auto-selection: %v", e, name, err)
		e.setActiveName(name, "")
	}

	for _, reg := range e.candidates() {
		err := e.await(ctx, reg)
		if err == nil {
			e.setActiveName("", reg.name)
			klog.V(1).Infof("%s: selected backend %q", e, reg.name)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return errors.Wrapf(ErrNoBackendAvailable, "%s", e)
}

// await initializes reg, waiting for asynchronous factories.
func (e *Engine) await(ctx context.Context, reg *registration) error {
	e.mu.Lock()
	switch {
	case reg.instance != nil:
		e.mu.Unlock()
		return nil
	case reg.initErr != nil:
		err := reg.initErr
		e.mu.Unlock()
		return err
	case reg.async:
		f := e.startAsyncInitLocked(reg)
		e.mu.Unlock()
		ok, err := f.Wait(ctx)
		if err == nil && !ok {
			err = wrapInitError(reg.name, errors.New("initialization did not complete"))
		}
		return err
	}
	e.mu.Unlock()
	_, err := e.initBackend(reg)
	return err
}

// Backends lists the registry, by descending priority.
func (e *Engine) Backends() []BackendStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := make([]BackendStatus, 0, len(e.registry))
	for _, reg := range e.sortedLocked() {
		status := BackendStatus{
			Name:     reg.name,
			Priority: reg.priority,
			Async:    reg.async,
			Active:   reg.name == e.activeName,
			State:    StateRegistered,
			Err:      reg.initErr,
		}
		switch {
		case reg.instance != nil:
			status.State = StateReady
		case reg.initErr != nil:
			status.State = StateFailed
		case reg.pending != nil:
			status.State = StateInitializing
		}
		list = append(list, status)
	}
	return list
}

func (e *Engine) lookup(name string) *registration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry[name]
}

// candidates returns the registrations that have not failed, in selection order:
// Config.DefaultBackend first, then descending priority, then registration order.
func (e *Engine) candidates() []*registration {
	e.mu.Lock()
	defer e.mu.Unlock()
	var list []*registration
	for _, reg := range e.sortedLocked() {
		if reg.initErr != nil {
			continue
		}
		if reg.name == e.cfg.DefaultBackend {
			list = append([]*registration{reg}, list...)
			continue
		}
		list = append(list, reg)
	}
	return list
}

func (e *Engine) sortedLocked() []*registration {
	list := make([]*registration, 0, len(e.registry))
	for _, reg := range e.registry {
		list = append(list, reg)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].priority != list[j].priority {
			return list[i].priority > list[j].priority
		}
		return list[i].seq < list[j].seq
	})
	return list
}

// initBackend returns the instance of reg, running a synchronous factory if needed. For
// asynchronous registrations it starts the initialization and returns ErrNotReady.
func (e *Engine) initBackend(reg *registration) (tensor.Backend, error) {
	e.mu.Lock()
	switch {
	case reg.instance != nil:
		backend := reg.instance
		e.mu.Unlock()
		return backend, nil
	case reg.initErr != nil:
		err := reg.initErr
		e.mu.Unlock()
		return nil, err
	case reg.async:
		e.startAsyncInitLocked(reg)
		e.mu.Unlock()
		return nil, errors.Wrapf(ErrNotReady, "backend %q is still initializing, call Ready first", reg.name)
	}
	factory := reg.factory
	e.mu.Unlock()

	backend, err := callFactory(context.Background(), factory)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.registry[reg.name] != reg {
		if backend != nil {
			_ = backend.Dispose()
		}
		return nil, errors.Wrapf(ErrUnknownBackend, "backend %q was removed during initialization", reg.name)
	}
	if err != nil {
		reg.initErr = wrapInitError(reg.name, err)
		klog.Warningf("%s: %v", e, reg.initErr)
		return nil, reg.initErr
	}
	reg.instance = backend
	klog.V(1).Infof("%s: initialized backend %q", e, reg.name)
	return backend, nil
}

// startAsyncInitLocked starts (once) the asynchronous initialization of reg.
// e.mu must be held.
func (e *Engine) startAsyncInitLocked(reg *registration) *Future {
	if reg.pending != nil {
		return reg.pending
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := newFuture()
	reg.pending, reg.cancel = f, cancel
	klog.V(1).Infof("%s: initializing backend %q asynchronously", e, reg.name)

	go func() {
		defer cancel()
		backend, err := callFactory(ctx, reg.factory)

		e.mu.Lock()
		if e.registry[reg.name] != reg || reg.pending != f {
			e.mu.Unlock()
			if backend != nil {
				_ = backend.Dispose()
			}
			f.resolve(false, wrapInitError(reg.name, errors.New("removed during initialization")))
			return
		}
		reg.pending, reg.cancel = nil, nil
		if err != nil {
			reg.initErr = wrapInitError(reg.name, err)
			e.mu.Unlock()
			klog.Warningf("%s: %v", e, reg.initErr)
			f.resolve(false, reg.initErr)
			return
		}
		reg.instance = backend
		e.mu.Unlock()
		klog.V(1).Infof("%s: initialized backend %q", e, reg.name)
		f.resolve(true, nil)
	}()
	return f
}

// callFactory runs a factory, turning panics carrying an error into that error.
func callFactory(ctx context.Context, factory Factory) (backend tensor.Backend, err error) {
	panicErr := exceptions.TryCatch[error](func() {
		backend, err = factory(ctx)
	})
	if panicErr != nil {
		return nil, panicErr
	}
	if err == nil && backend == nil {
		err = errors.New("factory returned no backend")
	}
	return backend, err
}
