// Package engine implements the tensor runtime: backend registry and selection, the
// data store with reference counted buffers, scoped memory management (tidy/keep), the
// gradient tape and the profiler.
//
// An Engine is driven by a single goroutine. Only asynchronous backend factories run on
// other goroutines, and they touch nothing but the registry, under Engine.mu.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/born-ml/runtime/internal/tensor"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"
)

// Engine holds the whole runtime state. Create one with New; Reset returns it to the
// freshly created state.
type Engine struct {
	cfg Config
	id  uuid.UUID

	// mu guards the registry fields below, which async initializations update.
	mu         sync.Mutex
	registry   map[string]*registration
	regSeq     int
	activeName string
	readyGroup singleflight.Group

	data       map[tensor.DataID]*dataEntry
	totalBytes int
	live       map[TensorID]*tensorState
	lastID     TensorID

	scopes      []*scope
	lastScopeID int
	tapes       []*tape
	kernelDepth int

	variables  map[string]*Variable
	varCounter int

	profiles []*profileSession
}

// New creates an engine with an empty registry.
func New(cfg Config) *Engine {
	e := &Engine{
		cfg: cfg,
		id:  uuid.New(),
	}
	e.init()
	klog.V(1).Infof("%s: created", e)
	return e
}

func (e *Engine) init() {
	e.registry = make(map[string]*registration)
	e.activeName = ""
	e.data = make(map[tensor.DataID]*dataEntry)
	e.totalBytes = 0
	e.live = make(map[TensorID]*tensorState)
	e.scopes = []*scope{newScope(0, "root")}
	e.tapes = nil
	e.kernelDepth = 0
	e.variables = make(map[string]*Variable)
	e.profiles = nil
}

// ID returns the unique id of this engine instance.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// String identifies the engine in log lines and error messages.
func (e *Engine) String() string {
	short := e.id.String()[:8]
	if e.cfg.Name != "" {
		return fmt.Sprintf("engine[%s/%s]", e.cfg.Name, short)
	}
	return fmt.Sprintf("engine[%s]", short)
}

// Reset cancels pending backend initializations, releases every tape, variable and
// tensor, disposes every backend instance and clears the registry.
func (e *Engine) Reset() {
	for _, t := range e.tapes {
		e.releaseTape(t)
	}
	e.tapes = nil
	for id := range e.live {
		e.disposeID(id)
	}

	e.mu.Lock()
	regs := e.registry
	e.registry = make(map[string]*registration)
	e.activeName = ""
	e.mu.Unlock()

	for name, reg := range regs {
		e.shutdownRegistration(name, reg)
	}
	e.init()
	klog.V(1).Infof("%s: reset", e)
}

// shutdownRegistration cancels a pending initialization and disposes the instance of a
// registration already removed from the registry.
func (e *Engine) shutdownRegistration(name string, reg *registration) {
	e.mu.Lock()
	pending, cancel, instance := reg.pending, reg.cancel, reg.instance
	reg.pending, reg.cancel, reg.instance = nil, nil, nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if pending != nil {
		pending.resolve(false, wrapInitError(name, context.Canceled))
	}
	if instance != nil {
		if err := instance.Dispose(); err != nil {
			klog.Warningf("%s: disposing backend %q: %v", e, name, err)
		}
	}
}

// inScope reports whether a user scope is open or the tape is recording.
func (e *Engine) inScope() bool {
	return len(e.scopes) > 1 || len(e.tapes) > 0
}
