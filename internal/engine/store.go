package engine

import (
	"context"
	"fmt"

	"github.com/born-ml/runtime/internal/tensor"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// dataEntry is the registry entry of one backend buffer.
type dataEntry struct {
	id          tensor.DataID
	backendName string
	backend     tensor.Backend
	refCount    int
	byteSize    int
	dtype       tensor.DataType
	shape       tensor.Shape
}

// tensorState is the bookkeeping of a live tensor handle.
type tensorState struct {
	t     *Tensor
	kept  bool
	scope *scope
}

// MemoryInfo summarizes the live data.
type MemoryInfo struct {
	NumTensors     int
	NumDataBuffers int
	NumBytes       int

	// Unreliable is set when some sizes are estimates; Reasons says why.
	Unreliable bool
	Reasons    []string
}

// String implements fmt.Stringer.
func (m MemoryInfo) String() string {
	s := fmt.Sprintf("%d tensors, %d buffers, %s", m.NumTensors, m.NumDataBuffers, humanize.Bytes(uint64(m.NumBytes)))
	if m.Unreliable {
		s += " (approximate)"
	}
	return s
}

const stringMemoryReason = "memory usage by string tensors is approximate: strings are counted by their UTF-8 length"

// Memory sums the live data entries.
func (e *Engine) Memory() MemoryInfo {
	info := MemoryInfo{
		NumTensors:     len(e.live),
		NumDataBuffers: len(e.data),
		NumBytes:       e.totalBytes,
	}
	for _, entry := range e.data {
		if !entry.dtype.Measurable() {
			info.Unreliable = true
			info.Reasons = []string{stringMemoryReason}
			break
		}
	}

	e.mu.Lock()
	var reporters []tensor.MemoryReporter
	for _, reg := range e.sortedLocked() {
		if r, ok := reg.instance.(tensor.MemoryReporter); ok {
			reporters = append(reporters, r)
		}
	}
	e.mu.Unlock()
	for _, r := range reporters {
		mem := r.Memory()
		if mem.Unreliable {
			info.Unreliable = true
		}
		info.Reasons = append(info.Reasons, mem.Reasons...)
	}
	return info
}

// MakeTensor writes host values (a flat slice, see tensor.FromValues) to the active backend.
// If dtype differs from the element type of values, the result is cast to dtype.
func (e *Engine) MakeTensor(values any, shape tensor.Shape, dtype tensor.DataType) (*Tensor, error) {
	srcType, err := tensor.DataTypeOfValues(values)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	n, err := tensor.NumValues(values)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidArgument, err.Error())
	}
	if n != shape.NumElements() {
		return nil, errors.Wrapf(ErrInvalidArgument, "shape %v needs %d values, got %d", shape, shape.NumElements(), n)
	}

	backend, name, err := e.activeBackend()
	if err != nil {
		return nil, err
	}
	id := tensor.NewDataID()
	if err := backend.Write(id, values, shape, srcType); err != nil {
		return nil, errors.WithMessagef(err, "writing %s to backend %q", id, name)
	}
	e.addData(&dataEntry{
		id:          id,
		backendName: name,
		backend:     backend,
		byteSize:    tensor.ByteSizeOf(values),
		dtype:       srcType,
		shape:       shape.Clone(),
	})
	t := e.track(id, shape, srcType)
	if srcType == dtype {
		return t, nil
	}

	e.kernelDepth++
	outs, err := e.RunKernel(tensor.KernelCast, []*Tensor{t}, tensor.Attrs{tensor.AttrDType: dtype})
	e.kernelDepth--
	e.Dispose(t)
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}

// Read returns the contents of t as a flat slice of its element type. It may wait for the
// backend, so it is refused inside a scope or while recording gradients; use ReadSync there.
func (e *Engine) Read(ctx context.Context, t *Tensor) (any, error) {
	if e.inScope() {
		return nil, errors.Wrapf(ErrSuspendInScope, "read %s", t)
	}
	entry, err := e.entryOf(t, "read")
	if err != nil {
		return nil, err
	}
	values, err := entry.backend.Read(ctx, entry.id)
	if err != nil {
		return nil, errors.WithMessagef(err, "read %s from backend %q", t, entry.backendName)
	}
	return values, nil
}

// ReadSync returns the contents of t without suspending.
func (e *Engine) ReadSync(t *Tensor) (any, error) {
	entry, err := e.entryOf(t, "readSync")
	if err != nil {
		return nil, err
	}
	values, err := entry.backend.ReadSync(entry.id)
	if err != nil {
		return nil, errors.WithMessagef(err, "read %s from backend %q", t, entry.backendName)
	}
	return values, nil
}

// MoveData re-materializes the buffer of t on the named backend and releases the old copy.
// Every handle sharing the buffer follows.
func (e *Engine) MoveData(t *Tensor, backendName string) error {
	entry, err := e.entryOf(t, "moveData")
	if err != nil {
		return err
	}
	if entry.backendName == backendName {
		return nil
	}
	reg := e.lookup(backendName)
	if reg == nil {
		return errors.Wrapf(ErrUnknownBackend, "move %s to %q", t, backendName)
	}
	target, err := e.initBackend(reg)
	if err != nil {
		return err
	}
	values, err := entry.backend.ReadSync(entry.id)
	if err != nil {
		return errors.WithMessagef(err, "move %s: read from backend %q", t, entry.backendName)
	}
	if err := target.Write(entry.id, values, entry.shape, entry.dtype); err != nil {
		return errors.WithMessagef(err, "move %s: write to backend %q", t, backendName)
	}
	if err := entry.backend.DisposeData(entry.id); err != nil {
		klog.Warningf("%s: releasing %s on backend %q after move: %v", e, entry.id, entry.backendName, err)
	}
	klog.V(2).Infof("%s: moved %s from %q to %q", e, entry.id, entry.backendName, backendName)
	entry.backend, entry.backendName = target, backendName
	return nil
}

// BackendOf returns the name of the backend holding the data of t.
func (e *Engine) BackendOf(t *Tensor) (string, error) {
	entry, err := e.entryOf(t, "backendOf")
	if err != nil {
		return "", err
	}
	return entry.backendName, nil
}

// Keep exempts t from scope disposal. It returns t.
func (e *Engine) Keep(t *Tensor) *Tensor {
	if t == nil {
		return nil
	}
	if st, live := e.live[t.id]; live {
		st.kept = true
		if st.scope != nil {
			delete(st.scope.tracked, t.id)
			st.scope = nil
		}
	}
	return t
}

// Dispose releases the given handles. Disposed and nil handles are ignored.
func (e *Engine) Dispose(ts ...*Tensor) {
	for _, t := range ts {
		if t == nil || t.engine != e {
			continue
		}
		e.disposeID(t.id)
	}
}

// NumLiveTensors returns the number of live handles.
func (e *Engine) NumLiveTensors() int {
	return len(e.live)
}

func (e *Engine) disposeID(id TensorID) {
	st, live := e.live[id]
	if !live {
		return
	}
	delete(e.live, id)
	if st.scope != nil {
		delete(st.scope.tracked, id)
	}
	e.decRef(st.t.dataID)
}

// entryOf returns the data entry of a live tensor.
func (e *Engine) entryOf(t *Tensor, op string) (*dataEntry, error) {
	if t == nil {
		return nil, errors.Wrapf(ErrInvalidArgument, "%s: nil tensor", op)
	}
	if t.engine != e {
		return nil, errors.Wrapf(ErrInvalidArgument, "%s: %s belongs to %s", op, t, t.engine)
	}
	if _, live := e.live[t.id]; !live {
		return nil, errors.Wrapf(ErrDisposedTensor, "%s: %s", op, t)
	}
	entry, found := e.data[t.dataID]
	if !found {
		return nil, errors.Wrapf(ErrDisposedTensor, "%s: %s has no data", op, t)
	}
	return entry, nil
}

func (e *Engine) addData(entry *dataEntry) {
	e.data[entry.id] = entry
	e.totalBytes += entry.byteSize
	e.notePeak()
}

// track creates a handle on an existing data entry, owned by the current scope.
func (e *Engine) track(id tensor.DataID, shape tensor.Shape, dtype tensor.DataType) *Tensor {
	e.lastID++
	t := &Tensor{
		id:     e.lastID,
		shape:  shape.Clone(),
		dtype:  dtype,
		dataID: id,
		engine: e,
	}
	e.data[id].refCount++
	s := e.currentScope()
	s.tracked[t.id] = t
	e.live[t.id] = &tensorState{t: t, scope: s}
	return t
}

// alias creates a new handle on the buffer of t, under shape.
func (e *Engine) alias(t *Tensor, shape tensor.Shape) *Tensor {
	return e.track(t.dataID, shape, t.dtype)
}

// keptAlias creates a new handle on the buffer of t that no scope will dispose.
func (e *Engine) keptAlias(t *Tensor) *Tensor {
	return e.Keep(e.alias(t, t.shape))
}

func (e *Engine) decRef(id tensor.DataID) {
	entry, found := e.data[id]
	if !found {
		return
	}
	entry.refCount--
	if entry.refCount > 0 {
		return
	}
	delete(e.data, id)
	e.totalBytes -= entry.byteSize
	if err := entry.backend.DisposeData(id); err != nil {
		klog.Warningf("%s: releasing %s on backend %q: %v", e, id, entry.backendName, err)
	}
}

// dropBackendData forgets every buffer held by the named backend and every handle on them.
// The backend itself is expected to be disposed right after.
func (e *Engine) dropBackendData(name string) {
	var dropped int
	for id, entry := range e.data {
		if entry.backendName != name {
			continue
		}
		delete(e.data, id)
		e.totalBytes -= entry.byteSize
		dropped++
	}
	var handles int
	for id, st := range e.live {
		if _, found := e.data[st.t.dataID]; found {
			continue
		}
		delete(e.live, id)
		if st.scope != nil {
			delete(st.scope.tracked, id)
		}
		handles++
	}
	if dropped > 0 {
		klog.V(1).Infof("%s: dropped %d buffers and %d tensors of backend %q", e, dropped, handles, name)
	}
}
