package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/born-ml/runtime/internal/tensor"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"k8s.io/klog/v2"
)

// RunKernel executes the named kernel and returns its outputs, tracked by the current
// scope.
//
// Inputs held by another backend are staged into the active backend for the call; outputs
// always live on the active backend. The reshape and identity kernels never reach a
// backend: they return new handles on the input buffer.
//
// While a tape records, the call is appended to it together with the tensors its
// gradient needs.
func (e *Engine) RunKernel(name string, inputs []*Tensor, attrs tensor.Attrs) ([]*Tensor, error) {
	op := fmt.Sprintf("kernel %q", name)
	for i, t := range inputs {
		if _, err := e.entryOf(t, op); err != nil {
			return nil, errors.WithMessagef(err, "input #%d", i)
		}
	}

	before := e.snapshot()
	start := time.Now()
	var (
		outs []*Tensor
		err  error
	)
	switch name {
	case tensor.KernelReshape, tensor.KernelIdentity:
		outs, err = e.runAlias(name, inputs, attrs)
	default:
		outs, err = e.runBackendKernel(name, inputs, attrs)
	}
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if e.cfg.CheckNumerics {
		if err := e.checkNumerics(name, outs); err != nil {
			e.Dispose(outs...)
			return nil, err
		}
	}
	if e.recording() {
		e.record(name, inputs, outs, attrs)
	}
	e.profileKernel(name, inputs, outs, before, elapsed)
	return outs, nil
}

func (e *Engine) runAlias(name string, inputs []*Tensor, attrs tensor.Attrs) ([]*Tensor, error) {
	if len(inputs) != 1 {
		return nil, errors.Wrapf(ErrInvalidArgument, "kernel %q takes 1 input, got %d", name, len(inputs))
	}
	x := inputs[0]
	shape := x.shape
	if name == tensor.KernelReshape {
		dims, err := attrs.Ints(tensor.AttrShape)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "kernel %q: %v", name, err)
		}
		shape = tensor.Shape(dims)
		if err := shape.Validate(); err != nil {
			return nil, errors.Wrapf(ErrInvalidArgument, "kernel %q: %v", name, err)
		}
		if shape.NumElements() != x.Size() {
			return nil, errors.Wrapf(ErrInvalidArgument, "kernel %q: cannot reshape %v into %v", name, x.shape, shape)
		}
	}
	return []*Tensor{e.alias(x, shape)}, nil
}

func (e *Engine) runBackendKernel(name string, inputs []*Tensor, attrs tensor.Attrs) ([]*Tensor, error) {
	backend, backendName, err := e.activeBackend()
	if err != nil {
		return nil, errors.WithMessagef(err, "kernel %q", name)
	}

	infos := make([]tensor.Info, len(inputs))
	var staged []tensor.DataID
	defer func() {
		for _, id := range staged {
			if err := backend.DisposeData(id); err != nil {
				klog.Warningf("%s: releasing staged %s on backend %q: %v", e, id, backendName, err)
			}
		}
	}()
	for i, t := range inputs {
		entry := e.data[t.dataID]
		info := t.Info()
		if entry.backendName != backendName {
			values, err := entry.backend.ReadSync(entry.id)
			if err != nil {
				return nil, errors.WithMessagef(err, "kernel %q: reading input %s from backend %q", name, t, entry.backendName)
			}
			info.DataID = tensor.NewDataID()
			if err := backend.Write(info.DataID, values, entry.shape, entry.dtype); err != nil {
				return nil, errors.WithMessagef(err, "kernel %q: staging input %s on backend %q", name, t, backendName)
			}
			staged = append(staged, info.DataID)
			klog.V(2).Infof("%s: kernel %q: staged %s from %q to %q", e, name, t, entry.backendName, backendName)
		}
		infos[i] = info
	}

	outInfos, err := backend.RunKernel(name, infos, attrs)
	if err != nil {
		return nil, errors.WithMessagef(err, "kernel %q on backend %q", name, backendName)
	}
	if err := e.checkFreshOutputs(name, backendName, backend, outInfos, staged); err != nil {
		return nil, err
	}
	outs := make([]*Tensor, len(outInfos))
	for i, info := range outInfos {
		size := info.Shape.NumElements() * info.DType.Size()
		if !info.DType.Measurable() {
			if values, err := backend.ReadSync(info.DataID); err == nil {
				size = tensor.ByteSizeOf(values)
			}
		}
		e.addData(&dataEntry{
			id:          info.DataID,
			backendName: backendName,
			backend:     backend,
			byteSize:    size,
			dtype:       info.DType,
			shape:       info.Shape.Clone(),
		})
		outs[i] = e.track(info.DataID, info.Shape, info.DType)
	}
	if klog.V(2).Enabled() {
		klog.Infof("%s: kernel %q on %q: %v -> %v", e, name, backendName, inputs, outs)
	}
	return outs, nil
}

// checkFreshOutputs fails when a backend kernel returns a buffer the engine already
// tracks, or the same buffer twice. The fresh outputs are then released.
func (e *Engine) checkFreshOutputs(name, backendName string, backend tensor.Backend, outInfos []tensor.Info, staged []tensor.DataID) error {
	taken := make(map[tensor.DataID]bool, len(staged)+len(outInfos))
	for _, id := range staged {
		taken[id] = true
	}
	var reused []tensor.DataID
	fresh := make([]tensor.DataID, 0, len(outInfos))
	for _, info := range outInfos {
		if _, found := e.data[info.DataID]; found || taken[info.DataID] {
			reused = append(reused, info.DataID)
			continue
		}
		taken[info.DataID] = true
		fresh = append(fresh, info.DataID)
	}
	if len(reused) == 0 {
		return nil
	}
	for _, id := range fresh {
		if err := backend.DisposeData(id); err != nil {
			klog.Warningf("%s: releasing output %s of kernel %q on backend %q: %v", e, id, name, backendName, err)
		}
	}
	return errors.Wrapf(ErrInvalidArgument, "kernel %q on backend %q returned %s, which is already in use", name, backendName, reused[0])
}

// checkNumerics fails when a floating point output holds a NaN.
func (e *Engine) checkNumerics(name string, outs []*Tensor) error {
	for i, t := range outs {
		if !t.dtype.IsFloat() {
			continue
		}
		values, err := e.ReadSync(t)
		if err != nil {
			return err
		}
		if idx := firstNaN(values); idx >= 0 {
			return errors.Wrapf(ErrNonFinite, "kernel %q output #%d %s: NaN at flat index %d", name, i, t, idx)
		}
	}
	return nil
}

func firstNaN(values any) int {
	switch v := values.(type) {
	case []float32:
		for i, x := range v {
			if math.IsNaN(float64(x)) {
				return i
			}
		}
	case []float64:
		for i, x := range v {
			if math.IsNaN(x) {
				return i
			}
		}
	case []float16.Float16:
		for i, x := range v {
			if x.IsNaN() {
				return i
			}
		}
	}
	return -1
}
