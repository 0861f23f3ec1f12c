package engine

import (
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// tapeEntry records one kernel call (or one custom gradient region).
// Inputs and outputs are only used for their id, shape and dtype: they may be disposed
// by the time the tape is replayed. Saved tensors are kept aliases owned by the entry.
type tapeEntry struct {
	kernel  string
	inputs  []*Tensor
	outputs []*Tensor
	saved   []*Tensor
	attrs   tensor.Attrs
	gradFn  GradFunc
}

func (entry *tapeEntry) gradContext() GradContext {
	ctx := GradContext{
		Saved:        entry.saved,
		Attrs:        entry.attrs,
		InputShapes:  make([]tensor.Shape, len(entry.inputs)),
		InputDTypes:  make([]tensor.DataType, len(entry.inputs)),
		OutputShapes: make([]tensor.Shape, len(entry.outputs)),
	}
	for i, in := range entry.inputs {
		ctx.InputShapes[i] = in.Shape()
		ctx.InputDTypes[i] = in.dtype
	}
	for i, out := range entry.outputs {
		ctx.OutputShapes[i] = out.Shape()
	}
	return ctx
}

// tape is one frame of the tape stack: the entries recorded by one Gradients call.
type tape struct {
	entries []*tapeEntry
}

// recording reports whether kernel calls are currently appended to a tape.
func (e *Engine) recording() bool {
	return len(e.tapes) > 0 && e.kernelDepth == 0
}

func (e *Engine) currentTape() *tape {
	if len(e.tapes) == 0 {
		return nil
	}
	return e.tapes[len(e.tapes)-1]
}

// record appends a kernel call to the current tape, saving what its gradient needs.
func (e *Engine) record(name string, inputs, outputs []*Tensor, attrs tensor.Attrs) {
	entry := &tapeEntry{
		kernel:  name,
		inputs:  append([]*Tensor(nil), inputs...),
		outputs: append([]*Tensor(nil), outputs...),
		attrs:   attrs,
	}
	if cfg, found := LookupGradient(name); found {
		entry.gradFn = cfg.GradFunc
		if cfg.SaveAllInputs {
			for _, in := range inputs {
				entry.saved = append(entry.saved, e.keptAlias(in))
			}
		} else {
			for _, i := range cfg.InputsToSave {
				entry.saved = append(entry.saved, e.keptAlias(inputs[i]))
			}
		}
		for _, i := range cfg.OutputsToSave {
			entry.saved = append(entry.saved, e.keptAlias(outputs[i]))
		}
	}
	e.recordEntry(entry)
}

func (e *Engine) recordEntry(entry *tapeEntry) {
	t := e.currentTape()
	t.entries = append(t.entries, entry)
}

// releaseTape disposes the tensors saved by the entries of t.
func (e *Engine) releaseTape(t *tape) {
	for _, entry := range t.entries {
		e.Dispose(entry.saved...)
		entry.saved = nil
	}
	t.entries = nil
}

// filteredEntry is a tape entry on a path from the sources to y. relevant marks the inputs
// that are themselves on such a path: only their gradients are accumulated.
type filteredEntry struct {
	*tapeEntry
	relevant []bool
}

// filterTape keeps the entries that both depend on one of xs and contribute to y.
func filterTape(entries []*tapeEntry, xs []*Tensor, y *Tensor) []*filteredEntry {
	fromX := make(map[TensorID]bool)
	for _, x := range xs {
		fromX[x.id] = true
	}
	entryFromX := make([]bool, len(entries))
	for i, entry := range entries {
		for _, in := range entry.inputs {
			if fromX[in.id] {
				entryFromX[i] = true
				break
			}
		}
		if entryFromX[i] {
			for _, out := range entry.outputs {
				fromX[out.id] = true
			}
		}
	}

	leadsToY := map[TensorID]bool{y.id: true}
	entryToY := make([]bool, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		for _, out := range entry.outputs {
			if leadsToY[out.id] {
				entryToY[i] = true
				break
			}
		}
		if entryToY[i] {
			for _, in := range entry.inputs {
				leadsToY[in.id] = true
			}
		}
	}

	var filtered []*filteredEntry
	for i, entry := range entries {
		if !entryFromX[i] || !entryToY[i] {
			continue
		}
		relevant := make([]bool, len(entry.inputs))
		for j, in := range entry.inputs {
			relevant[j] = fromX[in.id] && leadsToY[in.id]
		}
		filtered = append(filtered, &filteredEntry{tapeEntry: entry, relevant: relevant})
	}
	return filtered
}

// backprop computes gradients by walking entries in reverse.
//
// Algorithm:
//  1. Start with the seed gradient for y
//  2. Walk entries in reverse order
//  3. For each entry, compute input gradients from the output gradients (chain rule)
//  4. Accumulate gradients when the same tensor feeds several entries
//
// Nothing executed during the walk is recorded. Returns the gradients by tensor id.
func (e *Engine) backprop(entries []*filteredEntry, y, seed *Tensor) (map[TensorID]*Tensor, error) {
	grads := map[TensorID]*Tensor{y.id: seed}
	if len(entries) == 0 {
		return grads, nil
	}

	e.kernelDepth++
	defer func() {
		e.kernelDepth--
	}()

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		inputGrads, err := e.computeInputGrads(entry, grads)
		if err != nil {
			return nil, err
		}
		if inputGrads == nil {
			continue
		}
		if err := e.accumulateGrads(entry, inputGrads, grads); err != nil {
			return nil, err
		}
	}
	return grads, nil
}

// computeInputGrads calls the gradient function of an entry.
// Returns nil if no gradient flows to this entry.
func (e *Engine) computeInputGrads(entry *filteredEntry, grads map[TensorID]*Tensor) ([]*Tensor, error) {
	outputGrads, hasAnyGrad := collectOutputGrads(entry.outputs, grads)
	if !hasAnyGrad {
		return nil, nil
	}
	if entry.gradFn == nil {
		return nil, errors.Wrapf(ErrTapeReplay, "kernel %q has no registered gradient", entry.kernel)
	}
	if err := e.fillMissingGradsWithZeros(entry.outputs, outputGrads); err != nil {
		return nil, err
	}

	var inputGrads []*Tensor
	err := exceptions.TryCatch[error](func() {
		inputGrads = entry.gradFn(outputGrads, entry.gradContext())
	})
	if err != nil {
		return nil, errors.Wrapf(ErrTapeReplay, "gradient of kernel %q: %v", entry.kernel, err)
	}
	if len(inputGrads) != len(entry.inputs) {
		return nil, errors.Wrapf(ErrTapeReplay, "gradient of kernel %q returned %d gradients for %d inputs",
			entry.kernel, len(inputGrads), len(entry.inputs))
	}
	return inputGrads, nil
}

// collectOutputGrads collects the gradients of all outputs of an entry.
func collectOutputGrads(outputs []*Tensor, grads map[TensorID]*Tensor) ([]*Tensor, bool) {
	outputGrads := make([]*Tensor, len(outputs))
	hasAnyGrad := false
	for j, out := range outputs {
		if grad, exists := grads[out.id]; exists {
			outputGrads[j] = grad
			hasAnyGrad = true
		}
	}
	return outputGrads, hasAnyGrad
}

// fillMissingGradsWithZeros fills nil gradients with zero tensors of a float dtype.
func (e *Engine) fillMissingGradsWithZeros(outputs, outputGrads []*Tensor) error {
	for j, out := range outputs {
		if outputGrads[j] != nil {
			continue
		}
		zeros, err := e.fill(out.shape, 0, out.dtype.GradientType())
		if err != nil {
			return err
		}
		outputGrads[j] = zeros
	}
	return nil
}

// accumulateGrads adds the input gradients of an entry to the running sums.
func (e *Engine) accumulateGrads(entry *filteredEntry, inputGrads []*Tensor, grads map[TensorID]*Tensor) error {
	for j, input := range entry.inputs {
		grad := inputGrads[j]
		if grad == nil || !entry.relevant[j] {
			continue
		}
		switch {
		case grad.IsDisposed():
			return errors.Wrapf(ErrTapeReplay, "gradient of kernel %q for input #%d is disposed", entry.kernel, j)
		case !grad.dtype.IsFloat():
			return errors.Wrapf(ErrTapeReplay, "gradient of kernel %q for input #%d has dtype %s, want a float type",
				entry.kernel, j, grad.dtype)
		case !grad.shape.Equal(input.shape):
			return errors.Wrapf(ErrTapeReplay, "gradient of kernel %q for input #%d has shape %v, input has shape %v",
				entry.kernel, j, grad.shape, input.shape)
		}

		existing, found := grads[input.id]
		if !found {
			grads[input.id] = grad
			continue
		}
		outs, err := e.RunKernel(tensor.KernelAdd, []*Tensor{existing, grad}, nil)
		if err != nil {
			return errors.WithMessagef(err, "accumulating gradient of kernel %q", entry.kernel)
		}
		grads[input.id] = outs[0]
	}
	if klog.V(2).Enabled() {
		klog.Infof("%s: backprop through %q", e, entry.kernel)
	}
	return nil
}

// fill creates a tensor with every element set to value.
func (e *Engine) fill(shape tensor.Shape, value float64, dtype tensor.DataType) (*Tensor, error) {
	outs, err := e.RunKernel(tensor.KernelFill, nil, tensor.Attrs{
		tensor.AttrShape: []int(shape.Clone()),
		tensor.AttrValue: value,
		tensor.AttrDType: dtype,
	})
	if err != nil {
		return nil, err
	}
	return outs[0], nil
}
