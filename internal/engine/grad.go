package engine

import (
	"sort"

	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// Gradients runs f while recording a tape and returns y = f() together with dy/dx for
// every x in xs. dy seeds the backward pass; nil means ones shaped like y.
//
// Everything f creates, other than y, is disposed before returning. Sources y does not
// depend on get zero gradients. Gradients are always of a float dtype, whatever the dtype
// of their source.
//
// f reports failures by panicking with an error, as the ops do. When called while an outer
// tape records, the recorded entries are handed to the outer tape, so the outer
// computation can be differentiated through f; the backward pass itself is never recorded.
func (e *Engine) Gradients(f func() *Tensor, xs []*Tensor, dy *Tensor) (*Tensor, []*Tensor, error) {
	if len(xs) == 0 {
		return nil, nil, errors.Wrap(ErrInvalidArgument, "gradients: no source tensors")
	}
	for i, x := range xs {
		if _, err := e.entryOf(x, "gradients"); err != nil {
			return nil, nil, errors.WithMessagef(err, "source #%d", i)
		}
	}
	if dy != nil {
		if _, err := e.entryOf(dy, "gradients"); err != nil {
			return nil, nil, errors.WithMessage(err, "dy")
		}
	}

	results, err := TidyE(e, func() ([]*Tensor, error) {
		return e.gradients(f, xs, dy)
	})
	if err != nil {
		return nil, nil, err
	}
	return results[0], results[1:], nil
}

// gradients runs inside the scope opened by Gradients and returns y followed by the
// gradients.
func (e *Engine) gradients(f func() *Tensor, xs []*Tensor, dy *Tensor) ([]*Tensor, error) {
	depth := len(e.tapes)
	t := &tape{}
	e.tapes = append(e.tapes, t)
	popped := false
	defer func() {
		if !popped {
			e.tapes = e.tapes[:depth]
			e.releaseTape(t)
		}
	}()
	var y *Tensor
	err := exceptions.TryCatch[error](func() {
		y = f()
	})
	e.tapes = e.tapes[:depth]
	popped = true

	if outer := e.currentTape(); outer != nil && e.recording() {
		outer.entries = append(outer.entries, t.entries...)
	} else {
		defer e.releaseTape(t)
	}
	if err != nil {
		return nil, errors.WithMessage(err, "gradients: forward function failed")
	}
	if _, err := e.entryOf(y, "gradients: result of f"); err != nil {
		return nil, err
	}

	seed := dy
	if seed == nil {
		if seed, err = e.fill(y.shape, 1, y.dtype.GradientType()); err != nil {
			return nil, err
		}
	} else if !dy.shape.Equal(y.shape) {
		return nil, errors.Wrapf(ErrTapeReplay, "dy has shape %v, but y has shape %v", dy.shape, y.shape)
	}

	grads, err := e.backprop(filterTape(t.entries, xs, y), y, seed)
	if err != nil {
		return nil, err
	}

	seen := make(map[TensorID]bool)
	owned, err := e.ownResult(y, seen)
	if err != nil {
		return nil, err
	}
	results := []*Tensor{owned}
	for _, x := range xs {
		grad := grads[x.id]
		if grad == nil {
			if grad, err = e.fill(x.shape, 0, x.dtype.GradientType()); err != nil {
				return nil, err
			}
		}
		if owned, err = e.ownResult(grad, seen); err != nil {
			return nil, err
		}
		results = append(results, owned)
	}
	return results, nil
}

// ownResult returns t if it was created in the current scope and not returned yet, or a
// fresh alias of it otherwise, so that every returned handle is owned by the caller.
// While an outer tape records, the alias goes through the identity kernel so that the
// outer gradient flows through it.
func (e *Engine) ownResult(t *Tensor, seen map[TensorID]bool) (*Tensor, error) {
	st, ok := e.live[t.id]
	if !ok {
		return nil, errors.Wrapf(ErrTapeReplay, "gradients: result %s was disposed", t)
	}
	if st.scope != e.currentScope() || seen[t.id] {
		if e.recording() {
			outs, err := e.RunKernel(tensor.KernelIdentity, []*Tensor{t}, nil)
			if err != nil {
				return nil, err
			}
			t = outs[0]
		} else {
			t = e.alias(t, t.shape)
		}
	}
	seen[t.id] = true
	return t, nil
}

// Grad returns a function computing df/dx. The optional dy seeds the backward pass.
func (e *Engine) Grad(f func(x *Tensor) *Tensor) func(x *Tensor, dy ...*Tensor) (*Tensor, error) {
	return func(x *Tensor, dy ...*Tensor) (*Tensor, error) {
		y, grads, err := e.Gradients(func() *Tensor { return f(x) }, []*Tensor{x}, firstOrNil(dy))
		if err != nil {
			return nil, err
		}
		e.Dispose(y)
		return grads[0], nil
	}
}

// Grads returns a function computing the gradients of f with respect to each argument.
func (e *Engine) Grads(f func(xs ...*Tensor) *Tensor) func(xs []*Tensor, dy ...*Tensor) ([]*Tensor, error) {
	return func(xs []*Tensor, dy ...*Tensor) ([]*Tensor, error) {
		y, grads, err := e.Gradients(func() *Tensor { return f(xs...) }, xs, firstOrNil(dy))
		if err != nil {
			return nil, err
		}
		e.Dispose(y)
		return grads, nil
	}
}

// ValueAndGrad is like Grad, also returning the value of f.
func (e *Engine) ValueAndGrad(f func(x *Tensor) *Tensor) func(x *Tensor, dy ...*Tensor) (value, grad *Tensor, err error) {
	return func(x *Tensor, dy ...*Tensor) (*Tensor, *Tensor, error) {
		y, grads, err := e.Gradients(func() *Tensor { return f(x) }, []*Tensor{x}, firstOrNil(dy))
		if err != nil {
			return nil, nil, err
		}
		return y, grads[0], nil
	}
}

// ValueAndGrads is like Grads, also returning the value of f.
func (e *Engine) ValueAndGrads(f func(xs ...*Tensor) *Tensor) func(xs []*Tensor, dy ...*Tensor) (value *Tensor, grads []*Tensor, err error) {
	return func(xs []*Tensor, dy ...*Tensor) (*Tensor, []*Tensor, error) {
		return e.Gradients(func() *Tensor { return f(xs...) }, xs, firstOrNil(dy))
	}
}

// VariableGrads computes the gradients of the scalar f with respect to vars, or to every
// trainable variable when vars is empty. Gradients are keyed by variable name.
func (e *Engine) VariableGrads(f func() *Tensor, vars ...*Variable) (*Tensor, map[string]*Tensor, error) {
	if len(vars) == 0 {
		for _, v := range e.Variables() {
			if v.trainable {
				vars = append(vars, v)
			}
		}
	}
	if len(vars) == 0 {
		return nil, nil, errors.Wrap(ErrInvalidArgument, "variableGrads: no trainable variables")
	}
	xs := make([]*Tensor, len(vars))
	for i, v := range vars {
		xs[i] = v.value
	}

	y, grads, err := e.Gradients(f, xs, nil)
	if err != nil {
		return nil, nil, err
	}
	if y.Size() != 1 {
		e.Dispose(y)
		e.Dispose(grads...)
		return nil, nil, errors.Wrapf(ErrInvalidArgument, "variableGrads: f must return a scalar, got shape %v", y.shape)
	}
	byName := make(map[string]*Tensor, len(vars))
	for i, v := range vars {
		byName[v.name] = grads[i]
	}
	return y, byName, nil
}

func firstOrNil(ts []*Tensor) *Tensor {
	if len(ts) == 0 {
		return nil
	}
	return ts[0]
}

// sortedVariables returns the variables ordered by name.
func sortedVariables(m map[string]*Variable) []*Variable {
	list := make([]*Variable, 0, len(m))
	for _, v := range m {
		list = append(list, v)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].name < list[j].name })
	return list
}
