package engine

import (
	"fmt"

	"github.com/born-ml/runtime/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Variable is a named, kept tensor whose value can be replaced with Assign. Trainable
// variables are the default sources of VariableGrads.
type Variable struct {
	engine    *Engine
	name      string
	trainable bool
	value     *Tensor
}

// Variable registers a new variable holding the data of initial. An empty name is
// replaced by a generated one.
func (e *Engine) Variable(initial *Tensor, trainable bool, name string) (*Variable, error) {
	if _, err := e.entryOf(initial, "variable"); err != nil {
		return nil, err
	}
	if name == "" {
		e.varCounter++
		name = fmt.Sprintf("variable_%d", e.varCounter)
	}
	if _, found := e.variables[name]; found {
		return nil, errors.Wrapf(ErrDuplicateName, "variable %q", name)
	}
	v := &Variable{
		engine:    e,
		name:      name,
		trainable: trainable,
		value:     e.keptAlias(initial),
	}
	e.variables[name] = v
	klog.V(2).Infof("%s: new variable %q %v", e, name, initial.shape)
	return v, nil
}

// Variables returns the registered variables, ordered by name.
func (e *Engine) Variables() []*Variable {
	return sortedVariables(e.variables)
}

// FindVariable returns the variable registered under name, or nil.
func (e *Engine) FindVariable(name string) *Variable {
	return e.variables[name]
}

// DisposeVariables disposes every registered variable.
func (e *Engine) DisposeVariables() {
	for _, v := range sortedVariables(e.variables) {
		v.Dispose()
	}
}

// Name returns the variable name.
func (v *Variable) Name() string {
	return v.name
}

// Trainable reports whether VariableGrads uses the variable by default.
func (v *Variable) Trainable() bool {
	return v.trainable
}

// Value returns the current value. The handle is replaced by Assign.
func (v *Variable) Value() *Tensor {
	return v.value
}

// Shape returns the variable shape.
func (v *Variable) Shape() tensor.Shape {
	return v.value.Shape()
}

// DType returns the variable element type.
func (v *Variable) DType() tensor.DataType {
	return v.value.dtype
}

// Assign replaces the value with the data of t, which must have the same shape and dtype.
func (v *Variable) Assign(t *Tensor) error {
	e := v.engine
	if _, err := e.entryOf(t, "assign"); err != nil {
		return err
	}
	if _, found := e.variables[v.name]; !found {
		return errors.Wrapf(ErrDisposedTensor, "assign to disposed variable %q", v.name)
	}
	if !t.shape.Equal(v.value.shape) || t.dtype != v.value.dtype {
		return errors.Wrapf(ErrInvalidArgument, "assign %s to variable %q of shape %v and dtype %s",
			t, v.name, v.value.shape, v.value.dtype)
	}
	old := v.value
	v.value = e.keptAlias(t)
	e.Dispose(old)
	return nil
}

// Dispose releases the value and unregisters the variable.
func (v *Variable) Dispose() {
	e := v.engine
	if e.variables[v.name] != v {
		return
	}
	delete(e.variables, v.name)
	e.Dispose(v.value)
}

// String implements fmt.Stringer.
func (v *Variable) String() string {
	return fmt.Sprintf("Variable(%s)%v", v.name, []int(v.value.shape))
}
