// Package optim implements optimizers that update engine variables from the gradients
// computed by Engine.VariableGrads.
//
// Example usage:
//
//	opt := optim.NewSGD(e, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
//	defer opt.Dispose()
//	for range steps {
//	    loss, err := optim.Minimize(e, opt, func() *engine.Tensor {
//	        return ops.Mean(ops.Square(ops.Sub(model(x), y)))
//	    })
//	    ...
//	    loss.Dispose()
//	}
//
// Optimizer state (velocities, moments) lives in non-trainable variables named after the
// variable they belong to, e.g. "w/velocity".
package optim

import (
	"sort"

	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/ops"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/pkg/errors"
)

// Optimizer updates variables from their gradients.
type Optimizer interface {
	// ApplyGradients updates the variables named by the keys of grads. Nil gradients are
	// skipped. The gradients are not disposed.
	ApplyGradients(grads map[string]*engine.Tensor) error

	// LR returns the current learning rate.
	LR() float64

	// SetLR changes the learning rate, for schedules.
	SetLR(lr float64)

	// Dispose releases the state variables of the optimizer.
	Dispose()
}

// Config is the base configuration for all optimizers.
type Config struct {
	LR float64 // Learning rate
}

// Minimize computes the gradients of the scalar returned by f with respect to vars (every
// trainable variable when empty), applies them with opt and returns the loss. The caller
// owns the loss; everything else created on the way is disposed.
func Minimize(e *engine.Engine, opt Optimizer, f func() *engine.Tensor, vars ...*engine.Variable) (*engine.Tensor, error) {
	return engine.TidyE(e, func() (*engine.Tensor, error) {
		loss, grads, err := e.VariableGrads(f, vars...)
		if err != nil {
			return nil, err
		}
		if err := opt.ApplyGradients(grads); err != nil {
			return nil, err
		}
		return loss, nil
	})
}

// state holds the per-variable slots shared by the optimizers.
type state struct {
	engine *engine.Engine
	lr     float64
	slots  []*engine.Variable
}

func (s *state) LR() float64 { return s.lr }
func (s *state) SetLR(lr float64) { s.lr = lr }

// Dispose releases the slot variables.
func (s *state) Dispose() {
	for _, slot := range s.slots {
		slot.Dispose()
	}
	s.slots = nil
}

// slot returns the state variable "<v>/<suffix>", creating it with zeros.
func (s *state) slot(v *engine.Variable, suffix string) *engine.Variable {
	name := v.Name() + "/" + suffix
	if slot := s.engine.FindVariable(name); slot != nil {
		return slot
	}
	slot, err := s.engine.Variable(ops.ZerosLike(v.Value()), false, name)
	if err != nil {
		panic(err)
	}
	s.slots = append(s.slots, slot)
	return slot
}

// apply runs update for each (variable, gradient) pair, in variable name order, inside
// one tidy scope.
func (s *state) apply(grads map[string]*engine.Tensor, update func(v *engine.Variable, grad *engine.Tensor)) error {
	names := make([]string, 0, len(grads))
	for name, grad := range grads {
		if grad != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	vars := make([]*engine.Variable, len(names))
	for i, name := range names {
		vars[i] = s.engine.FindVariable(name)
		if vars[i] == nil {
			return errors.Wrapf(engine.ErrInvalidArgument, "optimizer: gradient for unknown variable %q", name)
		}
		if !vars[i].DType().IsFloat() {
			return errors.Wrapf(engine.ErrInvalidArgument, "optimizer: variable %q has non-float dtype %s", name, vars[i].DType())
		}
	}
	return ops.Try(func() {
		engine.Tidy(s.engine, func() struct{} {
			for i, v := range vars {
				update(v, grads[names[i]])
			}
			return struct{}{}
		})
	})
}

// constant creates a scalar of the dtype of v.
func constant(v *engine.Variable, value float64) *engine.Tensor {
	return ops.Fill(v.Value().Engine(), tensor.Shape{}, value, v.DType())
}

// assign panics with the error of v.Assign, if any.
func assign(v *engine.Variable, t *engine.Tensor) {
	if err := v.Assign(t); err != nil {
		panic(err)
	}
}
