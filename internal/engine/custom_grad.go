package engine

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// customGradKernel names custom gradient entries in tape errors and profiles.
const customGradKernel = "customGrad"

// CustomGradFunc computes a value from inputs and returns it with the function computing
// the input gradients from the value gradient. Tensors passed to save are handed to that
// function, in order, as saved.
type CustomGradFunc func(inputs []*Tensor, save func(...*Tensor)) (value *Tensor, gradFn func(dy *Tensor, saved []*Tensor) []*Tensor)

// CustomGrad wraps f so that its gradient is given by the function f returns, instead of
// the gradients of the kernels f runs. Those kernels are not recorded, and everything f
// creates except its value and the saved tensors is disposed when it returns.
func (e *Engine) CustomGrad(f CustomGradFunc) func(inputs ...*Tensor) (*Tensor, error) {
	return func(inputs ...*Tensor) (*Tensor, error) {
		for i, in := range inputs {
			if _, err := e.entryOf(in, customGradKernel); err != nil {
				return nil, errors.WithMessagef(err, "input #%d", i)
			}
		}

		var (
			saved  []*Tensor
			value  *Tensor
			gradFn func(dy *Tensor, saved []*Tensor) []*Tensor
		)
		save := func(ts ...*Tensor) {
			for _, t := range ts {
				saved = append(saved, e.keptAlias(t))
			}
		}
		done := false
		defer func() {
			if !done {
				e.Dispose(saved...)
			}
		}()
		err := func() error {
			e.kernelDepth++
			defer func() { e.kernelDepth-- }()
			return exceptions.TryCatch[error](func() {
				value = Tidy(e, func() *Tensor {
					v, fn := f(inputs, save)
					gradFn = fn
					return v
				})
			})
		}()
		done = true

		switch {
		case err != nil:
			e.Dispose(saved...)
			return nil, errors.WithMessage(err, "customGrad: forward function failed")
		case value == nil || gradFn == nil:
			e.Dispose(saved...)
			e.Dispose(value)
			return nil, errors.Wrap(ErrInvalidArgument, "customGrad: f must return a value and a gradient function")
		}

		if !e.recording() {
			e.Dispose(saved...)
			return value, nil
		}
		e.recordEntry(&tapeEntry{
			kernel:  customGradKernel,
			inputs:  append([]*Tensor(nil), inputs...),
			outputs: []*Tensor{value},
			saved:   saved,
			gradFn: func(dys []*Tensor, ctx GradContext) []*Tensor {
				return gradFn(dys[0], ctx.Saved)
			},
		})
		return value, nil
	}
}
