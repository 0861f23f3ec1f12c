package optim

import (
	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/ops"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
type SGD struct {
	state
	momentum float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer for the variables of e.
func NewSGD(e *engine.Engine, config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{
		state:    state{engine: e, lr: config.LR},
		momentum: config.Momentum,
	}
}

// ApplyGradients implements Optimizer.
func (s *SGD) ApplyGradients(grads map[string]*engine.Tensor) error {
	return s.apply(grads, func(v *engine.Variable, grad *engine.Tensor) {
		lr := constant(v, s.lr)
		if s.momentum == 0 {
			assign(v, ops.Sub(v.Value(), ops.Mul(lr, grad)))
			return
		}
		velocity := s.slot(v, "velocity")
		assign(velocity, ops.Add(ops.Mul(constant(v, s.momentum), velocity.Value()), grad))
		assign(v, ops.Sub(v.Value(), ops.Mul(lr, velocity.Value())))
	})
}
