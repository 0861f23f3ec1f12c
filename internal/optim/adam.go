package optim

import (
	"math"

	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/ops"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient^2
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam struct {
	state
	beta1, beta2 float64
	eps          float64
	t            int // Timestep for bias correction
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer for the variables of e. Zero fields take their
// default values.
func NewAdam(e *engine.Engine, config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{
		state: state{engine: e, lr: config.LR},
		beta1: config.Betas[0],
		beta2: config.Betas[1],
		eps:   config.Eps,
	}
}

// Step returns the number of updates applied so far.
func (a *Adam) Step() int {
	return a.t
}

// ApplyGradients implements Optimizer.
func (a *Adam) ApplyGradients(grads map[string]*engine.Tensor) error {
	a.t++
	correction1 := 1 - math.Pow(a.beta1, float64(a.t))
	correction2 := 1 - math.Pow(a.beta2, float64(a.t))

	err := a.apply(grads, func(v *engine.Variable, grad *engine.Tensor) {
		m := a.slot(v, "m")
		s := a.slot(v, "v")
		assign(m, ops.Add(
			ops.Mul(constant(v, a.beta1), m.Value()),
			ops.Mul(constant(v, 1-a.beta1), grad)))
		assign(s, ops.Add(
			ops.Mul(constant(v, a.beta2), s.Value()),
			ops.Mul(constant(v, 1-a.beta2), ops.Square(grad))))

		mHat := ops.Div(m.Value(), constant(v, correction1))
		vHat := ops.Div(s.Value(), constant(v, correction2))
		denom := ops.Add(ops.Sqrt(vHat), constant(v, a.eps))
		assign(v, ops.Sub(v.Value(), ops.Mul(constant(v, a.lr), ops.Div(mHat, denom))))
	})
	if err != nil {
		a.t--
	}
	return err
}
