package ops

import (
	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/tensor"
)

// Add returns a + b, broadcasting.
func Add(a, b *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelAdd, nil, a, b)
}

// Sub returns a - b, broadcasting.
func Sub(a, b *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelSub, nil, a, b)
}

// Mul returns a * b, broadcasting.
func Mul(a, b *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelMul, nil, a, b)
}

// Div returns a / b, broadcasting. Integer division by zero fails.
func Div(a, b *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelDiv, nil, a, b)
}

// Neg returns -x.
func Neg(x *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelNeg, nil, x)
}

// Square returns x * x.
func Square(x *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelSquare, nil, x)
}

// Exp returns e^x. Float dtypes only.
func Exp(x *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelExp, nil, x)
}

// Log returns the natural logarithm of x. Float dtypes only.
func Log(x *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelLog, nil, x)
}

// Sqrt returns the square root of x. Float dtypes only.
func Sqrt(x *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelSqrt, nil, x)
}

// Relu returns max(x, 0).
func Relu(x *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelRelu, nil, x)
}

// Step returns 1 where x > 0 and alpha elsewhere.
func Step(x *engine.Tensor, alpha float64) *engine.Tensor {
	return run(tensor.KernelStep, tensor.Attrs{tensor.AttrAlpha: alpha}, x)
}

// MatMul returns the matrix product of the 2D tensors a and b.
func MatMul(a, b *engine.Tensor) *engine.Tensor {
	return run(tensor.KernelMatMul, nil, a, b)
}
