package ops

import (
	"github.com/born-ml/runtime/internal/engine"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
)

func init() {
	for _, cfg := range []engine.GradConfig{
		{KernelName: tensor.KernelAdd, GradFunc: addGrad},
		{KernelName: tensor.KernelSub, GradFunc: subGrad},
		{KernelName: tensor.KernelMul, SaveAllInputs: true, GradFunc: mulGrad},
		{KernelName: tensor.KernelDiv, SaveAllInputs: true, GradFunc: divGrad},
		{KernelName: tensor.KernelNeg, GradFunc: negGrad},
		{KernelName: tensor.KernelSquare, InputsToSave: []int{0}, GradFunc: squareGrad},
		{KernelName: tensor.KernelExp, OutputsToSave: []int{0}, GradFunc: expGrad},
		{KernelName: tensor.KernelLog, InputsToSave: []int{0}, GradFunc: logGrad},
		{KernelName: tensor.KernelSqrt, OutputsToSave: []int{0}, GradFunc: sqrtGrad},
		{KernelName: tensor.KernelRelu, InputsToSave: []int{0}, GradFunc: reluGrad},
		{KernelName: tensor.KernelStep, GradFunc: stepGrad},
		{KernelName: tensor.KernelSum, GradFunc: sumGrad},
		{KernelName: tensor.KernelCast, GradFunc: castGrad},
		{KernelName: tensor.KernelReshape, GradFunc: reshapeGrad},
		{KernelName: tensor.KernelIdentity, GradFunc: identityGrad},
		{KernelName: tensor.KernelTranspose, GradFunc: transposeGrad},
		{KernelName: tensor.KernelSplit, GradFunc: splitGrad},
		{KernelName: tensor.KernelConcat, GradFunc: concatGrad},
		{KernelName: tensor.KernelMatMul, SaveAllInputs: true, GradFunc: matMulGrad},
	} {
		engine.RegisterGradient(cfg)
	}
}

// reduceBroadcast reduces a gradient tensor to match the target shape.
// This is necessary when broadcasting was used in the forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *engine.Tensor, targetShape tensor.Shape) *engine.Tensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}
	axes := tensor.BroadcastAxes(targetShape, grad.Shape())
	if len(axes) > 0 {
		grad = Sum(grad, axes...)
	}
	return Reshape(grad, targetShape...)
}

// asGradType casts a saved forward tensor to the dtype of the gradient it is combined with.
func asGradType(x, dy *engine.Tensor) *engine.Tensor {
	if x.DType() == dy.DType() {
		return x
	}
	return Cast(x, dy.DType())
}

// d(a+b)/da = 1, d(a+b)/db = 1
func addGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	dy := dys[0]
	return []*engine.Tensor{
		reduceBroadcast(dy, ctx.InputShapes[0]),
		reduceBroadcast(dy, ctx.InputShapes[1]),
	}
}

// d(a-b)/da = 1, d(a-b)/db = -1
func subGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	dy := dys[0]
	return []*engine.Tensor{
		reduceBroadcast(dy, ctx.InputShapes[0]),
		reduceBroadcast(Neg(dy), ctx.InputShapes[1]),
	}
}

// d(a*b)/da = b, d(a*b)/db = a
func mulGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	dy := dys[0]
	a, b := asGradType(ctx.Saved[0], dy), asGradType(ctx.Saved[1], dy)
	return []*engine.Tensor{
		reduceBroadcast(Mul(dy, b), ctx.InputShapes[0]),
		reduceBroadcast(Mul(dy, a), ctx.InputShapes[1]),
	}
}

// d(a/b)/da = 1/b, d(a/b)/db = -a/b^2
func divGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	dy := dys[0]
	a, b := asGradType(ctx.Saved[0], dy), asGradType(ctx.Saved[1], dy)
	return []*engine.Tensor{
		reduceBroadcast(Div(dy, b), ctx.InputShapes[0]),
		reduceBroadcast(Neg(Div(Mul(dy, a), Square(b))), ctx.InputShapes[1]),
	}
}

func negGrad(dys []*engine.Tensor, _ engine.GradContext) []*engine.Tensor {
	return []*engine.Tensor{Neg(dys[0])}
}

// d(x^2)/dx = 2x
func squareGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	x := asGradType(ctx.Saved[0], dys[0])
	return []*engine.Tensor{Mul(dys[0], Add(x, x))}
}

// d(e^x)/dx = e^x, the saved output.
func expGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	return []*engine.Tensor{Mul(dys[0], ctx.Saved[0])}
}

// d(log x)/dx = 1/x
func logGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	return []*engine.Tensor{Div(dys[0], ctx.Saved[0])}
}

// d(sqrt x)/dx = 1/(2 sqrt x), from the saved output.
func sqrtGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	y := ctx.Saved[0]
	return []*engine.Tensor{Div(dys[0], Add(y, y))}
}

// d(relu x)/dx = 1 if x > 0, else 0
func reluGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	x := asGradType(ctx.Saved[0], dys[0])
	return []*engine.Tensor{Mul(dys[0], Step(x, 0))}
}

func stepGrad(dys []*engine.Tensor, _ engine.GradContext) []*engine.Tensor {
	return []*engine.Tensor{ZerosLike(dys[0])}
}

// The gradient of a sum is dy broadcast back to the input shape.
func sumGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	dy := dys[0]
	inShape := ctx.InputShapes[0]
	rawAxes, err := ctx.Attrs.Ints(tensor.AttrAxes)
	if err != nil {
		panic(err)
	}
	axes := must(inShape.NormalizeAxes(rawAxes))
	kept := Reshape(dy, inShape.Reduced(axes, true)...)
	return []*engine.Tensor{Add(Zeros(dy.Engine(), inShape, dy.DType()), kept)}
}

func castGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	dy := dys[0]
	if want := ctx.InputDTypes[0].GradientType(); dy.DType() != want {
		dy = Cast(dy, want)
	}
	return []*engine.Tensor{dy}
}

func reshapeGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	return []*engine.Tensor{Reshape(dys[0], ctx.InputShapes[0]...)}
}

func identityGrad(dys []*engine.Tensor, _ engine.GradContext) []*engine.Tensor {
	return []*engine.Tensor{dys[0]}
}

// The gradient of a transpose is dy transposed by the inverse permutation.
func transposeGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	perm, err := ctx.Attrs.Ints(tensor.AttrPerm)
	if err != nil {
		panic(err)
	}
	if perm == nil {
		return []*engine.Tensor{Transpose(dys[0])}
	}
	inverse := make([]int, len(perm))
	for i, p := range perm {
		inverse[p] = i
	}
	return []*engine.Tensor{Transpose(dys[0], inverse...)}
}

// The gradient of a split is the concatenation of the part gradients.
func splitGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	axis, err := ctx.Attrs.Int(tensor.AttrAxis, 0)
	if err != nil {
		panic(err)
	}
	return []*engine.Tensor{Concat(axis, dys...)}
}

// The gradient of a concatenation is dy split back into the input sizes.
func concatGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	axis, err := ctx.Attrs.Int(tensor.AttrAxis, 0)
	if err != nil {
		panic(err)
	}
	if axis < 0 {
		axis += len(ctx.InputShapes[0])
	}
	if axis < 0 || axis >= len(ctx.InputShapes[0]) {
		exceptions.Panicf("concat gradient: axis out of range for shape %v", ctx.InputShapes[0])
	}
	sizes := make([]int, len(ctx.InputShapes))
	for i, shape := range ctx.InputShapes {
		sizes[i] = shape[axis]
	}
	if len(sizes) == 1 {
		return []*engine.Tensor{dys[0]}
	}
	return SplitSizes(dys[0], sizes, axis)
}

// d(A@B)/dA = dy@B^T, d(A@B)/dB = A^T@dy
func matMulGrad(dys []*engine.Tensor, ctx engine.GradContext) []*engine.Tensor {
	dy := dys[0]
	a, b := asGradType(ctx.Saved[0], dy), asGradType(ctx.Saved[1], dy)
	return []*engine.Tensor{
		MatMul(dy, Transpose(b)),
		MatMul(Transpose(a), dy),
	}
}
