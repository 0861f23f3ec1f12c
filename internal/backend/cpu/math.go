package cpu

import (
	"math"

	"github.com/born-ml/runtime/internal/parallel"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
	"github.com/x448/float16"
)

// number covers the dtypes the arithmetic kernels compute on directly.
// Float16 is widened to float32 and narrowed back.
type number interface {
	float32 | float64 | int32 | int64 | uint8
}

func checkNumInputs(op string, inputs []*tensor.RawTensor, want int) {
	if len(inputs) != want {
		exceptions.Panicf("%s: expected %d inputs, got %d", op, want, len(inputs))
	}
}

func binaryFunc[T number](op string) func(a, b T) T {
	switch op {
	case tensor.KernelAdd:
		return func(a, b T) T { return a + b }
	case tensor.KernelSub:
		return func(a, b T) T { return a - b }
	case tensor.KernelMul:
		return func(a, b T) T { return a * b }
	case tensor.KernelDiv:
		return func(a, b T) T { return a / b }
	}
	exceptions.Panicf("%s: not a binary kernel", op)
	return nil
}

// binaryKernel builds an element-wise kernel with NumPy-style broadcasting.
func binaryKernel(op string) kernelFunc {
	return func(cpu *CPUBackend, inputs []*tensor.RawTensor, _ tensor.Attrs) []*tensor.RawTensor {
		checkNumInputs(op, inputs, 2)
		a, b := inputs[0], inputs[1]
		if a.DType() != b.DType() {
			exceptions.Panicf("%s: dtype mismatch: %s vs %s", op, a.DType(), b.DType())
		}
		outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
		if err != nil {
			exceptions.Panicf("%s: %v", op, err)
		}

		result := newResult(op, outShape, a.DType())
		switch a.DType() {
		case tensor.Float32:
			binaryOp(cpu, op, a.AsFloat32(), b.AsFloat32(), result.AsFloat32(), a.Shape(), b.Shape(), outShape)
		case tensor.Float64:
			binaryOp(cpu, op, a.AsFloat64(), b.AsFloat64(), result.AsFloat64(), a.Shape(), b.Shape(), outShape)
		case tensor.Int32:
			checkDivisor(op, b.AsInt32())
			binaryOp(cpu, op, a.AsInt32(), b.AsInt32(), result.AsInt32(), a.Shape(), b.Shape(), outShape)
		case tensor.Int64:
			checkDivisor(op, b.AsInt64())
			binaryOp(cpu, op, a.AsInt64(), b.AsInt64(), result.AsInt64(), a.Shape(), b.Shape(), outShape)
		case tensor.Uint8:
			checkDivisor(op, b.AsUint8())
			binaryOp(cpu, op, a.AsUint8(), b.AsUint8(), result.AsUint8(), a.Shape(), b.Shape(), outShape)
		case tensor.Float16:
			out := make([]float32, outShape.NumElements())
			binaryOp(cpu, op, widenFloat16(a.AsFloat16()), widenFloat16(b.AsFloat16()), out, a.Shape(), b.Shape(), outShape)
			narrowFloat16(result.AsFloat16(), out)
		default:
			exceptions.Panicf("%s: unsupported dtype %s", op, a.DType())
		}
		return []*tensor.RawTensor{result}
	}
}

// checkDivisor rejects integer division by zero before any worker goroutine starts.
func checkDivisor[T int32 | int64 | uint8](op string, divisor []T) {
	if op != tensor.KernelDiv {
		return
	}
	for i, v := range divisor {
		if v == 0 {
			exceptions.Panicf("%s: integer division by zero at index %d", op, i)
		}
	}
}

func binaryOp[T number](cpu *CPUBackend, op string, a, b, out []T, aShape, bShape, outShape tensor.Shape) {
	fn := binaryFunc[T](op)
	switch {
	case len(a) == len(out) && len(b) == len(out):
		parallel.Chunks(len(out), func(start, end int) {
			for i := start; i < end; i++ {
				out[i] = fn(a[i], b[i])
			}
		}, cpu.par)
	case len(b) == 1 && len(a) == len(out):
		s := b[0]
		parallel.Chunks(len(out), func(start, end int) {
			for i := start; i < end; i++ {
				out[i] = fn(a[i], s)
			}
		}, cpu.par)
	case len(a) == 1 && len(b) == len(out):
		s := a[0]
		parallel.Chunks(len(out), func(start, end int) {
			for i := start; i < end; i++ {
				out[i] = fn(s, b[i])
			}
		}, cpu.par)
	default:
		bi := newBroadcastIndexer(outShape, aShape, bShape)
		parallel.Chunks(len(out), func(start, end int) {
			for i := start; i < end; i++ {
				out[i] = fn(a[bi.index(0, i)], b[bi.index(1, i)])
			}
		}, cpu.par)
	}
}

func unaryFunc[T number](op string, alpha T) func(x T) T {
	switch op {
	case tensor.KernelNeg:
		return func(x T) T { return -x }
	case tensor.KernelSquare:
		return func(x T) T { return x * x }
	case tensor.KernelRelu:
		return func(x T) T {
			if x > 0 {
				return x
			}
			return 0
		}
	case tensor.KernelStep:
		return func(x T) T {
			if x > 0 {
				return 1
			}
			return alpha
		}
	case tensor.KernelExp:
		return func(x T) T { return T(math.Exp(float64(x))) }
	case tensor.KernelLog:
		// Non-positive inputs yield NaN or -Inf, which numeric checks can catch.
		return func(x T) T { return T(math.Log(float64(x))) }
	case tensor.KernelSqrt:
		return func(x T) T { return T(math.Sqrt(float64(x))) }
	}
	exceptions.Panicf("%s: not a unary kernel", op)
	return nil
}

// unaryKernel builds an element-wise kernel accepting every numeric dtype.
func unaryKernel(op string) kernelFunc {
	return func(cpu *CPUBackend, inputs []*tensor.RawTensor, attrs tensor.Attrs) []*tensor.RawTensor {
		checkNumInputs(op, inputs, 1)
		return []*tensor.RawTensor{applyUnary(cpu, op, inputs[0], attrs)}
	}
}

// floatUnaryKernel builds an element-wise kernel restricted to floating point dtypes.
func floatUnaryKernel(op string) kernelFunc {
	return func(cpu *CPUBackend, inputs []*tensor.RawTensor, attrs tensor.Attrs) []*tensor.RawTensor {
		checkNumInputs(op, inputs, 1)
		if !inputs[0].DType().IsFloat() {
			exceptions.Panicf("%s: unsupported dtype %s (only float16/float32/float64 supported)", op, inputs[0].DType())
		}
		return []*tensor.RawTensor{applyUnary(cpu, op, inputs[0], attrs)}
	}
}

func applyUnary(cpu *CPUBackend, op string, x *tensor.RawTensor, attrs tensor.Attrs) *tensor.RawTensor {
	alpha, err := attrs.Float(tensor.AttrAlpha, 0)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}

	result := newResult(op, x.Shape(), x.DType())
	switch x.DType() {
	case tensor.Float32:
		unaryOp(cpu, unaryFunc(op, float32(alpha)), x.AsFloat32(), result.AsFloat32())
	case tensor.Float64:
		unaryOp(cpu, unaryFunc(op, alpha), x.AsFloat64(), result.AsFloat64())
	case tensor.Int32:
		unaryOp(cpu, unaryFunc(op, int32(alpha)), x.AsInt32(), result.AsInt32())
	case tensor.Int64:
		unaryOp(cpu, unaryFunc(op, int64(alpha)), x.AsInt64(), result.AsInt64())
	case tensor.Uint8:
		unaryOp(cpu, unaryFunc(op, uint8(alpha)), x.AsUint8(), result.AsUint8())
	case tensor.Float16:
		out := make([]float32, x.NumElements())
		unaryOp(cpu, unaryFunc(op, float32(alpha)), widenFloat16(x.AsFloat16()), out)
		narrowFloat16(result.AsFloat16(), out)
	default:
		exceptions.Panicf("%s: unsupported dtype %s", op, x.DType())
	}
	return result
}

func unaryOp[T number](cpu *CPUBackend, fn func(T) T, src, dst []T) {
	parallel.Chunks(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = fn(src[i])
		}
	}, cpu.par)
}

func widenFloat16(src []float16.Float16) []float32 {
	out := make([]float32, len(src))
	for i, v := range src {
		out[i] = v.Float32()
	}
	return out
}

func narrowFloat16(dst []float16.Float16, src []float32) {
	for i, v := range src {
		dst[i] = float16.Fromfloat32(v)
	}
}
