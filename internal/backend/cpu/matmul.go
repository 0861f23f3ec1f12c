package cpu

import (
	"github.com/born-ml/runtime/internal/parallel"
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
)

// matMulKernel multiplies two 2D tensors: (M, K) @ (K, N) -> (M, N).
// Rows of the result are computed in parallel.
func matMulKernel(cpu *CPUBackend, inputs []*tensor.RawTensor, _ tensor.Attrs) []*tensor.RawTensor {
	const op = tensor.KernelMatMul
	checkNumInputs(op, inputs, 2)
	a, b := inputs[0], inputs[1]
	aShape, bShape := a.Shape(), b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		exceptions.Panicf("%s: only 2D tensors supported, got %dD and %dD", op, len(aShape), len(bShape))
	}
	if a.DType() != b.DType() {
		exceptions.Panicf("%s: dtype mismatch: %s vs %s", op, a.DType(), b.DType())
	}
	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]
	if k != kAlt {
		exceptions.Panicf("%s: shape mismatch [%d,%d] @ [%d,%d]", op, m, k, kAlt, n)
	}

	result := newResult(op, tensor.Shape{m, n}, a.DType())
	switch a.DType() {
	case tensor.Float32:
		matmul(cpu, result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), m, k, n)
	case tensor.Float64:
		matmul(cpu, result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), m, k, n)
	case tensor.Int32:
		matmul(cpu, result.AsInt32(), a.AsInt32(), b.AsInt32(), m, k, n)
	case tensor.Int64:
		matmul(cpu, result.AsInt64(), a.AsInt64(), b.AsInt64(), m, k, n)
	case tensor.Float16:
		out := make([]float32, m*n)
		matmul(cpu, out, widenFloat16(a.AsFloat16()), widenFloat16(b.AsFloat16()), m, k, n)
		narrowFloat16(result.AsFloat16(), out)
	default:
		exceptions.Panicf("%s: unsupported dtype %s", op, a.DType())
	}
	return []*tensor.RawTensor{result}
}

// matmul computes C[i,j] = sum_k A[i,k] * B[k,j] with an i-k-j loop order.
func matmul[T number](cpu *CPUBackend, c, a, b []T, m, k, n int) {
	cfg := cpu.par
	// Split by rows; the per-row cost is k*n multiply-adds.
	if cfg.MinChunkSize > 0 && k*n > 0 {
		cfg.MinChunkSize = max(1, cfg.MinChunkSize/(k*n))
	}
	parallel.Chunks(m, func(start, end int) {
		for i := start; i < end; i++ {
			row := c[i*n : (i+1)*n]
			for j := range row {
				row[j] = 0
			}
			for kk := 0; kk < k; kk++ {
				aik := a[i*k+kk]
				bRow := b[kk*n : (kk+1)*n]
				for j, bv := range bRow {
					row[j] += aik * bv
				}
			}
		}
	}, cfg)
}
