package cpu

import (
	"github.com/born-ml/runtime/internal/tensor"
	"github.com/gomlx/exceptions"
)

// Data movement kernels work on the untyped buffer: every numeric dtype is moved as
// blocks of dtype.Size() bytes, and string tensors as blocks of strings.

// concatKernel joins its inputs along attribute "axis". All inputs must share dtype, rank
// and every dimension except the concatenation axis.
func concatKernel(_ *CPUBackend, inputs []*tensor.RawTensor, attrs tensor.Attrs) []*tensor.RawTensor {
	const op = tensor.KernelConcat
	if len(inputs) == 0 {
		exceptions.Panicf("%s: at least one tensor required", op)
	}
	shape := inputs[0].Shape()
	dtype := inputs[0].DType()
	axis := axisAttr(op, attrs, shape)

	total := 0
	for i, t := range inputs {
		tShape := t.Shape()
		if len(tShape) != len(shape) {
			exceptions.Panicf("%s: tensor %d has %d dimensions, expected %d", op, i, len(tShape), len(shape))
		}
		if t.DType() != dtype {
			exceptions.Panicf("%s: tensor %d has dtype %s, expected %s", op, i, t.DType(), dtype)
		}
		for d := range shape {
			if d == axis {
				total += tShape[d]
			} else if tShape[d] != shape[d] {
				exceptions.Panicf("%s: tensor %d dimension %d is %d, expected %d", op, i, d, tShape[d], shape[d])
			}
		}
	}

	outShape := shape.Clone()
	outShape[axis] = total
	result := newResult(op, outShape, dtype)

	outer := tensor.Shape(shape[:axis]).NumElements()
	inner := tensor.Shape(shape[axis+1:]).NumElements()
	if dtype == tensor.String {
		srcs := make([][]string, len(inputs))
		for i, t := range inputs {
			srcs[i] = t.AsStrings()
		}
		concatBlocks(result.AsStrings(), srcs, inputs, axis, outer, inner)
	} else {
		srcs := make([][]byte, len(inputs))
		for i, t := range inputs {
			srcs[i] = t.Data()
		}
		concatBlocks(result.Data(), srcs, inputs, axis, outer, inner*dtype.Size())
	}
	return []*tensor.RawTensor{result}
}

func concatBlocks[T any](dst []T, srcs [][]T, inputs []*tensor.RawTensor, axis, outer, unit int) {
	offset := 0
	for o := 0; o < outer; o++ {
		for i, src := range srcs {
			block := inputs[i].Shape()[axis] * unit
			copy(dst[offset:offset+block], src[o*block:(o+1)*block])
			offset += block
		}
	}
}

// splitKernel cuts its input along "axis", into the part sizes of attribute "sizes" or,
// without it, into "numSplits" equal parts.
func splitKernel(_ *CPUBackend, inputs []*tensor.RawTensor, attrs tensor.Attrs) []*tensor.RawTensor {
	const op = tensor.KernelSplit
	checkNumInputs(op, inputs, 1)
	x := inputs[0]
	shape := x.Shape()
	axis := axisAttr(op, attrs, shape)
	sizes := splitSizes(op, attrs, shape[axis])

	results := make([]*tensor.RawTensor, len(sizes))
	for i, size := range sizes {
		partShape := shape.Clone()
		partShape[axis] = size
		results[i] = newResult(op, partShape, x.DType())
	}

	outer := tensor.Shape(shape[:axis]).NumElements()
	inner := tensor.Shape(shape[axis+1:]).NumElements()
	if x.DType() == tensor.String {
		dsts := make([][]string, len(results))
		for i, r := range results {
			dsts[i] = r.AsStrings()
		}
		splitBlocks(dsts, x.AsStrings(), sizes, outer, inner)
	} else {
		dsts := make([][]byte, len(results))
		for i, r := range results {
			dsts[i] = r.Data()
		}
		splitBlocks(dsts, x.Data(), sizes, outer, inner*x.DType().Size())
	}
	return results
}

func splitSizes(op string, attrs tensor.Attrs, dim int) []int {
	sizes, err := attrs.Ints(tensor.AttrSizes)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	if sizes != nil {
		total := 0
		for _, size := range sizes {
			if size < 0 {
				exceptions.Panicf("%s: negative part size in %v", op, sizes)
			}
			total += size
		}
		if total != dim {
			exceptions.Panicf("%s: part sizes %v do not add up to %d", op, sizes, dim)
		}
		return sizes
	}

	n, err := attrs.Int(tensor.AttrNumSplits, 0)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	if n <= 0 {
		exceptions.Panicf("%s: number of splits must be positive, got %d", op, n)
	}
	if dim%n != 0 {
		exceptions.Panicf("%s: dimension size %d not divisible by %d", op, dim, n)
	}
	sizes = make([]int, n)
	for i := range sizes {
		sizes[i] = dim / n
	}
	return sizes
}

func splitBlocks[T any](dsts [][]T, src []T, sizes []int, outer, unit int) {
	offset := 0
	for o := 0; o < outer; o++ {
		for i, dst := range dsts {
			block := sizes[i] * unit
			copy(dst[o*block:(o+1)*block], src[offset:offset+block])
			offset += block
		}
	}
}

// transposeKernel permutes axes according to attribute "perm" (reversed axes when absent).
func transposeKernel(_ *CPUBackend, inputs []*tensor.RawTensor, attrs tensor.Attrs) []*tensor.RawTensor {
	const op = tensor.KernelTranspose
	checkNumInputs(op, inputs, 1)
	x := inputs[0]
	shape := x.Shape()
	rank := len(shape)

	perm, err := attrs.Ints(tensor.AttrPerm)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	if perm == nil {
		perm = make([]int, rank)
		for i := range perm {
			perm[i] = rank - 1 - i
		}
	}
	if len(perm) != rank {
		exceptions.Panicf("%s: permutation %v does not match rank %d", op, perm, rank)
	}
	seen := make([]bool, rank)
	outShape := make(tensor.Shape, rank)
	for i, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			exceptions.Panicf("%s: invalid permutation %v", op, perm)
		}
		seen[p] = true
		outShape[i] = shape[p]
	}

	// Input strides reordered to follow the output axes.
	inStrides := shape.ComputeStrides()
	permStrides := make([]int, rank)
	for i, p := range perm {
		permStrides[i] = inStrides[p]
	}
	outStrides := outShape.ComputeStrides()

	result := newResult(op, outShape, x.DType())
	if x.DType() == tensor.String {
		transposeElems(result.AsStrings(), x.AsStrings(), 1, outStrides, permStrides)
	} else {
		transposeElems(result.Data(), x.Data(), x.DType().Size(), outStrides, permStrides)
	}
	return []*tensor.RawTensor{result}
}

func transposeElems[T any](dst, src []T, unit int, outStrides, permStrides []int) {
	n := len(dst) / unit
	for i := 0; i < n; i++ {
		j := computeFlatIndex(i, outStrides, permStrides)
		copy(dst[i*unit:(i+1)*unit], src[j*unit:(j+1)*unit])
	}
}

// axisAttr reads and normalizes attribute "axis" against shape.
func axisAttr(op string, attrs tensor.Attrs, shape tensor.Shape) int {
	axis, err := attrs.Int(tensor.AttrAxis, 0)
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	axes, err := shape.NormalizeAxes([]int{axis})
	if err != nil {
		exceptions.Panicf("%s: %v", op, err)
	}
	return axes[0]
}
