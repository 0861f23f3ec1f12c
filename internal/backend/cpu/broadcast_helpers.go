package cpu

import (
	"github.com/born-ml/runtime/internal/tensor"
)

// broadcastStrides returns the strides of inShape seen as outShape: leading padded axes
// and axes of size 1 get stride 0.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	strides := make([]int, len(outShape))
	offset := len(outShape) - len(inShape)
	inStrides := inShape.ComputeStrides()
	for axis := offset; axis < len(outShape); axis++ {
		if inShape[axis-offset] != 1 {
			strides[axis] = inStrides[axis-offset]
		}
	}
	return strides
}

// broadcastIndexer maps flat output indices to flat input indices for each operand
// of a broadcasting kernel.
type broadcastIndexer struct {
	outStrides []int
	inStrides  [][]int
}

func newBroadcastIndexer(outShape tensor.Shape, inShapes ...tensor.Shape) broadcastIndexer {
	bi := broadcastIndexer{outStrides: outShape.ComputeStrides()}
	for _, s := range inShapes {
		bi.inStrides = append(bi.inStrides, broadcastStrides(s, outShape))
	}
	return bi
}

// index returns the flat index into operand k for output element outIdx.
func (bi broadcastIndexer) index(k, outIdx int) int {
	return computeFlatIndex(outIdx, bi.outStrides, bi.inStrides[k])
}

// computeFlatIndex splits idx into coordinates with fromStrides and recombines them
// with toStrides.
func computeFlatIndex(idx int, fromStrides, toStrides []int) int {
	flat := 0
	for axis, stride := range fromStrides {
		flat += (idx / stride) * toStrides[axis]
		idx %= stride
	}
	return flat
}
