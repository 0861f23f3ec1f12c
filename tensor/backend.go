// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/runtime/internal/tensor"

// Backend defines the interface that all compute backends must implement.
// A backend owns the buffers it materializes and executes kernels by name.
//
// Implementations:
//   - backend/cpu: Pure Go kernels over host buffers
//
// Example:
//
//	import (
//	    "github.com/born-ml/runtime/backend/cpu"
//	    "github.com/born-ml/runtime/engine"
//	)
//
//	e := engine.New(engine.DefaultConfig())
//	_ = cpu.Register(e, 1)
type Backend = tensor.Backend

// Info describes a buffer passed to or returned by a kernel.
type Info = tensor.Info

// DataID identifies a backend buffer.
type DataID = tensor.DataID

// Attrs carries the non-tensor parameters of a kernel call.
type Attrs = tensor.Attrs

// MemoryReporter is implemented by backends adding to the engine memory report.
type MemoryReporter = tensor.MemoryReporter

// BackendMemory is the report of a MemoryReporter.
type BackendMemory = tensor.BackendMemory

// NewDataID returns a process-wide unique DataID, for kernel outputs.
func NewDataID() DataID {
	return tensor.NewDataID()
}

// Kernel names.
const (
	KernelAdd       = tensor.KernelAdd
	KernelSub       = tensor.KernelSub
	KernelMul       = tensor.KernelMul
	KernelDiv       = tensor.KernelDiv
	KernelNeg       = tensor.KernelNeg
	KernelSquare    = tensor.KernelSquare
	KernelExp       = tensor.KernelExp
	KernelLog       = tensor.KernelLog
	KernelSqrt      = tensor.KernelSqrt
	KernelRelu      = tensor.KernelRelu
	KernelStep      = tensor.KernelStep
	KernelSum       = tensor.KernelSum
	KernelFill      = tensor.KernelFill
	KernelCast      = tensor.KernelCast
	KernelSplit     = tensor.KernelSplit
	KernelConcat    = tensor.KernelConcat
	KernelReshape   = tensor.KernelReshape
	KernelIdentity  = tensor.KernelIdentity
	KernelTranspose = tensor.KernelTranspose
	KernelMatMul    = tensor.KernelMatMul
)

// Attribute keys.
const (
	AttrAxes      = tensor.AttrAxes
	AttrKeepDims  = tensor.AttrKeepDims
	AttrShape     = tensor.AttrShape
	AttrValue     = tensor.AttrValue
	AttrDType     = tensor.AttrDType
	AttrAxis      = tensor.AttrAxis
	AttrNumSplits = tensor.AttrNumSplits
	AttrSizes     = tensor.AttrSizes
	AttrPerm      = tensor.AttrPerm
	AttrAlpha     = tensor.AttrAlpha
)
