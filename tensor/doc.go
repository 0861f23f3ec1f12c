// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the types shared by the Born runtime engine and its compute
// backends.
//
// # Overview
//
// This package provides:
//   - Data types (Float32, Float64, Int32, Int64, Uint8, Bool, Float16, String)
//   - Shapes with NumPy-style broadcasting helpers
//   - RawTensor, a host buffer used by the CPU backend and for data transfers
//   - The Backend contract: buffers addressed by DataID, kernels executed by name
//
// Tensors handed to users are engine handles (see package engine): they only name a
// buffer owned by a backend, which the engine reference counts.
//
// # Writing a Backend
//
// A backend stores buffers under the DataIDs it is given (Write) or creates
// (RunKernel outputs, see NewDataID), and executes kernels by name:
//
//	type myBackend struct{ ... }
//
//	func (b *myBackend) RunKernel(name string, inputs []tensor.Info, attrs tensor.Attrs) ([]tensor.Info, error) {
//	    switch name {
//	    case tensor.KernelAdd:
//	        ...
//	    }
//	    return nil, fmt.Errorf("kernel %q not implemented", name)
//	}
//
// Kernels it does not implement fail when called; the engine reports the error with the
// kernel and backend names.
//
// # Supported Data Types
//
// Every dtype can be stored, moved and concatenated. Arithmetic kernels accept the numeric
// types; float16 values are computed in float32. String tensors only support data movement
// and their byte size is approximate (see engine.MemoryInfo).
package tensor
