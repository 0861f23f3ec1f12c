// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the Born runtime engine.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Every dtype of package tensor, float16 computed in float32
//   - NumPy-compatible broadcasting
//   - Element-wise kernels split across goroutines for large tensors
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/runtime/backend/cpu"
//	    "github.com/born-ml/runtime/engine"
//	    "github.com/born-ml/runtime/ops"
//	)
//
//	func main() {
//	    e := engine.New(engine.DefaultConfig())
//	    if err := cpu.Register(e, 1); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    x := ops.FromSlice(e, []float32{1, 2, 3})
//	    y := ops.Square(x)
//	}
package cpu
