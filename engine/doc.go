// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine is the Born tensor runtime: it selects a compute backend, tracks the
// memory of every tensor, disposes intermediates by scope and computes gradients.
//
// # Backends
//
// Backends are registered by name with a factory and a priority. The first time a
// backend is needed, factories are tried by descending priority and the first one that
// succeeds becomes active. Failed factories are never retried. Asynchronous factories
// (GPU device discovery, remote services) run on their own goroutine: until Ready
// returns, synchronous use fails with ErrNotReady.
//
//	e := engine.New(engine.ConfigFromEnv())
//	_ = cpu.Register(e, 1)
//	_ = e.RegisterAsyncBackend("remote", dialRemote, 10)
//	if err := e.Ready(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Memory
//
// Tensors are handles on reference counted backend buffers. Handles created inside
// Tidy are disposed when it returns, except the returned and kept ones:
//
//	loss := engine.Tidy(e, func() *engine.Tensor {
//	    diff := ops.Sub(pred, target)
//	    return ops.Mean(ops.Square(diff))
//	})
//	fmt.Println(e.Memory())
//
// # Gradients
//
// Grad, Grads, ValueAndGrad and VariableGrads run a function while recording the
// kernels it executes, then replay them backwards:
//
//	dSquare := e.Grad(ops.Square)
//	g, err := dSquare(x) // 2x
//
// # Profiling
//
// Profile reports the kernels a function ran, with their memory effect.
package engine
