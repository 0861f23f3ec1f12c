// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers that train engine variables.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Minimize: one gradient step on every trainable variable
//
// # Basic Usage
//
//	e := engine.New(engine.ConfigFromEnv())
//	_ = cpu.Register(e, 1)
//	w, _ := e.Variable(ops.Scalar(e, float32(0)), true, "w")
//
//	opt := optim.NewSGD(e, optim.SGDConfig{LR: 0.1})
//	defer opt.Dispose()
//	for range 100 {
//	    loss, err := optim.Minimize(e, opt, func() *engine.Tensor {
//	        return ops.Square(ops.Sub(w.Value(), target))
//	    })
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    loss.Dispose()
//	}
//
// # State
//
// Momentum and moment estimates are stored in non-trainable variables named after the
// trained variable ("w/velocity", "w/m", "w/v"), so they show up in Engine.Memory and are
// released by Dispose or Engine.DisposeVariables.
package optim
