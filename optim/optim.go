// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/runtime/engine"
	"github.com/born-ml/runtime/internal/optim"
)

// Optimizer updates variables from their gradients.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// SGD (Stochastic Gradient Descent)

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer for the variables of e.
//
// Example:
//
//	opt := optim.NewSGD(e, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
func NewSGD(e *engine.Engine, config SGDConfig) *SGD {
	return optim.NewSGD(e, config)
}

// Adam (Adaptive Moment Estimation)

// Adam represents the Adam optimizer.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer with bias correction.
//
// Example:
//
//	opt := optim.NewAdam(e, optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	    Eps:   1e-8,
//	})
func NewAdam(e *engine.Engine, config AdamConfig) *Adam {
	return optim.NewAdam(e, config)
}

// Minimize computes the gradients of the scalar returned by f with respect to vars (every
// trainable variable when empty), applies them with opt and returns the loss, owned by
// the caller.
func Minimize(e *engine.Engine, opt Optimizer, f func() *engine.Tensor, vars ...*engine.Variable) (*engine.Tensor, error) {
	return optim.Minimize(e, opt, f, vars...)
}
