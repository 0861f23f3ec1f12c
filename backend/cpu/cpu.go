// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"context"

	"github.com/born-ml/runtime/engine"
	internalcpu "github.com/born-ml/runtime/internal/backend/cpu"
	"github.com/born-ml/runtime/internal/parallel"
	"github.com/born-ml/runtime/tensor"
)

// Name is the registry name used by Register.
const Name = "cpu"

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
func New() *Backend {
	return internalcpu.New()
}

// NewSequential creates a CPU backend that never spreads a kernel across goroutines.
func NewSequential() *Backend {
	return internalcpu.NewWithConfig(parallel.Sequential())
}

// Factory creates CPU backends for engine.RegisterBackend.
func Factory(context.Context) (tensor.Backend, error) {
	return New(), nil
}

// Register registers the CPU backend on e under Name.
//
// Example:
//
//	e := engine.New(engine.DefaultConfig())
//	if err := cpu.Register(e, 1); err != nil {
//	    log.Fatal(err)
//	}
func Register(e *engine.Engine, priority int) error {
	return e.RegisterBackend(Name, Factory, priority)
}
