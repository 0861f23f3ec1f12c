// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package engine

import (
	"github.com/born-ml/runtime/internal/engine"
)

// Engine holds the whole runtime state: backend registry, data store, scopes, tapes,
// variables and profiles.
type Engine = engine.Engine

// Config holds the engine options.
type Config = engine.Config

// Tensor is a handle on backend data, owned by an Engine.
type Tensor = engine.Tensor

// TensorID identifies a tensor handle within its engine.
type TensorID = engine.TensorID

// Variable is a named tensor that survives scopes and can be reassigned.
type Variable = engine.Variable

// Factory creates a backend instance.
type Factory = engine.Factory

// Future is the eventual outcome of SetBackend.
type Future = engine.Future

// BackendState describes a registered backend.
type BackendState = engine.BackendState

// BackendStatus is one entry of Engine.Backends.
type BackendStatus = engine.BackendStatus

// MemoryInfo is the result of Engine.Memory.
type MemoryInfo = engine.MemoryInfo

// ProfileInfo is the result of Profile.
type ProfileInfo = engine.ProfileInfo

// KernelProfile describes one profiled kernel.
type KernelProfile = engine.KernelProfile

// Gradient registration types.
type (
	GradContext    = engine.GradContext
	GradFunc       = engine.GradFunc
	GradConfig     = engine.GradConfig
	CustomGradFunc = engine.CustomGradFunc
)

// Backend states.
const (
	StateRegistered   = engine.StateRegistered
	StateInitializing = engine.StateInitializing
	StateReady        = engine.StateReady
	StateFailed       = engine.StateFailed
)

// Environment variables read by ConfigFromEnv.
const (
	EnvBackend       = engine.EnvBackend
	EnvCheckNumerics = engine.EnvCheckNumerics
)

// Errors, to be tested with errors.Is.
var (
	ErrDuplicateName      = engine.ErrDuplicateName
	ErrNotReady           = engine.ErrNotReady
	ErrBackendInit        = engine.ErrBackendInit
	ErrNoBackendAvailable = engine.ErrNoBackendAvailable
	ErrDisposedTensor     = engine.ErrDisposedTensor
	ErrTapeReplay         = engine.ErrTapeReplay
	ErrUnknownBackend     = engine.ErrUnknownBackend
	ErrSuspendInScope     = engine.ErrSuspendInScope
	ErrNonFinite          = engine.ErrNonFinite
	ErrInvalidArgument    = engine.ErrInvalidArgument
)

// New creates an engine with an empty backend registry.
func New(cfg Config) *Engine {
	return engine.New(cfg)
}

// DefaultConfig returns the default options.
func DefaultConfig() Config {
	return engine.DefaultConfig()
}

// ConfigFromEnv returns the default options overridden by BORN_BACKEND and
// BORN_CHECK_NUMERICS.
func ConfigFromEnv() Config {
	return engine.ConfigFromEnv()
}

// Tidy runs fn in a new scope and disposes the tensors it created, except the ones in its
// result and the kept ones.
func Tidy[T any](e *Engine, fn func() T) T {
	return engine.Tidy(e, fn)
}

// TidyNamed is Tidy with a scope name, shown in logs.
func TidyNamed[T any](e *Engine, name string, fn func() T) T {
	return engine.TidyNamed(e, name, fn)
}

// TidyE is Tidy for functions returning an error.
func TidyE[T any](e *Engine, fn func() (T, error)) (T, error) {
	return engine.TidyE(e, fn)
}

// Profile runs fn and reports the kernels it executed and its memory usage.
func Profile[T any](e *Engine, fn func() T) (T, ProfileInfo, error) {
	return engine.Profile(e, fn)
}

// CollectTensors returns the tensors found in v, the way Tidy searches its result.
func CollectTensors(v any) []*Tensor {
	return engine.CollectTensors(v)
}

// RegisterGradient registers the gradient of a kernel, for every engine.
func RegisterGradient(cfg GradConfig) {
	engine.RegisterGradient(cfg)
}
