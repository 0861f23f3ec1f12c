package engine

import "github.com/pkg/errors"

// Sentinel errors. Returned errors wrap them with the offending backend, tensor or kernel
// name, so callers test with errors.Is.
var (
	// ErrDuplicateName is returned when registering a backend or variable name already in use.
	ErrDuplicateName = errors.New("name already registered")

	// ErrNotReady is returned on synchronous use of a backend whose asynchronous
	// initialization has not finished yet. Call Engine.Ready first.
	ErrNotReady = errors.New("backend not ready")

	// ErrBackendInit is recorded when a backend factory fails. Failed backends are never
	// retried until registered again.
	ErrBackendInit = errors.New("backend initialization failed")

	// ErrNoBackendAvailable is returned when every registered backend failed to initialize.
	ErrNoBackendAvailable = errors.New("no backend available")

	// ErrDisposedTensor is returned on use of a tensor after it was disposed.
	ErrDisposedTensor = errors.New("tensor is disposed")

	// ErrTapeReplay is returned when a gradient function misbehaves during backpropagation.
	ErrTapeReplay = errors.New("gradient tape replay failed")

	// ErrUnknownBackend is returned for operations on a backend name that is not registered.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrSuspendInScope is returned when a suspending call (Ready, Read) is made while a
	// scope is open or the tape is recording.
	ErrSuspendInScope = errors.New("cannot suspend inside a scope or while recording gradients")

	// ErrNonFinite is returned by kernels producing NaN when Config.CheckNumerics is set.
	ErrNonFinite = errors.New("kernel produced non-finite values")

	// ErrInvalidArgument is returned for malformed requests (nil tensors, bad shapes, ...).
	ErrInvalidArgument = errors.New("invalid argument")
)
