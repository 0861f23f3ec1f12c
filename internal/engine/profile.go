package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/born-ml/runtime/internal/tensor"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

type memSnapshot struct {
	bytes   int
	tensors int
}

func (e *Engine) snapshot() memSnapshot {
	return memSnapshot{bytes: e.totalBytes, tensors: len(e.live)}
}

// KernelProfile describes one kernel executed while profiling.
type KernelProfile struct {
	Name string
	// BytesAdded and TensorsAdded are the memory growth caused by the kernel.
	BytesAdded   int
	TensorsAdded int
	// TotalBytesSnapshot and TotalTensorsSnapshot are the engine totals after the kernel.
	TotalBytesSnapshot   int
	TotalTensorsSnapshot int
	InputShapes          []tensor.Shape
	OutputShapes         []tensor.Shape
	Elapsed              time.Duration
}

// ProfileInfo is the result of Profile.
type ProfileInfo struct {
	// NewBytes and NewTensors are the differences between the totals after and before
	// the profiled function.
	NewBytes   int
	NewTensors int
	// PeakBytes is the highest byte total seen while the function ran.
	PeakBytes int
	Kernels   []KernelProfile
}

// KernelNames returns the names of the profiled kernels, in execution order.
func (p ProfileInfo) KernelNames() []string {
	names := make([]string, len(p.Kernels))
	for i, k := range p.Kernels {
		names[i] = k.Name
	}
	return names
}

// String implements fmt.Stringer.
func (p ProfileInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "profile: %d kernels, %d new tensors, %s new, %s peak",
		len(p.Kernels), p.NewTensors, signedBytes(p.NewBytes), humanize.IBytes(uint64(p.PeakBytes)))
	for _, k := range p.Kernels {
		fmt.Fprintf(&sb, "\n  %-10s %v -> %v %s (%s)", k.Name, k.InputShapes, k.OutputShapes, signedBytes(k.BytesAdded), k.Elapsed)
	}
	return sb.String()
}

func signedBytes(n int) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

type profileSession struct {
	start     memSnapshot
	peakBytes int
	kernels   []KernelProfile
}

// notePeak updates the peak of every running profile.
func (e *Engine) notePeak() {
	for _, p := range e.profiles {
		p.peakBytes = max(p.peakBytes, e.totalBytes)
	}
}

func (e *Engine) profileKernel(name string, inputs, outputs []*Tensor, before memSnapshot, elapsed time.Duration) {
	if len(e.profiles) == 0 {
		return
	}
	after := e.snapshot()
	k := KernelProfile{
		Name:                 name,
		BytesAdded:           after.bytes - before.bytes,
		TensorsAdded:         after.tensors - before.tensors,
		TotalBytesSnapshot:   after.bytes,
		TotalTensorsSnapshot: after.tensors,
		InputShapes:          make([]tensor.Shape, len(inputs)),
		OutputShapes:         make([]tensor.Shape, len(outputs)),
		Elapsed:              elapsed,
	}
	for i, t := range inputs {
		k.InputShapes[i] = t.Shape()
	}
	for i, t := range outputs {
		k.OutputShapes[i] = t.Shape()
	}
	for _, p := range e.profiles {
		p.kernels = append(p.kernels, k)
	}
}

// Profile runs fn and reports the kernels it executed and its memory usage. Profiles
// nest: an outer profile also sees the kernels of an inner one.
func Profile[T any](e *Engine, fn func() T) (T, ProfileInfo, error) {
	start := e.snapshot()
	session := &profileSession{start: start, peakBytes: start.bytes}
	depth := len(e.profiles)
	e.profiles = append(e.profiles, session)
	defer func() {
		if len(e.profiles) > depth {
			e.profiles = e.profiles[:depth]
		}
	}()

	var result T
	err := exceptions.TryCatch[error](func() {
		result = fn()
	})
	if err != nil {
		return result, ProfileInfo{}, errors.WithMessage(err, "profile")
	}

	end := e.snapshot()
	info := ProfileInfo{
		NewBytes:   end.bytes - start.bytes,
		NewTensors: end.tensors - start.tensors,
		PeakBytes:  session.peakBytes,
		Kernels:    session.kernels,
	}
	return result, info, nil
}
