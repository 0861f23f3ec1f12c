package engine

import (
	"sync"

	"github.com/born-ml/runtime/internal/tensor"
	"k8s.io/klog/v2"
)

// GradContext is what a gradient function knows about the forward call.
type GradContext struct {
	// Saved holds the tensors requested by GradConfig: the inputs listed in InputsToSave
	// (or all inputs with SaveAllInputs) followed by the outputs in OutputsToSave.
	Saved []*Tensor

	Attrs        tensor.Attrs
	InputShapes  []tensor.Shape
	InputDTypes  []tensor.DataType
	OutputShapes []tensor.Shape
}

// GradFunc computes the input gradients of a kernel from the gradients of its outputs.
// It receives one gradient per output and must return one per input; nil means no
// gradient flows to that input. Failures are reported by panicking with an error.
type GradFunc func(dys []*Tensor, ctx GradContext) []*Tensor

// GradConfig registers the gradient of a kernel.
type GradConfig struct {
	KernelName    string
	InputsToSave  []int
	SaveAllInputs bool
	OutputsToSave []int
	GradFunc      GradFunc
}

var gradRegistry = struct {
	sync.RWMutex
	configs map[string]GradConfig
}{configs: make(map[string]GradConfig)}

// RegisterGradient registers (or overrides) the gradient of a kernel, for every engine.
func RegisterGradient(cfg GradConfig) {
	gradRegistry.Lock()
	defer gradRegistry.Unlock()
	if _, found := gradRegistry.configs[cfg.KernelName]; found {
		klog.Warningf("overriding the gradient of kernel %q", cfg.KernelName)
	}
	gradRegistry.configs[cfg.KernelName] = cfg
}

// LookupGradient returns the gradient registered for a kernel.
func LookupGradient(kernelName string) (GradConfig, bool) {
	gradRegistry.RLock()
	defer gradRegistry.RUnlock()
	cfg, found := gradRegistry.configs[kernelName]
	return cfg, found
}
