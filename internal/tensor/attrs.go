package tensor

import (
	"github.com/pkg/errors"
)

// Attrs carries the non-tensor parameters of a kernel call (axes, target dtype, ...).
type Attrs map[string]any

// Kernel names understood by the bundled backends and gradient registrations.
const (
	KernelAdd       = "add"
	KernelSub       = "sub"
	KernelMul       = "mul"
	KernelDiv       = "div"
	KernelNeg       = "neg"
	KernelSquare    = "square"
	KernelExp       = "exp"
	KernelLog       = "log"
	KernelSqrt      = "sqrt"
	KernelRelu      = "relu"
	KernelStep      = "step"
	KernelSum       = "sum"
	KernelFill      = "fill"
	KernelCast      = "cast"
	KernelSplit     = "split"
	KernelConcat    = "concat"
	KernelReshape   = "reshape"
	KernelIdentity  = "identity"
	KernelTranspose = "transpose"
	KernelMatMul    = "matmul"
)

// Attribute keys.
const (
	AttrAxes      = "axes"
	AttrKeepDims  = "keepDims"
	AttrShape     = "shape"
	AttrValue     = "value"
	AttrDType     = "dtype"
	AttrAxis      = "axis"
	AttrNumSplits = "numSplits"
	AttrSizes     = "sizes"
	AttrPerm      = "perm"
	AttrAlpha     = "alpha"
)

// Int returns an integer attribute or def when absent.
func (a Attrs) Int(key string, def int) (int, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	i, ok := v.(int)
	if !ok {
		return 0, errors.Errorf("attribute %q: expected int, got %T", key, v)
	}
	return i, nil
}

// Ints returns an []int attribute (nil when absent).
func (a Attrs) Ints(key string) ([]int, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case []int:
		return x, nil
	case Shape:
		return []int(x), nil
	default:
		return nil, errors.Errorf("attribute %q: expected []int, got %T", key, v)
	}
}

// Bool returns a boolean attribute or false when absent.
func (a Attrs) Bool(key string) (bool, error) {
	v, ok := a[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("attribute %q: expected bool, got %T", key, v)
	}
	return b, nil
}

// Float returns a float attribute or def when absent. Integers are accepted.
func (a Attrs) Float(key string, def float64) (float64, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	default:
		return 0, errors.Errorf("attribute %q: expected float, got %T", key, v)
	}
}

// DType returns a DataType attribute or def when absent.
func (a Attrs) DType(key string, def DataType) (DataType, error) {
	v, ok := a[key]
	if !ok {
		return def, nil
	}
	dt, ok := v.(DataType)
	if !ok {
		return 0, errors.Errorf("attribute %q: expected DataType, got %T", key, v)
	}
	return dt, nil
}
