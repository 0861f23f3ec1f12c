package engine

import (
	"reflect"

	"k8s.io/klog/v2"
)

// scope is one frame of the scope stack. The root frame (id 0) is never popped.
type scope struct {
	id      int
	name    string
	tracked map[TensorID]*Tensor
}

func newScope(id int, name string) *scope {
	return &scope{id: id, name: name, tracked: make(map[TensorID]*Tensor)}
}

func (e *Engine) currentScope() *scope {
	return e.scopes[len(e.scopes)-1]
}

// StartScope pushes a new frame: tensors created from now on are disposed by the matching
// EndScope unless kept or returned.
func (e *Engine) StartScope(name string) {
	e.lastScopeID++
	e.scopes = append(e.scopes, newScope(e.lastScopeID, name))
	if klog.V(2).Enabled() {
		klog.Infof("%s: start scope %q (depth %d)", e, name, len(e.scopes)-1)
	}
}

// EndScope pops the current frame. Tensors it tracks are disposed, except those in result,
// which move to the parent frame.
func (e *Engine) EndScope(result ...*Tensor) {
	if len(e.scopes) <= 1 {
		klog.Warningf("%s: EndScope called without a matching StartScope", e)
		return
	}
	s := e.currentScope()
	e.scopes = e.scopes[:len(e.scopes)-1]
	parent := e.currentScope()

	keep := make(map[TensorID]bool, len(result))
	for _, t := range result {
		if t != nil {
			keep[t.id] = true
		}
	}
	var disposed int
	for id, t := range s.tracked {
		if keep[id] {
			if st, live := e.live[id]; live {
				st.scope = parent
				parent.tracked[id] = t
			}
			continue
		}
		e.disposeID(id)
		disposed++
	}
	if klog.V(2).Enabled() {
		klog.Infof("%s: end scope %q: disposed %d tensors, returned %d", e, s.name, disposed, len(keep))
	}
}

// Tidy runs fn in a new scope. Tensors created by fn are disposed when it returns, except
// the ones found in its result (any nesting of pointers, structs, slices, arrays, maps and
// interfaces; only exported struct fields are searched) and kept ones.
// The scope is closed even if fn panics.
func Tidy[T any](e *Engine, fn func() T) T {
	return TidyNamed(e, "", fn)
}

// TidyNamed is Tidy with a scope name, shown in logs.
func TidyNamed[T any](e *Engine, name string, fn func() T) (result T) {
	e.StartScope(name)
	defer func() {
		e.EndScope(CollectTensors(result)...)
	}()
	result = fn()
	return result
}

// TidyE is Tidy for functions returning an error. On error every tensor created by fn is
// disposed.
func TidyE[T any](e *Engine, fn func() (T, error)) (result T, err error) {
	e.StartScope("")
	defer func() {
		if err != nil {
			e.EndScope()
			return
		}
		e.EndScope(CollectTensors(result)...)
	}()
	return fn()
}

// CollectTensors returns the tensors found in v, see Tidy.
func CollectTensors(v any) []*Tensor {
	var found []*Tensor
	seen := make(map[uintptr]bool)
	var walk func(rv reflect.Value)
	walk = func(rv reflect.Value) {
		if !rv.IsValid() {
			return
		}
		switch rv.Kind() {
		case reflect.Pointer:
			if rv.IsNil() {
				return
			}
			if t, ok := rv.Interface().(*Tensor); ok {
				found = append(found, t)
				return
			}
			if seen[rv.Pointer()] {
				return
			}
			seen[rv.Pointer()] = true
			walk(rv.Elem())
		case reflect.Interface:
			if !rv.IsNil() {
				walk(rv.Elem())
			}
		case reflect.Struct:
			for i := 0; i < rv.NumField(); i++ {
				if field := rv.Field(i); field.CanInterface() {
					walk(field)
				}
			}
		case reflect.Slice, reflect.Array:
			if rv.Type().Elem().Kind() <= reflect.Complex128 || rv.Type().Elem().Kind() == reflect.String {
				return
			}
			for i := 0; i < rv.Len(); i++ {
				walk(rv.Index(i))
			}
		case reflect.Map:
			iter := rv.MapRange()
			for iter.Next() {
				walk(iter.Value())
			}
		}
	}
	walk(reflect.ValueOf(v))
	return found
}
