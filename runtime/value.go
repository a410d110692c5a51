package runtime

import (
	"reflect"
)

// Value is the unit every node produces and consumes: a runtime value
// paired with the static shape it was produced as.
type Value struct {
	Val   any
	Shape Shape
}

// Null is the result of evaluating nothing: a null-safe short circuit,
// an empty selection, a missing variable.
var Null = Value{Shape: Shape{Nil: true}}

// ValueOf wraps v together with its shape.
func ValueOf(v any) Value {
	if v == nil {
		return Null
	}
	return Value{Val: v, Shape: ShapeOf(v)}
}

func (v Value) IsNil() bool {
	return IsNil(v.Val)
}

// IsNil reports whether v is nil or a typed nil carrier.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	r := reflect.ValueOf(v)
	switch r.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return r.IsNil()
	}
	return false
}

// Ref is a write-back handle produced by lvalue-capable nodes. It captures
// the already-evaluated target and resolved accessor, so reading and then
// writing through it never re-evaluates the underlying sub-expression.
type Ref interface {
	Get() (Value, error)
	Set(Value) error
	Writable() bool

	// SlotShape is the static shape of the referenced slot when known.
	// Auto-growing null references uses it to pick what to instantiate.
	SlotShape() Shape
}

// Optional is the single-value container wrapper honored by null-safe
// navigation: a present value is unwrapped before resolution, an empty
// wrapper short-circuits to Null.
type Optional interface {
	IsPresent() bool
	Get() any
}

// Pair is the synthetic active context object for one key/value entry when
// selecting or projecting over a map.
type Pair struct {
	Key   any
	Value any
}
