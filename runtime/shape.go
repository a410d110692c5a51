package runtime

import (
	"reflect"

	"github.com/xpel-lang/xpel/internal/deref"
)

// Shape is the static type descriptor attached to values and used as the
// key of cached accessor entries and compiled fragment guards. A zero Shape
// is unknown.
type Shape struct {
	Type reflect.Type
	Nil  bool
}

func ShapeOf(v any) Shape {
	if v == nil {
		return Shape{Nil: true}
	}
	return Shape{Type: reflect.TypeOf(v)}
}

func (s Shape) IsUnknown() bool {
	return s.Type == nil && !s.Nil
}

func (s Shape) IsNil() bool {
	return s.Nil
}

func (s Shape) Kind() reflect.Kind {
	if s.Type == nil {
		return reflect.Invalid
	}
	return s.Type.Kind()
}

// Deref unwraps pointer types.
func (s Shape) Deref() Shape {
	if s.Type != nil {
		s.Type = deref.Type(s.Type)
	}
	return s
}

func (s Shape) Elem() Shape {
	switch s.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Array, reflect.Slice:
		return Shape{Type: s.Type.Elem()}
	}
	return Shape{}
}

func (s Shape) AssignableTo(t Shape) bool {
	if s.Nil {
		return t.Kind() == reflect.Interface
	}
	if s.Type == nil || t.Type == nil {
		return false
	}
	return s.Type.AssignableTo(t.Type)
}

// Equal is exact shape identity, the cache-hit condition.
func (s Shape) Equal(t Shape) bool {
	return s.Nil == t.Nil && s.Type == t.Type
}

func (s Shape) String() string {
	if s.Nil {
		return "nil"
	}
	if s.Type == nil {
		return "unknown"
	}
	return s.Type.String()
}

// EqualShapes compares two shape lists element-wise; used for cached
// executor argument signatures.
func EqualShapes(a, b []Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// ShapesOf returns the shape of every value in vals.
func ShapesOf(vals []Value) []Shape {
	shapes := make([]Shape, len(vals))
	for i, v := range vals {
		shapes[i] = v.Shape
		if shapes[i].IsUnknown() {
			shapes[i] = ShapeOf(v.Val)
		}
	}
	return shapes
}
