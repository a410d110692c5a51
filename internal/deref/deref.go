package deref

import "reflect"

// Type unwraps pointer types until it reaches the underlying type.
func Type(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// Value unwraps pointers and interfaces until it reaches the underlying
// value. A nil pointer or interface is returned as is.
func Value(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}
