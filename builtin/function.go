package builtin

import (
	"reflect"
)

// Function is a caller-registered function referenced from expressions by
// name. Fast is an optional one-argument fast path used when the function
// takes exactly one argument; Func is the general calling convention.
type Function struct {
	Name  string
	Fast  func(arg any) any
	Func  func(args ...any) (any, error)
	Types []reflect.Type
}

func (f *Function) Type() reflect.Type {
	if len(f.Types) > 0 {
		return f.Types[0]
	}
	return reflect.TypeOf(f.Func)
}

// Arity returns the declared number of arguments and whether the function
// declared a signature at all. Functions without a declared signature accept
// any number of arguments.
func (f *Function) Arity() (int, bool) {
	if len(f.Types) == 0 {
		return 0, false
	}
	t := f.Types[0]
	if t == nil || t.Kind() != reflect.Func || t.IsVariadic() {
		return 0, false
	}
	return t.NumIn(), true
}
