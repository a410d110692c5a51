package runtime

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/internal/deref"
)

// MapAccessor reads and writes entries of any map with string-compatible
// keys. Generic: tried after all type-specific accessors.
type MapAccessor struct{}

func (*MapAccessor) Targets() []reflect.Type { return nil }

func (*MapAccessor) CanRead(_ Context, target any, name string) bool {
	v := deref.Value(reflect.ValueOf(target))
	if v.Kind() != reflect.Map {
		return false
	}
	return v.Type().Key().Kind() == reflect.String
}

func (*MapAccessor) Read(_ Context, target any, name string) (Value, error) {
	v := deref.Value(reflect.ValueOf(target))
	key := reflect.ValueOf(name)
	if kt := v.Type().Key(); kt != key.Type() {
		key = key.Convert(kt)
	}
	elem := v.MapIndex(key)
	if !elem.IsValid() {
		return Null, file.NewError(file.PropertyNotReadable, file.Location{},
			"map has no entry for key %q", name)
	}
	return ValueOf(elem.Interface()), nil
}

func (*MapAccessor) CanWrite(_ Context, target any, name string) bool {
	v := deref.Value(reflect.ValueOf(target))
	return v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String
}

func (*MapAccessor) Write(ctx Context, target any, name string, val Value) error {
	v := deref.Value(reflect.ValueOf(target))
	key := reflect.ValueOf(name)
	if kt := v.Type().Key(); kt != key.Type() {
		key = key.Convert(kt)
	}
	elem, err := coerce(ctx, val, v.Type().Elem())
	if err != nil {
		return err
	}
	v.SetMapIndex(key, elem)
	return nil
}

// CompiledRead specializes a map read for one concrete map type.
func (*MapAccessor) CompiledRead(t reflect.Type, name string) (CompiledRead, bool) {
	if t == nil || t.Kind() != reflect.Map || t.Key().Kind() != reflect.String {
		return nil, false
	}
	return func(target any) (Value, error) {
		if reflect.TypeOf(target) != t {
			return Null, ErrShapeChanged
		}
		v := reflect.ValueOf(target)
		key := reflect.ValueOf(name)
		if kt := t.Key(); kt != key.Type() {
			key = key.Convert(kt)
		}
		elem := v.MapIndex(key)
		if !elem.IsValid() {
			return Null, file.NewError(file.PropertyNotReadable, file.Location{},
				"map has no entry for key %q", name)
		}
		return ValueOf(elem.Interface()), nil
	}, true
}

// ReflectAccessor resolves exported struct fields and niladic getter
// methods (Name() or GetName()) by reflection, backed by the shared member
// cache. Generic: it handles any struct or pointer-to-struct target.
type ReflectAccessor struct{}

func (*ReflectAccessor) Targets() []reflect.Type { return nil }

// fieldPath finds the index path for name, trying the exact name first and
// then the exported capitalization.
func fieldPath(m *typeMembers, name string) ([]int, bool) {
	if idx, ok := m.fields[name]; ok {
		return idx, true
	}
	if idx, ok := m.fields[capitalize(name)]; ok {
		return idx, true
	}
	return nil, false
}

func getterFor(m *typeMembers, name string) (reflect.Method, bool) {
	for _, candidate := range []string{name, capitalize(name), "Get" + capitalize(name)} {
		for _, meth := range m.methods[candidate] {
			if meth.Type.NumIn() == 1 && meth.Type.NumOut() >= 1 {
				return meth, true
			}
		}
	}
	return reflect.Method{}, false
}

func capitalize(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func (*ReflectAccessor) CanRead(_ Context, target any, name string) bool {
	if IsNil(target) {
		return false
	}
	t := reflect.TypeOf(target)
	if deref.Type(t).Kind() != reflect.Struct {
		return false
	}
	m := membersOf(t)
	if _, ok := fieldPath(m, name); ok {
		return true
	}
	_, ok := getterFor(m, name)
	return ok
}

func (*ReflectAccessor) Read(_ Context, target any, name string) (Value, error) {
	t := reflect.TypeOf(target)
	m := membersOf(t)
	v := deref.Value(reflect.ValueOf(target))
	if idx, ok := fieldPath(m, name); ok {
		return ValueOf(v.FieldByIndex(idx).Interface()), nil
	}
	if meth, ok := getterFor(m, name); ok {
		out, err := safeCall(meth.Func, []reflect.Value{receiverFor(meth, target)})
		if err != nil {
			return Null, err
		}
		return ValueOf(out[0].Interface()), nil
	}
	return Null, file.NewError(file.PropertyNotReadable, file.Location{},
		"property or field %q cannot be read on target of type %s", name, ShapeOf(target))
}

func (*ReflectAccessor) CanWrite(_ Context, target any, name string) bool {
	if IsNil(target) {
		return false
	}
	t := reflect.TypeOf(target)
	if t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return false
	}
	_, ok := fieldPath(membersOf(t), name)
	return ok
}

func (*ReflectAccessor) Write(ctx Context, target any, name string, val Value) error {
	t := reflect.TypeOf(target)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return file.NewError(file.PropertyNotWritable, file.Location{},
			"target of type %s is not writable; a pointer to a struct is required", ShapeOf(target))
	}
	m := membersOf(t)
	idx, ok := fieldPath(m, name)
	if !ok {
		return file.NewError(file.PropertyNotWritable, file.Location{},
			"property or field %q cannot be written on target of type %s", name, ShapeOf(target))
	}
	field := reflect.ValueOf(target).Elem().FieldByIndex(idx)
	elem, err := coerce(ctx, val, field.Type())
	if err != nil {
		return err
	}
	field.Set(elem)
	return nil
}

// CompiledRead specializes a direct field read (or a niladic getter call)
// for one concrete target type.
func (*ReflectAccessor) CompiledRead(t reflect.Type, name string) (CompiledRead, bool) {
	if t == nil || deref.Type(t).Kind() != reflect.Struct {
		return nil, false
	}
	m := membersOf(t)
	if idx, ok := fieldPath(m, name); ok {
		return func(target any) (Value, error) {
			if reflect.TypeOf(target) != t {
				return Null, ErrShapeChanged
			}
			v := deref.Value(reflect.ValueOf(target))
			if !v.IsValid() {
				return Null, ErrShapeChanged
			}
			return ValueOf(v.FieldByIndex(idx).Interface()), nil
		}, true
	}
	if meth, ok := getterFor(m, name); ok {
		return func(target any) (Value, error) {
			if reflect.TypeOf(target) != t {
				return Null, ErrShapeChanged
			}
			out, err := safeCall(meth.Func, []reflect.Value{receiverFor(meth, target)})
			if err != nil {
				return Null, err
			}
			return ValueOf(out[0].Interface()), nil
		}, true
	}
	return nil, false
}

// SlotShape reports the static type of the named slot on target: a struct
// field's declared type or a map's element type. Auto-growing null
// references uses it to decide what to instantiate.
func SlotShape(target any, name string) Shape {
	if IsNil(target) {
		return Shape{}
	}
	t := reflect.TypeOf(target)
	switch deref.Type(t).Kind() {
	case reflect.Struct:
		if idx, ok := fieldPath(membersOf(t), name); ok {
			return Shape{Type: deref.Type(t).FieldByIndex(idx).Type}
		}
	case reflect.Map:
		return Shape{Type: deref.Type(t).Elem()}
	}
	return Shape{}
}

// receiverFor adapts target to the receiver type of meth, taking an
// addressable copy when a pointer receiver meets a value target.
func receiverFor(meth reflect.Method, target any) reflect.Value {
	v := reflect.ValueOf(target)
	recv := meth.Type.In(0)
	if v.Type() == recv {
		return v
	}
	if recv.Kind() == reflect.Ptr && v.Type() == recv.Elem() {
		p := reflect.New(v.Type())
		p.Elem().Set(v)
		return p
	}
	return v
}

// safeCall invokes fn, converting a panic in user code into an
// InvocationError so the caller can tell it apart from staleness.
func safeCall(fn reflect.Value, args []reflect.Value) (out []reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = fmt.Errorf("%v", r)
			}
			err = file.NewError(file.InvocationError, file.Location{}, "%v", cause).Wrap(cause)
		}
	}()
	return fn.Call(args), nil
}

// coerce adapts val to the slot type, delegating mismatches to the
// context's conversion service before falling back to reflect conversion.
func coerce(ctx Context, val Value, to reflect.Type) (reflect.Value, error) {
	if IsNil(val.Val) {
		switch to.Kind() {
		case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(to), nil
		}
		return reflect.Value{}, file.NewError(file.TypeConversionError, file.Location{},
			"cannot assign nil to %s", to)
	}
	v := reflect.ValueOf(val.Val)
	if v.Type().AssignableTo(to) {
		return v, nil
	}
	if ctx != nil {
		if conv := ctx.Converter(); conv != nil {
			converted, err := conv.Convert(val, to)
			if err != nil {
				return reflect.Value{}, err
			}
			cv := reflect.ValueOf(converted.Val)
			if cv.IsValid() && cv.Type().AssignableTo(to) {
				return cv, nil
			}
		}
	}
	if v.Type().ConvertibleTo(to) && isNumeric(v.Kind()) && isNumeric(to.Kind()) {
		return v.Convert(to), nil
	}
	return reflect.Value{}, file.NewError(file.TypeConversionError, file.Location{},
		"cannot convert %s to %s", v.Type(), to)
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
