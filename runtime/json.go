package runtime

import (
	"reflect"

	"github.com/valyala/fastjson"

	"github.com/xpel-lang/xpel/file"
)

// JSONAccessor navigates parsed JSON documents (*fastjson.Value) as if
// object members were properties. Scalars surface as native Go values;
// nested objects and arrays stay *fastjson.Value so navigation can
// continue. JSON documents are read-only.
type JSONAccessor struct{}

var jsonValueType = reflect.TypeOf((*fastjson.Value)(nil))

func (*JSONAccessor) Targets() []reflect.Type {
	return []reflect.Type{jsonValueType}
}

func (*JSONAccessor) CanRead(_ Context, target any, name string) bool {
	v, ok := target.(*fastjson.Value)
	return ok && v.Exists(name)
}

func (*JSONAccessor) Read(_ Context, target any, name string) (Value, error) {
	v, ok := target.(*fastjson.Value)
	if !ok || !v.Exists(name) {
		return Null, file.NewError(file.PropertyNotReadable, file.Location{},
			"JSON document has no member %q", name)
	}
	return jsonValue(v.Get(name)), nil
}

func (*JSONAccessor) CanWrite(_ Context, _ any, _ string) bool { return false }

func (*JSONAccessor) Write(_ Context, _ any, name string, _ Value) error {
	return file.NewError(file.PropertyNotWritable, file.Location{},
		"JSON member %q is read-only", name)
}

// CompiledRead specializes a member read against JSON documents. The
// member set of a document may differ per evaluation, so the fragment
// still checks existence; only the accessor search is skipped.
func (*JSONAccessor) CompiledRead(t reflect.Type, name string) (CompiledRead, bool) {
	if t != jsonValueType {
		return nil, false
	}
	return func(target any) (Value, error) {
		v, ok := target.(*fastjson.Value)
		if !ok {
			return Null, ErrShapeChanged
		}
		got := v.Get(name)
		if got == nil {
			return Null, file.NewError(file.PropertyNotReadable, file.Location{},
				"JSON document has no member %q", name)
		}
		return jsonValue(got), nil
	}, true
}

// JSONIndex resolves arr[i] and obj["key"] on JSON values; used by the
// indexer node.
func JSONIndex(target *fastjson.Value, index any) (Value, bool, error) {
	switch target.Type() {
	case fastjson.TypeArray:
		if !IsNumber(index) {
			return Null, true, file.NewError(file.TypeConversionError, file.Location{},
				"JSON array index must be a number, got %s", ShapeOf(index))
		}
		i := int(toInt64(index))
		arr := target.GetArray()
		if i < 0 || i >= len(arr) {
			return Null, true, file.NewError(file.GenericError, file.Location{},
				"JSON array index %d out of range [0, %d)", i, len(arr))
		}
		return jsonValue(arr[i]), true, nil
	case fastjson.TypeObject:
		key, ok := index.(string)
		if !ok {
			return Null, true, file.NewError(file.TypeConversionError, file.Location{},
				"JSON object key must be a string, got %s", ShapeOf(index))
		}
		got := target.Get(key)
		if got == nil {
			return Null, true, file.NewError(file.PropertyNotReadable, file.Location{},
				"JSON document has no member %q", key)
		}
		return jsonValue(got), true, nil
	}
	return Null, false, nil
}

// jsonValue converts one fastjson node to its value cell.
func jsonValue(v *fastjson.Value) Value {
	switch v.Type() {
	case fastjson.TypeNull:
		return Null
	case fastjson.TypeTrue:
		return ValueOf(true)
	case fastjson.TypeFalse:
		return ValueOf(false)
	case fastjson.TypeString:
		return ValueOf(string(v.GetStringBytes()))
	case fastjson.TypeNumber:
		f := v.GetFloat64()
		if f == float64(int64(f)) {
			return ValueOf(int(f))
		}
		return ValueOf(f)
	}
	return ValueOf(v)
}
