package runtime

import (
	"reflect"

	"github.com/valyala/fastjson"

	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/internal/deref"
)

var reflectAccessor = &ReflectAccessor{}

// IndexValue resolves target[index] over maps, slices, arrays, strings,
// structs (by field name) and JSON documents. A missing map key yields
// Null, matching the navigation-friendly behavior of property access.
func IndexValue(ctx Context, target any, index any) (Value, error) {
	if jv, ok := target.(*fastjson.Value); ok {
		v, handled, err := JSONIndex(jv, index)
		if handled {
			return v, err
		}
	}
	v := deref.Value(reflect.ValueOf(target))
	switch v.Kind() {
	case reflect.Map:
		key, err := coerce(ctx, ValueOf(index), v.Type().Key())
		if err != nil {
			return Null, err
		}
		elem := v.MapIndex(key)
		if !elem.IsValid() {
			return Null, nil
		}
		return ValueOf(elem.Interface()), nil
	case reflect.Slice, reflect.Array:
		i, err := indexInt(index, v.Len())
		if err != nil {
			return Null, err
		}
		return ValueOf(v.Index(i).Interface()), nil
	case reflect.String:
		runes := []rune(v.String())
		i, err := indexInt(index, len(runes))
		if err != nil {
			return Null, err
		}
		return ValueOf(string(runes[i])), nil
	case reflect.Struct:
		name, ok := index.(string)
		if !ok {
			return Null, file.NewError(file.TypeConversionError, file.Location{},
				"struct index must be a string, got %s", ShapeOf(index))
		}
		return reflectAccessor.Read(ctx, target, name)
	}
	return Null, file.NewError(file.TypeConversionError, file.Location{},
		"value of type %s cannot be indexed", ShapeOf(target))
}

// SetIndexValue writes target[index] = val. Strings and non-addressable
// arrays are not writable.
func SetIndexValue(ctx Context, target any, index any, val Value) error {
	if _, ok := target.(*fastjson.Value); ok {
		return file.NewError(file.PropertyNotWritable, file.Location{},
			"JSON documents are read-only")
	}
	v := deref.Value(reflect.ValueOf(target))
	switch v.Kind() {
	case reflect.Map:
		key, err := coerce(ctx, ValueOf(index), v.Type().Key())
		if err != nil {
			return err
		}
		elem, err := coerce(ctx, val, v.Type().Elem())
		if err != nil {
			return err
		}
		v.SetMapIndex(key, elem)
		return nil
	case reflect.Slice:
		i, err := indexInt(index, v.Len())
		if err != nil {
			return err
		}
		elem, err := coerce(ctx, val, v.Type().Elem())
		if err != nil {
			return err
		}
		v.Index(i).Set(elem)
		return nil
	case reflect.Array:
		if !v.CanSet() {
			return file.NewError(file.PropertyNotWritable, file.Location{},
				"array is not addressable")
		}
		i, err := indexInt(index, v.Len())
		if err != nil {
			return err
		}
		elem, err := coerce(ctx, val, v.Type().Elem())
		if err != nil {
			return err
		}
		v.Index(i).Set(elem)
		return nil
	case reflect.Struct:
		name, ok := index.(string)
		if !ok {
			return file.NewError(file.TypeConversionError, file.Location{},
				"struct index must be a string, got %s", ShapeOf(index))
		}
		return reflectAccessor.Write(ctx, target, name, val)
	}
	return file.NewError(file.PropertyNotWritable, file.Location{},
		"value of type %s cannot be index-assigned", ShapeOf(target))
}

func indexInt(index any, length int) (int, error) {
	if !IsNumber(index) {
		return 0, file.NewError(file.TypeConversionError, file.Location{},
			"index must be a number, got %s", ShapeOf(index))
	}
	i := int(toInt64(index))
	if i < 0 || i >= length {
		return 0, file.NewError(file.GenericError, file.Location{},
			"index %d out of range [0, %d)", i, length)
	}
	return i, nil
}
