package eval

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/xpel-lang/xpel/ast"
	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/runtime"
)

// evalSelection filters a map, slice or array with a boolean criterion
// evaluated once per element, with the element as the active context
// object. Map elements are bound as key/value pairs.
func (w *walker) evalSelection(n *ast.SelectionNode) (runtime.Value, error) {
	target, short, err := w.collectionTarget(n.Target, n.NullSafe, "selection")
	if short || err != nil {
		return runtime.Null, err
	}
	rv := reflect.ValueOf(target.Val)

	switch rv.Kind() {
	case reflect.Map:
		return w.selectFromMap(n, rv)
	case reflect.Slice, reflect.Array:
		return w.selectFromSeq(n, rv)
	}
	return runtime.Null, file.NewError(file.InvalidSelectionTarget, n.Location(),
		"selection cannot be applied to a value of type %s", target.Shape)
}

func (w *walker) selectFromMap(n *ast.SelectionNode, rv reflect.Value) (runtime.Value, error) {
	keys := sortedMapKeys(rv)

	switch n.Which {
	case ast.SelectFirst:
		for _, k := range keys {
			pair := runtime.Pair{Key: k.Interface(), Value: rv.MapIndex(k).Interface()}
			ok, err := w.matches(n.Filter, runtime.ValueOf(pair))
			if err != nil {
				return runtime.Null, err
			}
			if ok {
				return runtime.ValueOf(pair), nil
			}
		}
		return runtime.Null, nil

	case ast.SelectLast:
		var (
			last  runtime.Pair
			found bool
		)
		for _, k := range keys {
			pair := runtime.Pair{Key: k.Interface(), Value: rv.MapIndex(k).Interface()}
			ok, err := w.matches(n.Filter, runtime.ValueOf(pair))
			if err != nil {
				return runtime.Null, err
			}
			if ok {
				last, found = pair, true
			}
		}
		if !found {
			return runtime.Null, nil
		}
		return runtime.ValueOf(last), nil
	}

	out := reflect.MakeMap(rv.Type())
	for _, k := range keys {
		pair := runtime.Pair{Key: k.Interface(), Value: rv.MapIndex(k).Interface()}
		ok, err := w.matches(n.Filter, runtime.ValueOf(pair))
		if err != nil {
			return runtime.Null, err
		}
		if ok {
			out.SetMapIndex(k, rv.MapIndex(k))
		}
	}
	return runtime.ValueOf(out.Interface()), nil
}

func (w *walker) selectFromSeq(n *ast.SelectionNode, rv reflect.Value) (runtime.Value, error) {
	switch n.Which {
	case ast.SelectFirst:
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			ok, err := w.matches(n.Filter, elemValue(elem))
			if err != nil {
				return runtime.Null, err
			}
			if ok {
				return runtime.ValueOf(elem.Interface()), nil
			}
		}
		return runtime.Null, nil

	case ast.SelectLast:
		var (
			last  any
			found bool
		)
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i)
			ok, err := w.matches(n.Filter, elemValue(elem))
			if err != nil {
				return runtime.Null, err
			}
			if ok {
				last, found = elem.Interface(), true
			}
		}
		if !found {
			return runtime.Null, nil
		}
		return runtime.ValueOf(last), nil
	}

	out := reflect.MakeSlice(reflect.SliceOf(rv.Type().Elem()), 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		elem := rv.Index(i)
		ok, err := w.matches(n.Filter, elemValue(elem))
		if err != nil {
			return runtime.Null, err
		}
		if ok {
			out = reflect.Append(out, elem)
		}
	}
	return runtime.ValueOf(out.Interface()), nil
}

// evalProjection maps a body over each element and collects the results.
// Sequence sources keep their order; map sources are visited in sorted key
// order with key/value pairs bound as the element.
func (w *walker) evalProjection(n *ast.ProjectionNode) (runtime.Value, error) {
	target, short, err := w.collectionTarget(n.Target, n.NullSafe, "projection")
	if short || err != nil {
		return runtime.Null, err
	}
	rv := reflect.ValueOf(target.Val)

	var results []runtime.Value
	switch rv.Kind() {
	case reflect.Map:
		keys := sortedMapKeys(rv)
		results = make([]runtime.Value, 0, len(keys))
		for _, k := range keys {
			pair := runtime.Pair{Key: k.Interface(), Value: rv.MapIndex(k).Interface()}
			v, err := w.iterBody(n.Body, runtime.ValueOf(pair))
			if err != nil {
				return runtime.Null, err
			}
			results = append(results, v)
		}
	case reflect.Slice, reflect.Array:
		results = make([]runtime.Value, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			v, err := w.iterBody(n.Body, elemValue(rv.Index(i)))
			if err != nil {
				return runtime.Null, err
			}
			results = append(results, v)
		}
	default:
		return runtime.Null, file.NewError(file.InvalidSelectionTarget, n.Location(),
			"projection cannot be applied to a value of type %s", target.Shape)
	}
	return collect(results), nil
}

// collect builds a typed slice when every projected value shares one
// concrete type, and falls back to []any otherwise.
func collect(results []runtime.Value) runtime.Value {
	if len(results) == 0 {
		return runtime.ValueOf([]any{})
	}
	common := reflect.TypeOf(results[0].Val)
	for _, r := range results[1:] {
		if reflect.TypeOf(r.Val) != common {
			common = nil
			break
		}
	}
	if common == nil {
		out := make([]any, len(results))
		for i, r := range results {
			out[i] = r.Val
		}
		return runtime.ValueOf(out)
	}
	out := reflect.MakeSlice(reflect.SliceOf(common), 0, len(results))
	for _, r := range results {
		out = reflect.Append(out, reflect.ValueOf(r.Val))
	}
	return runtime.ValueOf(out.Interface())
}

// collectionTarget evaluates a selection/projection target and applies the
// shared null policy. The second result reports a null-safe short circuit.
func (w *walker) collectionTarget(node ast.Node, nullSafe bool, what string) (runtime.Value, bool, error) {
	// The target may be nil for a bare .?[...] on the active context.
	target, err := w.evalTarget(node)
	if err != nil {
		return runtime.Null, false, err
	}
	if opt, ok := target.Val.(runtime.Optional); ok {
		if !opt.IsPresent() {
			target = runtime.Null
		} else {
			target = runtime.ValueOf(opt.Get())
		}
	}
	if target.IsNil() {
		if nullSafe {
			return runtime.Null, true, nil
		}
		loc := file.Location{}
		if node != nil {
			loc = node.Location()
		}
		return runtime.Null, false, file.NewError(file.InvalidSelectionTarget, loc,
			"%s cannot be applied to a null target", what)
	}
	return target, false, nil
}

// iterBody runs one per-element body evaluation with the element installed
// as both the active context object and #this, in a fresh variable scope.
func (w *walker) iterBody(body ast.Node, elem runtime.Value) (runtime.Value, error) {
	w.s.PushActive(elem)
	w.s.EnterScope(nil)
	defer func() {
		w.s.ExitScope()
		w.s.PopActive()
	}()
	return w.eval(body)
}

// matches runs the selection criterion for one element and enforces the
// boolean-result rule.
func (w *walker) matches(filter ast.Node, elem runtime.Value) (bool, error) {
	v, err := w.iterBody(filter, elem)
	if err != nil {
		return false, err
	}
	b, ok := v.Val.(bool)
	if !ok {
		return false, file.NewError(file.SelectionCriteriaNotBool, filter.Location(),
			"selection criteria must evaluate to a boolean, got %s", v.Shape)
	}
	return b, nil
}

// elemValue unwraps a present optional element; an empty optional element
// is seen by the body as null.
func elemValue(elem reflect.Value) runtime.Value {
	v := elem.Interface()
	if opt, ok := v.(runtime.Optional); ok {
		if !opt.IsPresent() {
			return runtime.Null
		}
		return runtime.ValueOf(opt.Get())
	}
	return runtime.ValueOf(v)
}

// sortedMapKeys gives map iteration a deterministic order: keys sorted by
// their printed form.
func sortedMapKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool {
		return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
	})
	return keys
}
