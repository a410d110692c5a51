package runtime

import (
	"reflect"

	"github.com/xpel-lang/xpel/file"
)

// ReflectMethodResolver resolves methods on any target by reflection,
// using the shared member cache. Overloads are scored: exact argument
// types beat assignable ones, assignable beat conversion-requiring ones,
// and a tie at the best score is an ambiguity error.
type ReflectMethodResolver struct{}

const (
	matchNone = iota
	matchConversion
	matchAssignable
	matchExact
)

func (*ReflectMethodResolver) Resolve(ctx Context, target any, name string, argShapes []Shape) (MethodExecutor, error) {
	if IsNil(target) {
		return nil, nil
	}
	m := membersOf(reflect.TypeOf(target))
	overloads := m.methods[name]
	if len(overloads) == 0 {
		overloads = m.methods[capitalize(name)]
	}
	if len(overloads) == 0 {
		return nil, nil
	}

	best := matchNone
	var found []reflect.Method
	arityOnly := true
	for _, meth := range overloads {
		score, ok := scoreMethod(ctx, meth, argShapes)
		if !ok {
			continue
		}
		arityOnly = false
		if score > best {
			best = score
			found = found[:0]
		}
		if score == best {
			found = append(found, meth)
		}
	}
	if best == matchNone {
		if arityOnly {
			return nil, file.NewError(file.ArgumentCount, file.Location{},
				"method %q cannot be called with %d arguments", name, len(argShapes))
		}
		return nil, nil
	}
	if len(found) > 1 {
		return nil, file.NewError(file.MethodAmbiguous, file.Location{},
			"method %q is ambiguous for the given argument types", name)
	}
	meth := found[0]
	return &reflectExecutor{
		method:          meth,
		variadic:        meth.Type.IsVariadic(),
		needsConversion: best == matchConversion,
	}, nil
}

// scoreMethod rates how well argShapes fit meth's parameters (excluding the
// receiver). ok is false when the arity cannot fit at all.
func scoreMethod(ctx Context, meth reflect.Method, argShapes []Shape) (int, bool) {
	mt := meth.Type
	numIn := mt.NumIn() - 1 // receiver
	if mt.IsVariadic() {
		if len(argShapes) < numIn-1 {
			return matchNone, false
		}
	} else if len(argShapes) != numIn {
		return matchNone, false
	}

	score := matchExact
	for i, s := range argShapes {
		var want reflect.Type
		if mt.IsVariadic() && i >= numIn-1 {
			want = mt.In(mt.NumIn() - 1).Elem()
		} else {
			want = mt.In(i + 1)
		}
		switch {
		case s.Nil:
			if !nilAssignable(want) {
				return matchNone, true
			}
			if score > matchAssignable {
				score = matchAssignable
			}
		case s.Type == want:
		case s.Type != nil && s.Type.AssignableTo(want):
			if score > matchAssignable {
				score = matchAssignable
			}
		case ctx != nil && ctx.Converter() != nil:
			score = matchConversion
		default:
			return matchNone, true
		}
	}
	if mt.IsVariadic() && score > matchAssignable {
		score = matchAssignable
	}
	return score, true
}

func nilAssignable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

type reflectExecutor struct {
	method          reflect.Method
	variadic        bool
	needsConversion bool
}

// Compilable reports whether invocation can be specialized: a conversion-
// requiring resolution never promotes.
func (e *reflectExecutor) Compilable() bool {
	return !e.needsConversion
}

func (e *reflectExecutor) Execute(ctx Context, target any, args []Value) (Value, error) {
	mt := e.method.Type
	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, receiverFor(e.method, target))
	for i, a := range args {
		var want reflect.Type
		if e.variadic && i >= mt.NumIn()-2 {
			want = mt.In(mt.NumIn() - 1).Elem()
		} else {
			want = mt.In(i + 1)
		}
		v, err := coerce(ctx, a, want)
		if err != nil {
			return Null, err
		}
		in = append(in, v)
	}

	out, err := safeCall(e.method.Func, in)
	if err != nil {
		return Null, err
	}
	return resultOf(out)
}

// resultOf maps a reflect call result onto a value cell, propagating a
// trailing error return as an invocation error.
func resultOf(out []reflect.Value) (Value, error) {
	if len(out) == 0 {
		return Null, nil
	}
	last := out[len(out)-1]
	if last.Type() == errorType {
		if !last.IsNil() {
			cause := last.Interface().(error)
			return Null, file.NewError(file.InvocationError, file.Location{}, "%v", cause).Wrap(cause)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return Null, nil
	}
	return ValueOf(out[0].Interface()), nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()
