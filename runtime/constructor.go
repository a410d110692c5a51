package runtime

import (
	"reflect"

	"github.com/xpel-lang/xpel/file"
)

// FuncConstructorResolver resolves "new TypeName(...)" against a registry
// of caller-supplied constructor functions. Overloads are scored the same
// way method overloads are.
type FuncConstructorResolver struct {
	ctors map[string][]reflect.Value
}

func NewFuncConstructorResolver() *FuncConstructorResolver {
	return &FuncConstructorResolver{ctors: map[string][]reflect.Value{}}
}

// Register adds fn as a constructor for typeName. fn must be a function;
// a trailing error return is propagated as an invocation error.
func (r *FuncConstructorResolver) Register(typeName string, fn any) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		panic("constructor must be a function")
	}
	r.ctors[typeName] = append(r.ctors[typeName], v)
}

func (r *FuncConstructorResolver) Resolve(ctx Context, typeName string, argShapes []Shape) (ConstructorExecutor, error) {
	overloads := r.ctors[typeName]
	if len(overloads) == 0 {
		return nil, nil
	}
	best := matchNone
	var found []reflect.Value
	for _, fn := range overloads {
		score, ok := scoreFunc(ctx, fn.Type(), argShapes)
		if !ok {
			continue
		}
		if score > best {
			best = score
			found = found[:0]
		}
		if score == best {
			found = append(found, fn)
		}
	}
	if best == matchNone {
		return nil, file.NewError(file.ArgumentCount, file.Location{},
			"constructor for %q cannot be called with %d arguments", typeName, len(argShapes))
	}
	if len(found) > 1 {
		return nil, file.NewError(file.MethodAmbiguous, file.Location{},
			"constructor for %q is ambiguous for the given argument types", typeName)
	}
	return &funcConstructor{fn: found[0]}, nil
}

// scoreFunc rates argShapes against a plain function signature.
func scoreFunc(ctx Context, ft reflect.Type, argShapes []Shape) (int, bool) {
	if ft.IsVariadic() {
		if len(argShapes) < ft.NumIn()-1 {
			return matchNone, false
		}
	} else if len(argShapes) != ft.NumIn() {
		return matchNone, false
	}
	score := matchExact
	for i, s := range argShapes {
		var want reflect.Type
		if ft.IsVariadic() && i >= ft.NumIn()-1 {
			want = ft.In(ft.NumIn() - 1).Elem()
		} else {
			want = ft.In(i)
		}
		switch {
		case s.Nil:
			if !nilAssignable(want) {
				return matchNone, false
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
			return matchNone, false
		}
	}
	return score, true
}

type funcConstructor struct {
	fn reflect.Value
}

func (c *funcConstructor) Construct(ctx Context, args []Value) (Value, error) {
	ft := c.fn.Type()
	in := make([]reflect.Value, 0, len(args))
	for i, a := range args {
		var want reflect.Type
		if ft.IsVariadic() && i >= ft.NumIn()-1 {
			want = ft.In(ft.NumIn() - 1).Elem()
		} else {
			want = ft.In(i)
		}
		v, err := coerce(ctx, a, want)
		if err != nil {
			return Null, err
		}
		in = append(in, v)
	}
	out, err := safeCall(c.fn, in)
	if err != nil {
		return Null, err
	}
	return resultOf(out)
}
