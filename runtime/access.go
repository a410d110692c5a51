package runtime

import (
	"reflect"

	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/internal/debug"
)

// PropertyAccessor is a pluggable strategy for reading and writing a named
// property of a target. Targets returns the concrete types the accessor
// specializes in; nil marks a generic, type-agnostic accessor tried after
// all typed ones.
type PropertyAccessor interface {
	Targets() []reflect.Type
	CanRead(ctx Context, target any, name string) bool
	Read(ctx Context, target any, name string) (Value, error)
	CanWrite(ctx Context, target any, name string) bool
	Write(ctx Context, target any, name string, v Value) error
}

// CompilableAccessor is implemented by accessors whose successful
// resolution is stable enough to specialize: the returned reader is bound
// to one concrete target type, performs no implicit conversion, and
// bypasses the generic search entirely.
type CompilableAccessor interface {
	PropertyAccessor
	CompiledRead(t reflect.Type, name string) (CompiledRead, bool)
}

// CompiledRead is a direct, type-stable property reader.
type CompiledRead func(target any) (Value, error)

// MethodExecutor invokes one resolved method.
type MethodExecutor interface {
	Execute(ctx Context, target any, args []Value) (Value, error)
}

// CompilableExecutor marks executors that require no implicit argument
// conversion and may be invoked directly from a compiled fragment.
type CompilableExecutor interface {
	MethodExecutor
	Compilable() bool
}

// MethodResolver finds an executor for a named method given the argument
// shapes. A resolver returns (nil, nil) when it has no opinion; an error
// stops the search.
type MethodResolver interface {
	Resolve(ctx Context, target any, name string, argShapes []Shape) (MethodExecutor, error)
}

// ConstructorExecutor constructs one resolved type.
type ConstructorExecutor interface {
	Construct(ctx Context, args []Value) (Value, error)
}

// ConstructorResolver finds an executor for a named constructor.
type ConstructorResolver interface {
	Resolve(ctx Context, typeName string, argShapes []Shape) (ConstructorExecutor, error)
}

// CachedAccessor is a per-node single-slot cache entry: the accessor that
// resolved last time and the exact target shape it resolved for. The entry
// is stored atomically as one unit; a hit requires an exact key match.
type CachedAccessor struct {
	Accessor PropertyAccessor
	Key      Shape
}

func (c *CachedAccessor) Match(target any) bool {
	return c != nil && c.Key.Equal(ShapeOf(target))
}

// CachedExecutor is the method-call analog of CachedAccessor: keyed by
// target shape plus the argument shape list.
type CachedExecutor struct {
	Executor MethodExecutor
	Key      Shape
	Args     []Shape
}

func (c *CachedExecutor) Match(target any, argShapes []Shape) bool {
	return c != nil && c.Key.Equal(ShapeOf(target)) && EqualShapes(c.Args, argShapes)
}

// CachedConstructor is keyed by the constant type name plus argument
// shapes; the target of an external/static reference never varies.
type CachedConstructor struct {
	Executor ConstructorExecutor
	TypeName string
	Args     []Shape
}

func (c *CachedConstructor) Match(typeName string, argShapes []Shape) bool {
	return c != nil && c.TypeName == typeName && EqualShapes(c.Args, argShapes)
}

// orderAccessors partitions the caller-supplied accessor list into
// exact-type matches, assignable-supertype matches, and generic accessors,
// preserving the caller's relative order inside each tier.
func orderAccessors(target any, list []PropertyAccessor) []PropertyAccessor {
	if IsNil(target) {
		return list
	}
	t := reflect.TypeOf(target)
	var exact, assignable, generic []PropertyAccessor
	for _, a := range list {
		targets := a.Targets()
		if targets == nil {
			generic = append(generic, a)
			continue
		}
		placed := false
		for _, at := range targets {
			if at == t {
				exact = append(exact, a)
				placed = true
				break
			}
		}
		if placed {
			continue
		}
		for _, at := range targets {
			if at != nil && t.AssignableTo(at) {
				assignable = append(assignable, a)
				break
			}
		}
	}
	ordered := make([]PropertyAccessor, 0, len(exact)+len(assignable)+len(generic))
	ordered = append(ordered, exact...)
	ordered = append(ordered, assignable...)
	ordered = append(ordered, generic...)
	return ordered
}

// probe runs a capability check, treating a panic inside a caller-supplied
// accessor as "not capable" rather than an evaluation failure.
func probe(can func() bool) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return can()
}

// ResolveRead finds the first accessor that claims it can read name on
// target, in tier order. It does not consult any cache; callers own the
// per-node cache slot.
func ResolveRead(ctx Context, target any, name string) (PropertyAccessor, *file.Error) {
	for _, a := range orderAccessors(target, ctx.Accessors()) {
		a := a
		if probe(func() bool { return a.CanRead(ctx, target, name) }) {
			debug.Logger().Trace().Str("property", name).Str("shape", ShapeOf(target).String()).
				Msg("read accessor resolved")
			return a, nil
		}
	}
	return nil, file.NewError(file.PropertyNotReadable, file.Location{},
		"property or field %q cannot be read on target of type %s", name, ShapeOf(target))
}

// ResolveWrite is the write-side counterpart of ResolveRead.
func ResolveWrite(ctx Context, target any, name string) (PropertyAccessor, *file.Error) {
	for _, a := range orderAccessors(target, ctx.Accessors()) {
		a := a
		if probe(func() bool { return a.CanWrite(ctx, target, name) }) {
			return a, nil
		}
	}
	return nil, file.NewError(file.PropertyNotWritable, file.Location{},
		"property or field %q cannot be written on target of type %s", name, ShapeOf(target))
}

// ResolveMethod walks the resolver list in caller order and returns the
// first executor found.
func ResolveMethod(ctx Context, target any, name string, argShapes []Shape) (MethodExecutor, *file.Error) {
	for _, r := range ctx.MethodResolvers() {
		exec, err := r.Resolve(ctx, target, name, argShapes)
		if err != nil {
			if fe, ok := err.(*file.Error); ok {
				return nil, fe
			}
			return nil, file.NewError(file.MethodNotFound, file.Location{}, "%v", err).Wrap(err)
		}
		if exec != nil {
			debug.Logger().Trace().Str("method", name).Str("shape", ShapeOf(target).String()).
				Msg("method executor resolved")
			return exec, nil
		}
	}
	return nil, file.NewError(file.MethodNotFound, file.Location{},
		"method %q cannot be found on target of type %s", name, ShapeOf(target))
}

// ResolveConstructor walks the constructor resolver list in caller order.
func ResolveConstructor(ctx Context, typeName string, argShapes []Shape) (ConstructorExecutor, *file.Error) {
	for _, r := range ctx.ConstructorResolvers() {
		exec, err := r.Resolve(ctx, typeName, argShapes)
		if err != nil {
			if fe, ok := err.(*file.Error); ok {
				return nil, fe
			}
			return nil, file.NewError(file.MethodNotFound, file.Location{}, "%v", err).Wrap(err)
		}
		if exec != nil {
			return exec, nil
		}
	}
	return nil, file.NewError(file.MethodNotFound, file.Location{},
		"constructor for %q cannot be found", typeName)
}
