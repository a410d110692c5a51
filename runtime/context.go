package runtime

import (
	"reflect"

	"github.com/xpel-lang/xpel/builtin"
)

// Context supplies everything evaluation needs from the outside: the root
// object, variables, the ordered accessor and resolver lists, the pluggable
// services, and the mutation policy flags. The engine only ever reads it;
// if a caller mutates a context during concurrent evaluation,
// synchronization is the caller's responsibility.
type Context interface {
	Root() Value

	Variable(name string) (Value, bool)
	SetVariable(name string, v Value)

	// Assign is the surface of the language's own assignment operator, as
	// opposed to SetVariable which is the programmatic API. The supplier is
	// invoked at most once.
	Assign(name string, supplier func() (Value, error)) (Value, error)

	Function(name string) (*builtin.Function, bool)

	Accessors() []PropertyAccessor
	MethodResolvers() []MethodResolver
	ConstructorResolvers() []ConstructorResolver

	// Services below may be nil.
	Converter() Converter
	Comparator() Comparator
	Overloader() OperatorOverloader
	BeanResolver() BeanResolver

	AssignmentEnabled() bool
	AutoGrowNull() bool
}

// Converter is the external type-conversion service.
type Converter interface {
	Convert(v Value, to reflect.Type) (Value, error)
}

// Comparator orders value pairs the numeric promotion ladder and
// lexicographic string comparison cannot.
type Comparator interface {
	CanCompare(a, b any) bool
	Compare(a, b any) (int, error)
}

// OperatorOverloader applies operators to non-numeric operands.
type OperatorOverloader interface {
	Overloads(op string, a, b any) bool
	Apply(op string, a, b any) (any, error)
}

// BeanResolver looks up external named references (@name).
type BeanResolver interface {
	Resolve(ctx Context, name string) (any, error)
}

// ProviderResolver is implemented by bean resolvers that can also return
// the raw provider of a reference (&name) instead of its product.
type ProviderResolver interface {
	BeanResolver
	ResolveProvider(ctx Context, name string) (any, error)
}

// Activation is the view of evaluation state a compiled fragment runs
// against. *eval.State implements it.
type Activation interface {
	Context() Context
	Root() Value
	EvalRoot() Value
	ScopeRoot() Value
	Variable(name string) (Value, bool)
}

// Fragment is a specialized, type-stable executable form of a subtree. A
// fragment must be semantically indistinguishable from the interpreted
// path, including error behavior and null-safety short circuits.
type Fragment func(Activation) (Value, error)

// ErrShapeChanged is the sentinel a fragment returns when its entry guard
// no longer matches the incoming value. The evaluator demotes the node back
// to the interpreted path and retries generically; the sentinel itself is
// never surfaced.
var ErrShapeChanged = &shapeChanged{}

type shapeChanged struct{}

func (*shapeChanged) Error() string { return "fast path shape changed" }
