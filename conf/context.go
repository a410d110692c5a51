// Package conf provides the standard evaluation context: the root object,
// variables, the ordered accessor and resolver lists, and the pluggable
// services an evaluation consults.
package conf

import (
	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/xpel-lang/xpel/builtin"
	"github.com/xpel-lang/xpel/runtime"
)

// StdContext is the standard implementation of runtime.Context. Variables
// live in a concurrent map so programmatic writers and evaluating readers
// may overlap; everything else is fixed after New.
type StdContext struct {
	root      runtime.Value
	variables cmap.ConcurrentMap[string, runtime.Value]
	functions map[string]*builtin.Function

	accessors    []runtime.PropertyAccessor
	methods      []runtime.MethodResolver
	constructors []runtime.ConstructorResolver
	registry     *runtime.FuncConstructorResolver

	converter  runtime.Converter
	comparator runtime.Comparator
	overloader runtime.OperatorOverloader
	beans      runtime.BeanResolver

	allowAssignment bool
	autoGrow        bool
}

type Option func(*StdContext)

// New builds a context with the default reflective accessor stack and
// applies opts in order. Caller-supplied accessors and resolvers are
// prepended, so they are tried before the defaults within their tier.
func New(opts ...Option) *StdContext {
	c := &StdContext{
		variables: cmap.New[runtime.Value](),
		functions: map[string]*builtin.Function{},
		accessors: DefaultAccessors(),
		methods:   []runtime.MethodResolver{&runtime.ReflectMethodResolver{}},
		registry:  runtime.NewFuncConstructorResolver(),
	}
	c.constructors = []runtime.ConstructorResolver{c.registry}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultAccessors is the stock accessor list: map entries, then
// reflective struct members.
func DefaultAccessors() []runtime.PropertyAccessor {
	return []runtime.PropertyAccessor{
		&runtime.MapAccessor{},
		&runtime.ReflectAccessor{},
	}
}

func WithRoot(root any) Option {
	return func(c *StdContext) { c.root = runtime.ValueOf(root) }
}

func WithVariable(name string, v any) Option {
	return func(c *StdContext) { c.variables.Set(name, runtime.ValueOf(v)) }
}

func WithFunction(f *builtin.Function) Option {
	return func(c *StdContext) { c.functions[f.Name] = f }
}

// WithConstructor registers fn as a constructor for "new typeName(...)".
func WithConstructor(typeName string, fn any) Option {
	return func(c *StdContext) { c.registry.Register(typeName, fn) }
}

func WithAccessors(accessors ...runtime.PropertyAccessor) Option {
	return func(c *StdContext) { c.accessors = append(accessors, c.accessors...) }
}

func WithMethodResolvers(resolvers ...runtime.MethodResolver) Option {
	return func(c *StdContext) { c.methods = append(resolvers, c.methods...) }
}

func WithConstructorResolvers(resolvers ...runtime.ConstructorResolver) Option {
	return func(c *StdContext) { c.constructors = append(resolvers, c.constructors...) }
}

// WithJSONAccess enables property and indexer navigation over
// *fastjson.Value documents.
func WithJSONAccess() Option {
	return WithAccessors(&runtime.JSONAccessor{})
}

func WithConverter(s runtime.Converter) Option {
	return func(c *StdContext) { c.converter = s }
}

func WithComparator(s runtime.Comparator) Option {
	return func(c *StdContext) { c.comparator = s }
}

func WithOperatorOverloader(s runtime.OperatorOverloader) Option {
	return func(c *StdContext) { c.overloader = s }
}

func WithBeanResolver(s runtime.BeanResolver) Option {
	return func(c *StdContext) { c.beans = s }
}

// AllowAssignment permits the expression language's assignment operator.
func AllowAssignment() Option {
	return func(c *StdContext) { c.allowAssignment = true }
}

// AutoGrowNull makes null references grow into empty containers when
// navigation continues through them.
func AutoGrowNull() Option {
	return func(c *StdContext) { c.autoGrow = true }
}

func (c *StdContext) Root() runtime.Value { return c.root }

func (c *StdContext) Variable(name string) (runtime.Value, bool) {
	return c.variables.Get(name)
}

func (c *StdContext) SetVariable(name string, v runtime.Value) {
	c.variables.Set(name, v)
}

func (c *StdContext) Assign(name string, supplier func() (runtime.Value, error)) (runtime.Value, error) {
	v, err := supplier()
	if err != nil {
		return runtime.Null, err
	}
	c.variables.Set(name, v)
	return v, nil
}

func (c *StdContext) Function(name string) (*builtin.Function, bool) {
	f, ok := c.functions[name]
	return f, ok
}

func (c *StdContext) Accessors() []runtime.PropertyAccessor     { return c.accessors }
func (c *StdContext) MethodResolvers() []runtime.MethodResolver { return c.methods }
func (c *StdContext) ConstructorResolvers() []runtime.ConstructorResolver {
	return c.constructors
}

func (c *StdContext) Converter() runtime.Converter           { return c.converter }
func (c *StdContext) Comparator() runtime.Comparator         { return c.comparator }
func (c *StdContext) Overloader() runtime.OperatorOverloader { return c.overloader }
func (c *StdContext) BeanResolver() runtime.BeanResolver     { return c.beans }

func (c *StdContext) AssignmentEnabled() bool { return c.allowAssignment }
func (c *StdContext) AutoGrowNull() bool      { return c.autoGrow }
