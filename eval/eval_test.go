package eval

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpel-lang/xpel/ast"
	"github.com/xpel-lang/xpel/builtin"
	"github.com/xpel-lang/xpel/conf"
	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/runtime"
)

func intLit(v int) *ast.IntegerNode       { return &ast.IntegerNode{Value: v} }
func strLit(v string) *ast.StringNode     { return &ast.StringNode{Value: v} }
func variable(name string) *ast.VariableNode {
	return &ast.VariableNode{Name: name}
}

func prop(target ast.Node, name string) *ast.PropertyNode {
	return &ast.PropertyNode{Target: target, Name: name}
}

func safeProp(target ast.Node, name string) *ast.PropertyNode {
	return &ast.PropertyNode{Target: target, Name: name, NullSafe: true}
}

func binary(op string, left, right ast.Node) *ast.BinaryNode {
	return &ast.BinaryNode{Op: op, Left: left, Right: right}
}

func run(t *testing.T, node ast.Node, opts ...conf.Option) (runtime.Value, error) {
	t.Helper()
	s := NewState(conf.New(opts...))
	v, err := Eval(node, s)
	assert.True(t, s.Balanced(), "state stacks must return to empty")
	return v, err
}

type wallet struct {
	Owner string
	Cents int
	Next  *wallet
}

func (w *wallet) Describe(prefix string) string {
	return fmt.Sprintf("%s%s:%d", prefix, w.Owner, w.Cents)
}

func (w *wallet) Double() int { return w.Cents * 2 }

func TestLiteralArithmetic(t *testing.T) {
	// (1 + 2) * 3
	node := binary("*", binary("+", intLit(1), intLit(2)), intLit(3))
	v, err := run(t, node)
	require.NoError(t, err)
	assert.Equal(t, 9, v.Val)
}

func TestComparisonPromotesTiers(t *testing.T) {
	v, err := run(t, binary(">", intLit(3), intLit(2)))
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)

	v, err = run(t, binary("==", intLit(1), &ast.FloatNode{Value: 1.0}))
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)
}

func TestBooleanShortCircuit(t *testing.T) {
	// false && <whatever> never evaluates the right side; proven by a
	// right side that would error.
	explode := prop(&ast.NilNode{}, "boom")
	v, err := run(t, binary("&&", &ast.BoolNode{Value: false}, explode))
	require.NoError(t, err)
	assert.Equal(t, false, v.Val)

	v, err = run(t, binary("||", &ast.BoolNode{Value: true}, explode))
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)
}

func TestPropertyChain(t *testing.T) {
	root := &wallet{Owner: "ada", Next: &wallet{Owner: "grace"}}
	node := prop(prop(nil, "Next"), "Owner")
	v, err := run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, "grace", v.Val)
}

func TestNullSafeChainOnNull(t *testing.T) {
	root := &wallet{Owner: "ada"} // Next is nil
	node := safeProp(safeProp(nil, "Next"), "Owner")
	v, err := run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}

func TestPropertyOnNullErrors(t *testing.T) {
	root := &wallet{Owner: "ada"}
	node := prop(prop(nil, "Next"), "Owner")
	_, err := run(t, node, conf.WithRoot(root))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.PropertyReadOnNull))
}

func TestMapPropertyAndIndexer(t *testing.T) {
	root := map[string]any{
		"name": "x",
		"list": []int{10, 20, 30},
	}
	v, err := run(t, prop(nil, "name"), conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, "x", v.Val)

	node := &ast.IndexerNode{Target: prop(nil, "list"), Index: intLit(1)}
	v, err = run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, 20, v.Val)
}

func TestIndexerOutOfBounds(t *testing.T) {
	node := &ast.IndexerNode{Target: prop(nil, "list"), Index: intLit(9)}
	_, err := run(t, node, conf.WithRoot(map[string]any{"list": []int{1}}))
	assert.Error(t, err)
}

func TestTernary(t *testing.T) {
	node := &ast.TernaryNode{
		Cond: binary(">", intLit(3), intLit(2)),
		Then: strLit("yes"),
		Else: strLit("no"),
	}
	v, err := run(t, node)
	require.NoError(t, err)
	assert.Equal(t, "yes", v.Val)

	_, err = run(t, &ast.TernaryNode{Cond: intLit(1), Then: strLit("a"), Else: strLit("b")})
	assert.Error(t, err)
}

func TestElvis(t *testing.T) {
	v, err := run(t, &ast.ElvisNode{Target: &ast.NilNode{}, Default: strLit("fallback")})
	require.NoError(t, err)
	assert.Equal(t, "fallback", v.Val)

	v, err = run(t, &ast.ElvisNode{Target: strLit("present"), Default: strLit("fallback")})
	require.NoError(t, err)
	assert.Equal(t, "present", v.Val)
}

func TestVariables(t *testing.T) {
	root := &wallet{Owner: "ada"}
	v, err := run(t, variable("x"), conf.WithRoot(root), conf.WithVariable("x", 41))
	require.NoError(t, err)
	assert.Equal(t, 41, v.Val)

	v, err = run(t, prop(variable("root"), "Owner"), conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, "ada", v.Val)

	v, err = run(t, prop(variable("this"), "Owner"), conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, "ada", v.Val)

	// An unset variable reads as null.
	v, err = run(t, variable("missing"), conf.WithRoot(root))
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}

func TestMethodCall(t *testing.T) {
	root := &wallet{Owner: "ada", Cents: 5}
	node := &ast.MethodNode{Name: "Describe", Args: []ast.Node{strLit("w ")}}
	v, err := run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, "w ada:5", v.Val)
}

func TestNullSafeMethodOnNull(t *testing.T) {
	root := &wallet{Owner: "ada"}
	node := &ast.MethodNode{Target: prop(nil, "Next"), Name: "Double", NullSafe: true}
	v, err := run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}

func TestMethodOnNullErrors(t *testing.T) {
	root := &wallet{Owner: "ada"}
	node := &ast.MethodNode{Target: prop(nil, "Next"), Name: "Double"}
	_, err := run(t, node, conf.WithRoot(root))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.CallOnNull))
}

func TestFunctionCall(t *testing.T) {
	double := &builtin.Function{
		Name: "double",
		Func: func(args ...any) (any, error) {
			return args[0].(int) * 2, nil
		},
	}
	node := &ast.FunctionNode{Name: "double", Args: []ast.Node{intLit(21)}}
	v, err := run(t, node, conf.WithFunction(double))
	require.NoError(t, err)
	assert.Equal(t, 42, v.Val)
}

func TestFunctionArityChecked(t *testing.T) {
	add := &builtin.Function{
		Name: "add",
		Func: func(args ...any) (any, error) {
			return args[0].(int) + args[1].(int), nil
		},
		Types: []reflect.Type{reflect.TypeOf((func(int, int) int)(nil))},
	}
	node := &ast.FunctionNode{Name: "add", Args: []ast.Node{intLit(1)}}
	_, err := run(t, node, conf.WithFunction(add))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.ArgumentCount))
}

func TestUnknownFunction(t *testing.T) {
	_, err := run(t, &ast.FunctionNode{Name: "nope"})
	require.Error(t, err)
	assert.True(t, file.Is(err, file.MethodNotFound))
}

func TestConstructor(t *testing.T) {
	node := &ast.ConstructorNode{
		TypeName: "Wallet",
		Args:     []ast.Node{strLit("ada"), intLit(3)},
	}
	v, err := run(t, node, conf.WithConstructor("Wallet", func(owner string, cents int) *wallet {
		return &wallet{Owner: owner, Cents: cents}
	}))
	require.NoError(t, err)
	w := v.Val.(*wallet)
	assert.Equal(t, "ada", w.Owner)
	assert.Equal(t, 3, w.Cents)
}

type beanDirectory struct {
	beans map[string]any
}

func (d *beanDirectory) Resolve(_ runtime.Context, name string) (any, error) {
	if b, ok := d.beans[name]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("no bean %q", name)
}

func (d *beanDirectory) ResolveProvider(_ runtime.Context, name string) (any, error) {
	return "provider:" + name, nil
}

func TestBeanReference(t *testing.T) {
	dir := &beanDirectory{beans: map[string]any{"svc": "the service"}}

	v, err := run(t, &ast.BeanRefNode{Name: "svc"}, conf.WithBeanResolver(dir))
	require.NoError(t, err)
	assert.Equal(t, "the service", v.Val)

	v, err = run(t, &ast.BeanRefNode{Name: "svc", Factory: true}, conf.WithBeanResolver(dir))
	require.NoError(t, err)
	assert.Equal(t, "provider:svc", v.Val)

	_, err = run(t, &ast.BeanRefNode{Name: "ghost"}, conf.WithBeanResolver(dir))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.BeanResolutionFailed))

	_, err = run(t, &ast.BeanRefNode{Name: "svc"})
	require.Error(t, err)
	assert.True(t, file.Is(err, file.BeanResolutionFailed))
}

func TestMatchesOperator(t *testing.T) {
	v, err := run(t, binary("matches", strLit("hello"), strLit("h.*o")))
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)

	// A null left operand never matches.
	v, err = run(t, binary("matches", &ast.NilNode{}, strLit(".*")))
	require.NoError(t, err)
	assert.Equal(t, false, v.Val)
}

func TestInstanceof(t *testing.T) {
	stringType := reflect.TypeOf("")
	v, err := run(t, binary("instanceof", strLit("s"), variable("stringType")),
		conf.WithVariable("stringType", stringType))
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)

	v, err = run(t, binary("instanceof", intLit(1), variable("stringType")),
		conf.WithVariable("stringType", stringType))
	require.NoError(t, err)
	assert.Equal(t, false, v.Val)

	// The right operand must be a type.
	_, err = run(t, binary("instanceof", strLit("s"), strLit("string")))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.InstanceofNeedsType))
}

func TestInlineList(t *testing.T) {
	node := &ast.InlineListNode{Items: []ast.Node{intLit(1), intLit(2), intLit(3)}}
	v, err := run(t, node)
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, v.Val)
}

func TestAssignmentDisabled(t *testing.T) {
	node := &ast.AssignNode{Left: prop(nil, "Owner"), Right: strLit("x")}
	_, err := run(t, node, conf.WithRoot(&wallet{}))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.NotAssignable))
	// The error carries the rendered left-hand side.
	assert.Contains(t, err.Error(), "Owner")
}

func TestVariableAssignment(t *testing.T) {
	ctx := conf.New(conf.AllowAssignment())
	s := NewState(ctx)
	node := &ast.AssignNode{Left: variable("x"), Right: intLit(5)}
	v, err := Eval(node, s)
	require.NoError(t, err)
	assert.Equal(t, 5, v.Val)

	got, ok := ctx.Variable("x")
	require.True(t, ok)
	assert.Equal(t, 5, got.Val)
}

func TestPropertyAssignment(t *testing.T) {
	root := &wallet{Owner: "ada"}
	node := &ast.AssignNode{Left: prop(nil, "Owner"), Right: strLit("grace")}
	v, err := run(t, node, conf.WithRoot(root), conf.AllowAssignment())
	require.NoError(t, err)
	assert.Equal(t, "grace", v.Val)
	assert.Equal(t, "grace", root.Owner)
}

func TestIndexerAssignment(t *testing.T) {
	root := map[string]any{"k": 1}
	node := &ast.AssignNode{
		Left:  &ast.IndexerNode{Index: strLit("k")},
		Right: intLit(2),
	}
	_, err := run(t, node, conf.WithRoot(root), conf.AllowAssignment())
	require.NoError(t, err)
	assert.Equal(t, 2, root["k"])
}

func TestReadOnlyVariablesRejectAssignment(t *testing.T) {
	node := &ast.AssignNode{Left: variable("root"), Right: intLit(1)}
	_, err := run(t, node, conf.AllowAssignment())
	require.Error(t, err)
	assert.True(t, file.Is(err, file.NotAssignable))
}

func TestPostfixIncrement(t *testing.T) {
	ctx := conf.New(conf.WithVariable("i", 10))
	s := NewState(ctx)
	node := &ast.IncDecNode{Op: "++", Operand: variable("i"), Postfix: true}
	v, err := Eval(node, s)
	require.NoError(t, err)
	assert.Equal(t, 10, v.Val)

	got, _ := ctx.Variable("i")
	assert.Equal(t, 11, got.Val)
}

func TestPrefixDecrement(t *testing.T) {
	ctx := conf.New(conf.WithVariable("i", 10))
	s := NewState(ctx)
	node := &ast.IncDecNode{Op: "--", Operand: variable("i")}
	v, err := Eval(node, s)
	require.NoError(t, err)
	assert.Equal(t, 9, v.Val)

	got, _ := ctx.Variable("i")
	assert.Equal(t, 9, got.Val)
}

func TestIncrementNonNumberErrors(t *testing.T) {
	ctx := conf.New(conf.WithVariable("s", "text"))
	s := NewState(ctx)
	node := &ast.IncDecNode{Op: "++", Operand: variable("s"), Postfix: true}
	_, err := Eval(node, s)
	require.Error(t, err)
	assert.True(t, file.Is(err, file.NotIncrementable))
}

// The index expression of a compound read-write runs exactly once.
func TestIndexedPostIncrementSingleEvaluation(t *testing.T) {
	root := map[string]any{"list": []int{10, 20}}
	ctx := conf.New(conf.WithRoot(root), conf.WithVariable("idx", 0))
	s := NewState(ctx)

	// list[idx++]++
	node := &ast.IncDecNode{
		Op: "++",
		Operand: &ast.IndexerNode{
			Target: prop(nil, "list"),
			Index:  &ast.IncDecNode{Op: "++", Operand: variable("idx"), Postfix: true},
		},
		Postfix: true,
	}
	v, err := Eval(node, s)
	require.NoError(t, err)
	assert.Equal(t, 10, v.Val)

	idx, _ := ctx.Variable("idx")
	assert.Equal(t, 1, idx.Val, "index side effect must fire exactly once")
	assert.Equal(t, []int{11, 20}, root["list"])
}

func TestAutoGrowNullReferences(t *testing.T) {
	type holder struct {
		M map[string]string
	}
	root := &holder{}
	node := &ast.AssignNode{
		Left: &ast.IndexerNode{
			Target: prop(nil, "M"),
			Index:  strLit("k"),
		},
		Right: strLit("v"),
	}
	_, err := run(t, node, conf.WithRoot(root), conf.AllowAssignment(), conf.AutoGrowNull())
	require.NoError(t, err)
	require.NotNil(t, root.M)
	assert.Equal(t, "v", root.M["k"])
}

// flakyAccessor resolves Owner on *wallet targets until retired; once
// retired its cached entry fails with a resolution-class error and it
// stops claiming the type.
type flakyAccessor struct {
	retired  bool
	resolves int
	reads    int
}

func (a *flakyAccessor) Targets() []reflect.Type {
	return []reflect.Type{reflect.TypeOf(&wallet{})}
}

func (a *flakyAccessor) CanRead(_ runtime.Context, _ any, name string) bool {
	if a.retired {
		return false
	}
	a.resolves++
	return name == "Owner"
}

func (a *flakyAccessor) Read(_ runtime.Context, target any, _ string) (runtime.Value, error) {
	a.reads++
	if a.retired {
		return runtime.Null, file.NewError(file.PropertyNotReadable, file.Location{},
			"accessor retired")
	}
	return runtime.ValueOf("cached:" + target.(*wallet).Owner), nil
}

func (a *flakyAccessor) CanWrite(runtime.Context, any, string) bool { return false }

func (a *flakyAccessor) Write(runtime.Context, any, string, runtime.Value) error {
	return file.NewError(file.PropertyNotWritable, file.Location{}, "read-only")
}

func TestStaleAccessorSelfHeals(t *testing.T) {
	acc := &flakyAccessor{}
	ctx := conf.New(conf.WithRoot(&wallet{Owner: "amy"}), conf.WithAccessors(acc))
	node := prop(nil, "Owner")

	v, err := Eval(node, NewState(ctx))
	require.NoError(t, err)
	assert.Equal(t, "cached:amy", v.Val)

	// The second pass hits the per-node cache slot without re-resolving.
	v, err = Eval(node, NewState(ctx))
	require.NoError(t, err)
	assert.Equal(t, "cached:amy", v.Val)
	assert.Equal(t, 1, acc.resolves)

	// Retiring the accessor makes the cached entry fail with a
	// resolution-class error: the slot is invalidated and one fresh
	// resolution lands on the reflective default. The stale value must
	// not surface.
	acc.retired = true
	v, err = Eval(node, NewState(ctx))
	require.NoError(t, err)
	assert.Equal(t, "amy", v.Val)
	assert.Equal(t, 1, acc.resolves)

	// The healed slot holds the reflective accessor; the retired one is
	// never consulted again.
	reads := acc.reads
	v, err = Eval(node, NewState(ctx))
	require.NoError(t, err)
	assert.Equal(t, "amy", v.Val)
	assert.Equal(t, reads, acc.reads)
}

type box struct{ v any }

func (b box) IsPresent() bool { return b.v != nil }
func (b box) Get() any        { return b.v }

func TestElvisOnEmptyOptional(t *testing.T) {
	v, err := run(t, &ast.ElvisNode{Target: prop(nil, "b"), Default: strLit("d")},
		conf.WithRoot(map[string]any{"b": box{}}))
	require.NoError(t, err)
	assert.Equal(t, "d", v.Val)
}

func TestNullSafePropertyUnwrapsOptional(t *testing.T) {
	root := map[string]any{"w": box{v: &wallet{Owner: "ada"}}}
	node := safeProp(prop(nil, "w"), "Owner")
	v, err := run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, "ada", v.Val)

	// An empty wrapper short-circuits to null.
	v, err = run(t, node, conf.WithRoot(map[string]any{"w": box{}}))
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}

func TestAutoGrowKeepsOptionalUnwrapping(t *testing.T) {
	// The auto-grow target path must apply the same optional unwrapping
	// as a plain read.
	root := map[string]any{"w": box{v: &wallet{Owner: "ada", Next: &wallet{Owner: "bo"}}}}
	node := prop(safeProp(prop(nil, "w"), "Next"), "Owner")

	v, err := run(t, node, conf.WithRoot(root), conf.AutoGrowNull())
	require.NoError(t, err)
	assert.Equal(t, "bo", v.Val)
}
