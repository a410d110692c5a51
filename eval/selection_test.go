package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpel-lang/xpel/ast"
	"github.com/xpel-lang/xpel/builtin"
	"github.com/xpel-lang/xpel/conf"
	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/runtime"
)

// isEven is "#this % 2 == 0".
func isEven() ast.Node {
	return binary("==",
		binary("%", variable("this"), intLit(2)),
		intLit(0))
}

func selection(which ast.SelectionWhich, filter ast.Node) *ast.SelectionNode {
	return &ast.SelectionNode{Which: which, Filter: filter}
}

func TestSelectAllKeepsOrder(t *testing.T) {
	root := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	v, err := run(t, selection(ast.SelectAll, isEven()), conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6, 8, 10}, v.Val)
}

func TestSelectFirstShortCircuits(t *testing.T) {
	// The criterion counts its invocations through a registered function.
	visited := 0
	root := []int{1, 2, 3, 4}
	ctx := conf.New(conf.WithRoot(root), tally(&visited))
	s := NewState(ctx)

	filter := binary("&&",
		&ast.FunctionNode{Name: "tally", Args: []ast.Node{variable("this")}},
		isEven())
	v, err := Eval(selection(ast.SelectFirst, filter), s)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Val)
	assert.Equal(t, 2, visited, "elements after the first match must not be visited")
}

// tally registers a function that counts calls and always passes.
func tally(counter *int) conf.Option {
	return conf.WithFunction(&builtin.Function{
		Name: "tally",
		Func: func(args ...any) (any, error) {
			*counter++
			return true, nil
		},
	})
}

func TestSelectLastScansForward(t *testing.T) {
	root := []int{1, 2, 3, 4, 5}
	v, err := run(t, selection(ast.SelectLast, isEven()), conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, 4, v.Val)
}

func TestSelectionNoMatchIsNull(t *testing.T) {
	root := []int{1, 3, 5}
	v, err := run(t, selection(ast.SelectFirst, isEven()), conf.WithRoot(root))
	require.NoError(t, err)
	assert.True(t, v.IsNil())

	v, err = run(t, selection(ast.SelectAll, isEven()), conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, []int{}, v.Val)
}

func TestSelectionOverMap(t *testing.T) {
	root := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}
	filter := binary("==",
		binary("%", prop(variable("this"), "Value"), intLit(2)),
		intLit(0))

	v, err := run(t, selection(ast.SelectAll, filter), conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"b": 2, "d": 4}, v.Val)

	// First/Last over maps visit keys in sorted order and yield the pair.
	v, err = run(t, selection(ast.SelectFirst, filter), conf.WithRoot(root))
	require.NoError(t, err)
	pair := v.Val.(runtime.Pair)
	assert.Equal(t, "b", pair.Key)
	assert.Equal(t, 2, pair.Value)

	v, err = run(t, selection(ast.SelectLast, filter), conf.WithRoot(root))
	require.NoError(t, err)
	pair = v.Val.(runtime.Pair)
	assert.Equal(t, "d", pair.Key)
}

func TestSelectionCriteriaMustBeBoolean(t *testing.T) {
	_, err := run(t, selection(ast.SelectAll, intLit(1)), conf.WithRoot([]int{1}))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.SelectionCriteriaNotBool))
}

func TestSelectionOnInvalidTarget(t *testing.T) {
	_, err := run(t, selection(ast.SelectAll, isEven()), conf.WithRoot(42))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.InvalidSelectionTarget))
}

func TestNullSafeSelectionOnNull(t *testing.T) {
	root := map[string]any{"nums": nil}
	node := &ast.SelectionNode{
		Target:   prop(nil, "nums"),
		Which:    ast.SelectAll,
		Filter:   isEven(),
		NullSafe: true,
	}
	v, err := run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	assert.True(t, v.IsNil())

	node.NullSafe = false
	_, err = run(t, node, conf.WithRoot(root))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.InvalidSelectionTarget))
}

func TestProjectionOverSlice(t *testing.T) {
	root := []int{1, 2, 3}
	node := &ast.ProjectionNode{Body: binary("*", variable("this"), intLit(10))}
	v, err := run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, []int{10, 20, 30}, v.Val)
}

func TestProjectionMixedTypesFallsBackToAny(t *testing.T) {
	root := []any{1, "two"}
	node := &ast.ProjectionNode{Body: variable("this")}
	v, err := run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	assert.Equal(t, []any{1, "two"}, v.Val)
}

func TestProjectionOverMap(t *testing.T) {
	root := map[string]int{"b": 2, "a": 1}
	node := &ast.ProjectionNode{Body: prop(variable("this"), "Value")}
	v, err := run(t, node, conf.WithRoot(root))
	require.NoError(t, err)
	// Sorted key order: a, b.
	assert.Equal(t, []int{1, 2}, v.Val)
}

func TestScopesNestAndUnwind(t *testing.T) {
	// #this inside the body is the element, not the evaluation root.
	root := []int{7}
	inner := binary("==", variable("this"), intLit(7))
	s := NewState(conf.New(conf.WithRoot(root)))
	v, err := Eval(selection(ast.SelectAll, inner), s)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, v.Val)
	assert.True(t, s.Balanced())
}
