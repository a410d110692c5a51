package xpel_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpel-lang/xpel"
	"github.com/xpel-lang/xpel/ast"
	"github.com/xpel-lang/xpel/conf"
	"github.com/xpel-lang/xpel/file"
	"github.com/valyala/fastjson"
)

type server struct {
	Host string
	Port int
}

func hostExpr() ast.Node {
	return &ast.PropertyNode{Name: "Host"}
}

func TestExpressionEval(t *testing.T) {
	e := xpel.New(hostExpr())
	got, err := e.Eval(conf.New(conf.WithRoot(&server{Host: "db1"})))
	require.NoError(t, err)
	assert.Equal(t, "db1", got)
}

func TestExpressionIsReusableAcrossRoots(t *testing.T) {
	e := xpel.New(hostExpr())
	for _, host := range []string{"a", "b", "c"} {
		got, err := e.Eval(conf.New(conf.WithRoot(&server{Host: host})))
		require.NoError(t, err)
		assert.Equal(t, host, got)
	}
}

func TestConcurrentEvaluationSharesOneTree(t *testing.T) {
	// Shared AST, fresh state per evaluation: cache and promotion races
	// may cost a re-resolution, never a wrong answer.
	e := xpel.New(&ast.BinaryNode{
		Op:    "+",
		Left:  &ast.PropertyNode{Name: "Port"},
		Right: &ast.IntegerNode{Value: 1},
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				got, err := e.Eval(conf.New(conf.WithRoot(&server{Port: 8079})))
				assert.NoError(t, err)
				assert.Equal(t, 8080, got)
			}
		}()
	}
	wg.Wait()
}

func TestErrorsCarrySourceSnippet(t *testing.T) {
	src := "Host.Missing"
	node := &ast.PropertyNode{
		Target: hostExpr(),
		Name:   "Missing",
	}
	node.SetLocation(file.Location{From: 5, To: 12})

	e := xpel.New(node, xpel.WithSource(src))
	_, err := e.Eval(conf.New(conf.WithRoot(&server{Host: "db1"})))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing")
	assert.Contains(t, err.Error(), src)
}

func TestStringDeparses(t *testing.T) {
	e := xpel.New(&ast.TernaryNode{
		Cond: &ast.BinaryNode{Op: ">", Left: &ast.PropertyNode{Name: "Port"}, Right: &ast.IntegerNode{Value: 0}},
		Then: &ast.StringNode{Value: "up"},
		Else: &ast.StringNode{Value: "down"},
	})
	assert.Equal(t, `Port > 0 ? "up" : "down"`, e.String())
}

func TestInterpretedMatchesAdaptive(t *testing.T) {
	e := xpel.New(&ast.BinaryNode{
		Op:    "*",
		Left:  &ast.PropertyNode{Name: "Port"},
		Right: &ast.IntegerNode{Value: 2},
	})
	ctx := conf.New(conf.WithRoot(&server{Port: 21}))
	for i := 0; i < 3; i++ {
		adaptive, err := e.EvalValue(ctx)
		require.NoError(t, err)
		plain, err := e.EvalInterpreted(ctx)
		require.NoError(t, err)
		assert.Equal(t, plain.Val, adaptive.Val)
	}
}

func TestJSONNavigation(t *testing.T) {
	doc, err := fastjson.Parse(`{"user": {"name": "ada", "logins": 3}}`)
	require.NoError(t, err)

	e := xpel.New(&ast.BinaryNode{
		Op: "+",
		Left: &ast.PropertyNode{
			Target: &ast.PropertyNode{Name: "user"},
			Name:   "logins",
		},
		Right: &ast.IntegerNode{Value: 1},
	})
	got, err := e.Eval(conf.New(conf.WithRoot(doc), conf.WithJSONAccess()))
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}
