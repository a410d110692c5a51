package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type printCollector struct {
	order []string
}

func (c *printCollector) Visit(node Node) {
	c.order = append(c.order, Print(node))
}

func TestWalkVisitsChildrenFirst(t *testing.T) {
	// a.b[0] + #f(1)
	tree := &BinaryNode{
		Op: "+",
		Left: &IndexerNode{
			Target: &PropertyNode{Target: &PropertyNode{Name: "a"}, Name: "b"},
			Index:  &IntegerNode{Value: 0},
		},
		Right: &FunctionNode{Name: "f", Args: []Node{&IntegerNode{Value: 1}}},
	}

	c := &printCollector{}
	Walk(tree, c)
	assert.Equal(t, []string{
		"a", "a.b", "0", "a.b[0]", "1", "#f(1)", "a.b[0] + #f(1)",
	}, c.order)
}

func TestWalkSkipsImplicitTargets(t *testing.T) {
	// A nil target (the active context object) is not a node.
	c := &printCollector{}
	Walk(&PropertyNode{Name: "x"}, c)
	assert.Equal(t, []string{"x"}, c.order)
}

func TestWalkCoversEveryChildSlot(t *testing.T) {
	tree := &TernaryNode{
		Cond: &BoolNode{Value: true},
		Then: &SelectionNode{
			Target: &VariableNode{Name: "xs"},
			Which:  SelectFirst,
			Filter: &BoolNode{Value: true},
		},
		Else: &ProjectionNode{
			Target: &VariableNode{Name: "xs"},
			Body:   &VariableNode{Name: "this"},
		},
	}

	c := &printCollector{}
	Walk(tree, c)
	assert.Len(t, c.order, 8)
}
