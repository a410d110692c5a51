package ast

// Visitor is called once per node during a Walk traversal.
type Visitor interface {
	Visit(node Node)
}

// Walk traverses the tree depth first, visiting children before their
// parent. Nil children (an implicit active-context target) are skipped.
func Walk(node Node, v Visitor) {
	if node == nil {
		return
	}
	switch n := node.(type) {
	case *NilNode, *BoolNode, *IntegerNode, *FloatNode, *StringNode,
		*IdentifierNode, *VariableNode, *BeanRefNode:
	case *PropertyNode:
		Walk(n.Target, v)
	case *IndexerNode:
		Walk(n.Target, v)
		Walk(n.Index, v)
	case *MethodNode:
		Walk(n.Target, v)
		for _, a := range n.Args {
			Walk(a, v)
		}
	case *FunctionNode:
		for _, a := range n.Args {
			Walk(a, v)
		}
	case *ConstructorNode:
		for _, a := range n.Args {
			Walk(a, v)
		}
	case *InlineListNode:
		for _, item := range n.Items {
			Walk(item, v)
		}
	case *BinaryNode:
		Walk(n.Left, v)
		Walk(n.Right, v)
	case *UnaryNode:
		Walk(n.Operand, v)
	case *IncDecNode:
		Walk(n.Operand, v)
	case *TernaryNode:
		Walk(n.Cond, v)
		Walk(n.Then, v)
		Walk(n.Else, v)
	case *ElvisNode:
		Walk(n.Target, v)
		Walk(n.Default, v)
	case *SelectionNode:
		Walk(n.Target, v)
		Walk(n.Filter, v)
	case *ProjectionNode:
		Walk(n.Target, v)
		Walk(n.Body, v)
	case *AssignNode:
		Walk(n.Left, v)
		Walk(n.Right, v)
	}
	v.Visit(node)
}
