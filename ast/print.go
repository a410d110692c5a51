package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Print renders a node back to source-like text for diagnostics. The text
// is best effort: spacing is normalized and numeric literals are
// reformatted, so it is not guaranteed to round-trip through a parser.
func Print(node Node) string {
	var b strings.Builder
	printNode(&b, node, 0)
	return b.String()
}

// Binding powers of the binary operators, loosest first.
var precedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"instanceof": 4, "matches": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
	"^": 7,
}

func printNode(b *strings.Builder, node Node, parent int) {
	switch n := node.(type) {
	case *NilNode:
		b.WriteString("null")
	case *BoolNode:
		b.WriteString(strconv.FormatBool(n.Value))
	case *IntegerNode:
		b.WriteString(strconv.Itoa(n.Value))
	case *FloatNode:
		b.WriteString(strconv.FormatFloat(n.Value, 'g', -1, 64))
	case *StringNode:
		b.WriteString(strconv.Quote(n.Value))
	case *IdentifierNode:
		b.WriteString(n.Value)
	case *VariableNode:
		b.WriteByte('#')
		b.WriteString(n.Name)
	case *PropertyNode:
		if n.Target != nil {
			printNode(b, n.Target, maxPrecedence)
			if n.NullSafe {
				b.WriteString("?.")
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString(n.Name)
	case *IndexerNode:
		printNode(b, n.Target, maxPrecedence)
		if n.NullSafe {
			b.WriteByte('?')
		}
		b.WriteByte('[')
		printNode(b, n.Index, 0)
		b.WriteByte(']')
	case *MethodNode:
		if n.Target != nil {
			printNode(b, n.Target, maxPrecedence)
			if n.NullSafe {
				b.WriteString("?.")
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString(n.Name)
		printArgs(b, n.Args)
	case *FunctionNode:
		b.WriteByte('#')
		b.WriteString(n.Name)
		printArgs(b, n.Args)
	case *ConstructorNode:
		b.WriteString("new ")
		b.WriteString(n.TypeName)
		printArgs(b, n.Args)
	case *InlineListNode:
		b.WriteByte('{')
		for i, item := range n.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			printNode(b, item, 0)
		}
		b.WriteByte('}')
	case *BinaryNode:
		prec := precedence[n.Op]
		if prec < parent {
			b.WriteByte('(')
		}
		printNode(b, n.Left, prec)
		b.WriteByte(' ')
		b.WriteString(n.Op)
		b.WriteByte(' ')
		printNode(b, n.Right, prec+1)
		if prec < parent {
			b.WriteByte(')')
		}
	case *UnaryNode:
		b.WriteString(n.Op)
		printNode(b, n.Operand, maxPrecedence)
	case *IncDecNode:
		if n.Postfix {
			printNode(b, n.Operand, maxPrecedence)
			b.WriteString(n.Op)
		} else {
			b.WriteString(n.Op)
			printNode(b, n.Operand, maxPrecedence)
		}
	case *TernaryNode:
		if parent > 0 {
			b.WriteByte('(')
		}
		printNode(b, n.Cond, 1)
		b.WriteString(" ? ")
		printNode(b, n.Then, 1)
		b.WriteString(" : ")
		printNode(b, n.Else, 0)
		if parent > 0 {
			b.WriteByte(')')
		}
	case *ElvisNode:
		if parent > 0 {
			b.WriteByte('(')
		}
		printNode(b, n.Target, 1)
		b.WriteString(" ?: ")
		printNode(b, n.Default, 0)
		if parent > 0 {
			b.WriteByte(')')
		}
	case *SelectionNode:
		printNode(b, n.Target, maxPrecedence)
		if n.NullSafe {
			b.WriteByte('?')
		}
		switch n.Which {
		case SelectFirst:
			b.WriteString(".^[")
		case SelectLast:
			b.WriteString(".$[")
		default:
			b.WriteString(".?[")
		}
		printNode(b, n.Filter, 0)
		b.WriteByte(']')
	case *ProjectionNode:
		printNode(b, n.Target, maxPrecedence)
		if n.NullSafe {
			b.WriteByte('?')
		}
		b.WriteString(".![")
		printNode(b, n.Body, 0)
		b.WriteByte(']')
	case *AssignNode:
		printNode(b, n.Left, 1)
		b.WriteString(" = ")
		printNode(b, n.Right, 0)
	case *BeanRefNode:
		if n.Factory {
			b.WriteByte('&')
		} else {
			b.WriteByte('@')
		}
		b.WriteString(n.Name)
	default:
		fmt.Fprintf(b, "<%T>", node)
	}
}

const maxPrecedence = 8

func printArgs(b *strings.Builder, args []Node) {
	b.WriteByte('(')
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		printNode(b, a, 0)
	}
	b.WriteByte(')')
}
