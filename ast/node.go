// Package ast declares the evaluable node set of the expression language.
//
// A node's structural identity (children, source span) is immutable after
// construction; the only mutable state is the memoized cells: the resolved
// accessor/executor cache and the compiled-fast-path descriptor. The cells
// are single atomic slots, so an AST may be shared and evaluated by many
// goroutines at once; a racing writer only ever costs an extra resolution.
package ast

import (
	"sync/atomic"

	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/runtime"
)

// Node is one evaluable unit of the expression tree.
type Node interface {
	Location() file.Location
	SetLocation(file.Location)
	FastPath() *FastPath
}

// FastPathState is the per-node position in the two-tier execution model.
type FastPathState int32

const (
	// Interpreted is the default: generic resolution and dispatch, always
	// correct, always available.
	Interpreted FastPathState = iota
	// Candidate means the last resolution was stable enough to specialize.
	Candidate
	// Compiled means a specialized fragment exists and is invoked instead
	// of the generic path.
	Compiled
	// NotCompilable marks nodes whose promotion attempt failed; cleared on
	// demotion.
	NotCompilable
)

// FastPath is the compiled-fast-path descriptor every node carries.
type FastPath struct {
	state    atomic.Int32
	fragment atomic.Pointer[runtime.Fragment]
}

func (fp *FastPath) State() FastPathState {
	return FastPathState(fp.state.Load())
}

// MarkCandidate records that resolution was stable; it never downgrades a
// compiled node.
func (fp *FastPath) MarkCandidate() {
	fp.state.CompareAndSwap(int32(Interpreted), int32(Candidate))
}

func (fp *FastPath) MarkNotCompilable() {
	fp.state.CompareAndSwap(int32(Candidate), int32(NotCompilable))
}

// Promote installs a compiled fragment.
func (fp *FastPath) Promote(f runtime.Fragment) {
	fp.fragment.Store(&f)
	fp.state.Store(int32(Compiled))
}

// Demote discards the fragment and returns the node to the interpreted
// tier; called when re-resolution disagrees with the specialized shape.
func (fp *FastPath) Demote() {
	fp.fragment.Store(nil)
	fp.state.Store(int32(Interpreted))
}

func (fp *FastPath) Fragment() runtime.Fragment {
	if p := fp.fragment.Load(); p != nil {
		return *p
	}
	return nil
}

type base struct {
	loc file.Location
	fp  FastPath
}

func (b *base) Location() file.Location     { return b.loc }
func (b *base) SetLocation(l file.Location) { b.loc = l }
func (b *base) FastPath() *FastPath         { return &b.fp }

type NilNode struct {
	base
}

type BoolNode struct {
	base
	Value bool
}

type IntegerNode struct {
	base
	Value int
}

type FloatNode struct {
	base
	Value float64
}

type StringNode struct {
	base
	Value string
}

// IdentifierNode is a bare name part; it evaluates to its own name.
type IdentifierNode struct {
	base
	Value string
}

// VariableNode is a #name reference. #this resolves to the current scope
// root and #root to the evaluation root; both are read-only.
type VariableNode struct {
	base
	Name string
}

// PropertyNode reads or writes a property or field. A nil Target means the
// active context object.
type PropertyNode struct {
	base
	Target   Node
	Name     string
	NullSafe bool

	reader atomic.Pointer[runtime.CachedAccessor]
	writer atomic.Pointer[runtime.CachedAccessor]
}

func (n *PropertyNode) CachedReader() *runtime.CachedAccessor { return n.reader.Load() }
func (n *PropertyNode) StoreReader(c *runtime.CachedAccessor) { n.reader.Store(c) }
func (n *PropertyNode) CachedWriter() *runtime.CachedAccessor { return n.writer.Load() }
func (n *PropertyNode) StoreWriter(c *runtime.CachedAccessor) { n.writer.Store(c) }

// IndexerNode is target[index] over maps, slices, arrays, strings and JSON
// documents.
type IndexerNode struct {
	base
	Target   Node
	Index    Node
	NullSafe bool
}

// MethodNode invokes a method through the context's method resolvers. A
// nil Target means the active context object.
type MethodNode struct {
	base
	Target   Node
	Name     string
	Args     []Node
	NullSafe bool

	executor atomic.Pointer[runtime.CachedExecutor]
}

func (n *MethodNode) CachedExecutor() *runtime.CachedExecutor { return n.executor.Load() }
func (n *MethodNode) StoreExecutor(c *runtime.CachedExecutor) { n.executor.Store(c) }

// FunctionNode calls a context-registered function: #name(args).
type FunctionNode struct {
	base
	Name string
	Args []Node
}

// ConstructorNode is new TypeName(args), resolved through the context's
// constructor resolvers.
type ConstructorNode struct {
	base
	TypeName string
	Args     []Node

	executor atomic.Pointer[runtime.CachedConstructor]
}

func (n *ConstructorNode) CachedConstructor() *runtime.CachedConstructor { return n.executor.Load() }
func (n *ConstructorNode) StoreConstructor(c *runtime.CachedConstructor) { n.executor.Store(c) }

// InlineListNode is a list literal: {a, b, c}.
type InlineListNode struct {
	base
	Items []Node
}

// BinaryNode covers arithmetic, relational, boolean, matches and
// instanceof operators. && and || short-circuit.
type BinaryNode struct {
	base
	Op    string
	Left  Node
	Right Node
}

type UnaryNode struct {
	base
	Op      string
	Operand Node
}

// IncDecNode is ++ or -- applied to an lvalue-capable operand, obtaining
// its write-back handle exactly once.
type IncDecNode struct {
	base
	Op      string // "++" or "--"
	Operand Node
	Postfix bool
}

type TernaryNode struct {
	base
	Cond Node
	Then Node
	Else Node
}

// ElvisNode is target ?: default.
type ElvisNode struct {
	base
	Target  Node
	Default Node
}

type SelectionWhich int

const (
	SelectAll SelectionWhich = iota
	SelectFirst
	SelectLast
)

// SelectionNode filters a map, slice or array by a boolean criterion:
// .?[...], .^[...], .$[...].
type SelectionNode struct {
	base
	Target   Node
	Which    SelectionWhich
	Filter   Node
	NullSafe bool
}

// ProjectionNode maps a body over a map, slice or array: .![...].
type ProjectionNode struct {
	base
	Target   Node
	Body     Node
	NullSafe bool
}

type AssignNode struct {
	base
	Left  Node
	Right Node
}

// BeanRefNode is an external named reference: @name, or &name for the raw
// provider instead of its product.
type BeanRefNode struct {
	base
	Name    string
	Factory bool
}
