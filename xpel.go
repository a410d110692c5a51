// Package xpel evaluates expression trees against caller-supplied
// contexts. An Expression is immutable and safe for concurrent
// evaluation; the adaptive state it accumulates (accessor caches,
// compiled fragments) lives in atomic per-node cells and only ever
// changes which internal path produces the answer, never the answer.
package xpel

import (
	"github.com/xpel-lang/xpel/ast"
	"github.com/xpel-lang/xpel/eval"
	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/runtime"
)

// Expression is a reusable, thread-safe expression. Evaluation state
// lives in the per-call State; the tree itself carries only monotonic
// caches.
type Expression struct {
	node   ast.Node
	source file.Source
}

// Option configures an Expression at construction time.
type Option func(*Expression)

// WithSource attaches the original expression text so errors carry a
// snippet with a caret under the failing position.
func WithSource(contents string) Option {
	return func(e *Expression) {
		e.source = file.NewSource(contents)
	}
}

// New wraps an expression tree. The tree must not be mutated after this
// call; share the Expression instead.
func New(node ast.Node, opts ...Option) *Expression {
	e := &Expression{node: node}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Node returns the underlying tree.
func (e *Expression) Node() ast.Node { return e.node }

// String renders the tree back to expression syntax.
func (e *Expression) String() string { return ast.Print(e.node) }

// Eval evaluates the expression against ctx and returns the raw result.
func (e *Expression) Eval(ctx runtime.Context) (any, error) {
	v, err := e.EvalValue(ctx)
	if err != nil {
		return nil, err
	}
	return v.Val, nil
}

// EvalValue is Eval with the shape-carrying result.
func (e *Expression) EvalValue(ctx runtime.Context) (runtime.Value, error) {
	s := eval.NewState(ctx)
	v, err := eval.Eval(e.node, s)
	return v, e.bind(err)
}

// EvalInterpreted evaluates on the generic path only, skipping and never
// creating compiled fragments. Results are identical to Eval; this exists
// for diagnosis and for tests asserting two-tier equivalence.
func (e *Expression) EvalInterpreted(ctx runtime.Context) (runtime.Value, error) {
	s := eval.NewState(ctx)
	v, err := eval.EvalInterpreted(e.node, s)
	return v, e.bind(err)
}

func (e *Expression) bind(err error) error {
	if err == nil {
		return nil
	}
	if fe, ok := err.(*file.Error); ok {
		return fe.Bind(e.source)
	}
	return err
}
