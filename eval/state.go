// Package eval is the tree-walking interpreter: it drives node semantics,
// owns the per-evaluation state, and decides when a subtree is promoted to
// its compiled fast path.
package eval

import (
	"github.com/xpel-lang/xpel/runtime"
)

// State is the per-evaluation mutable context. It is created fresh for
// every top-level evaluation and must never be shared across goroutines.
// All stacks start empty and return to empty on every exit path.
type State struct {
	ctx  runtime.Context
	root runtime.Value

	active     []runtime.Value            // innermost = nearest enclosing object
	scopeRoots []runtime.Value            // #this boundary per scope
	locals     []map[string]runtime.Value // innermost shadows outer
}

func NewState(ctx runtime.Context) *State {
	return &State{ctx: ctx, root: ctx.Root()}
}

func (s *State) Context() runtime.Context { return s.ctx }

// Root returns the innermost active context object, or the original root
// value when no context object is active.
func (s *State) Root() runtime.Value {
	if n := len(s.active); n > 0 {
		return s.active[n-1]
	}
	return s.root
}

// EvalRoot is the original root of the evaluation: #root.
func (s *State) EvalRoot() runtime.Value { return s.root }

// ScopeRoot is the #this binding captured at the innermost scope boundary.
func (s *State) ScopeRoot() runtime.Value {
	if n := len(s.scopeRoots); n > 0 {
		return s.scopeRoots[n-1]
	}
	return s.root
}

func (s *State) PushActive(v runtime.Value) {
	s.active = append(s.active, v)
}

func (s *State) PopActive() {
	s.active = s.active[:len(s.active)-1]
}

// EnterScope opens a local-variable scope, optionally seeded with vars,
// and snapshots the current active context object as the scope root so
// nested #this references resolve to the right level. Every EnterScope
// must be mirrored by exactly one ExitScope, on all exit paths.
func (s *State) EnterScope(vars map[string]runtime.Value) {
	s.scopeRoots = append(s.scopeRoots, s.Root())
	scope := make(map[string]runtime.Value, len(vars))
	for k, v := range vars {
		scope[k] = v
	}
	s.locals = append(s.locals, scope)
}

func (s *State) ExitScope() {
	s.scopeRoots = s.scopeRoots[:len(s.scopeRoots)-1]
	s.locals = s.locals[:len(s.locals)-1]
}

// Lookup finds a local variable, innermost scope first.
func (s *State) Lookup(name string) (runtime.Value, bool) {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if v, ok := s.locals[i][name]; ok {
			return v, true
		}
	}
	return runtime.Null, false
}

// Variable implements runtime.Activation: locals shadow context variables.
func (s *State) Variable(name string) (runtime.Value, bool) {
	if v, ok := s.Lookup(name); ok {
		return v, true
	}
	return s.ctx.Variable(name)
}

// SetLocal updates name in the innermost scope that defines it and
// reports whether such a scope exists.
func (s *State) SetLocal(name string, v runtime.Value) bool {
	for i := len(s.locals) - 1; i >= 0; i-- {
		if _, ok := s.locals[i][name]; ok {
			s.locals[i][name] = v
			return true
		}
	}
	return false
}

// Balanced reports whether every stack has returned to empty; the
// evaluator checks it after a top-level evaluation.
func (s *State) Balanced() bool {
	return len(s.active) == 0 && len(s.scopeRoots) == 0 && len(s.locals) == 0
}
