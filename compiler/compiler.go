// Package compiler turns stable expression subtrees into fragments:
// closures specialized to the shapes the subtree has been observed with.
// A fragment produces exactly the value and errors the interpreted walk
// would, except that a violated shape guard surfaces as
// runtime.ErrShapeChanged, which the evaluator answers by demoting the
// subtree and retrying generically.
package compiler

import (
	"reflect"

	"github.com/xpel-lang/xpel/ast"
	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/runtime"
)

// Compile builds a fragment for node, or reports that the subtree is not
// compilable in its current state. Compilability is structural plus
// cache-driven: navigation nodes compile only when their last resolution
// left a specialized accessor or executor in the node's cache slot.
func Compile(node ast.Node) (runtime.Fragment, bool) {
	return compile(node)
}

func compile(node ast.Node) (runtime.Fragment, bool) {
	switch n := node.(type) {
	case *ast.NilNode:
		return constant(runtime.Null), true
	case *ast.BoolNode:
		return constant(runtime.ValueOf(n.Value)), true
	case *ast.IntegerNode:
		return constant(runtime.ValueOf(n.Value)), true
	case *ast.FloatNode:
		return constant(runtime.ValueOf(n.Value)), true
	case *ast.StringNode:
		return constant(runtime.ValueOf(n.Value)), true
	case *ast.IdentifierNode:
		return constant(runtime.ValueOf(n.Value)), true

	case *ast.VariableNode:
		return compileVariable(n), true

	case *ast.PropertyNode:
		return compileProperty(n)
	case *ast.IndexerNode:
		return compileIndexer(n)
	case *ast.MethodNode:
		return compileMethod(n)

	case *ast.UnaryNode:
		operand, ok := childFragment(n.Operand)
		if !ok {
			return nil, false
		}
		op := n.Op
		return func(a runtime.Activation) (runtime.Value, error) {
			v, err := operand(a)
			if err != nil {
				return runtime.Null, err
			}
			return runtime.ApplyUnary(op, v)
		}, true

	case *ast.BinaryNode:
		left, ok := childFragment(n.Left)
		if !ok {
			return nil, false
		}
		right, ok := childFragment(n.Right)
		if !ok {
			return nil, false
		}
		op := n.Op
		return func(a runtime.Activation) (runtime.Value, error) {
			lv, err := left(a)
			if err != nil {
				return runtime.Null, err
			}
			return runtime.ApplyBinary(a.Context(), op, lv, func() (runtime.Value, error) {
				return right(a)
			})
		}, true

	case *ast.TernaryNode:
		cond, ok := childFragment(n.Cond)
		if !ok {
			return nil, false
		}
		then, ok := childFragment(n.Then)
		if !ok {
			return nil, false
		}
		alt, ok := childFragment(n.Else)
		if !ok {
			return nil, false
		}
		return func(a runtime.Activation) (runtime.Value, error) {
			cv, err := cond(a)
			if err != nil {
				return runtime.Null, err
			}
			b, err := runtime.BoolOperand(cv, "ternary condition")
			if err != nil {
				return runtime.Null, err
			}
			if b {
				return then(a)
			}
			return alt(a)
		}, true

	case *ast.ElvisNode:
		target, ok := childFragment(n.Target)
		if !ok {
			return nil, false
		}
		alt, ok := childFragment(n.Default)
		if !ok {
			return nil, false
		}
		return func(a runtime.Activation) (runtime.Value, error) {
			v, err := target(a)
			if err != nil {
				return runtime.Null, err
			}
			if isAbsent(v) {
				return alt(a)
			}
			return v, nil
		}, true

	case *ast.InlineListNode:
		items := make([]runtime.Fragment, len(n.Items))
		for i, item := range n.Items {
			frag, ok := childFragment(item)
			if !ok {
				return nil, false
			}
			items[i] = frag
		}
		return func(a runtime.Activation) (runtime.Value, error) {
			out := make([]any, len(items))
			for i, frag := range items {
				v, err := frag(a)
				if err != nil {
					return runtime.Null, err
				}
				out[i] = v.Val
			}
			return runtime.ValueOf(out), nil
		}, true
	}

	// Mutating nodes, scoped loops, functions and external references stay
	// on the interpreted path.
	return nil, false
}

// childFragment reuses an already promoted child fragment, compiling the
// child only when it has none.
func childFragment(node ast.Node) (runtime.Fragment, bool) {
	if frag := node.FastPath().Fragment(); frag != nil {
		return frag, true
	}
	return compile(node)
}

func constant(v runtime.Value) runtime.Fragment {
	return func(runtime.Activation) (runtime.Value, error) {
		return v, nil
	}
}

func compileVariable(n *ast.VariableNode) runtime.Fragment {
	switch n.Name {
	case "this":
		return func(a runtime.Activation) (runtime.Value, error) {
			return a.ScopeRoot(), nil
		}
	case "root":
		return func(a runtime.Activation) (runtime.Value, error) {
			return a.EvalRoot(), nil
		}
	}
	name := n.Name
	return func(a runtime.Activation) (runtime.Value, error) {
		if v, ok := a.Variable(name); ok {
			return v, nil
		}
		return runtime.Null, nil
	}
}

// targetFragment compiles the target of a navigation node; a nil target
// means the active context object.
func targetFragment(node ast.Node) (runtime.Fragment, bool) {
	if node == nil {
		return func(a runtime.Activation) (runtime.Value, error) {
			return a.Root(), nil
		}, true
	}
	return childFragment(node)
}

func compileProperty(n *ast.PropertyNode) (runtime.Fragment, bool) {
	cached := n.CachedReader()
	if cached == nil || cached.Key.Nil || cached.Key.Type == nil {
		return nil, false
	}
	ca, ok := cached.Accessor.(runtime.CompilableAccessor)
	if !ok {
		return nil, false
	}
	read, ok := ca.CompiledRead(cached.Key.Type, n.Name)
	if !ok {
		return nil, false
	}
	target, ok := targetFragment(n.Target)
	if !ok {
		return nil, false
	}
	key := cached.Key.Type
	name, nullSafe, loc := n.Name, n.NullSafe, n.Location()
	return func(a runtime.Activation) (runtime.Value, error) {
		tv, err := target(a)
		if err != nil {
			return runtime.Null, err
		}
		if tv.IsNil() {
			if nullSafe {
				return runtime.Null, nil
			}
			return runtime.Null, file.NewError(file.PropertyReadOnNull, loc,
				"property or field %q cannot be read on a null target", name)
		}
		if reflect.TypeOf(tv.Val) != key {
			return runtime.Null, runtime.ErrShapeChanged
		}
		return read(tv.Val)
	}, true
}

func compileIndexer(n *ast.IndexerNode) (runtime.Fragment, bool) {
	target, ok := targetFragment(n.Target)
	if !ok {
		return nil, false
	}
	index, ok := childFragment(n.Index)
	if !ok {
		return nil, false
	}
	nullSafe, loc := n.NullSafe, n.Location()
	return func(a runtime.Activation) (runtime.Value, error) {
		tv, err := target(a)
		if err != nil {
			return runtime.Null, err
		}
		if tv.IsNil() {
			if nullSafe {
				return runtime.Null, nil
			}
			return runtime.Null, file.NewError(file.PropertyReadOnNull, loc,
				"indexer cannot be applied to a null target")
		}
		iv, err := index(a)
		if err != nil {
			return runtime.Null, err
		}
		return runtime.IndexValue(a.Context(), tv.Val, iv.Val)
	}, true
}

func compileMethod(n *ast.MethodNode) (runtime.Fragment, bool) {
	cached := n.CachedExecutor()
	if cached == nil {
		return nil, false
	}
	ce, ok := cached.Executor.(runtime.CompilableExecutor)
	if !ok || !ce.Compilable() {
		return nil, false
	}
	target, ok := targetFragment(n.Target)
	if !ok {
		return nil, false
	}
	args := make([]runtime.Fragment, len(n.Args))
	for i, arg := range n.Args {
		frag, ok := childFragment(arg)
		if !ok {
			return nil, false
		}
		args[i] = frag
	}
	exec := cached.Executor
	key, argShapes := cached.Key, cached.Args
	name, nullSafe, loc := n.Name, n.NullSafe, n.Location()
	return func(a runtime.Activation) (runtime.Value, error) {
		tv, err := target(a)
		if err != nil {
			return runtime.Null, err
		}
		if tv.IsNil() {
			if nullSafe {
				return runtime.Null, nil
			}
			// Match the generic path: arguments are evaluated before
			// the call-on-null error is raised.
			for _, frag := range args {
				if _, err := frag(a); err != nil {
					return runtime.Null, err
				}
			}
			return runtime.Null, file.NewError(file.CallOnNull, loc,
				"method %q cannot be called on a null target", name)
		}
		in := make([]runtime.Value, len(args))
		for i, frag := range args {
			v, err := frag(a)
			if err != nil {
				return runtime.Null, err
			}
			in[i] = v
		}
		if !key.Equal(runtime.ShapeOf(tv.Val)) || !runtime.EqualShapes(argShapes, runtime.ShapesOf(in)) {
			return runtime.Null, runtime.ErrShapeChanged
		}
		v, err := exec.Execute(a.Context(), tv.Val, in)
		if err != nil {
			if file.Is(err, file.InvocationError) {
				return runtime.Null, err
			}
			// A stale executor demotes; the generic retry invalidates it.
			return runtime.Null, runtime.ErrShapeChanged
		}
		return v, nil
	}, true
}

func isAbsent(v runtime.Value) bool {
	if v.IsNil() {
		return true
	}
	if opt, ok := v.Val.(runtime.Optional); ok {
		return !opt.IsPresent()
	}
	return false
}
