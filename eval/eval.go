package eval

import (
	"errors"
	"reflect"

	"github.com/xpel-lang/xpel/ast"
	"github.com/xpel-lang/xpel/builtin"
	"github.com/xpel-lang/xpel/compiler"
	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/internal/debug"
	"github.com/xpel-lang/xpel/runtime"
)

// Eval evaluates node against s, using compiled fragments where subtrees
// have been promoted and promoting newly stable subtrees on the way out.
func Eval(node ast.Node, s *State) (runtime.Value, error) {
	return (&walker{s: s}).eval(node)
}

// EvalInterpreted forces the generic interpreted path for the whole tree:
// fragments are ignored and no promotion happens. Accessor caches are
// still consulted; they belong to the interpreted tier.
func EvalInterpreted(node ast.Node, s *State) (runtime.Value, error) {
	return (&walker{s: s, interpretedOnly: true}).eval(node)
}

type walker struct {
	s               *State
	interpretedOnly bool
}

func (w *walker) eval(node ast.Node) (runtime.Value, error) {
	if !w.interpretedOnly {
		if frag := node.FastPath().Fragment(); frag != nil {
			v, err := frag(w.s)
			if err == nil {
				return v, nil
			}
			if errors.Is(err, runtime.ErrShapeChanged) {
				// The specialized shape no longer matches; fall back to
				// the generic path, which re-resolves once.
				node.FastPath().Demote()
				debug.Logger().Trace().Str("node", ast.Print(node)).Msg("fast path demoted")
			} else {
				return runtime.Null, w.located(err, node)
			}
		}
	}
	v, err := w.evalNode(node)
	if err != nil {
		return runtime.Null, w.located(err, node)
	}
	w.maybePromote(node)
	return v, nil
}

// located attaches the node's source position to errors that reached us
// without one.
func (w *walker) located(err error, node ast.Node) error {
	var fe *file.Error
	if errors.As(err, &fe) {
		if fe.Location.IsZero() {
			fe.Location = node.Location()
		}
		return err
	}
	return file.NewError(file.GenericError, node.Location(), "%v", err).Wrap(err)
}

// maybePromote compiles a candidate-stable subtree into a fragment. A
// failed attempt is remembered so it is not retried until the next
// demotion.
func (w *walker) maybePromote(node ast.Node) {
	if w.interpretedOnly {
		return
	}
	fp := node.FastPath()
	if fp.State() != ast.Candidate || fp.Fragment() != nil {
		return
	}
	if frag, ok := compiler.Compile(node); ok {
		fp.Promote(frag)
		debug.Logger().Trace().Str("node", ast.Print(node)).Msg("subtree promoted to fast path")
	} else {
		fp.MarkNotCompilable()
	}
}

func (w *walker) evalNode(node ast.Node) (runtime.Value, error) {
	switch n := node.(type) {
	case *ast.NilNode:
		n.FastPath().MarkCandidate()
		return runtime.Null, nil
	case *ast.BoolNode:
		n.FastPath().MarkCandidate()
		return runtime.ValueOf(n.Value), nil
	case *ast.IntegerNode:
		n.FastPath().MarkCandidate()
		return runtime.ValueOf(n.Value), nil
	case *ast.FloatNode:
		n.FastPath().MarkCandidate()
		return runtime.ValueOf(n.Value), nil
	case *ast.StringNode:
		n.FastPath().MarkCandidate()
		return runtime.ValueOf(n.Value), nil
	case *ast.IdentifierNode:
		n.FastPath().MarkCandidate()
		return runtime.ValueOf(n.Value), nil

	case *ast.VariableNode:
		n.FastPath().MarkCandidate()
		switch n.Name {
		case "this":
			return w.s.ScopeRoot(), nil
		case "root":
			return w.s.EvalRoot(), nil
		}
		if v, ok := w.s.Variable(n.Name); ok {
			return v, nil
		}
		return runtime.Null, nil

	case *ast.PropertyNode:
		return w.evalProperty(n)
	case *ast.IndexerNode:
		return w.evalIndexer(n)
	case *ast.MethodNode:
		return w.evalMethod(n)
	case *ast.FunctionNode:
		return w.evalFunction(n)
	case *ast.ConstructorNode:
		return w.evalConstructor(n)
	case *ast.BeanRefNode:
		return w.resolveBean(n)

	case *ast.InlineListNode:
		items := make([]any, len(n.Items))
		for i, item := range n.Items {
			v, err := w.eval(item)
			if err != nil {
				return runtime.Null, err
			}
			items[i] = v.Val
		}
		n.FastPath().MarkCandidate()
		return runtime.ValueOf(items), nil

	case *ast.UnaryNode:
		v, err := w.eval(n.Operand)
		if err != nil {
			return runtime.Null, err
		}
		out, err := runtime.ApplyUnary(n.Op, v)
		if err != nil {
			return runtime.Null, err
		}
		n.FastPath().MarkCandidate()
		return out, nil

	case *ast.BinaryNode:
		left, err := w.eval(n.Left)
		if err != nil {
			return runtime.Null, err
		}
		out, err := runtime.ApplyBinary(w.s.Context(), n.Op, left, func() (runtime.Value, error) {
			return w.eval(n.Right)
		})
		if err != nil {
			return runtime.Null, err
		}
		n.FastPath().MarkCandidate()
		return out, nil

	case *ast.TernaryNode:
		cond, err := w.eval(n.Cond)
		if err != nil {
			return runtime.Null, err
		}
		b, err := runtime.BoolOperand(cond, "ternary condition")
		if err != nil {
			return runtime.Null, err
		}
		n.FastPath().MarkCandidate()
		if b {
			return w.eval(n.Then)
		}
		return w.eval(n.Else)

	case *ast.ElvisNode:
		v, err := w.eval(n.Target)
		if err != nil {
			return runtime.Null, err
		}
		n.FastPath().MarkCandidate()
		if absent(v) {
			return w.eval(n.Default)
		}
		return v, nil

	case *ast.SelectionNode:
		return w.evalSelection(n)
	case *ast.ProjectionNode:
		return w.evalProjection(n)

	case *ast.AssignNode:
		return w.evalAssign(n)
	case *ast.IncDecNode:
		return w.evalIncDec(n)
	}
	return runtime.Null, file.NewError(file.GenericError, node.Location(),
		"unsupported node %T", node)
}

// absent is the elvis emptiness test: nil or an empty optional wrapper.
func absent(v runtime.Value) bool {
	if v.IsNil() {
		return true
	}
	if opt, ok := v.Val.(runtime.Optional); ok {
		return !opt.IsPresent()
	}
	return false
}

// evalTarget evaluates the target of a navigation node; a nil node means
// the active context object. With auto-grow enabled, a null result from an
// lvalue-capable target grows into an empty container written back through
// the just-used accessor.
func (w *walker) evalTarget(node ast.Node) (runtime.Value, error) {
	if node == nil {
		return w.s.Root(), nil
	}
	if w.s.Context().AutoGrowNull() && growable(node) {
		ref, err := w.ref(node)
		if err != nil {
			return runtime.Null, w.located(err, node)
		}
		v, err := ref.Get()
		if err != nil {
			return runtime.Null, w.located(err, node)
		}
		if v.IsNil() && ref.Writable() {
			if grown := growFor(ref.SlotShape()); !grown.IsNil() {
				if err := ref.Set(grown); err != nil {
					return runtime.Null, w.located(err, node)
				}
				return grown, nil
			}
		}
		return v, nil
	}
	return w.eval(node)
}

// growable reports whether a navigation target can be grown in place:
// an lvalue node that is not one of the read-only variables.
func growable(node ast.Node) bool {
	switch n := node.(type) {
	case *ast.PropertyNode, *ast.IndexerNode:
		return true
	case *ast.VariableNode:
		return n.Name != "this" && n.Name != "root"
	}
	return false
}

// growFor instantiates an empty value for a slot of the given shape;
// shapes that cannot be grown yield Null silently.
func growFor(shape runtime.Shape) runtime.Value {
	switch shape.Kind() {
	case reflect.Map:
		return runtime.ValueOf(reflect.MakeMap(shape.Type).Interface())
	case reflect.Slice:
		return runtime.ValueOf(reflect.MakeSlice(shape.Type, 0, 0).Interface())
	case reflect.Ptr:
		if shape.Type.Elem().Kind() == reflect.Struct {
			return runtime.ValueOf(reflect.New(shape.Type.Elem()).Interface())
		}
	}
	return runtime.Null
}

func (w *walker) evalProperty(n *ast.PropertyNode) (runtime.Value, error) {
	target, err := w.evalTarget(n.Target)
	if err != nil {
		return runtime.Null, err
	}
	return w.readPropertyOn(n, target)
}

// readPropertyOn applies the null-safety and optional-unwrapping rules to
// an already-evaluated target before entering the cached read path. Both
// the plain read and the write-back handle go through here.
func (w *walker) readPropertyOn(n *ast.PropertyNode, target runtime.Value) (runtime.Value, error) {
	if target.IsNil() {
		if n.NullSafe {
			return runtime.Null, nil
		}
		return runtime.Null, file.NewError(file.PropertyReadOnNull, n.Location(),
			"property or field %q cannot be read on a null target", n.Name)
	}
	if opt, ok := target.Val.(runtime.Optional); ok {
		if !opt.IsPresent() {
			if n.NullSafe {
				return runtime.Null, nil
			}
			return runtime.Null, file.NewError(file.PropertyReadOnNull, n.Location(),
				"property or field %q cannot be read on an empty target", n.Name)
		}
		if n.NullSafe {
			v, err := w.readProperty(n, runtime.ValueOf(opt.Get()))
			if err == nil || !file.Is(err, file.PropertyNotReadable) {
				return v, err
			}
			// Resolution failed against the present value; fall back to
			// the wrapper itself.
		}
	}
	return w.readProperty(n, target)
}

// readProperty is the cached, self-healing read path: an exact-key cache
// hit bypasses the search; a failure that is not a genuine invocation
// error invalidates the slot and re-resolves exactly once.
func (w *walker) readProperty(n *ast.PropertyNode, target runtime.Value) (runtime.Value, error) {
	ctx := w.s.Context()
	if ce := n.CachedReader(); ce.Match(target.Val) {
		v, err := ce.Accessor.Read(ctx, target.Val, n.Name)
		if err == nil {
			return v, nil
		}
		if file.Is(err, file.InvocationError) {
			return runtime.Null, err
		}
		n.StoreReader(nil)
		n.FastPath().Demote()
		debug.Logger().Trace().Str("property", n.Name).Msg("stale read accessor invalidated")
	}
	acc, ferr := runtime.ResolveRead(ctx, target.Val, n.Name)
	if ferr != nil {
		return runtime.Null, ferr
	}
	v, err := acc.Read(ctx, target.Val, n.Name)
	if err != nil {
		return runtime.Null, err
	}
	n.StoreReader(&runtime.CachedAccessor{Accessor: acc, Key: runtime.ShapeOf(target.Val)})
	if ca, ok := acc.(runtime.CompilableAccessor); ok {
		if _, ok := ca.CompiledRead(reflect.TypeOf(target.Val), n.Name); ok {
			n.FastPath().MarkCandidate()
			return v, nil
		}
	}
	n.FastPath().Demote()
	return v, nil
}

// writeProperty mirrors readProperty for the write accessor slot.
func (w *walker) writeProperty(n *ast.PropertyNode, target runtime.Value, v runtime.Value) error {
	ctx := w.s.Context()
	if ce := n.CachedWriter(); ce.Match(target.Val) {
		err := ce.Accessor.Write(ctx, target.Val, n.Name, v)
		if err == nil {
			return nil
		}
		if file.Is(err, file.InvocationError) {
			return err
		}
		n.StoreWriter(nil)
		debug.Logger().Trace().Str("property", n.Name).Msg("stale write accessor invalidated")
	}
	acc, ferr := runtime.ResolveWrite(ctx, target.Val, n.Name)
	if ferr != nil {
		return ferr
	}
	if err := acc.Write(ctx, target.Val, n.Name, v); err != nil {
		return err
	}
	n.StoreWriter(&runtime.CachedAccessor{Accessor: acc, Key: runtime.ShapeOf(target.Val)})
	return nil
}

func (w *walker) evalIndexer(n *ast.IndexerNode) (runtime.Value, error) {
	target, err := w.evalTarget(n.Target)
	if err != nil {
		return runtime.Null, err
	}
	if target.IsNil() {
		if n.NullSafe {
			return runtime.Null, nil
		}
		return runtime.Null, file.NewError(file.PropertyReadOnNull, n.Location(),
			"indexer cannot be applied to a null target")
	}
	if opt, ok := target.Val.(runtime.Optional); ok && n.NullSafe {
		if !opt.IsPresent() {
			return runtime.Null, nil
		}
		target = runtime.ValueOf(opt.Get())
	}
	index, err := w.eval(n.Index)
	if err != nil {
		return runtime.Null, err
	}
	v, err := runtime.IndexValue(w.s.Context(), target.Val, index.Val)
	if err != nil {
		return runtime.Null, err
	}
	n.FastPath().MarkCandidate()
	return v, nil
}

func (w *walker) evalMethod(n *ast.MethodNode) (runtime.Value, error) {
	target, err := w.evalTarget(n.Target)
	if err != nil {
		return runtime.Null, err
	}
	if target.IsNil() || isEmptyOptional(target.Val) {
		if n.NullSafe {
			// Arguments are fully skipped on the null-safe short circuit.
			return runtime.Null, nil
		}
		// Arguments are still evaluated so the error reports the call as
		// the user wrote it.
		if _, err := w.evalArgs(n.Args); err != nil {
			return runtime.Null, err
		}
		return runtime.Null, file.NewError(file.CallOnNull, n.Location(),
			"method %q cannot be called on a null target", n.Name)
	}
	args, err := w.evalArgs(n.Args)
	if err != nil {
		return runtime.Null, err
	}
	if opt, ok := target.Val.(runtime.Optional); ok && n.NullSafe {
		v, err := w.callMethod(n, runtime.ValueOf(opt.Get()), args)
		if err == nil || !file.Is(err, file.MethodNotFound) {
			return v, err
		}
		// Fall back to the wrapper itself.
	}
	return w.callMethod(n, target, args)
}

func isEmptyOptional(v any) bool {
	opt, ok := v.(runtime.Optional)
	return ok && !opt.IsPresent()
}

func (w *walker) evalArgs(nodes []ast.Node) ([]runtime.Value, error) {
	args := make([]runtime.Value, len(nodes))
	for i, a := range nodes {
		v, err := w.eval(a)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// callMethod is the executor counterpart of readProperty, keyed by target
// shape plus argument shapes.
func (w *walker) callMethod(n *ast.MethodNode, target runtime.Value, args []runtime.Value) (runtime.Value, error) {
	ctx := w.s.Context()
	shapes := runtime.ShapesOf(args)
	if ce := n.CachedExecutor(); ce.Match(target.Val, shapes) {
		v, err := ce.Executor.Execute(ctx, target.Val, args)
		if err == nil {
			return v, nil
		}
		if file.Is(err, file.InvocationError) {
			return runtime.Null, err
		}
		n.StoreExecutor(nil)
		n.FastPath().Demote()
		debug.Logger().Trace().Str("method", n.Name).Msg("stale method executor invalidated")
	}
	exec, ferr := runtime.ResolveMethod(ctx, target.Val, n.Name, shapes)
	if ferr != nil {
		return runtime.Null, ferr
	}
	v, err := exec.Execute(ctx, target.Val, args)
	if err != nil {
		return runtime.Null, err
	}
	n.StoreExecutor(&runtime.CachedExecutor{
		Executor: exec,
		Key:      runtime.ShapeOf(target.Val),
		Args:     shapes,
	})
	if ce, ok := exec.(runtime.CompilableExecutor); ok && ce.Compilable() {
		n.FastPath().MarkCandidate()
	} else {
		n.FastPath().Demote()
	}
	return v, nil
}

func (w *walker) evalFunction(n *ast.FunctionNode) (runtime.Value, error) {
	ctx := w.s.Context()
	args, err := w.evalArgs(n.Args)
	if err != nil {
		return runtime.Null, err
	}

	w.s.EnterScope(nil)
	defer w.s.ExitScope()

	if fn, ok := ctx.Function(n.Name); ok {
		if want, declared := fn.Arity(); declared && want != len(args) {
			return runtime.Null, file.NewError(file.ArgumentCount, n.Location(),
				"function %q expects %d arguments, got %d", n.Name, want, len(args))
		}
		return callFunction(fn, args)
	}

	// A variable holding a Go function is callable too.
	if v, ok := w.s.Variable(n.Name); ok && !v.IsNil() {
		fv := reflect.ValueOf(v.Val)
		if fv.Kind() == reflect.Func {
			return callReflectFunc(ctx, fv, args)
		}
	}
	return runtime.Null, file.NewError(file.MethodNotFound, n.Location(),
		"function %q is not registered", n.Name)
}

func callFunction(fn *builtin.Function, args []runtime.Value) (v runtime.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if !ok {
				cause = file.NewError(file.GenericError, file.Location{}, "%v", r)
			}
			err = file.NewError(file.InvocationError, file.Location{}, "%v", cause).Wrap(cause)
		}
	}()
	raw := make([]any, len(args))
	for i, a := range args {
		raw[i] = a.Val
	}
	if fn.Fast != nil && len(raw) == 1 {
		return runtime.ValueOf(fn.Fast(raw[0])), nil
	}
	if fn.Func == nil {
		return runtime.Null, file.NewError(file.ArgumentCount, file.Location{},
			"function %q expects 1 argument, got %d", fn.Name, len(raw))
	}
	out, err := fn.Func(raw...)
	if err != nil {
		return runtime.Null, file.NewError(file.InvocationError, file.Location{}, "%v", err).Wrap(err)
	}
	return runtime.ValueOf(out), nil
}

func callReflectFunc(ctx runtime.Context, fv reflect.Value, args []runtime.Value) (runtime.Value, error) {
	exec := runtime.NewFuncConstructorResolver()
	exec.Register("fn", fv.Interface())
	ce, err := exec.Resolve(ctx, "fn", runtime.ShapesOf(args))
	if err != nil {
		return runtime.Null, err
	}
	return ce.Construct(ctx, args)
}

func (w *walker) evalConstructor(n *ast.ConstructorNode) (runtime.Value, error) {
	ctx := w.s.Context()
	args, err := w.evalArgs(n.Args)
	if err != nil {
		return runtime.Null, err
	}
	shapes := runtime.ShapesOf(args)
	if ce := n.CachedConstructor(); ce.Match(n.TypeName, shapes) {
		v, err := ce.Executor.Construct(ctx, args)
		if err == nil {
			return v, nil
		}
		if file.Is(err, file.InvocationError) {
			return runtime.Null, err
		}
		n.StoreConstructor(nil)
	}
	exec, ferr := runtime.ResolveConstructor(ctx, n.TypeName, shapes)
	if ferr != nil {
		return runtime.Null, ferr
	}
	v, err := exec.Construct(ctx, args)
	if err != nil {
		return runtime.Null, err
	}
	n.StoreConstructor(&runtime.CachedConstructor{
		Executor: exec,
		TypeName: n.TypeName,
		Args:     shapes,
	})
	return v, nil
}

func (w *walker) resolveBean(n *ast.BeanRefNode) (runtime.Value, error) {
	ctx := w.s.Context()
	resolver := ctx.BeanResolver()
	if resolver == nil {
		return runtime.Null, file.NewError(file.BeanResolutionFailed, n.Location(),
			"no bean resolver registered to resolve %q", n.Name)
	}
	var (
		v   any
		err error
	)
	if n.Factory {
		pr, ok := resolver.(runtime.ProviderResolver)
		if !ok {
			return runtime.Null, file.NewError(file.BeanResolutionFailed, n.Location(),
				"bean resolver cannot resolve the provider of %q", n.Name)
		}
		v, err = pr.ResolveProvider(ctx, n.Name)
	} else {
		v, err = resolver.Resolve(ctx, n.Name)
	}
	if err != nil {
		return runtime.Null, file.NewError(file.BeanResolutionFailed, n.Location(),
			"cannot resolve %q: %v", n.Name, err).Wrap(err)
	}
	return runtime.ValueOf(v), nil
}

func (w *walker) evalAssign(n *ast.AssignNode) (runtime.Value, error) {
	ctx := w.s.Context()
	if !ctx.AssignmentEnabled() {
		return runtime.Null, file.NewError(file.NotAssignable, n.Location(),
			"cannot assign to %q: assignment is not enabled on this context", ast.Print(n.Left))
	}
	if lhs, ok := n.Left.(*ast.VariableNode); ok {
		if lhs.Name == "this" || lhs.Name == "root" {
			return runtime.Null, file.NewError(file.NotAssignable, n.Location(),
				"#%s is read-only", lhs.Name)
		}
		if _, ok := w.s.Lookup(lhs.Name); ok {
			v, err := w.eval(n.Right)
			if err != nil {
				return runtime.Null, err
			}
			w.s.SetLocal(lhs.Name, v)
			return v, nil
		}
		return ctx.Assign(lhs.Name, func() (runtime.Value, error) {
			return w.eval(n.Right)
		})
	}
	ref, err := w.ref(n.Left)
	if err != nil {
		return runtime.Null, err
	}
	if !ref.Writable() {
		return runtime.Null, file.NewError(file.NotAssignable, n.Location(),
			"expression %q is not assignable", ast.Print(n.Left))
	}
	v, err := w.eval(n.Right)
	if err != nil {
		return runtime.Null, err
	}
	if err := ref.Set(v); err != nil {
		return runtime.Null, err
	}
	return v, nil
}

// evalIncDec obtains the operand's write-back handle exactly once, steps
// the value through the shared promotion ladder (or the operator
// overloader), writes back through the same handle and returns the old or
// new value per postfix/prefix form.
func (w *walker) evalIncDec(n *ast.IncDecNode) (runtime.Value, error) {
	failKind := file.NotIncrementable
	delta := 1
	if n.Op == "--" {
		failKind = file.NotDecrementable
		delta = -1
	}
	ref, err := w.ref(n.Operand)
	if err != nil {
		if file.Is(err, file.NotAssignable) {
			return runtime.Null, file.NewError(failKind, n.Location(),
				"expression %q cannot be stepped", ast.Print(n.Operand))
		}
		return runtime.Null, err
	}
	old, err := ref.Get()
	if err != nil {
		return runtime.Null, err
	}

	var stepped any
	switch {
	case runtime.OnLadder(old.Val):
		stepped, err = runtime.Increment(old.Val, delta)
	default:
		ctx := w.s.Context()
		op := "+"
		if delta < 0 {
			op = "-"
		}
		if ov := ctx.Overloader(); ov != nil && ov.Overloads(op, old.Val, 1) {
			stepped, err = ov.Apply(op, old.Val, 1)
		} else {
			err = file.NewError(failKind, n.Location(),
				"value of type %s cannot be stepped", runtime.ShapeOf(old.Val))
		}
	}
	if err != nil {
		return runtime.Null, err
	}
	newVal := runtime.ValueOf(stepped)
	if err := ref.Set(newVal); err != nil {
		return runtime.Null, err
	}
	if n.Postfix {
		return old, nil
	}
	return newVal, nil
}
