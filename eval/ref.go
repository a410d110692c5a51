package eval

import (
	"reflect"

	"github.com/xpel-lang/xpel/ast"
	"github.com/xpel-lang/xpel/file"
	"github.com/xpel-lang/xpel/runtime"
)

// ref builds the write-back handle for an lvalue-capable node. The handle
// captures the already-evaluated target, so a compound operation that both
// reads and writes the same slot evaluates its sub-expressions exactly
// once.
func (w *walker) ref(node ast.Node) (runtime.Ref, error) {
	switch n := node.(type) {
	case *ast.PropertyNode:
		target, err := w.evalTarget(n.Target)
		if err != nil {
			return nil, err
		}
		if target.IsNil() {
			if n.NullSafe {
				return nullRef{}, nil
			}
			return nil, file.NewError(file.PropertyWriteOnNull, n.Location(),
				"property or field %q cannot be accessed on a null target", n.Name)
		}
		return &propertyRef{w: w, node: n, target: target}, nil
	case *ast.IndexerNode:
		target, err := w.evalTarget(n.Target)
		if err != nil {
			return nil, err
		}
		if target.IsNil() {
			if n.NullSafe {
				return nullRef{}, nil
			}
			return nil, file.NewError(file.PropertyWriteOnNull, n.Location(),
				"indexer cannot be applied to a null target")
		}
		index, err := w.eval(n.Index)
		if err != nil {
			return nil, err
		}
		return &indexerRef{w: w, target: target, index: index}, nil
	case *ast.VariableNode:
		if n.Name == "this" || n.Name == "root" {
			return nil, file.NewError(file.NotAssignable, n.Location(),
				"#%s is read-only", n.Name)
		}
		return &variableRef{s: w.s, name: n.Name}, nil
	case *ast.BeanRefNode:
		return &beanRef{w: w, node: n}, nil
	}
	return nil, file.NewError(file.NotAssignable, node.Location(),
		"expression %q is not assignable", ast.Print(node))
}

// nullRef is the handle of a null-safe access on a null target: reads
// yield Null and writes are no-ops.
type nullRef struct{}

func (nullRef) Get() (runtime.Value, error) { return runtime.Null, nil }
func (nullRef) Set(runtime.Value) error     { return nil }
func (nullRef) Writable() bool              { return false }
func (nullRef) SlotShape() runtime.Shape    { return runtime.Shape{Nil: true} }

type propertyRef struct {
	w      *walker
	node   *ast.PropertyNode
	target runtime.Value
}

func (r *propertyRef) Get() (runtime.Value, error) {
	return r.w.readPropertyOn(r.node, r.target)
}

func (r *propertyRef) Set(v runtime.Value) error {
	return r.w.writeProperty(r.node, r.target, v)
}

func (r *propertyRef) Writable() bool {
	_, err := runtime.ResolveWrite(r.w.s.Context(), r.target.Val, r.node.Name)
	return err == nil
}

func (r *propertyRef) SlotShape() runtime.Shape {
	return runtime.SlotShape(r.target.Val, r.node.Name)
}

type indexerRef struct {
	w      *walker
	target runtime.Value
	index  runtime.Value
}

func (r *indexerRef) Get() (runtime.Value, error) {
	return runtime.IndexValue(r.w.s.Context(), r.target.Val, r.index.Val)
}

func (r *indexerRef) Set(v runtime.Value) error {
	return runtime.SetIndexValue(r.w.s.Context(), r.target.Val, r.index.Val, v)
}

func (r *indexerRef) Writable() bool {
	switch r.target.Shape.Deref().Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

func (r *indexerRef) SlotShape() runtime.Shape {
	return r.target.Shape.Deref().Elem()
}

type variableRef struct {
	s    *State
	name string
}

func (r *variableRef) Get() (runtime.Value, error) {
	v, _ := r.s.Variable(r.name)
	return v, nil
}

func (r *variableRef) Set(v runtime.Value) error {
	if r.s.SetLocal(r.name, v) {
		return nil
	}
	r.s.Context().SetVariable(r.name, v)
	return nil
}

func (r *variableRef) Writable() bool           { return true }
func (r *variableRef) SlotShape() runtime.Shape { return runtime.Shape{} }

type beanRef struct {
	w    *walker
	node *ast.BeanRefNode
}

func (r *beanRef) Get() (runtime.Value, error) {
	return r.w.resolveBean(r.node)
}

func (r *beanRef) Set(runtime.Value) error {
	return file.NewError(file.NotAssignable, r.node.Location(),
		"external reference %q is not assignable", ast.Print(r.node))
}

func (r *beanRef) Writable() bool           { return false }
func (r *beanRef) SlotShape() runtime.Shape { return runtime.Shape{} }
