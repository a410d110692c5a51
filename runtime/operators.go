package runtime

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/xpel-lang/xpel/file"
)

// ApplyBinary applies a binary operator to an evaluated left operand and a
// lazily evaluated right operand. Both execution tiers share this one
// implementation, which is what makes compiled and interpreted results
// indistinguishable.
func ApplyBinary(ctx Context, op string, left Value, right func() (Value, error)) (Value, error) {
	switch op {
	case "&&":
		lb, err := BoolOperand(left, "left operand of \"&&\"")
		if err != nil {
			return Null, err
		}
		if !lb {
			return ValueOf(false), nil
		}
		rv, err := right()
		if err != nil {
			return Null, err
		}
		rb, err := BoolOperand(rv, "right operand of \"&&\"")
		if err != nil {
			return Null, err
		}
		return ValueOf(rb), nil
	case "||":
		lb, err := BoolOperand(left, "left operand of \"||\"")
		if err != nil {
			return Null, err
		}
		if lb {
			return ValueOf(true), nil
		}
		rv, err := right()
		if err != nil {
			return Null, err
		}
		rb, err := BoolOperand(rv, "right operand of \"||\"")
		if err != nil {
			return Null, err
		}
		return ValueOf(rb), nil
	}

	rv, err := right()
	if err != nil {
		return Null, err
	}
	a, b := left.Val, rv.Val

	switch op {
	case "==":
		return ValueOf(Equal(a, b)), nil
	case "!=":
		return ValueOf(!Equal(a, b)), nil
	case "<", "<=", ">", ">=":
		c, err := CompareValues(ctx, a, b)
		if err != nil {
			return Null, err
		}
		switch op {
		case "<":
			return ValueOf(c < 0), nil
		case "<=":
			return ValueOf(c <= 0), nil
		case ">":
			return ValueOf(c > 0), nil
		default:
			return ValueOf(c >= 0), nil
		}
	case "matches":
		if IsNil(a) || IsNil(b) {
			return ValueOf(false), nil
		}
		s, ok1 := a.(string)
		pattern, ok2 := b.(string)
		if !ok1 || !ok2 {
			return Null, file.NewError(file.TypeConversionError, file.Location{},
				"operator \"matches\" requires two strings, got %s and %s", ShapeOf(a), ShapeOf(b))
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Null, file.NewError(file.TypeConversionError, file.Location{},
				"invalid pattern %q: %v", pattern, err)
		}
		return ValueOf(re.MatchString(s)), nil
	case "instanceof":
		t, ok := b.(reflect.Type)
		if !ok {
			return Null, file.NewError(file.InstanceofNeedsType, file.Location{},
				"right operand of \"instanceof\" must be a type, got %s", ShapeOf(b))
		}
		if IsNil(a) {
			return ValueOf(false), nil
		}
		at := reflect.TypeOf(a)
		return ValueOf(at == t || at.AssignableTo(t)), nil
	case "+", "-", "*", "/", "%", "^":
		if OnLadder(a) && OnLadder(b) {
			v, err := Arith(op, a, b)
			if err != nil {
				return Null, err
			}
			return ValueOf(v), nil
		}
		if op == "+" {
			if as, ok := a.(string); ok {
				if bs, ok := b.(string); ok {
					return ValueOf(as + bs), nil
				}
			}
		}
		// Operands outside the ladder's membership set (named numeric
		// subtypes included) go to the overload service first; float64
		// promotion would erase their type.
		if ov := overloaderOf(ctx); ov != nil && ov.Overloads(op, a, b) {
			v, err := ov.Apply(op, a, b)
			if err != nil {
				return Null, err
			}
			return ValueOf(v), nil
		}
		if IsNumber(a) && IsNumber(b) {
			v, err := Arith(op, a, b)
			if err != nil {
				return Null, err
			}
			return ValueOf(v), nil
		}
		return Null, file.NewError(file.TypeConversionError, file.Location{},
			"operator %q cannot be applied to %s and %s", op, ShapeOf(a), ShapeOf(b))
	}
	return Null, opUndefined(op)
}

func overloaderOf(ctx Context) OperatorOverloader {
	if ctx == nil {
		return nil
	}
	return ctx.Overloader()
}

// ApplyUnary applies !, - or unary +.
func ApplyUnary(op string, v Value) (Value, error) {
	switch op {
	case "!":
		b, err := BoolOperand(v, "operand of \"!\"")
		if err != nil {
			return Null, err
		}
		return ValueOf(!b), nil
	case "-":
		n, err := Negate(v.Val)
		if err != nil {
			return Null, err
		}
		return ValueOf(n), nil
	case "+":
		if !IsNumber(v.Val) {
			return Null, file.NewError(file.TypeConversionError, file.Location{},
				"operator \"+\" cannot be applied to %s", v.Shape)
		}
		return v, nil
	}
	return Null, opUndefined(op)
}

// CompareValues orders two values: numbers under the promotion ladder,
// strings lexicographically, then the context's comparator service.
func CompareValues(ctx Context, a, b any) (int, error) {
	if IsNumber(a) && IsNumber(b) {
		return Compare(a, b)
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs), nil
		}
	}
	if ctx != nil {
		if cmp := ctx.Comparator(); cmp != nil && cmp.CanCompare(a, b) {
			return cmp.Compare(a, b)
		}
	}
	return 0, file.NewError(file.NoOrdering, file.Location{},
		"no ordering defined between %s and %s", ShapeOf(a), ShapeOf(b))
}

// BoolOperand requires v to be a boolean; what names the operand for the
// error message.
func BoolOperand(v Value, what string) (bool, error) {
	if b, ok := v.Val.(bool); ok {
		return b, nil
	}
	return false, file.NewError(file.TypeConversionError, file.Location{},
		"%s must be boolean, got %s", what, v.Shape)
}
