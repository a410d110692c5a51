package runtime

import (
	"math"
	"math/big"
	"reflect"

	"github.com/xpel-lang/xpel/file"
)

// The shared widening ladder, most specific first:
//
//	*big.Float > float64 > float32 > *big.Int > int64 > int32 > int16 > int8
//
// Comparison, arithmetic and increment/decrement all promote both operands
// to the first tier either of them belongs to, checked by type membership.
// Go's int and the unsigned widths normalize into the nearest signed tier
// that holds them; unknown numeric subtypes fall back to float64.
type tier int

const (
	tierNone tier = iota
	tierInt8
	tierInt16
	tierInt32
	tierInt64
	tierBigInt
	tierFloat32
	tierFloat64
	tierBigFloat
)

// exactTier places v by concrete type membership; named numeric subtypes
// are not members.
func exactTier(v any) tier {
	switch n := v.(type) {
	case *big.Float:
		return tierBigFloat
	case float64:
		return tierFloat64
	case float32:
		return tierFloat32
	case *big.Int:
		return tierBigInt
	case uint64:
		if n > math.MaxInt64 {
			return tierBigInt
		}
		return tierInt64
	case uint:
		if uint64(n) > math.MaxInt64 {
			return tierBigInt
		}
		return tierInt64
	case int64, int, uint32:
		return tierInt64
	case int32, uint16:
		return tierInt32
	case int16, uint8:
		return tierInt16
	case int8:
		return tierInt8
	}
	return tierNone
}

func tierOf(v any) tier {
	if t := exactTier(v); t != tierNone {
		return t
	}
	// Named types with a numeric kind compare as float64.
	if v != nil {
		switch reflect.ValueOf(v).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return tierFloat64
		}
	}
	return tierNone
}

// IsNumber reports whether v participates in the promotion ladder.
func IsNumber(v any) bool {
	return tierOf(v) != tierNone
}

// OnLadder reports whether v's concrete type is a ladder member. Named
// numeric subtypes such as time.Duration are excluded: they compare under
// the float64 fallback but their arithmetic belongs to the operator
// overload service.
func OnLadder(v any) bool {
	return exactTier(v) != tierNone
}

func promoted(a, b any) tier {
	ta, tb := tierOf(a), tierOf(b)
	if ta == tierNone || tb == tierNone {
		return tierNone
	}
	if tb > ta {
		return tb
	}
	return ta
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case uint:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case *big.Int:
		return n.Int64()
	case float32:
		return int64(n)
	case float64:
		return int64(n)
	}
	return int64(reflect.ValueOf(v).Convert(reflect.TypeOf(int64(0))).Int())
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case *big.Float:
		f, _ := n.Float64()
		return f
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f
	}
	r := reflect.ValueOf(v)
	switch r.Kind() {
	case reflect.Float32, reflect.Float64:
		return r.Float()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(r.Uint())
	}
	return float64(r.Int())
}

func toBigInt(v any) *big.Int {
	switch n := v.(type) {
	case *big.Int:
		return n
	case uint64:
		return new(big.Int).SetUint64(n)
	case uint:
		return new(big.Int).SetUint64(uint64(n))
	}
	return big.NewInt(toInt64(v))
}

func toBigFloat(v any) *big.Float {
	switch n := v.(type) {
	case *big.Float:
		return n
	case *big.Int:
		return new(big.Float).SetInt(n)
	}
	if tierOf(v) <= tierBigInt {
		return new(big.Float).SetInt(toBigInt(v))
	}
	return big.NewFloat(toFloat64(v))
}

// Compare orders two numeric values under the shared ladder. Both operands
// are coerced to the governing tier before comparison.
func Compare(a, b any) (int, error) {
	switch promoted(a, b) {
	case tierBigFloat:
		return toBigFloat(a).Cmp(toBigFloat(b)), nil
	case tierFloat64, tierFloat32:
		x, y := toFloat64(a), toFloat64(b)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	case tierBigInt:
		return toBigInt(a).Cmp(toBigInt(b)), nil
	case tierInt64, tierInt32, tierInt16, tierInt8:
		x, y := toInt64(a), toInt64(b)
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	}
	return 0, file.NewError(file.NoOrdering, file.Location{},
		"no ordering defined between %s and %s", ShapeOf(a), ShapeOf(b))
}

// NumericEqual reports a==b under the ladder; callers must have checked
// IsNumber on both sides.
func NumericEqual(a, b any) bool {
	c, err := Compare(a, b)
	return err == nil && c == 0
}

// Arith applies a binary arithmetic operator under the ladder. String
// concatenation for "+" is handled by the caller; this is numbers only.
func Arith(op string, a, b any) (any, error) {
	t := promoted(a, b)
	if t == tierNone {
		return nil, file.NewError(file.TypeConversionError, file.Location{},
			"operator %q cannot be applied to %s and %s", op, ShapeOf(a), ShapeOf(b))
	}
	switch t {
	case tierBigFloat:
		return bigFloatArith(op, toBigFloat(a), toBigFloat(b))
	case tierFloat64, tierFloat32:
		v, err := floatArith(op, toFloat64(a), toFloat64(b))
		if err != nil {
			return nil, err
		}
		if t == tierFloat32 {
			return float32(v), nil
		}
		return v, nil
	case tierBigInt:
		return bigIntArith(op, toBigInt(a), toBigInt(b))
	default:
		v, err := intArith(op, toInt64(a), toInt64(b))
		if err != nil {
			return nil, err
		}
		switch t {
		case tierInt32:
			return int32(v), nil
		case tierInt16:
			return int16(v), nil
		case tierInt8:
			return int8(v), nil
		}
		return narrowInt(a, b, v), nil
	}
}

// narrowInt keeps plain int results as int when both inputs were int, so
// literal arithmetic stays in the host's natural integer type.
func narrowInt(a, b any, v int64) any {
	if _, ok := a.(int); ok {
		if _, ok := b.(int); ok {
			return int(v)
		}
	}
	return v
}

func intArith(op string, a, b int64) (int64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		if b == 0 {
			return 0, file.NewError(file.GenericError, file.Location{}, "division by zero")
		}
		return a / b, nil
	case "%":
		if b == 0 {
			return 0, file.NewError(file.GenericError, file.Location{}, "division by zero")
		}
		return a % b, nil
	case "^":
		return int64(math.Pow(float64(a), float64(b))), nil
	}
	return 0, opUndefined(op)
}

func floatArith(op string, a, b float64) (float64, error) {
	switch op {
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	case "/":
		return a / b, nil
	case "%":
		return math.Mod(a, b), nil
	case "^":
		return math.Pow(a, b), nil
	}
	return 0, opUndefined(op)
}

func bigIntArith(op string, a, b *big.Int) (any, error) {
	switch op {
	case "+":
		return new(big.Int).Add(a, b), nil
	case "-":
		return new(big.Int).Sub(a, b), nil
	case "*":
		return new(big.Int).Mul(a, b), nil
	case "/":
		if b.Sign() == 0 {
			return nil, file.NewError(file.GenericError, file.Location{}, "division by zero")
		}
		return new(big.Int).Quo(a, b), nil
	case "%":
		if b.Sign() == 0 {
			return nil, file.NewError(file.GenericError, file.Location{}, "division by zero")
		}
		return new(big.Int).Rem(a, b), nil
	case "^":
		if b.Sign() < 0 {
			return nil, file.NewError(file.GenericError, file.Location{}, "negative exponent")
		}
		return new(big.Int).Exp(a, b, nil), nil
	}
	return nil, opUndefined(op)
}

func bigFloatArith(op string, a, b *big.Float) (any, error) {
	switch op {
	case "+":
		return new(big.Float).Add(a, b), nil
	case "-":
		return new(big.Float).Sub(a, b), nil
	case "*":
		return new(big.Float).Mul(a, b), nil
	case "/":
		if b.Sign() == 0 {
			return nil, file.NewError(file.GenericError, file.Location{}, "division by zero")
		}
		return new(big.Float).Quo(a, b), nil
	case "%", "^":
		return nil, file.NewError(file.TypeConversionError, file.Location{},
			"operator %q is not defined for arbitrary-precision decimals", op)
	}
	return nil, opUndefined(op)
}

func opUndefined(op string) error {
	return file.NewError(file.GenericError, file.Location{}, "unknown operator %q", op)
}

// Negate returns -v in v's own tier.
func Negate(v any) (any, error) {
	if !IsNumber(v) {
		return nil, file.NewError(file.TypeConversionError, file.Location{},
			"operator \"-\" cannot be applied to %s", ShapeOf(v))
	}
	return Arith("-", zeroOf(v), v)
}

func zeroOf(v any) any {
	switch v.(type) {
	case *big.Float:
		return new(big.Float)
	case *big.Int:
		return new(big.Int)
	case float64:
		return float64(0)
	case float32:
		return float32(0)
	case int64:
		return int64(0)
	case int32:
		return int32(0)
	case int16:
		return int16(0)
	case int8:
		return int8(0)
	}
	return 0
}

// Increment returns v+delta in v's own tier; delta is +1 or -1.
func Increment(v any, delta int) (any, error) {
	if !OnLadder(v) {
		kind := file.NotIncrementable
		if delta < 0 {
			kind = file.NotDecrementable
		}
		return nil, file.NewError(kind, file.Location{},
			"value of type %s cannot be stepped by %d", ShapeOf(v), delta)
	}
	one := oneOf(v, delta)
	return Arith("+", v, one)
}

func oneOf(v any, delta int) any {
	switch v.(type) {
	case *big.Float:
		return big.NewFloat(float64(delta))
	case *big.Int:
		return big.NewInt(int64(delta))
	case float64:
		return float64(delta)
	case float32:
		return float32(delta)
	case int64:
		return int64(delta)
	case int32:
		return int32(delta)
	case int16:
		return int16(delta)
	case int8:
		return int8(delta)
	}
	return delta
}

// Equal is general value equality: numbers compare under the ladder,
// everything else by deep equality.
func Equal(a, b any) bool {
	if IsNumber(a) && IsNumber(b) {
		return NumericEqual(a, b)
	}
	if IsNil(a) && IsNil(b) {
		return true
	}
	return reflect.DeepEqual(a, b)
}
