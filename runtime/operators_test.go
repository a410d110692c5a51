package runtime

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xpel-lang/xpel/file"
)

func rhs(v any) func() (Value, error) {
	return func() (Value, error) { return ValueOf(v), nil }
}

func TestApplyBinaryShortCircuit(t *testing.T) {
	ctx := newStubContext()
	neverCalled := func() (Value, error) {
		t.Fatal("right operand must not be evaluated")
		return Null, nil
	}

	v, err := ApplyBinary(ctx, "&&", ValueOf(false), neverCalled)
	require.NoError(t, err)
	assert.Equal(t, false, v.Val)

	v, err = ApplyBinary(ctx, "||", ValueOf(true), neverCalled)
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)
}

func TestApplyBinaryBooleanOperandsChecked(t *testing.T) {
	ctx := newStubContext()
	_, err := ApplyBinary(ctx, "&&", ValueOf(1), rhs(true))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.TypeConversionError))

	_, err = ApplyBinary(ctx, "&&", ValueOf(true), rhs("no"))
	require.Error(t, err)
}

func TestApplyBinaryStringConcat(t *testing.T) {
	ctx := newStubContext()
	v, err := ApplyBinary(ctx, "+", ValueOf("foo"), rhs("bar"))
	require.NoError(t, err)
	assert.Equal(t, "foobar", v.Val)

	// Mixed string/number addition has no built-in meaning.
	_, err = ApplyBinary(ctx, "+", ValueOf("foo"), rhs(1))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.TypeConversionError))
}

// durationOverloader gives "+" a meaning for time.Duration operands.
type durationOverloader struct{}

func (durationOverloader) Overloads(op string, a, b any) bool {
	if op != "+" {
		return false
	}
	_, ok := a.(time.Duration)
	return ok
}

func (durationOverloader) Apply(_ string, a, b any) (any, error) {
	d, ok := b.(time.Duration)
	if !ok {
		return nil, fmt.Errorf("cannot add %T to a duration", b)
	}
	return a.(time.Duration) + d, nil
}

func TestOperatorOverloaderFallback(t *testing.T) {
	ctx := newStubContext()
	ctx.overloader = durationOverloader{}

	v, err := ApplyBinary(ctx, "+", ValueOf(time.Second), rhs(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, v.Val)
}

func TestNamedNumericWithoutOverloader(t *testing.T) {
	ctx := newStubContext()

	// With no overload registered, named numeric subtypes still promote.
	v, err := ApplyBinary(ctx, "*", ValueOf(time.Second), rhs(2))
	require.NoError(t, err)
	assert.Equal(t, float64(2e9), v.Val)

	// Comparison keeps the float64 fallback regardless of overloads.
	c, err := CompareValues(ctx, time.Second, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, -1, c)
}

func TestCompareValues(t *testing.T) {
	ctx := newStubContext()

	c, err := CompareValues(ctx, 1, 2.0)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = CompareValues(ctx, "abc", "abd")
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	_, err = CompareValues(ctx, struct{}{}, struct{}{})
	require.Error(t, err)
	assert.True(t, file.Is(err, file.NoOrdering))
}

type timeComparator struct{}

func (timeComparator) CanCompare(a, b any) bool {
	_, ok1 := a.(time.Time)
	_, ok2 := b.(time.Time)
	return ok1 && ok2
}

func (timeComparator) Compare(a, b any) (int, error) {
	return a.(time.Time).Compare(b.(time.Time)), nil
}

func TestComparatorService(t *testing.T) {
	ctx := newStubContext()
	ctx.comparator = timeComparator{}

	early := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	v, err := ApplyBinary(ctx, "<", ValueOf(early), rhs(late))
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)
}

func TestApplyUnary(t *testing.T) {
	v, err := ApplyUnary("!", ValueOf(true))
	require.NoError(t, err)
	assert.Equal(t, false, v.Val)

	v, err = ApplyUnary("-", ValueOf(5))
	require.NoError(t, err)
	assert.Equal(t, -5, v.Val)

	v, err = ApplyUnary("+", ValueOf(5))
	require.NoError(t, err)
	assert.Equal(t, 5, v.Val)

	_, err = ApplyUnary("+", ValueOf("s"))
	assert.Error(t, err)
	_, err = ApplyUnary("!", ValueOf(1))
	assert.Error(t, err)
}

func TestEqualityIgnoresNumericRepresentation(t *testing.T) {
	ctx := newStubContext()
	v, err := ApplyBinary(ctx, "==", ValueOf(int64(2)), rhs(2.0))
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)

	v, err = ApplyBinary(ctx, "!=", ValueOf("a"), rhs("b"))
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)
}

func TestMatchesCompilesPerEvaluation(t *testing.T) {
	ctx := newStubContext()
	v, err := ApplyBinary(ctx, "matches", ValueOf("abc123"), rhs(`[a-z]+\d+`))
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)

	_, err = ApplyBinary(ctx, "matches", ValueOf("x"), rhs("("))
	assert.Error(t, err)
}
