package file

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	err := NewError(MethodNotFound, Location{From: 3, To: 7}, "no method %q", "frob")
	assert.Contains(t, err.Error(), "frob")

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, MethodNotFound, kind)
	assert.True(t, Is(err, MethodNotFound))
	assert.False(t, Is(err, CallOnNull))
}

func TestKindOfUnwraps(t *testing.T) {
	inner := NewError(InvocationError, Location{}, "it broke")
	wrapped := fmt.Errorf("while evaluating: %w", inner)
	assert.True(t, Is(wrapped, InvocationError))

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(GenericError, Location{}, "outer").Wrap(cause)
	assert.ErrorIs(t, err, cause)
}

func TestSnippetCaret(t *testing.T) {
	src := NewSource("a.b + c")
	got := src.Snippet(Location{From: 4, To: 5})
	assert.Equal(t, "a.b + c\n    ^", got)
}

func TestSnippetZeroWidthStillPoints(t *testing.T) {
	src := NewSource("expr")
	got := src.Snippet(Location{From: 2, To: 2})
	assert.Equal(t, "expr\n  ^", got)
}

func TestBindRendersSnippetOnce(t *testing.T) {
	src := NewSource("x.y")
	err := NewError(PropertyNotReadable, Location{From: 2, To: 3}, "no y").Bind(src)
	first := err.Error()
	assert.Contains(t, first, "x.y")
	assert.Contains(t, first, "^")

	// A second bind must not stack snippets.
	err.Bind(src)
	assert.Equal(t, first, err.Error())
}

func TestLocationIsZero(t *testing.T) {
	assert.True(t, Location{}.IsZero())
	assert.False(t, Location{From: 0, To: 1}.IsZero())
}
