package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fastjson"

	"github.com/xpel-lang/xpel/file"
)

const sampleDoc = `{
	"name": "gopher",
	"age": 12,
	"score": 9.5,
	"tags": ["a", "b"],
	"address": {"city": "Berlin"},
	"active": true,
	"nothing": null
}`

func parseDoc(t *testing.T) *fastjson.Value {
	t.Helper()
	v, err := fastjson.Parse(sampleDoc)
	require.NoError(t, err)
	return v
}

func TestJSONAccessorScalars(t *testing.T) {
	ctx := newStubContext()
	acc := &JSONAccessor{}
	doc := parseDoc(t)

	v, err := acc.Read(ctx, doc, "name")
	require.NoError(t, err)
	assert.Equal(t, "gopher", v.Val)

	// Integral numbers come out as int, fractional as float64.
	v, err = acc.Read(ctx, doc, "age")
	require.NoError(t, err)
	assert.Equal(t, 12, v.Val)

	v, err = acc.Read(ctx, doc, "score")
	require.NoError(t, err)
	assert.Equal(t, 9.5, v.Val)

	v, err = acc.Read(ctx, doc, "active")
	require.NoError(t, err)
	assert.Equal(t, true, v.Val)

	v, err = acc.Read(ctx, doc, "nothing")
	require.NoError(t, err)
	assert.True(t, v.IsNil())
}

func TestJSONAccessorNestedStaysNavigable(t *testing.T) {
	ctx := newStubContext()
	acc := &JSONAccessor{}
	doc := parseDoc(t)

	v, err := acc.Read(ctx, doc, "address")
	require.NoError(t, err)
	nested, ok := v.Val.(*fastjson.Value)
	require.True(t, ok)

	v, err = acc.Read(ctx, nested, "city")
	require.NoError(t, err)
	assert.Equal(t, "Berlin", v.Val)
}

func TestJSONAccessorMissingMember(t *testing.T) {
	ctx := newStubContext()
	acc := &JSONAccessor{}
	doc := parseDoc(t)

	assert.False(t, acc.CanRead(ctx, doc, "ghost"))
	_, err := acc.Read(ctx, doc, "ghost")
	require.Error(t, err)
	assert.True(t, file.Is(err, file.PropertyNotReadable))
}

func TestJSONDocumentsAreReadOnly(t *testing.T) {
	ctx := newStubContext()
	acc := &JSONAccessor{}
	assert.False(t, acc.CanWrite(ctx, parseDoc(t), "name"))

	err := SetIndexValue(ctx, parseDoc(t), "name", ValueOf("x"))
	require.Error(t, err)
	assert.True(t, file.Is(err, file.PropertyNotWritable))
}

func TestJSONIndex(t *testing.T) {
	doc := parseDoc(t)

	tags, _, err := JSONIndex(doc, "tags")
	require.NoError(t, err)
	arr := tags.Val.(*fastjson.Value)

	v, handled, err := JSONIndex(arr, 1)
	require.NoError(t, err)
	require.True(t, handled)
	assert.Equal(t, "b", v.Val)

	_, handled, err = JSONIndex(arr, 5)
	require.True(t, handled)
	assert.Error(t, err)

	_, handled, err = JSONIndex(arr, "not an index")
	require.True(t, handled)
	assert.Error(t, err)
}

func TestIndexValueOverJSON(t *testing.T) {
	ctx := newStubContext()
	doc := parseDoc(t)

	v, err := IndexValue(ctx, doc, "name")
	require.NoError(t, err)
	assert.Equal(t, "gopher", v.Val)
}

func TestJSONCompiledRead(t *testing.T) {
	acc := &JSONAccessor{}
	read, ok := acc.CompiledRead(jsonValueType, "age")
	require.True(t, ok)

	v, err := read(parseDoc(t))
	require.NoError(t, err)
	assert.Equal(t, 12, v.Val)

	// Non-document targets trip the guard.
	_, err = read("not json")
	assert.ErrorIs(t, err, ErrShapeChanged)
}
