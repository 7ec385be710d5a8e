package params_test

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/relay/pkg/logger"
	"github.com/shashiranjanraj/relay/pkg/params"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := logger.SetOutput(&buf)
	t.Cleanup(func() { logger.Restore(prev) })
	return &buf
}

func TestGet_ExactTypeMatch(t *testing.T) {
	logs := captureLogs(t)
	bag := params.New().Set("score", 100)

	assert.Equal(t, 100, params.Get(bag, "score", -1))
	assert.Empty(t, logs.String())
}

func TestGet_TypeMismatchFallsBack(t *testing.T) {
	logs := captureLogs(t)
	bag := params.New().Set("score", 100)

	assert.Equal(t, "x", params.Get(bag, "score", "x"))
	assert.Contains(t, logs.String(), "params: type mismatch")
	assert.Contains(t, logs.String(), "want=string")
	assert.Contains(t, logs.String(), "got=int")
}

func TestGet_NoNumericCoercion(t *testing.T) {
	captureLogs(t)
	bag := params.With("score", 100)

	assert.Equal(t, int64(-1), params.Get(bag, "score", int64(-1)))
	assert.Equal(t, 0.5, params.Get(bag, "score", 0.5))
}

func TestGet_MissingKey(t *testing.T) {
	logs := captureLogs(t)

	assert.Equal(t, 7, params.Get(params.New(), "missing", 7))
	assert.Contains(t, logs.String(), "params: key not found")
}

func TestGet_NilBag(t *testing.T) {
	captureLogs(t)
	var bag *params.Bag

	assert.Equal(t, "d", params.Get(bag, "k", "d"))
	assert.Equal(t, 0, bag.Len())
	assert.False(t, bag.Has("k"))
	assert.NoError(t, bag.Err())
	assert.Equal(t, "ParamList { }", bag.String())
}

func TestGet_InterfaceTypeIsNotAMatch(t *testing.T) {
	captureLogs(t)
	bag := params.With("err", assert.AnError)

	_, ok := params.Lookup[error](bag, "err")
	assert.False(t, ok, "stored type is the concrete error type, not the error interface")
}

func TestSet_EmptyKeyRejected(t *testing.T) {
	logs := captureLogs(t)

	bag := params.With("", 42)

	assert.Equal(t, 0, bag.Len())
	assert.ErrorIs(t, bag.Err(), params.ErrEmptyKey)
	assert.Contains(t, logs.String(), "params: rejected entry with empty key")
}

func TestSet_NilBagIgnored(t *testing.T) {
	logs := captureLogs(t)

	var b *params.Bag
	assert.NotPanics(t, func() {
		assert.Nil(t, b.Set("points", 10))
	})
	assert.Equal(t, 0, b.Len())
	assert.NoError(t, b.Err())
	assert.Contains(t, logs.String(), "params: set on nil bag ignored")
}

func TestSet_ChainsAndOverwritesInPlace(t *testing.T) {
	bag := params.New().
		Set("a", 1).
		Set("b", "two").
		Set("a", 3.5)

	assert.Equal(t, []string{"a", "b"}, bag.Keys())
	assert.Equal(t, reflect.TypeOf(3.5), bag.TypeOf("a"))

	v, ok := params.Lookup[float64](bag, "a")
	require.True(t, ok)
	assert.Equal(t, 3.5, v)
}

func TestZeroValueBag(t *testing.T) {
	var bag params.Bag
	bag.Set("k", true)

	assert.True(t, params.Get(&bag, "k", false))
}

func TestDelete(t *testing.T) {
	bag := params.New().Set("a", 1).Set("b", 2).Set("c", 3)

	assert.True(t, bag.Delete("b"))
	assert.False(t, bag.Delete("b"))
	assert.Equal(t, []string{"a", "c"}, bag.Keys())
}

func TestString_InsertionOrder(t *testing.T) {
	bag := params.New().Set("points", 10).Set("player", "p1").Set("alive", true)

	assert.Equal(t, "ParamList { points: 10, player: p1, alive: true }", bag.String())
}

func TestValue_Raw(t *testing.T) {
	bag := params.With("nothing", nil)

	v, ok := bag.Value("nothing")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Nil(t, bag.TypeOf("nothing"))
}
