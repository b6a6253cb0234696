package params

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInt(t *testing.T) {
	m := Map{"num_clusters": 3.0, "bad": 2.5, "text": "4", "number": json.Number("7")}

	v, ok, err := m.Int("k", "num_clusters")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	v, ok, err = m.Int("text")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, v)

	v, ok, err = m.Int("number")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 7, v)

	_, ok, err = m.Int("bad")
	assert.True(t, ok)
	assert.Error(t, err)

	_, ok, err = m.Int("missing")
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestNumberFloatness(t *testing.T) {
	m := Map{"a": json.Number("1.0"), "b": json.Number("2"), "c": 1.0, "d": 5}

	_, isFloat, _, err := m.Number("a")
	require.NoError(t, err)
	assert.True(t, isFloat)

	_, isFloat, _, err = m.Number("b")
	require.NoError(t, err)
	assert.False(t, isFloat)

	_, isFloat, _, err = m.Number("c")
	require.NoError(t, err)
	assert.True(t, isFloat)

	_, isFloat, _, err = m.Number("d")
	require.NoError(t, err)
	assert.False(t, isFloat)
}

func TestStringAndBool(t *testing.T) {
	m := Map{"linkage": "ward", "flag": true, "flag2": "false", "num": 1}

	s, ok, err := m.String("linkage")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ward", s)

	_, _, err = m.String("num")
	assert.Error(t, err)

	b, ok, err := m.Bool("flag")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, b)

	b, _, err = m.Bool("flag2")
	require.NoError(t, err)
	assert.False(t, b)
}

func TestIntPair(t *testing.T) {
	m := Map{"ngram_range": []any{1.0, 2.0}, "short": []any{1.0}, "ints": []int{2, 3}}

	lo, hi, ok, err := m.IntPair("ngram_range")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, lo)
	assert.Equal(t, 2, hi)

	lo, hi, _, err = m.IntPair("ints")
	require.NoError(t, err)
	assert.Equal(t, 2, lo)
	assert.Equal(t, 3, hi)

	_, _, _, err = m.IntPair("short")
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := Map{"k": 2, "linkage": "ward"}
	merged := Merge(base, Map{"k": 4})

	assert.Equal(t, 4, merged["k"])
	assert.Equal(t, "ward", merged["linkage"])
	assert.Equal(t, 2, base["k"])
}
