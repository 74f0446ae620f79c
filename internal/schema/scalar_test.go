package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarKindNamesRoundTrip(t *testing.T) {
	for k := Float16; k <= Bool; k++ {
		parsed, err := ParseScalarKind(k.String())
		require.NoError(t, err, k.String())
		assert.Equal(t, k, parsed)
	}

	_, err := ParseScalarKind("vec3")
	assert.Error(t, err)
	_, err = ParseScalarKind("invalid")
	assert.Error(t, err)
}

func TestScalarKindWidth(t *testing.T) {
	assert.Equal(t, uint32(2), Float16.Width())
	assert.Equal(t, uint32(4), Float32.Width())
	assert.Equal(t, uint32(8), Uint64.Width())
	assert.Equal(t, uint32(1), Int8.Width())
	assert.Equal(t, uint32(4), Bool.Width(), "bools occupy a full word")
	assert.Equal(t, uint32(0), Invalid.Width())
	assert.Equal(t, uint32(0), ScalarKind(99).Width())
}

func TestScalarKindPredicates(t *testing.T) {
	assert.True(t, Float16.IsFloat())
	assert.False(t, Uint32.IsFloat())
	assert.True(t, Int64.IsSigned())
	assert.False(t, Bool.IsSigned())
}

func TestTypeNodeJSONUsesKindNames(t *testing.T) {
	data, err := json.Marshal(Vector(Float32, 3))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"float32","columns":3}`, string(data))

	var node TypeNode
	require.NoError(t, json.Unmarshal([]byte(`{"name":"v","kind":"uint64","columns":2}`), &node))
	assert.Equal(t, Uint64, node.Kind)
	assert.Equal(t, uint8(2), node.Columns)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"vec3"}`), &node))

	_, err = Invalid.MarshalText()
	assert.Error(t, err)
}
