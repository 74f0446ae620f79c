package nested

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framesift/framesift/internal/schema"
)

func field(name string, kind schema.ScalarKind, steps ...schema.PathStep) schema.FieldPath {
	return schema.FieldPath{Name: name, Steps: steps, Kind: kind}
}

func TestRebuildFlatStruct(t *testing.T) {
	fields := []schema.FieldPath{
		field("a", schema.Float32, schema.KeyStep("a")),
		field("b", schema.Uint32, schema.KeyStep("b")),
	}
	got, err := Rebuild(fields, []*Value{Float(1.5), Uint(7)})
	require.NoError(t, err)

	assert.Equal(t, `{"a":1.5,"b":7}`, got.String())
}

func TestRebuildArrayOfStructs(t *testing.T) {
	fields := []schema.FieldPath{
		field("items[0].x", schema.Float32,
			schema.KeyStep("items"), schema.IndexStep(0), schema.KeyStep("x")),
		field("items[1].x", schema.Float32,
			schema.KeyStep("items"), schema.IndexStep(1), schema.KeyStep("x")),
	}
	got, err := Rebuild(fields, []*Value{Float(1), Float(2)})
	require.NoError(t, err)

	assert.Equal(t, `{"items":[{"x":1},{"x":2}]}`, got.String())
}

func TestRebuildVectorAndMatrix(t *testing.T) {
	fields := []schema.FieldPath{
		field("v[0]", schema.Float32, schema.KeyStep("v"), schema.IndexStep(0)),
		field("v[1]", schema.Float32, schema.KeyStep("v"), schema.IndexStep(1)),
		field("m[0][0]", schema.Float32,
			schema.KeyStep("m"), schema.IndexStep(0), schema.IndexStep(0)),
		field("m[0][1]", schema.Float32,
			schema.KeyStep("m"), schema.IndexStep(0), schema.IndexStep(1)),
		field("m[1][0]", schema.Float32,
			schema.KeyStep("m"), schema.IndexStep(1), schema.IndexStep(0)),
		field("m[1][1]", schema.Float32,
			schema.KeyStep("m"), schema.IndexStep(1), schema.IndexStep(1)),
	}
	values := []*Value{Float(1), Float(2), Float(3), Float(4), Float(5), Float(6)}

	got, err := Rebuild(fields, values)
	require.NoError(t, err)

	assert.Equal(t, `{"m":[[3,4],[5,6]],"v":[1,2]}`, got.String())
}

func TestRebuildFailedLeafBecomesZero(t *testing.T) {
	fields := []schema.FieldPath{
		field("f", schema.Float32, schema.KeyStep("f")),
		field("i", schema.Int32, schema.KeyStep("i")),
		field("u", schema.Uint32, schema.KeyStep("u")),
		field("b", schema.Bool, schema.KeyStep("b")),
	}
	got, err := Rebuild(fields, []*Value{nil, nil, nil, nil})
	require.NoError(t, err)

	f, _ := got.Field("f")
	assert.Equal(t, KindFloat, f.Kind())
	i, _ := got.Field("i")
	assert.Equal(t, KindInt, i.Kind())
	u, _ := got.Field("u")
	assert.Equal(t, KindUint, u.Kind())
	b, _ := got.Field("b")
	assert.Equal(t, KindBool, b.Kind())

	assert.Equal(t, `{"b":false,"f":0,"i":0,"u":0}`, got.String())
}

func TestRebuildBareScalarRoot(t *testing.T) {
	fields := []schema.FieldPath{{Name: "", Kind: schema.Uint32}}
	got, err := Rebuild(fields, []*Value{Uint(9)})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), got.Uint())
}

func TestRebuildFillsUncoveredSlots(t *testing.T) {
	fields := []schema.FieldPath{
		field("v[0]", schema.Float32, schema.KeyStep("v"), schema.IndexStep(0)),
		field("v[2]", schema.Float32, schema.KeyStep("v"), schema.IndexStep(2)),
	}
	got, err := Rebuild(fields, []*Value{Float(1), Float(3)})
	require.NoError(t, err)

	assert.Equal(t, `{"v":[1,0,3]}`, got.String())
}

func TestRebuildDeterministic(t *testing.T) {
	fields := []schema.FieldPath{
		field("a", schema.Float32, schema.KeyStep("a")),
		field("n[0]", schema.Uint32, schema.KeyStep("n"), schema.IndexStep(0)),
		field("n[1]", schema.Uint32, schema.KeyStep("n"), schema.IndexStep(1)),
	}
	values := []*Value{Float(0.5), Uint(1), Uint(2)}

	first, err := Rebuild(fields, values)
	require.NoError(t, err)
	second, err := Rebuild(fields, values)
	require.NoError(t, err)

	assert.True(t, Equal(first, second))
	assert.Equal(t, first.String(), second.String())
}

func TestRebuildLengthMismatch(t *testing.T) {
	fields := []schema.FieldPath{field("a", schema.Float32, schema.KeyStep("a"))}
	_, err := Rebuild(fields, nil)
	assert.Error(t, err)
}

func TestRebuildShapeConflict(t *testing.T) {
	fields := []schema.FieldPath{
		field("a", schema.Float32, schema.KeyStep("a")),
		field("a.b", schema.Float32, schema.KeyStep("a"), schema.KeyStep("b")),
	}
	_, err := Rebuild(fields, []*Value{Float(1), Float(2)})
	assert.Error(t, err)
}

func TestRebuildEmptyLayout(t *testing.T) {
	got, err := Rebuild(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, KindObject, got.Kind())
	assert.Equal(t, 0, got.Len())
}
