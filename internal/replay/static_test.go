package replay

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/schema"
)

func particleType() *schema.TypeNode {
	return schema.Struct("Particle",
		schema.Field("pos", 0, schema.Vector(schema.Float32, 2)),
		schema.Field("life", 8, schema.Scalar(schema.Float32)),
	)
}

func testDump() *Dump {
	return &Dump{
		Capture: "frame42",
		Resources: []Resource{
			{ID: 1, Name: "ParticleBuffer", Kind: KindBuffer},
			{ID: 2, Name: "SceneDepth", Kind: KindTexture},
			{ID: 3, Name: "DrawPipeline", Kind: KindPipeline},
			{ID: 4, Name: "CounterBuffer", Kind: KindBuffer},
		},
		Layouts: []DumpLayout{
			{ResourceID: 1, ShaderID: 9, Stage: "compute", Set: 0, Slot: 2,
				Name: "particles", ReadWrite: true, Type: particleType()},
		},
		Textures: []TextureInfo{
			{ResourceID: 2, Width: 4, Height: 4, Mips: 3},
		},
		Points: []DumpPoint{
			{
				ID:       100,
				Label:    "Dispatch(64)",
				Pipeline: 3,
				Bindings: []Binding{
					{Stage: "compute", Bind: BindRWResource, Set: 0, Slot: 2,
						Name: "particles", ResourceID: 1},
					{Stage: "compute", Bind: BindResource, Set: 0, Slot: 3,
						Name: "counters", ResourceID: 4},
				},
				Buffers: map[uint64][]byte{
					1: make([]byte, 24),
					4: {1, 0, 0, 0},
				},
			},
			{
				ID:       200,
				Label:    "Draw(3)",
				Pipeline: 3,
				Outputs:  []uint64{2},
				DepthOut: 2,
				Uses: []DumpUse{
					{ResourceID: 4, Kind: UsageCopySrc},
				},
				Buffers: map[uint64][]byte{
					1: make([]byte, 24),
				},
				Textures: []DumpTexture{
					{ResourceID: 2, Mip: 1, Data: []byte{1, 2, 3, 4}},
				},
			},
		},
	}
}

func TestNewStaticReplayIndexes(t *testing.T) {
	r, err := NewStaticReplay(testDump())
	require.NoError(t, err)

	assert.Equal(t, "frame42", r.Capture())
	assert.Len(t, r.Resources(), 4)
	assert.Equal(t, []uint64{100, 200}, r.PointIDs())

	res, ok := r.ResourceByID(1)
	require.True(t, ok)
	assert.Equal(t, "ParticleBuffer", res.Name)

	_, ok = r.ResourceByID(99)
	assert.False(t, ok)

	action, ok := r.Action(200)
	require.True(t, ok)
	assert.Equal(t, "Draw(3)", action.Label)
	assert.Equal(t, []uint64{2}, action.Outputs)

	pipe, ok := r.ActivePipeline(100)
	require.True(t, ok)
	assert.Equal(t, uint64(3), pipe)

	assert.Len(t, r.Bindings(100), 2)
	assert.Empty(t, r.Bindings(999))
}

func TestNewStaticReplayRejectsDuplicates(t *testing.T) {
	dump := testDump()
	dump.Resources = append(dump.Resources, Resource{ID: 1, Name: "dup"})
	_, err := NewStaticReplay(dump)
	assert.Error(t, err)

	dump = testDump()
	dump.Points = append(dump.Points, DumpPoint{ID: 100})
	_, err = NewStaticReplay(dump)
	assert.Error(t, err)
}

func TestDeriveUses(t *testing.T) {
	r, err := NewStaticReplay(testDump())
	require.NoError(t, err)

	// RW binding at 100, nothing at 200.
	assert.Equal(t, []Use{{Point: 100, Kind: UsageRWResource}}, r.Uses(1))

	// Read binding at 100 plus the explicit copy at 200.
	assert.Equal(t, []Use{
		{Point: 100, Kind: UsageResource},
		{Point: 200, Kind: UsageCopySrc},
	}, r.Uses(4))

	// Output and depth target collapse per kind at 200.
	assert.Equal(t, []Use{
		{Point: 200, Kind: UsageColorTarget},
		{Point: 200, Kind: UsageDepthTarget},
	}, r.Uses(2))
}

func TestReflectedBufferDirect(t *testing.T) {
	r, err := NewStaticReplay(testDump())
	require.NoError(t, err)

	ref, err := r.ReflectedBuffer(1)
	require.NoError(t, err)
	assert.Equal(t, "particles", ref.Name)
	assert.True(t, ref.ReadWrite)
	require.NotNil(t, ref.Type)
}

func TestReflectedBufferNameRecovery(t *testing.T) {
	dump := testDump()
	dump.Layouts = append(dump.Layouts, DumpLayout{
		Name: "counterbuffer", Type: schema.Struct("Counters",
			schema.Field("n", 0, schema.Scalar(schema.Uint32))),
	})
	r, err := NewStaticReplay(dump)
	require.NoError(t, err)

	ref, err := r.ReflectedBuffer(4)
	require.NoError(t, err)
	assert.Equal(t, "counterbuffer", ref.Name)
}

func TestReflectedBufferAmbiguousRecovery(t *testing.T) {
	dump := testDump()
	counters := schema.Struct("Counters", schema.Field("n", 0, schema.Scalar(schema.Uint32)))
	dump.Layouts = append(dump.Layouts,
		DumpLayout{Name: "counter", Type: counters},
		DumpLayout{Name: "counterbuffer", Type: counters},
	)
	r, err := NewStaticReplay(dump)
	require.NoError(t, err)

	_, err = r.ReflectedBuffer(4)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaUnavailable(err))
}

func TestReflectedBufferUnknownResource(t *testing.T) {
	r, err := NewStaticReplay(testDump())
	require.NoError(t, err)

	_, err = r.ReflectedBuffer(12345)
	require.Error(t, err)
	assert.True(t, errors.IsResourceNotFound(err))
}

func TestReadBufferWindows(t *testing.T) {
	dump := testDump()
	dump.Points[0].Buffers[4] = []byte{10, 20, 30, 40, 50}
	r, err := NewStaticReplay(dump)
	require.NoError(t, err)

	full, err := r.ReadBuffer(100, 4, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{10, 20, 30, 40, 50}, full)

	window, err := r.ReadBuffer(100, 4, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{20, 30}, window)

	tail, err := r.ReadBuffer(100, 4, 3, 100)
	require.NoError(t, err)
	assert.Equal(t, []byte{40, 50}, tail)

	past, err := r.ReadBuffer(100, 4, 99, 4)
	require.NoError(t, err)
	assert.Empty(t, past)

	_, err = r.ReadBuffer(999, 4, 0, 0)
	assert.Error(t, err)

	_, err = r.ReadBuffer(200, 4, 0, 0) // nothing recorded at this point
	assert.Error(t, err)
}

func TestReadTexture(t *testing.T) {
	r, err := NewStaticReplay(testDump())
	require.NoError(t, err)

	data, err := r.ReadTexture(200, 2, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	_, err = r.ReadTexture(200, 2, 0, 0)
	assert.Error(t, err)

	_, err = r.ReadTexture(100, 2, 1, 0)
	assert.Error(t, err)
}

func TestTextureLookup(t *testing.T) {
	r, err := NewStaticReplay(testDump())
	require.NoError(t, err)

	tex, err := r.Texture(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), tex.Width)

	_, err = r.Texture(1)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaUnavailable(err))
}

func TestMipDimsClamp(t *testing.T) {
	tex := &TextureInfo{Width: 8, Height: 4}

	w, h := tex.MipDims(0)
	assert.Equal(t, uint32(8), w)
	assert.Equal(t, uint32(4), h)

	w, h = tex.MipDims(2)
	assert.Equal(t, uint32(2), w)
	assert.Equal(t, uint32(1), h)

	w, h = tex.MipDims(6)
	assert.Equal(t, uint32(1), w)
	assert.Equal(t, uint32(1), h)
}

func TestUsageMayWrite(t *testing.T) {
	writes := []UsageKind{UsageRWResource, UsageColorTarget, UsageDepthTarget,
		UsageCopyDst, UsageResolveDst, UsageClear}
	for _, k := range writes {
		assert.True(t, k.MayWrite(), string(k))
	}
	reads := []UsageKind{UsageVertexBuffer, UsageIndexBuffer, UsageIndirect,
		UsageConstants, UsageResource, UsageCopySrc, UsageResolveSrc}
	for _, k := range reads {
		assert.False(t, k.MayWrite(), string(k))
	}
}

func TestLoadDumpRoundTrip(t *testing.T) {
	raw, err := json.Marshal(testDump())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	r, err := LoadDump(path)
	require.NoError(t, err)
	assert.Equal(t, "frame42", r.Capture())
	assert.Equal(t, []uint64{100, 200}, r.PointIDs())

	data, err := r.ReadBuffer(100, 4, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 0, 0}, data)
}

func TestLoadDumpErrors(t *testing.T) {
	_, err := LoadDump(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "garbage.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err = LoadDump(path)
	assert.Error(t, err)
}
