package sift

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordsOf(values ...uint32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], v)
	}
	return b
}

func TestWordsIdentical(t *testing.T) {
	data := wordsOf(1, 2, 3)
	diff := Words(data, data, 0)
	assert.True(t, diff.Identical)
	assert.Zero(t, diff.WordsChanged)
	assert.Empty(t, diff.Deltas)
	assert.Equal(t, 3, diff.WordsCompared)
}

func TestWordsSingleChange(t *testing.T) {
	old := wordsOf(1, 2, 3)
	new := wordsOf(1, 7, 3)

	diff := Words(old, new, 0)
	assert.False(t, diff.Identical)
	assert.Equal(t, 1, diff.WordsChanged)
	require.Len(t, diff.Deltas, 1)

	d := diff.Deltas[0]
	assert.Equal(t, 1, d.Index)
	assert.Equal(t, 4, d.Offset)
	assert.Equal(t, uint32(2), d.OldU32)
	assert.Equal(t, uint32(7), d.NewU32)
	// Tiny denormal-range integers have no plausible float32 reading.
	assert.Nil(t, d.OldF32)
	assert.Nil(t, d.NewF32)
}

func TestWordsFloatReading(t *testing.T) {
	old := wordsOf(math.Float32bits(1.5))
	new := wordsOf(math.Float32bits(-0.25))

	diff := Words(old, new, 0)
	require.Len(t, diff.Deltas, 1)
	require.NotNil(t, diff.Deltas[0].OldF32)
	require.NotNil(t, diff.Deltas[0].NewF32)
	assert.Equal(t, 1.5, *diff.Deltas[0].OldF32)
	assert.Equal(t, -0.25, *diff.Deltas[0].NewF32)
}

func TestWordsImplausibleFloats(t *testing.T) {
	for _, bits := range []uint32{
		math.Float32bits(float32(math.NaN())),
		math.Float32bits(float32(math.Inf(1))),
		math.Float32bits(1e20),  // magnitude too large
		math.Float32bits(1e-20), // magnitude too small
	} {
		assert.Nil(t, plausibleFloat(bits), "bits %#x", bits)
	}

	zero := plausibleFloat(0)
	require.NotNil(t, zero)
	assert.Equal(t, 0.0, *zero)
}

func TestWordsMaxDeltasCapsListNotCount(t *testing.T) {
	old := wordsOf(0, 0, 0, 0, 0)
	new := wordsOf(1, 1, 1, 1, 1)

	diff := Words(old, new, 2)
	assert.Equal(t, 5, diff.WordsChanged)
	assert.Len(t, diff.Deltas, 2)
}

func TestWordsRaggedTailPadsWithZeros(t *testing.T) {
	old := []byte{1, 0, 0, 0, 0xff}
	new := []byte{1, 0, 0, 0}

	diff := Words(old, new, 0)
	assert.Equal(t, 2, diff.OldWords)
	assert.Equal(t, 1, diff.NewWords)
	assert.Equal(t, 1, diff.WordsCompared)
	assert.Zero(t, diff.WordsChanged)
	// Same words in the overlap, but sizes differ.
	assert.False(t, diff.Identical)

	// The padded tail word still participates when both sides have it.
	diff = Words([]byte{1, 0, 0, 0, 0xff}, []byte{1, 0, 0, 0, 0xfe}, 0)
	assert.Equal(t, 1, diff.WordsChanged)
	assert.Equal(t, uint32(0xff), diff.Deltas[0].OldU32)
	assert.Equal(t, uint32(0xfe), diff.Deltas[0].NewU32)
}
