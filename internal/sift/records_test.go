package sift

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/framesift/framesift/internal/schema"
)

func recordLayout(t *testing.T) *schema.Layout {
	t.Helper()
	layout, err := schema.Flatten(schema.Struct("body",
		schema.Field("a", 0, schema.Scalar(schema.Float32)),
		schema.Field("b", 4, schema.Scalar(schema.Float32)),
	))
	require.NoError(t, err)
	return layout
}

func recordBuffer(values ...float32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func TestRecordsNoChange(t *testing.T) {
	layout := recordLayout(t)
	buf := recordBuffer(1, 2, 3, 4)

	deltas, truncated, err := Records(buf, buf, layout, 3)
	require.NoError(t, err)
	assert.Nil(t, deltas)
	assert.False(t, truncated)
}

func TestRecordsSingleChangedInstance(t *testing.T) {
	layout := recordLayout(t)
	old := recordBuffer(1, 2, 3, 4, 5, 6)
	new := recordBuffer(1, 2, 3, 9, 5, 6)

	deltas, truncated, err := Records(old, new, layout, 3)
	require.NoError(t, err)
	require.Len(t, deltas, 1)
	assert.False(t, truncated)
	assert.Equal(t, 1, deltas[0].Index)
	assert.Equal(t, `{"b":9}`, deltas[0].Delta.String())
}

func TestRecordsCapTruncates(t *testing.T) {
	layout := recordLayout(t)
	old := recordBuffer(0, 0, 0, 0, 0, 0, 0, 0, 0, 0)
	new := recordBuffer(1, 0, 1, 0, 1, 0, 1, 0, 1, 0)

	deltas, truncated, err := Records(old, new, layout, 3)
	require.NoError(t, err)
	assert.Len(t, deltas, 3)
	assert.True(t, truncated)

	// Cap reached exactly at the last instance: nothing was skipped.
	old = recordBuffer(0, 0, 0, 0)
	new = recordBuffer(1, 0, 1, 0)
	deltas, truncated, err = Records(old, new, layout, 2)
	require.NoError(t, err)
	assert.Len(t, deltas, 2)
	assert.False(t, truncated)
}

func TestRecordsComparesOverlapOnly(t *testing.T) {
	layout := recordLayout(t)
	old := recordBuffer(1, 2)
	new := recordBuffer(1, 2, 3, 4) // grew by one instance

	deltas, _, err := Records(old, new, layout, 0)
	require.NoError(t, err)
	assert.Nil(t, deltas)
}

func TestRecordsEmptyLayout(t *testing.T) {
	_, _, err := Records(recordBuffer(1, 2), recordBuffer(1, 3), &schema.Layout{Stride: 8}, 0)
	assert.Error(t, err)
}
