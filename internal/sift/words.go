package sift

import (
	"encoding/binary"
	"math"

	"github.com/framesift/framesift/internal/metrics"
)

// WordDelta is one changed 32-bit word. The raw values are always
// reported; a float32 reading rides along per side when the bit pattern
// plausibly encodes one.
type WordDelta struct {
	Index  int      `json:"index"`
	Offset int      `json:"offset"`
	OldU32 uint32   `json:"old_u32"`
	NewU32 uint32   `json:"new_u32"`
	OldF32 *float64 `json:"old_f32,omitempty"`
	NewF32 *float64 `json:"new_f32,omitempty"`
}

// WordDiff summarizes a 32-bit word comparison of two buffers.
type WordDiff struct {
	WordsCompared int         `json:"words_compared"`
	OldWords      int         `json:"old_words"`
	NewWords      int         `json:"new_words"`
	WordsChanged  int         `json:"words_changed"`
	Identical     bool        `json:"identical"`
	Deltas        []WordDelta `json:"deltas,omitempty"`
}

// Words reads both buffers as little-endian u32 sequences, zero-padding a
// ragged tail to the word boundary, and reports every word that changed
// over the overlapping range. WordsChanged counts all of them; Deltas
// holds at most maxDeltas (<= 0 means all). Useful for buffers with no
// reflected layout, where structured diffing is off the table.
func Words(old, new []byte, maxDeltas int) *WordDiff {
	metrics.DiffOperationsTotal.WithLabelValues("words").Inc()

	oldWords := (len(old) + 3) / 4
	newWords := (len(new) + 3) / 4
	compared := oldWords
	if newWords < compared {
		compared = newWords
	}

	diff := &WordDiff{
		WordsCompared: compared,
		OldWords:      oldWords,
		NewWords:      newWords,
	}
	for i := 0; i < compared; i++ {
		ow := wordAt(old, i)
		nw := wordAt(new, i)
		if ow == nw {
			continue
		}
		diff.WordsChanged++
		if maxDeltas > 0 && len(diff.Deltas) >= maxDeltas {
			continue
		}
		diff.Deltas = append(diff.Deltas, WordDelta{
			Index:  i,
			Offset: i * 4,
			OldU32: ow,
			NewU32: nw,
			OldF32: plausibleFloat(ow),
			NewF32: plausibleFloat(nw),
		})
	}
	diff.Identical = diff.WordsChanged == 0 && len(old) == len(new)
	return diff
}

// wordAt reads the i-th little-endian u32, treating bytes past the end of
// the buffer as zero.
func wordAt(b []byte, i int) uint32 {
	off := i * 4
	if off+4 <= len(b) {
		return binary.LittleEndian.Uint32(b[off:])
	}
	var w uint32
	for j := 0; off+j < len(b); j++ {
		w |= uint32(b[off+j]) << (8 * j)
	}
	return w
}

// plausibleFloat reinterprets the word as float32 and keeps it when it
// looks like a number shaders actually use: finite, and either exactly
// zero or with magnitude between 1e-10 and 1e10. Rounded to six decimals
// to keep the side-by-side reading short.
func plausibleFloat(bits uint32) *float64 {
	f := float64(math.Float32frombits(bits))
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	if f != 0 {
		abs := math.Abs(f)
		if abs < 1e-10 || abs > 1e10 {
			return nil
		}
	}
	r := math.Round(f*1e6) / 1e6
	return &r
}
