package sift

import (
	"encoding/hex"

	"github.com/framesift/framesift/internal/metrics"
)

// hexDisplayCap bounds how many bytes of a region are rendered as hex;
// longer regions still report their true length.
const hexDisplayCap = 16

// NoteSizeChanged marks the synthetic region emitted when the two buffers
// end at different sizes.
const NoteSizeChanged = "size_changed"

// Region is one contiguous run of differing bytes between two buffers.
type Region struct {
	Offset  int    `json:"offset"`
	Length  int    `json:"length"`
	OldHex  string `json:"old_hex,omitempty"`
	NewHex  string `json:"new_hex,omitempty"`
	Note    string `json:"note,omitempty"`
	OldSize int    `json:"old_size,omitempty"`
	NewSize int    `json:"new_size,omitempty"`
}

// Bytes scans two buffers in lockstep and returns every contiguous run of
// differing bytes, hex previews capped at hexDisplayCap bytes. A size
// mismatch adds one trailing size_changed region covering the tail only
// one buffer has. maxRegions > 0 stops the scan once that many runs are
// found. nil means the buffers are identical.
func Bytes(old, new []byte, maxRegions int) []Region {
	metrics.DiffOperationsTotal.WithLabelValues("bytes").Inc()

	var regions []Region
	n := len(old)
	if len(new) < n {
		n = len(new)
	}

	for i := 0; i < n && (maxRegions <= 0 || len(regions) < maxRegions); {
		if old[i] == new[i] {
			i++
			continue
		}
		start := i
		for i < n && old[i] != new[i] {
			i++
		}
		length := i - start
		shown := length
		if shown > hexDisplayCap {
			shown = hexDisplayCap
		}
		regions = append(regions, Region{
			Offset: start,
			Length: length,
			OldHex: hex.EncodeToString(old[start : start+shown]),
			NewHex: hex.EncodeToString(new[start : start+shown]),
		})
	}

	if len(old) != len(new) {
		diff := len(old) - len(new)
		if diff < 0 {
			diff = -diff
		}
		regions = append(regions, Region{
			Offset:  n,
			Length:  diff,
			Note:    NoteSizeChanged,
			OldSize: len(old),
			NewSize: len(new),
		})
	}
	return regions
}
