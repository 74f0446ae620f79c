// Package decode turns raw little-endian replay bytes into typed scalar
// values, one record instance or one texel at a time.
package decode

import (
	"encoding/binary"
	"math"

	"github.com/apache/arrow-go/v18/arrow/float16"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/metrics"
	"github.com/framesift/framesift/internal/nested"
	"github.com/framesift/framesift/internal/schema"
)

// Count returns how many complete record instances raw holds under the
// layout's stride.
func Count(raw []byte, layout *schema.Layout) int {
	if layout == nil || layout.Stride == 0 {
		return 0
	}
	return len(raw) / int(layout.Stride)
}

// Instance decodes the index-th record instance out of raw. The returned
// slice runs parallel to layout.Fields; entries are nil for fields whose
// bytes fall outside the instance window, which happens when a declared
// stride is tighter than the flattened leaf span. Those partial failures
// are not fatal.
//
// When raw does not hold index's whole window the decode fails with an
// insufficient-data error and nothing is returned.
func Instance(raw []byte, layout *schema.Layout, index int) ([]*nested.Value, error) {
	if !layout.HasFields() || layout.Stride == 0 {
		return nil, errors.NewValidationError("decode.Instance",
			"layout has no decodable fields")
	}
	if index < 0 {
		return nil, errors.NewValidationError("decode.Instance",
			"negative instance index").WithContext("index", index)
	}

	stride := uint64(layout.Stride)
	base := uint64(index) * stride
	if uint64(len(raw)) < base+stride {
		metrics.DecodeInstancesTotal.WithLabelValues("insufficient_data").Inc()
		return nil, errors.NewInsufficientDataError("decode.Instance",
			"buffer ends before the instance window").
			WithContext("index", index).
			WithContext("needed", base+stride).
			WithContext("available", len(raw))
	}

	window := raw[base : base+stride]
	out := make([]*nested.Value, len(layout.Fields))
	for i, f := range layout.Fields {
		end := uint64(f.Offset) + uint64(f.Kind.Width())
		if end > stride {
			metrics.DecodeFieldsSkippedTotal.Inc()
			continue
		}
		out[i] = Scalar(window[f.Offset:end], f.Kind)
	}
	metrics.DecodeInstancesTotal.WithLabelValues("ok").Inc()
	return out, nil
}

// Snapshot decodes one instance and reassembles it into its nested shape.
func Snapshot(raw []byte, layout *schema.Layout, index int) (*nested.Value, error) {
	values, err := Instance(raw, layout, index)
	if err != nil {
		return nil, err
	}
	return nested.Rebuild(layout.Fields, values)
}

// Scalar decodes one little-endian scalar. b must hold at least the
// kind's width; extra bytes are ignored. Unknown kinds decode to nil.
//
// Bool occupies a full 4-byte word, as shader ABIs lay it out, and any
// nonzero word reads as true.
func Scalar(b []byte, kind schema.ScalarKind) *nested.Value {
	if uint32(len(b)) < kind.Width() {
		return nil
	}
	switch kind {
	case schema.Float16:
		return nested.Float(float64(float16.FromLEBytes(b).Float32()))
	case schema.Float32:
		return nested.Float(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	case schema.Float64:
		return nested.Float(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	case schema.Int8:
		return nested.Int(int64(int8(b[0])))
	case schema.Int16:
		return nested.Int(int64(int16(binary.LittleEndian.Uint16(b))))
	case schema.Int32:
		return nested.Int(int64(int32(binary.LittleEndian.Uint32(b))))
	case schema.Int64:
		return nested.Int(int64(binary.LittleEndian.Uint64(b)))
	case schema.Uint8:
		return nested.Uint(uint64(b[0]))
	case schema.Uint16:
		return nested.Uint(uint64(binary.LittleEndian.Uint16(b)))
	case schema.Uint32:
		return nested.Uint(uint64(binary.LittleEndian.Uint32(b)))
	case schema.Uint64:
		return nested.Uint(binary.LittleEndian.Uint64(b))
	case schema.Bool:
		return nested.Bool(binary.LittleEndian.Uint32(b) != 0)
	}
	return nil
}
