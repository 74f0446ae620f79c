package decode

import (
	"encoding/binary"
	"math"

	"github.com/apache/arrow-go/v18/arrow/float16"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/nested"
)

// CompType says how a texel component's bits are interpreted.
type CompType string

const (
	CompFloat CompType = "float"
	CompUNorm CompType = "unorm"
	CompSNorm CompType = "snorm"
	CompUInt  CompType = "uint"
	CompSInt  CompType = "sint"
	CompSRGB  CompType = "srgb"
	CompDepth CompType = "depth"
)

// TexelFormat describes how one texel's bytes map onto channel values.
// Block-compressed formats carry no per-texel layout; their texels are
// reported as opaque.
type TexelFormat struct {
	Name            string   `json:"name"`
	CompCount       uint32   `json:"comp_count"`
	CompWidth       uint32   `json:"comp_width"`
	CompType        CompType `json:"comp_type"`
	BlockCompressed bool     `json:"block_compressed,omitempty"`
}

// TexelSize returns the byte footprint of one texel.
func (f TexelFormat) TexelSize() uint32 {
	return f.CompCount * f.CompWidth
}

var channelNames = [4]string{"r", "g", "b", "a"}

// Texel decodes one texel into a channel object keyed r, g, b, a in
// component order. Normalized formats divide by their type's maximum and
// round to six decimals. Block-compressed formats return a marker object
// naming the format instead of channel values, since a single texel
// cannot be decoded without decompressing its whole block.
func Texel(data []byte, format TexelFormat) (*nested.Value, error) {
	if format.BlockCompressed {
		obj := nested.Object()
		obj.SetField("compressed", nested.Bool(true))
		obj.SetField("format", nested.Text(format.Name))
		return obj, nil
	}
	if format.CompCount == 0 || format.CompCount > 4 {
		return nil, errors.NewValidationError("decode.Texel",
			"component count out of range").
			WithContext("format", format.Name).
			WithContext("comp_count", format.CompCount)
	}
	if uint32(len(data)) < format.TexelSize() {
		return nil, errors.NewInsufficientDataError("decode.Texel",
			"texel window shorter than the format's footprint").
			WithContext("format", format.Name).
			WithContext("needed", format.TexelSize()).
			WithContext("available", len(data))
	}

	obj := nested.Object()
	for i := uint32(0); i < format.CompCount; i++ {
		comp := data[i*format.CompWidth : (i+1)*format.CompWidth]
		v, err := texelComponent(comp, format)
		if err != nil {
			return nil, err
		}
		obj.SetField(channelNames[i], v)
	}
	return obj, nil
}

func texelComponent(b []byte, format TexelFormat) (*nested.Value, error) {
	w := format.CompWidth
	switch format.CompType {
	case CompFloat, CompDepth:
		switch w {
		case 2:
			return nested.Float(float64(float16.FromLEBytes(b).Float32())), nil
		case 4:
			return nested.Float(float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))), nil
		case 8:
			return nested.Float(math.Float64frombits(binary.LittleEndian.Uint64(b))), nil
		}
	case CompUInt:
		if u, ok := uintComponent(b, w); ok {
			return nested.Uint(u), nil
		}
	case CompSInt:
		if u, ok := uintComponent(b, w); ok {
			return nested.Int(signExtend(u, w)), nil
		}
	case CompUNorm:
		if u, ok := uintComponent(b, w); ok && w <= 2 {
			max := float64(uint64(1)<<(8*w) - 1)
			return nested.Float(round6(float64(u) / max)), nil
		}
	case CompSNorm:
		if u, ok := uintComponent(b, w); ok && w <= 2 {
			s := signExtend(u, w)
			max := float64(int64(1)<<(8*w-1) - 1)
			// The most negative code maps to -1.0 exactly.
			return nested.Float(round6(math.Max(float64(s)/max, -1))), nil
		}
	case CompSRGB:
		if w == 1 {
			return nested.Float(round6(float64(b[0]) / 255)), nil
		}
	}
	return nil, errors.NewValidationError("decode.Texel",
		"no decode rule for component").
		WithContext("format", format.Name).
		WithContext("comp_type", string(format.CompType)).
		WithContext("comp_width", w)
}

func uintComponent(b []byte, w uint32) (uint64, bool) {
	switch w {
	case 1:
		return uint64(b[0]), true
	case 2:
		return uint64(binary.LittleEndian.Uint16(b)), true
	case 4:
		return uint64(binary.LittleEndian.Uint32(b)), true
	case 8:
		return binary.LittleEndian.Uint64(b), true
	}
	return 0, false
}

func signExtend(u uint64, w uint32) int64 {
	shift := 64 - 8*w
	return int64(u<<shift) >> shift
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
