package schema

import "fmt"

// ScalarKind identifies the primitive type of a leaf field. Every kind
// carries a fixed byte width and a little-endian decode rule (see
// internal/decode).
type ScalarKind int

const (
	Invalid ScalarKind = iota
	Float16
	Float32
	Float64
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	// Bool occupies a full 32-bit word in GPU memory; nonzero means true.
	Bool
)

// String returns the canonical lowercase name of the kind
func (k ScalarKind) String() string {
	switch k {
	case Float16:
		return "float16"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Bool:
		return "bool"
	default:
		return "invalid"
	}
}

// Width returns the number of bytes one value of this kind occupies
func (k ScalarKind) Width() uint32 {
	switch k {
	case Float16, Int16, Uint16:
		return 2
	case Float32, Int32, Uint32, Bool:
		return 4
	case Float64, Int64, Uint64:
		return 8
	case Int8, Uint8:
		return 1
	default:
		return 0
	}
}

// IsFloat reports whether the kind decodes to a floating-point value
func (k ScalarKind) IsFloat() bool {
	return k == Float16 || k == Float32 || k == Float64
}

// IsSigned reports whether the kind decodes to a signed integer
func (k ScalarKind) IsSigned() bool {
	switch k {
	case Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler so kinds serialize as their
// names in JSON dumps.
func (k ScalarKind) MarshalText() ([]byte, error) {
	if k == Invalid {
		return nil, fmt.Errorf("cannot marshal invalid scalar kind")
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ScalarKind) UnmarshalText(text []byte) error {
	parsed, err := ParseScalarKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseScalarKind maps a kind name back to its ScalarKind
func ParseScalarKind(s string) (ScalarKind, error) {
	for k := Float16; k <= Bool; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return Invalid, fmt.Errorf("unknown scalar kind %q", s)
}
