// Package nested holds the value trees reassembled from decoded record
// instances and the sparse deltas computed between two such trees.
package nested

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Kind discriminates the variants a Value can hold.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindObject
	KindArray
	KindFloat
	KindInt
	KindUint
	KindBool
	KindText
	// KindRemoved marks a key that was present in the older of two
	// snapshots and is gone in the newer one. It only ever appears
	// inside deltas, never in a reassembled snapshot.
	KindRemoved
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindObject:  "object",
	KindArray:   "array",
	KindFloat:   "float",
	KindInt:     "int",
	KindUint:    "uint",
	KindBool:    "bool",
	KindText:    "text",
	KindRemoved: "removed",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a closed sum over the shapes decoded data can take: string-keyed
// objects, dense arrays, and scalar leaves. Values are built once and read
// many times; nothing mutates a Value after its tree is assembled, so
// subtrees may be shared freely between snapshots and deltas.
//
// The zero Value has KindInvalid and compares equal to nothing.
type Value struct {
	kind Kind
	num  uint64 // Float: IEEE-754 bits, Int: two's complement, Uint: raw, Bool: 0/1
	str  string
	obj  map[string]*Value
	arr  []*Value
}

// Float returns a floating-point leaf.
func Float(v float64) *Value { return &Value{kind: KindFloat, num: math.Float64bits(v)} }

// Int returns a signed integer leaf.
func Int(v int64) *Value { return &Value{kind: KindInt, num: uint64(v)} }

// Uint returns an unsigned integer leaf.
func Uint(v uint64) *Value { return &Value{kind: KindUint, num: v} }

// Bool returns a boolean leaf.
func Bool(v bool) *Value {
	var n uint64
	if v {
		n = 1
	}
	return &Value{kind: KindBool, num: n}
}

// Text returns a string leaf.
func Text(s string) *Value { return &Value{kind: KindText, str: s} }

// Object returns an empty string-keyed container.
func Object() *Value { return &Value{kind: KindObject, obj: make(map[string]*Value)} }

// Array returns a dense array container with n nil slots.
func Array(n int) *Value { return &Value{kind: KindArray, arr: make([]*Value, n)} }

// Removed returns the deletion marker used inside deltas.
func Removed() *Value { return &Value{kind: KindRemoved} }

// Kind reports which variant v holds. A nil Value is KindInvalid.
func (v *Value) Kind() Kind {
	if v == nil {
		return KindInvalid
	}
	return v.kind
}

// IsScalar reports whether v is a leaf (numeric, bool or text).
func (v *Value) IsScalar() bool {
	switch v.Kind() {
	case KindFloat, KindInt, KindUint, KindBool, KindText:
		return true
	}
	return false
}

// Float returns the floating-point payload, or 0 for other kinds.
func (v *Value) Float() float64 {
	if v.Kind() != KindFloat {
		return 0
	}
	return math.Float64frombits(v.num)
}

// Int returns the signed integer payload, or 0 for other kinds.
func (v *Value) Int() int64 {
	if v.Kind() != KindInt {
		return 0
	}
	return int64(v.num)
}

// Uint returns the unsigned integer payload, or 0 for other kinds.
func (v *Value) Uint() uint64 {
	if v.Kind() != KindUint {
		return 0
	}
	return v.num
}

// Bool returns the boolean payload, or false for other kinds.
func (v *Value) Bool() bool {
	return v.Kind() == KindBool && v.num != 0
}

// Text returns the string payload, or "" for other kinds.
func (v *Value) Text() string {
	if v.Kind() != KindText {
		return ""
	}
	return v.str
}

// Field looks up an object member.
func (v *Value) Field(key string) (*Value, bool) {
	if v.Kind() != KindObject {
		return nil, false
	}
	child, ok := v.obj[key]
	return child, ok
}

// SetField stores an object member, replacing any previous entry.
func (v *Value) SetField(key string, child *Value) {
	if v.Kind() == KindObject {
		v.obj[key] = child
	}
}

// Keys returns the object member names in sorted order so walks over the
// same tree always visit members identically.
func (v *Value) Keys() []string {
	if v.Kind() != KindObject {
		return nil
	}
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the element count of an array, the member count of an
// object, and 0 for scalars.
func (v *Value) Len() int {
	switch v.Kind() {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	}
	return 0
}

// Index returns the i-th array element, or nil when out of range.
func (v *Value) Index(i int) *Value {
	if v.Kind() != KindArray || i < 0 || i >= len(v.arr) {
		return nil
	}
	return v.arr[i]
}

// SetIndex stores an array element, growing the array with nil slots when
// i is past the current end.
func (v *Value) SetIndex(i int, child *Value) {
	if v.Kind() != KindArray || i < 0 {
		return
	}
	for len(v.arr) <= i {
		v.arr = append(v.arr, nil)
	}
	v.arr[i] = child
}

// Equal reports deep equality. Floating-point leaves compare by bit
// pattern so a snapshot always equals itself even when it holds NaNs, and
// so diffing X against X is guaranteed to report no change.
func Equal(a, b *Value) bool {
	ka, kb := a.Kind(), b.Kind()
	if ka != kb {
		return false
	}
	switch ka {
	case KindInvalid, KindRemoved:
		return true
	case KindText:
		return a.str == b.str
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	default:
		return a.num == b.num
	}
}

// MarshalJSON renders the tree in its natural JSON shape. Object keys are
// emitted in sorted order. The removed marker encodes as null, matching
// how deltas mark deleted keys. Non-finite floats have no JSON encoding
// and are emitted as the strings "NaN", "Infinity" and "-Infinity".
func (v *Value) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	switch v.kind {
	case KindRemoved:
		return []byte("null"), nil
	case KindBool:
		if v.num != 0 {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case KindInt:
		return strconv.AppendInt(nil, int64(v.num), 10), nil
	case KindUint:
		return strconv.AppendUint(nil, v.num, 10), nil
	case KindFloat:
		f := math.Float64frombits(v.num)
		switch {
		case math.IsNaN(f):
			return []byte(`"NaN"`), nil
		case math.IsInf(f, 1):
			return []byte(`"Infinity"`), nil
		case math.IsInf(f, -1):
			return []byte(`"-Infinity"`), nil
		}
		return json.Marshal(f)
	case KindText:
		return json.Marshal(v.str)
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, el := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := el.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := v.obj[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("nested: cannot marshal %s value", v.kind)
	}
}

// UnmarshalJSON parses a JSON document back into a Value tree. Numbers
// that look integral become Int (or Uint when they only fit unsigned),
// everything else numeric becomes Float. null parses to the removed
// marker, the inverse of how deltas are rendered.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	tok, err := dec.Token()
	if err == nil {
		return fmt.Errorf("nested: trailing token %v after value", tok)
	}
	*v = *parsed
	return nil
}

func decodeValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case nil:
		return Removed(), nil
	case bool:
		return Bool(t), nil
	case string:
		return Text(t), nil
	case json.Number:
		if i, err := strconv.ParseInt(t.String(), 10, 64); err == nil {
			return Int(i), nil
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return Uint(u), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("nested: bad number %q", t.String())
		}
		return Float(f), nil
	case json.Delim:
		switch t {
		case '[':
			arr := Array(0)
			for dec.More() {
				el, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr.arr = append(arr.arr, el)
			}
			if _, err := dec.Token(); err != nil { // closing ]
				return nil, err
			}
			return arr, nil
		case '{':
			obj := Object()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("nested: object key %v is not a string", keyTok)
				}
				child, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.obj[key] = child
			}
			if _, err := dec.Token(); err != nil { // closing }
				return nil, err
			}
			return obj, nil
		}
	}
	return nil, fmt.Errorf("nested: unexpected token %v", tok)
}

// String renders the tree as compact JSON for logs and test failures.
func (v *Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "<" + v.Kind().String() + ">"
	}
	return string(b)
}
