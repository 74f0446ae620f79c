package nested

import (
	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/schema"
)

// ZeroValue returns the leaf a failed decode collapses to: 0, 0.0 or
// false depending on the scalar kind.
func ZeroValue(kind schema.ScalarKind) *Value {
	switch {
	case kind == schema.Bool:
		return Bool(false)
	case kind.IsFloat():
		return Float(0)
	case kind.IsSigned():
		return Int(0)
	default:
		return Uint(0)
	}
}

// Rebuild reassembles decoded leaf scalars into the nested tree their
// field paths describe. values runs parallel to fields; a nil entry marks
// a leaf whose bytes could not be decoded and is replaced by the zero
// value of the field's scalar kind, so the result is always a complete
// tree with no holes.
//
// The walk is purely structural: key steps create or reuse object members,
// index steps create or reuse array slots, and no field name is ever
// parsed. Rebuilding the same inputs twice yields trees that compare Equal.
func Rebuild(fields []schema.FieldPath, values []*Value) (*Value, error) {
	if len(fields) != len(values) {
		return nil, errors.NewValidationError("nested.Rebuild",
			"field and value counts differ").
			WithContext("fields", len(fields)).
			WithContext("values", len(values))
	}
	if len(fields) == 0 {
		return Object(), nil
	}

	// A single field with no steps is a bare scalar root.
	if len(fields[0].Steps) == 0 {
		if len(fields) != 1 {
			return nil, errors.NewValidationError("nested.Rebuild",
				"multiple fields share an empty path")
		}
		return leafOrZero(fields[0], values[0]), nil
	}

	root := containerFor(fields[0].Steps[0])
	for i, f := range fields {
		if len(f.Steps) == 0 {
			return nil, errors.NewValidationError("nested.Rebuild",
				"field has an empty path").WithContext("field", f.Name)
		}
		if err := insert(root, f, leafOrZero(f, values[i])); err != nil {
			return nil, err
		}
	}
	fillHoles(root)
	return root, nil
}

func leafOrZero(f schema.FieldPath, v *Value) *Value {
	if v.Kind() == KindInvalid {
		return ZeroValue(f.Kind)
	}
	return v
}

func containerFor(step schema.PathStep) *Value {
	if step.IsIndex() {
		return Array(0)
	}
	return Object()
}

// insert walks the field's steps from root, materializing intermediate
// containers, and places leaf at the final step.
func insert(root *Value, f schema.FieldPath, leaf *Value) error {
	node := root
	for i, step := range f.Steps {
		if err := checkStep(node, step, f.Name); err != nil {
			return err
		}
		last := i == len(f.Steps)-1
		if last {
			placeChild(node, step, leaf)
			return nil
		}
		next := childAt(node, step)
		if next == nil {
			next = containerFor(f.Steps[i+1])
			placeChild(node, step, next)
		}
		node = next
	}
	return nil
}

func checkStep(node *Value, step schema.PathStep, field string) error {
	want := KindObject
	if step.IsIndex() {
		want = KindArray
	}
	if node.Kind() != want {
		return errors.NewValidationError("nested.Rebuild",
			"field paths disagree about the tree shape").
			WithContext("field", field).
			WithContext("found", node.Kind().String())
	}
	return nil
}

func childAt(node *Value, step schema.PathStep) *Value {
	if step.IsIndex() {
		return node.Index(step.Index)
	}
	child, _ := node.Field(step.Key)
	return child
}

func placeChild(node *Value, step schema.PathStep, child *Value) {
	if step.IsIndex() {
		node.SetIndex(step.Index, child)
	} else {
		node.SetField(step.Key, child)
	}
}

// fillHoles replaces array slots no field path touched. Flattened layouts
// cover every index of every array they expand, so holes only appear when
// rebuilding from a filtered field subset; they fill with integer zero.
func fillHoles(v *Value) {
	switch v.Kind() {
	case KindArray:
		for i, el := range v.arr {
			if el == nil {
				v.arr[i] = Int(0)
				continue
			}
			fillHoles(el)
		}
	case KindObject:
		for _, child := range v.obj {
			fillHoles(child)
		}
	}
}
