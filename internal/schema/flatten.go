package schema

import (
	"fmt"
	"strconv"
	"time"

	"github.com/framesift/framesift/internal/metrics"
)

// PathStep is one step of a flattened field's location inside the nested
// value tree: a composite member key or an array index. Steps are built
// during flattening so no string parsing ever happens on the way back up.
type PathStep struct {
	Key   string `json:"key,omitempty"`
	Index int    `json:"index"`
}

// KeyStep returns an object-member step
func KeyStep(key string) PathStep {
	return PathStep{Key: key, Index: -1}
}

// IndexStep returns an array-index step
func IndexStep(i int) PathStep {
	return PathStep{Index: i}
}

// IsIndex reports whether the step addresses an array element
func (s PathStep) IsIndex() bool {
	return s.Key == ""
}

// FieldPath addresses one leaf scalar within a record instance: a rendered
// name for output ("a.b[2].c[0][1]"), the structured steps to the same
// location, the absolute byte offset from the instance start, and the
// scalar kind that decides the decode rule.
//
// FieldPaths are derived once per distinct schema and shared read-only
// across every decode that uses them.
type FieldPath struct {
	Name   string
	Steps  []PathStep
	Offset uint32
	Kind   ScalarKind
}

// Layout is the flattened form of one record type: the ordered leaf fields
// and the distance between consecutive record instances.
type Layout struct {
	Fields []FieldPath
	Stride uint32
}

// HasFields reports whether any leaf scalar could be mapped to a decode
// rule. An empty layout means no structured view of the bytes exists and
// callers fall back to byte-level handling.
func (l *Layout) HasFields() bool {
	return l != nil && len(l.Fields) > 0
}

// Flatten converts a type tree into a Layout.
//
// The single-member wrapper struct that reflection emits around runtime
// arrays is skipped once: when the root composite has exactly one member
// whose type is a composite with members of its own, the wrapper member's
// name is dropped and its offset becomes the base of the inner members.
//
// Stride resolution order: the root's declared array stride, else the
// unwrapped inner composite's declared stride, else the smallest span
// covering every flattened leaf.
func Flatten(root *TypeNode) (*Layout, error) {
	if root == nil {
		return nil, fmt.Errorf("flatten: nil type node")
	}
	start := time.Now()
	defer func() {
		metrics.SchemaFlattenDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	var fields []FieldPath
	stride := root.ArrayStride

	if root.IsScalar() {
		fields = appendScalar(fields, "", nil, root, 0)
	} else {
		members := root.Members
		base := uint32(0)
		if len(members) == 1 && members[0].Type.IsComposite() && len(members[0].Type.Members) > 0 {
			inner := members[0].Type
			base = members[0].Offset
			members = inner.Members
			if stride == 0 {
				stride = inner.ArrayStride
			}
		}
		for _, m := range members {
			fields = appendNode(fields, m.Name, []PathStep{KeyStep(m.Name)}, m.Type, base+m.Offset)
		}
	}

	if stride == 0 {
		for _, f := range fields {
			if end := f.Offset + f.Kind.Width(); end > stride {
				stride = end
			}
		}
	}

	return &Layout{Fields: fields, Stride: stride}, nil
}

// appendNode flattens node (composite or scalar) located at base, reachable
// through name/steps, appending leaf fields to out.
func appendNode(out []FieldPath, name string, steps []PathStep, node *TypeNode, base uint32) []FieldPath {
	if node == nil {
		return out
	}
	if node.IsScalar() {
		return appendScalar(out, name, steps, node, base)
	}

	count := node.elementCount()
	for i := uint32(0); i < count; i++ {
		elemName := name
		elemSteps := steps
		elemBase := base
		if count > 1 {
			elemName = name + "[" + strconv.FormatUint(uint64(i), 10) + "]"
			elemSteps = appendStep(steps, IndexStep(int(i)))
			elemBase = base + i*node.ArrayStride
		}
		for _, m := range node.Members {
			childName := m.Name
			if elemName != "" {
				childName = elemName + "." + m.Name
			}
			childSteps := appendStep(elemSteps, KeyStep(m.Name))
			out = appendNode(out, childName, childSteps, m.Type, elemBase+m.Offset)
		}
	}
	return out
}

// appendScalar expands one scalar leaf into per-element, per-component
// fields. Unknown kinds flatten to nothing, mirroring reflection entries
// that carry no decodable primitive.
func appendScalar(out []FieldPath, name string, steps []PathStep, node *TypeNode, base uint32) []FieldPath {
	width := node.Kind.Width()
	if width == 0 {
		return out
	}

	rows, cols := node.shape()
	comps := rows * cols
	count := node.elementCount()

	for e := uint32(0); e < count; e++ {
		elemName := name
		elemSteps := steps
		elemBase := base
		if count > 1 {
			elemName = name + "[" + strconv.FormatUint(uint64(e), 10) + "]"
			elemSteps = appendStep(steps, IndexStep(int(e)))
			elemBase = base + e*node.ArrayStride
		}
		for c := uint32(0); c < comps; c++ {
			compName := elemName
			compSteps := elemSteps
			switch {
			case rows > 1 && cols > 1:
				r, col := c/cols, c%cols
				compName = fmt.Sprintf("%s[%d][%d]", elemName, r, col)
				compSteps = appendStep(appendStep(elemSteps, IndexStep(int(r))), IndexStep(int(col)))
			case comps > 1:
				compName = elemName + "[" + strconv.FormatUint(uint64(c), 10) + "]"
				compSteps = appendStep(elemSteps, IndexStep(int(c)))
			}
			out = append(out, FieldPath{
				Name:   compName,
				Steps:  compSteps,
				Offset: elemBase + c*width,
				Kind:   node.Kind,
			})
		}
	}
	return out
}

// appendStep copies on append so sibling fields never alias step slices.
func appendStep(steps []PathStep, next PathStep) []PathStep {
	dst := make([]PathStep, len(steps), len(steps)+1)
	copy(dst, steps)
	return append(dst, next)
}
