package schema

import (
	"github.com/framesift/framesift/internal/errors"
)

// Member is one named field of a composite type, at a byte offset relative
// to the start of its parent.
type Member struct {
	Name   string    `json:"name"`
	Offset uint32    `json:"offset"`
	Type   *TypeNode `json:"type"`
}

// TypeNode describes one node of a record layout as discovered from shader
// reflection. A node is either a composite (Members non-empty, Kind Invalid)
// or a scalar leaf (Kind set, no Members). A node with neither is a valid
// empty composite and flattens to nothing.
//
// Arrays attach to the node itself: Elements > 1 means the node repeats
// Elements times, ArrayStride bytes apart. Scalars additionally carry a
// Rows x Columns shape for vectors and matrices; components are laid out
// row-major, Width() bytes apart.
//
// TypeNode trees are immutable once built; one tree is built per distinct
// shader/resource pairing and shared read-only (see LayoutCache).
type TypeNode struct {
	Name        string     `json:"name,omitempty"`
	Kind        ScalarKind `json:"kind,omitempty"`
	Rows        uint8      `json:"rows,omitempty"`
	Columns     uint8      `json:"columns,omitempty"`
	Elements    uint32     `json:"elements,omitempty"`
	ArrayStride uint32     `json:"arrayStride,omitempty"`
	Members     []Member   `json:"members,omitempty"`
}

// IsScalar reports whether the node is a scalar leaf
func (n *TypeNode) IsScalar() bool {
	return n != nil && n.Kind != Invalid && len(n.Members) == 0
}

// IsComposite reports whether the node is a composite (possibly empty)
func (n *TypeNode) IsComposite() bool {
	return n != nil && !n.IsScalar()
}

// rows and columns default to 1 when reflection omits them
func (n *TypeNode) shape() (rows, cols uint32) {
	rows, cols = uint32(n.Rows), uint32(n.Columns)
	if rows == 0 {
		rows = 1
	}
	if cols == 0 {
		cols = 1
	}
	return rows, cols
}

func (n *TypeNode) elementCount() uint32 {
	if n.Elements == 0 {
		return 1
	}
	return n.Elements
}

// Validate checks structural well-formedness of the whole tree. It does not
// reject unknown scalar kinds inside members (those members simply flatten to
// nothing, which callers detect as an absent layout).
func (n *TypeNode) Validate() error {
	if n == nil {
		return errors.NewValidationError("schema.Validate", "nil type node")
	}
	return n.validate("")
}

func (n *TypeNode) validate(path string) error {
	if n.Kind != Invalid && len(n.Members) > 0 {
		return errors.NewValidationError("schema.Validate", "node is both scalar and composite").
			WithContext("path", path).WithContext("name", n.Name)
	}
	if n.Elements > 1 && n.IsComposite() && n.ArrayStride == 0 {
		return errors.NewValidationError("schema.Validate", "arrayed composite missing array stride").
			WithContext("path", path).WithContext("name", n.Name)
	}
	for _, m := range n.Members {
		if m.Type == nil {
			return errors.NewValidationError("schema.Validate", "member has nil type").
				WithContext("path", path).WithContext("member", m.Name)
		}
		childPath := m.Name
		if path != "" {
			childPath = path + "." + m.Name
		}
		if err := m.Type.validate(childPath); err != nil {
			return err
		}
	}
	return nil
}

// Constructors used when building trees by hand (tests, fixtures); loaded
// dumps unmarshal the struct directly.

// Scalar builds a plain scalar leaf
func Scalar(kind ScalarKind) *TypeNode {
	return &TypeNode{Kind: kind}
}

// Vector builds a scalar leaf with components columns
func Vector(kind ScalarKind, components uint8) *TypeNode {
	return &TypeNode{Kind: kind, Columns: components}
}

// Matrix builds a rows x columns scalar leaf
func Matrix(kind ScalarKind, rows, columns uint8) *TypeNode {
	return &TypeNode{Kind: kind, Rows: rows, Columns: columns}
}

// Array returns a copy of node repeated count times, stride bytes apart
func Array(node *TypeNode, count, stride uint32) *TypeNode {
	arr := *node
	arr.Elements = count
	arr.ArrayStride = stride
	return &arr
}

// Struct builds a named composite from members
func Struct(name string, members ...Member) *TypeNode {
	return &TypeNode{Name: name, Members: members}
}

// Field builds one composite member
func Field(name string, offset uint32, t *TypeNode) Member {
	return Member{Name: name, Offset: offset, Type: t}
}
