package schema

import (
	"fmt"
	"strconv"
)

// Describe renders a type tree as a JSON-friendly summary for humans:
// scalars become strings like "float32", "float32[4]", "float32[4][4]" or
// "float32[3] x 8"; composites become ordered name/type pair lists; arrayed
// composites become {"array": N, "stride": S, "element": ...} wrappers.
// Output is labeling only and never feeds back into decoding.
func Describe(node *TypeNode) any {
	if node == nil {
		return nil
	}

	if node.IsScalar() {
		return describeScalar(node)
	}

	inner := make([]MemberDescription, 0, len(node.Members))
	for _, m := range node.Members {
		inner = append(inner, MemberDescription{
			Name:   m.Name,
			Offset: m.Offset,
			Type:   Describe(m.Type),
		})
	}

	var desc any = CompositeDescription{Name: node.Name, Members: inner}
	if node.elementCount() > 1 {
		desc = ArrayDescription{
			Count:   node.Elements,
			Stride:  node.ArrayStride,
			Element: desc,
		}
	}
	return desc
}

// CompositeDescription is the human-readable form of a composite node
type CompositeDescription struct {
	Name    string              `json:"name,omitempty"`
	Members []MemberDescription `json:"members"`
}

// MemberDescription is one named slot of a CompositeDescription
type MemberDescription struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
	Type   any    `json:"type"`
}

// ArrayDescription wraps the description of a repeated composite
type ArrayDescription struct {
	Count   uint32 `json:"array"`
	Stride  uint32 `json:"stride,omitempty"`
	Element any    `json:"element"`
}

func describeScalar(node *TypeNode) string {
	s := node.Kind.String()
	rows, cols := node.shape()
	switch {
	case rows > 1 && cols > 1:
		s += fmt.Sprintf("[%d][%d]", rows, cols)
	case rows*cols > 1:
		s += "[" + strconv.FormatUint(uint64(rows*cols), 10) + "]"
	}
	if node.elementCount() > 1 {
		s += " x " + strconv.FormatUint(uint64(node.Elements), 10)
	}
	return s
}
