// Package sift computes what changed between two observations of the same
// resource, at whichever granularity the data supports: sparse structural
// deltas over rebuilt value trees, contiguous byte regions, and 32-bit
// word deltas for buffers with no known layout.
package sift

import (
	"strconv"

	"github.com/framesift/framesift/internal/metrics"
	"github.com/framesift/framesift/internal/nested"
)

// Nested compares two value trees and returns a sparse delta holding only
// what changed, or nil when the trees are equal.
//
// Objects diff key by key: added and changed keys carry the new subtree's
// delta, keys present only in the old tree map to the removed marker.
// Arrays of equal length diff per index, keyed by the stringified index;
// a length change replaces the array wholesale. Any kind mismatch between
// old and new also replaces wholesale. Scalars compare bitwise, so a NaN
// that stays put is not a change.
//
// The delta shares subtrees with new; neither input is modified.
func Nested(old, new *nested.Value) *nested.Value {
	metrics.DiffOperationsTotal.WithLabelValues("nested").Inc()
	return diffValue(old, new)
}

func diffValue(old, new *nested.Value) *nested.Value {
	if old.Kind() != new.Kind() {
		return new
	}
	switch old.Kind() {
	case nested.KindObject:
		return diffObject(old, new)
	case nested.KindArray:
		return diffArray(old, new)
	default:
		if nested.Equal(old, new) {
			return nil
		}
		return new
	}
}

func diffObject(old, new *nested.Value) *nested.Value {
	patch := nested.Object()
	for _, k := range new.Keys() {
		nv, _ := new.Field(k)
		ov, ok := old.Field(k)
		if !ok {
			patch.SetField(k, nv)
			continue
		}
		if d := diffValue(ov, nv); d != nil {
			patch.SetField(k, d)
		}
	}
	for _, k := range old.Keys() {
		if _, ok := new.Field(k); !ok {
			patch.SetField(k, nested.Removed())
		}
	}
	if patch.Len() == 0 {
		return nil
	}
	return patch
}

func diffArray(old, new *nested.Value) *nested.Value {
	if old.Len() != new.Len() {
		return new
	}
	patch := nested.Object()
	for i := 0; i < new.Len(); i++ {
		if d := diffValue(old.Index(i), new.Index(i)); d != nil {
			patch.SetField(strconv.Itoa(i), d)
		}
	}
	if patch.Len() == 0 {
		return nil
	}
	return patch
}
