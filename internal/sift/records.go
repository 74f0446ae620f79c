package sift

import (
	"github.com/framesift/framesift/internal/decode"
	"github.com/framesift/framesift/internal/metrics"
	"github.com/framesift/framesift/internal/nested"
	"github.com/framesift/framesift/internal/schema"
)

// RecordDelta pairs a record instance index with its structural delta.
type RecordDelta struct {
	Index int           `json:"index"`
	Delta *nested.Value `json:"delta"`
}

// Records walks two versions of a structured buffer record by record and
// returns the instances whose rebuilt trees differ. Only the instances
// both versions fully hold are compared. The scan stops early once
// maxChanged deltas (if > 0) have been collected; truncated reports
// whether it did.
func Records(old, new []byte, layout *schema.Layout, maxChanged int) (deltas []RecordDelta, truncated bool, err error) {
	metrics.DiffOperationsTotal.WithLabelValues("records").Inc()

	count := decode.Count(old, layout)
	if n := decode.Count(new, layout); n < count {
		count = n
	}
	for i := 0; i < count; i++ {
		oldSnap, err := decode.Snapshot(old, layout, i)
		if err != nil {
			return nil, false, err
		}
		newSnap, err := decode.Snapshot(new, layout, i)
		if err != nil {
			return nil, false, err
		}
		if d := diffValue(oldSnap, newSnap); d != nil {
			deltas = append(deltas, RecordDelta{Index: i, Delta: d})
			if maxChanged > 0 && len(deltas) >= maxChanged {
				truncated = i < count-1
				break
			}
		}
	}
	return deltas, truncated, nil
}
