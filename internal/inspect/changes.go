package inspect

import (
	"context"
	"sort"
	"time"

	"github.com/framesift/framesift/internal/decode"
	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/nested"
	"github.com/framesift/framesift/internal/replay"
	"github.com/framesift/framesift/internal/schema"
	"github.com/framesift/framesift/internal/timeline"
)

// defaultTrackedElements is how many leading elements are tracked when a
// request names none.
const defaultTrackedElements = 8

// BufferChangesRequest asks for the change timeline of specific elements
// of a structured buffer. Empty Indices tracks the first elements present
// when the buffer first shows up.
type BufferChangesRequest struct {
	Resource string `json:"resource"`
	Indices  []int  `json:"indices,omitempty"`
}

// ElementTimeline is one element's distilled history.
type ElementTimeline struct {
	Index        int              `json:"index"`
	InitialPoint uint64           `json:"initial_point_id"`
	Initial      *nested.Value    `json:"initial_state"`
	Changes      []timeline.Delta `json:"changes"`
}

// BufferChangesResult carries per-element timelines over every
// observation point.
type BufferChangesResult struct {
	ResourceID    uint64            `json:"resource_id"`
	ResourceName  string            `json:"resource_name"`
	Stride        uint32            `json:"stride"`
	PointsScanned int               `json:"points_scanned"`
	Elements      []ElementTimeline `json:"elements"`
	TotalChanges  int               `json:"total_changes"`
}

// BufferChanges tracks the requested elements across all observation
// points: each element's first decodable state, then a sparse delta per
// point where it changed. Points where the buffer has no recorded
// contents, or too few bytes for an element, simply do not observe it.
func (ins *Inspector) BufferChanges(ctx context.Context, req BufferChangesRequest) (result *BufferChangesResult, err error) {
	start := time.Now()
	defer func() { observe("buffer_changes", start, err) }()

	res, err := ins.Resolve(req.Resource, replay.KindBuffer)
	if err != nil {
		return nil, err
	}
	_, layout, err := ins.layoutFor(res.ID)
	if err != nil {
		return nil, err
	}
	if !layout.HasFields() {
		return nil, errors.NewSchemaUnavailableError("inspect.BufferChanges",
			"layout flattens to no decodable fields").
			WithContext("resource", res.Name)
	}

	indices := req.Indices
	if len(indices) == 0 {
		indices = ins.defaultIndices(res.ID, layout)
	}
	for _, idx := range indices {
		if idx < 0 {
			return nil, errors.NewValidationError("inspect.BufferChanges",
				"negative element index").WithContext("index", idx)
		}
	}

	points := ins.ctrl.PointIDs()
	stride := uint64(layout.Stride)
	logs, err := timeline.Track(ctx, points, indices,
		func(point uint64, idx int) (*nested.Value, bool) {
			raw, err := ins.ctrl.ReadBuffer(point, res.ID, uint64(idx)*stride, stride)
			if err != nil || uint64(len(raw)) < stride {
				return nil, false
			}
			snap, err := decode.Snapshot(raw, layout, 0)
			if err != nil {
				return nil, false
			}
			return snap, true
		})
	if err != nil {
		return nil, err
	}

	result = &BufferChangesResult{
		ResourceID:    res.ID,
		ResourceName:  res.Name,
		Stride:        layout.Stride,
		PointsScanned: len(points),
	}
	for _, log := range logs {
		result.Elements = append(result.Elements, ElementTimeline{
			Index:        log.Key,
			InitialPoint: log.FirstPoint,
			Initial:      log.Initial,
			Changes:      log.Deltas,
		})
		result.TotalChanges += len(log.Deltas)
	}
	sort.Slice(result.Elements, func(i, j int) bool {
		return result.Elements[i].Index < result.Elements[j].Index
	})
	return result, nil
}

// defaultIndices picks the leading elements available the first time the
// buffer holds any data.
func (ins *Inspector) defaultIndices(resourceID uint64, layout *schema.Layout) []int {
	for _, point := range ins.ctrl.PointIDs() {
		raw, err := ins.ctrl.ReadBuffer(point, resourceID, 0, 0)
		if err != nil || len(raw) == 0 {
			continue
		}
		n := decode.Count(raw, layout)
		if n > defaultTrackedElements {
			n = defaultTrackedElements
		}
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	return []int{0}
}
