package inspect

import (
	"context"
	"time"

	"github.com/framesift/framesift/internal/decode"
	"github.com/framesift/framesift/internal/nested"
	"github.com/framesift/framesift/internal/replay"
	"github.com/framesift/framesift/internal/schema"
)

// fieldNameCap bounds how many flattened field names a details summary
// lists; the full structure is always present in Schema.
const fieldNameCap = 20

// BufferDetailsRequest names a buffer and optionally asks for the first
// Preview instances decoded at the earliest point that holds data.
type BufferDetailsRequest struct {
	Resource string `json:"resource"`
	Preview  int    `json:"preview,omitempty"`
}

// FieldSummary is one flattened leaf of the buffer's layout.
type FieldSummary struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
	Kind   string `json:"kind"`
}

// UseEntry is one point that touched the buffer.
type UseEntry struct {
	Point uint64 `json:"point_id"`
	Label string `json:"label,omitempty"`
	Kind  string `json:"kind"`
}

// BufferDetailsResult summarizes a buffer's declared layout and usage.
type BufferDetailsResult struct {
	ResourceID      uint64           `json:"resource_id"`
	ResourceName    string           `json:"resource_name"`
	ShaderID        uint64           `json:"shader_id,omitempty"`
	BindingName     string           `json:"binding_name,omitempty"`
	ReadWrite       bool             `json:"read_write,omitempty"`
	Stride          uint32           `json:"stride"`
	FieldCount      int              `json:"field_count"`
	Fields          []FieldSummary   `json:"fields"`
	FieldsTruncated bool             `json:"fields_truncated,omitempty"`
	Schema          any              `json:"schema"`
	Uses            []UseEntry       `json:"uses,omitempty"`
	InstanceCount   int              `json:"instance_count,omitempty"`
	PreviewPoint    uint64           `json:"preview_point_id,omitempty"`
	Preview         []*nested.Value  `json:"preview,omitempty"`
}

// BufferDetails resolves a buffer and reports its flattened layout,
// stride, usage list, and an optional decoded preview of its first
// instances.
func (ins *Inspector) BufferDetails(ctx context.Context, req BufferDetailsRequest) (result *BufferDetailsResult, err error) {
	start := time.Now()
	defer func() { observe("buffer_details", start, err) }()

	res, err := ins.Resolve(req.Resource, replay.KindBuffer)
	if err != nil {
		return nil, err
	}
	ref, layout, err := ins.layoutFor(res.ID)
	if err != nil {
		return nil, err
	}

	result = &BufferDetailsResult{
		ResourceID:   res.ID,
		ResourceName: res.Name,
		ShaderID:     ref.ShaderID,
		BindingName:  ref.Name,
		ReadWrite:    ref.ReadWrite,
		Stride:       layout.Stride,
		FieldCount:   len(layout.Fields),
		Schema:       schema.Describe(ref.Type),
	}

	for i, f := range layout.Fields {
		if i == fieldNameCap {
			result.FieldsTruncated = true
			break
		}
		result.Fields = append(result.Fields, FieldSummary{
			Name:   f.Name,
			Offset: f.Offset,
			Kind:   f.Kind.String(),
		})
	}

	for _, use := range ins.ctrl.Uses(res.ID) {
		entry := UseEntry{Point: use.Point, Kind: string(use.Kind)}
		if action, ok := ins.ctrl.Action(use.Point); ok {
			entry.Label = action.Label
		}
		result.Uses = append(result.Uses, entry)
	}

	if req.Preview > 0 {
		ins.previewInstances(ctx, res.ID, layout, req.Preview, result)
	}
	return result, nil
}

// previewInstances decodes the first asked-for instances at the earliest
// point that recorded contents. Preview failures degrade to an absent
// preview rather than failing the summary.
func (ins *Inspector) previewInstances(ctx context.Context, resourceID uint64, layout *schema.Layout, count int, result *BufferDetailsResult) {
	for _, point := range ins.ctrl.PointIDs() {
		raw, err := ins.ctrl.ReadBuffer(point, resourceID, 0, 0)
		if err != nil || len(raw) == 0 {
			continue
		}
		available := decode.Count(raw, layout)
		result.InstanceCount = available
		result.PreviewPoint = point
		if count > available {
			count = available
		}
		for i := 0; i < count; i++ {
			snap, err := decode.Snapshot(raw, layout, i)
			if err != nil {
				ins.logger.Debug(ctx, "preview decode failed", map[string]any{
					"resource": resourceID, "instance": i, "error": err.Error(),
				})
				break
			}
			result.Preview = append(result.Preview, snap)
		}
		return
	}
}
