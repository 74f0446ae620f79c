package inspect

import (
	"context"
	"time"
)

// ResourceWritesRequest asks which points wrote to a resource.
type ResourceWritesRequest struct {
	Resource string `json:"resource"`
}

// WriteEvent is one point that wrote, and through which attachments.
type WriteEvent struct {
	Point uint64   `json:"point_id"`
	Label string   `json:"label,omitempty"`
	Via   []string `json:"via"`
}

// ResourceWritesResult lists every writing point in replay order.
type ResourceWritesResult struct {
	ResourceID   uint64       `json:"resource_id"`
	ResourceName string       `json:"resource_name"`
	WriteCount   int          `json:"write_count"`
	Writes       []WriteEvent `json:"writes"`
}

// ResourceWrites scans every observation point and reports those whose
// action could write the resource: bound as a color target, as the depth
// target, through a read-write binding, or via an explicit writing use
// such as a copy destination or clear.
func (ins *Inspector) ResourceWrites(ctx context.Context, req ResourceWritesRequest) (result *ResourceWritesResult, err error) {
	start := time.Now()
	defer func() { observe("resource_writes", start, err) }()

	res, err := ins.Resolve(req.Resource)
	if err != nil {
		return nil, err
	}

	byPoint := make(map[uint64][]string)
	for _, use := range ins.ctrl.Uses(res.ID) {
		if use.Kind.MayWrite() {
			byPoint[use.Point] = append(byPoint[use.Point], string(use.Kind))
		}
	}

	result = &ResourceWritesResult{
		ResourceID:   res.ID,
		ResourceName: res.Name,
	}
	for _, point := range ins.ctrl.PointIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		via, ok := byPoint[point]
		if !ok {
			continue
		}
		event := WriteEvent{Point: point, Via: via}
		if action, found := ins.ctrl.Action(point); found {
			event.Label = action.Label
		}
		result.Writes = append(result.Writes, event)
	}
	result.WriteCount = len(result.Writes)
	return result, nil
}
