package inspect

import (
	"context"
	"sort"
	"time"

	"github.com/framesift/framesift/internal/nested"
	"github.com/framesift/framesift/internal/replay"
	"github.com/framesift/framesift/internal/timeline"
)

// BindingChangesRequest asks how a pipeline's bound resources evolved.
type BindingChangesRequest struct {
	Pipeline string `json:"pipeline"`
}

// BindingKey identifies one binding slot across points.
type BindingKey struct {
	Stage string          `json:"stage"`
	Bind  replay.BindKind `json:"bind"`
	Set   uint32          `json:"set"`
	Slot  uint32          `json:"slot"`
	Name  string          `json:"name,omitempty"`
}

// BindingTimeline is one slot's distilled history. States are objects of
// the form {"resource_id": id, "resource_name": name}; a resource id of
// zero means the slot was declared but unbound.
type BindingTimeline struct {
	Key          BindingKey       `json:"key"`
	InitialPoint uint64           `json:"initial_point_id"`
	Initial      *nested.Value    `json:"initial_state"`
	Changes      []timeline.Delta `json:"changes"`
}

// BindingChangesResult carries per-slot timelines over the points where
// the pipeline was active.
type BindingChangesResult struct {
	PipelineID    uint64            `json:"pipeline_id"`
	PipelineName  string            `json:"pipeline_name"`
	PointsScanned int               `json:"points_scanned"`
	Bindings      []BindingTimeline `json:"bindings"`
	TotalChanges  int               `json:"total_changes"`
}

// BindingChanges walks the points where the pipeline executed and tracks
// what every binding slot pointed at, reporting the initial map and a
// sparse delta per rebind. A slot that stops being declared produces no
// further observations rather than a removal, mirroring how pipeline
// state is reported per point.
func (ins *Inspector) BindingChanges(ctx context.Context, req BindingChangesRequest) (result *BindingChangesResult, err error) {
	start := time.Now()
	defer func() { observe("binding_changes", start, err) }()

	res, err := ins.Resolve(req.Pipeline, replay.KindPipeline)
	if err != nil {
		return nil, err
	}

	tracker := timeline.NewTracker[BindingKey]()
	scanned := 0
	for _, point := range ins.ctrl.PointIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if active, ok := ins.ctrl.ActivePipeline(point); !ok || active != res.ID {
			continue
		}
		scanned++
		for _, b := range ins.ctrl.Bindings(point) {
			key := BindingKey{Stage: b.Stage, Bind: b.Bind, Set: b.Set, Slot: b.Slot, Name: b.Name}
			tracker.Observe(point, key, ins.bindingValue(b.ResourceID))
		}
	}

	result = &BindingChangesResult{
		PipelineID:    res.ID,
		PipelineName:  res.Name,
		PointsScanned: scanned,
	}
	for _, log := range tracker.Logs() {
		result.Bindings = append(result.Bindings, BindingTimeline{
			Key:          log.Key,
			InitialPoint: log.FirstPoint,
			Initial:      log.Initial,
			Changes:      log.Deltas,
		})
		result.TotalChanges += len(log.Deltas)
	}
	sort.Slice(result.Bindings, func(i, j int) bool {
		a, b := result.Bindings[i].Key, result.Bindings[j].Key
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.Bind != b.Bind {
			return a.Bind < b.Bind
		}
		if a.Set != b.Set {
			return a.Set < b.Set
		}
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		return a.Name < b.Name
	})
	return result, nil
}

// bindingValue renders a bound resource as a diffable value.
func (ins *Inspector) bindingValue(resourceID uint64) *nested.Value {
	obj := nested.Object()
	obj.SetField("resource_id", nested.Uint(resourceID))
	name := ""
	if res, ok := ins.ctrl.ResourceByID(resourceID); ok {
		name = res.Name
	}
	obj.SetField("resource_name", nested.Text(name))
	return obj
}
