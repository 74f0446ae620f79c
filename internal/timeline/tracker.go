// Package timeline distills per-instance change histories out of an
// ordered pass over replay observation points.
package timeline

import (
	"context"

	"github.com/framesift/framesift/internal/metrics"
	"github.com/framesift/framesift/internal/nested"
	"github.com/framesift/framesift/internal/sift"
)

// Delta is one observed change of a tracked instance.
type Delta struct {
	Point uint64        `json:"point_id"`
	Patch *nested.Value `json:"delta"`
}

// Log is the distilled history of one tracked instance: the point where
// it was first decodable, its full state there, and a sparse delta for
// every later point where it changed.
type Log[K comparable] struct {
	Key        K             `json:"-"`
	FirstPoint uint64        `json:"initial_point_id"`
	Initial    *nested.Value `json:"initial_state"`
	Deltas     []Delta       `json:"changes"`
}

// Tracker carries per-instance state through one ordered pass. Each
// instance moves from unseen to seen on its first decodable observation;
// after that, every observation diffs against the last seen value and
// appends a delta only when something changed. Observations that fail to
// decode leave the instance's state untouched.
//
// A Tracker is single-goroutine state; concurrent passes get their own.
type Tracker[K comparable] struct {
	states map[K]*state
	order  []K
}

type state struct {
	firstPoint uint64
	initial    *nested.Value
	last       *nested.Value
	deltas     []Delta
}

// NewTracker returns an empty tracker.
func NewTracker[K comparable]() *Tracker[K] {
	return &Tracker[K]{states: make(map[K]*state)}
}

// Observe feeds one instance's value at one point. Points must arrive in
// replay order. A nil value records nothing.
func (t *Tracker[K]) Observe(point uint64, key K, value *nested.Value) {
	if value == nil {
		return
	}
	st, ok := t.states[key]
	if !ok {
		t.states[key] = &state{firstPoint: point, initial: value, last: value}
		t.order = append(t.order, key)
		return
	}
	if d := sift.Nested(st.last, value); d != nil {
		st.deltas = append(st.deltas, Delta{Point: point, Patch: d})
		st.last = value
		metrics.TrackerDeltasEmittedTotal.Inc()
	}
}

// Seen reports whether the instance has had a decodable observation.
func (t *Tracker[K]) Seen(key K) bool {
	_, ok := t.states[key]
	return ok
}

// Logs returns one log per observed instance, in first-seen order.
// Instances that never produced a decodable observation are absent.
func (t *Tracker[K]) Logs() []Log[K] {
	logs := make([]Log[K], 0, len(t.order))
	for _, k := range t.order {
		st := t.states[k]
		logs = append(logs, Log[K]{
			Key:        k,
			FirstPoint: st.firstPoint,
			Initial:    st.initial,
			Deltas:     st.deltas,
		})
	}
	return logs
}

// ReadValue produces the value of one tracked instance at one point.
// ok false means the instance had nothing decodable there and that point
// is skipped for it.
type ReadValue[K comparable] func(point uint64, key K) (*nested.Value, bool)

// Track runs one ordered pass over points, observing every key at every
// point through read, and returns the per-instance logs.
func Track[K comparable](ctx context.Context, points []uint64, keys []K, read ReadValue[K]) ([]Log[K], error) {
	tracker := NewTracker[K]()
	for _, point := range points {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		metrics.TrackerPointsVisitedTotal.Inc()
		for _, key := range keys {
			if value, ok := read(point, key); ok {
				tracker.Observe(point, key, value)
			}
		}
	}
	return tracker.Logs(), nil
}
