package inspect

import (
	"bytes"
	"context"
	"time"

	"github.com/framesift/framesift/internal/replay"
	"github.com/framesift/framesift/internal/schema"
	"github.com/framesift/framesift/internal/sift"
)

// Write-check classifications for one use of a resource.
const (
	// CheckReadOnlyUsage: the usage kind cannot write; no data comparison
	// is needed.
	CheckReadOnlyUsage = "read_only_usage"
	// CheckFirstReadNoBaseline: the first readable snapshot; there is
	// nothing earlier to compare against, so whether the point wrote is
	// undetermined.
	CheckFirstReadNoBaseline = "first_read_no_baseline"
	// CheckDataChanged: contents differ from the previous snapshot.
	CheckDataChanged = "data_changed"
	// CheckDataUnchanged: contents match the previous snapshot.
	CheckDataUnchanged = "data_unchanged"
	// CheckDataReadFailed: the contents could not be read at this point;
	// whether it wrote is undetermined.
	CheckDataReadFailed = "data_read_failed"
)

const (
	defaultSampleBytes        = 64 * 1024
	defaultMaxChangedElements = 3
	defaultMaxUses            = 50
	maxByteRegions            = 3
	maxWordDeltas             = 10
)

// ResourceUsesRequest asks for every use of a resource, with write-
// capable uses checked against the previous snapshot of its contents.
type ResourceUsesRequest struct {
	Resource           string `json:"resource"`
	MaxResults         int    `json:"max_results,omitempty"`
	SampleBytes        uint64 `json:"sample_bytes,omitempty"`
	MaxChangedElements int    `json:"max_changed_elements,omitempty"`
}

// UseCheck is one use of the resource and what the data said about it.
// IsWrite is null when the comparison could not be made.
type UseCheck struct {
	Point            uint64             `json:"point_id"`
	Label            string             `json:"label,omitempty"`
	Kind             replay.UsageKind   `json:"kind"`
	IsWrite          *bool              `json:"is_write"`
	WriteCheck       string             `json:"write_check"`
	Records          []sift.RecordDelta `json:"records,omitempty"`
	RecordsTruncated bool               `json:"records_truncated,omitempty"`
	Regions          []sift.Region      `json:"regions,omitempty"`
	Words            *sift.WordDiff     `json:"words,omitempty"`
}

// ResourceUsesResult lists the classified uses in replay order.
type ResourceUsesResult struct {
	ResourceID   uint64     `json:"resource_id"`
	ResourceName string     `json:"resource_name"`
	HasLayout    bool       `json:"has_layout"`
	UseCount     int        `json:"use_count"`
	Uses         []UseCheck `json:"uses"`
	Truncated    bool       `json:"truncated,omitempty"`
}

// ResourceUses walks every recorded use of a resource in replay order.
// Read-only usages are reported as such without touching the data.
// Write-capable usages read a snapshot of the contents and compare it
// with the previous snapshot: a difference classifies the use as an
// actual write and carries the change detail, structured per record when
// a layout exists, otherwise byte regions plus word deltas.
func (ins *Inspector) ResourceUses(ctx context.Context, req ResourceUsesRequest) (result *ResourceUsesResult, err error) {
	start := time.Now()
	defer func() { observe("resource_uses", start, err) }()

	res, err := ins.Resolve(req.Resource)
	if err != nil {
		return nil, err
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxUses
	}
	sample := req.SampleBytes
	if sample == 0 {
		sample = defaultSampleBytes
	}
	maxChanged := req.MaxChangedElements
	if maxChanged <= 0 {
		maxChanged = defaultMaxChangedElements
	}

	// Structured detail is best-effort: no layout still classifies
	// writes, just with byte-level detail.
	var layout *schema.Layout
	if _, l, lerr := ins.layoutFor(res.ID); lerr == nil && l.HasFields() {
		layout = l
	}

	uses := ins.ctrl.Uses(res.ID)
	result = &ResourceUsesResult{
		ResourceID:   res.ID,
		ResourceName: res.Name,
		HasLayout:    layout != nil,
		UseCount:     len(uses),
	}

	var baseline []byte
	for _, use := range uses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(result.Uses) >= maxResults {
			result.Truncated = true
			break
		}

		check := UseCheck{Point: use.Point, Kind: use.Kind}
		if action, ok := ins.ctrl.Action(use.Point); ok {
			check.Label = action.Label
		}

		if !use.Kind.MayWrite() {
			check.IsWrite = boolPtr(false)
			check.WriteCheck = CheckReadOnlyUsage
			result.Uses = append(result.Uses, check)
			continue
		}

		data, rerr := ins.ctrl.ReadBuffer(use.Point, res.ID, 0, sample)
		if rerr != nil {
			check.WriteCheck = CheckDataReadFailed
			result.Uses = append(result.Uses, check)
			continue
		}
		if baseline == nil {
			check.WriteCheck = CheckFirstReadNoBaseline
			baseline = data
			result.Uses = append(result.Uses, check)
			continue
		}

		if bytes.Equal(baseline, data) {
			check.IsWrite = boolPtr(false)
			check.WriteCheck = CheckDataUnchanged
		} else {
			check.IsWrite = boolPtr(true)
			check.WriteCheck = CheckDataChanged
			detailChange(&check, baseline, data, layout, maxChanged)
			baseline = data
		}
		result.Uses = append(result.Uses, check)
	}
	return result, nil
}

// detailChange attaches what actually changed between two snapshots,
// structured when possible.
func detailChange(check *UseCheck, old, new []byte, layout *schema.Layout, maxChanged int) {
	if layout != nil {
		records, truncated, err := sift.Records(old, new, layout, maxChanged)
		if err == nil && len(records) > 0 {
			check.Records = records
			check.RecordsTruncated = truncated
			return
		}
	}
	check.Regions = sift.Bytes(old, new, maxByteRegions)
	if words := sift.Words(old, new, maxWordDeltas); !words.Identical {
		check.Words = words
	}
}

func boolPtr(v bool) *bool { return &v }
