package inspect

import (
	"context"
	"sort"
	"time"

	"github.com/framesift/framesift/internal/decode"
	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/nested"
	"github.com/framesift/framesift/internal/replay"
	"github.com/framesift/framesift/internal/timeline"
)

// TexelCoord addresses a single texel within a texture subresource.
type TexelCoord struct {
	X     uint32 `json:"x"`
	Y     uint32 `json:"y"`
	Mip   uint32 `json:"mip,omitempty"`
	Slice uint32 `json:"slice,omitempty"`
}

// TextureChangesRequest asks for the change timeline of specific texels.
type TextureChangesRequest struct {
	Resource string       `json:"resource"`
	Texels   []TexelCoord `json:"texels"`
}

// TexelTimeline is one texel's distilled history.
type TexelTimeline struct {
	Coord        TexelCoord       `json:"coord"`
	InitialPoint uint64           `json:"initial_point_id"`
	Initial      *nested.Value    `json:"initial_state"`
	Changes      []timeline.Delta `json:"changes"`
}

// TextureChangesResult carries per-texel channel timelines.
type TextureChangesResult struct {
	ResourceID    uint64             `json:"resource_id"`
	ResourceName  string             `json:"resource_name"`
	Width         uint32             `json:"width"`
	Height        uint32             `json:"height"`
	Format        decode.TexelFormat `json:"format"`
	PointsScanned int                `json:"points_scanned"`
	Texels        []TexelTimeline    `json:"texels"`
	TotalChanges  int                `json:"total_changes"`
}

// TextureChanges tracks the requested texels across all observation
// points, decoding each into its channel values so deltas report changed
// channels only. Block-compressed formats report an opaque marker; they
// never produce channel deltas.
func (ins *Inspector) TextureChanges(ctx context.Context, req TextureChangesRequest) (result *TextureChangesResult, err error) {
	start := time.Now()
	defer func() { observe("texture_changes", start, err) }()

	res, err := ins.Resolve(req.Resource, replay.KindTexture)
	if err != nil {
		return nil, err
	}
	tex, err := ins.ctrl.Texture(res.ID)
	if err != nil {
		return nil, err
	}
	if len(req.Texels) == 0 {
		return nil, errors.NewValidationError("inspect.TextureChanges",
			"no texels requested").WithContext("resource", res.Name)
	}
	if err := validateCoords(req.Texels, tex); err != nil {
		return nil, err
	}

	points := ins.ctrl.PointIDs()
	texelSize := uint64(tex.Format.TexelSize())
	logs, err := timeline.Track(ctx, points, req.Texels,
		func(point uint64, coord TexelCoord) (*nested.Value, bool) {
			if tex.Format.BlockCompressed {
				marker, err := decode.Texel(nil, tex.Format)
				return marker, err == nil
			}
			raw, err := ins.ctrl.ReadTexture(point, res.ID, coord.Mip, coord.Slice)
			if err != nil {
				return nil, false
			}
			mipW, _ := tex.MipDims(coord.Mip)
			offset := (uint64(coord.Y)*uint64(mipW) + uint64(coord.X)) * texelSize
			if offset+texelSize > uint64(len(raw)) {
				return nil, false
			}
			texel, err := decode.Texel(raw[offset:offset+texelSize], tex.Format)
			if err != nil {
				return nil, false
			}
			return texel, true
		})
	if err != nil {
		return nil, err
	}

	result = &TextureChangesResult{
		ResourceID:    res.ID,
		ResourceName:  res.Name,
		Width:         tex.Width,
		Height:        tex.Height,
		Format:        tex.Format,
		PointsScanned: len(points),
	}
	for _, log := range logs {
		result.Texels = append(result.Texels, TexelTimeline{
			Coord:        log.Key,
			InitialPoint: log.FirstPoint,
			Initial:      log.Initial,
			Changes:      log.Deltas,
		})
		result.TotalChanges += len(log.Deltas)
	}
	sort.Slice(result.Texels, func(i, j int) bool {
		a, b := result.Texels[i].Coord, result.Texels[j].Coord
		if a.Slice != b.Slice {
			return a.Slice < b.Slice
		}
		if a.Mip != b.Mip {
			return a.Mip < b.Mip
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return result, nil
}

func validateCoords(coords []TexelCoord, tex *replay.TextureInfo) error {
	mips := tex.Mips
	if mips == 0 {
		mips = 1
	}
	for _, c := range coords {
		if c.Mip >= mips {
			return errors.NewValidationError("inspect.TextureChanges",
				"mip level out of range").
				WithContext("mip", c.Mip).WithContext("mips", mips)
		}
		w, h := tex.MipDims(c.Mip)
		if c.X >= w || c.Y >= h {
			return errors.NewValidationError("inspect.TextureChanges",
				"texel outside mip dimensions").
				WithContext("x", c.X).WithContext("y", c.Y).
				WithContext("mip", c.Mip).
				WithContext("width", w).WithContext("height", h)
		}
	}
	return nil
}
