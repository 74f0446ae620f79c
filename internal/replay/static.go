package replay

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/schema"
)

// Dump is the on-disk JSON carrier for one capture inspection session:
// everything a Controller needs, fully materialized.
type Dump struct {
	Capture   string        `json:"capture,omitempty"`
	Resources []Resource    `json:"resources"`
	Layouts   []DumpLayout  `json:"layouts,omitempty"`
	Textures  []TextureInfo `json:"textures,omitempty"`
	Points    []DumpPoint   `json:"points"`
}

// DumpLayout attaches a shader-declared type tree to a buffer resource.
// ResourceID zero declares a layout that was never bound; those still
// participate in name-based layout recovery.
type DumpLayout struct {
	ResourceID uint64           `json:"resource_id,omitempty"`
	ShaderID   uint64           `json:"shader_id,omitempty"`
	Stage      string           `json:"stage,omitempty"`
	Set        uint32           `json:"set,omitempty"`
	Slot       uint32           `json:"slot,omitempty"`
	Name       string           `json:"name,omitempty"`
	ReadWrite  bool             `json:"read_write,omitempty"`
	Type       *schema.TypeNode `json:"type"`
}

// DumpPoint is one observation point: the wrapped action, the pipeline
// state bound while it ran, and the replayed contents visible when it
// completed. Buffer contents key by resource id; JSON encodes the bytes
// as base64.
type DumpPoint struct {
	ID       uint64            `json:"id"`
	Label    string            `json:"label,omitempty"`
	Pipeline uint64            `json:"pipeline,omitempty"`
	Outputs  []uint64          `json:"outputs,omitempty"`
	DepthOut uint64            `json:"depth_out,omitempty"`
	Bindings []Binding         `json:"bindings,omitempty"`
	Buffers  map[uint64][]byte `json:"buffers,omitempty"`
	Textures []DumpTexture     `json:"textures,omitempty"`
	Uses     []DumpUse         `json:"uses,omitempty"`
}

// DumpTexture holds one texture subresource's bytes at a point.
type DumpTexture struct {
	ResourceID uint64 `json:"resource_id"`
	Mip        uint32 `json:"mip,omitempty"`
	Slice      uint32 `json:"slice,omitempty"`
	Data       []byte `json:"data"`
}

// DumpUse records a resource touch that bound state alone does not imply,
// such as copies, clears and indirect argument reads.
type DumpUse struct {
	ResourceID uint64    `json:"resource_id"`
	Kind       UsageKind `json:"kind"`
}

// StaticReplay serves the Controller interface from a materialized dump.
// Everything is indexed once at construction; all reads afterwards are
// lock-free lookups, safe for concurrent use.
type StaticReplay struct {
	capture   string
	resources []Resource
	byID      map[uint64]Resource
	pointIDs  []uint64
	points    map[uint64]*DumpPoint
	layouts   map[uint64]*ReflectedBuffer
	unbound   []*ReflectedBuffer
	textures  map[uint64]*TextureInfo
	uses      map[uint64][]Use
}

var _ Controller = (*StaticReplay)(nil)

// LoadDump reads and indexes a dump file.
func LoadDump(path string) (*StaticReplay, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapReplayError(err, "replay.LoadDump", "reading dump file").
			WithContext("path", path)
	}
	var dump Dump
	if err := json.Unmarshal(raw, &dump); err != nil {
		return nil, errors.WrapValidationError(err, "replay.LoadDump", "parsing dump file").
			WithContext("path", path)
	}
	return NewStaticReplay(&dump)
}

// NewStaticReplay validates and indexes a dump.
func NewStaticReplay(dump *Dump) (*StaticReplay, error) {
	if dump == nil {
		return nil, errors.NewValidationError("replay.NewStaticReplay", "nil dump")
	}

	r := &StaticReplay{
		capture:  dump.Capture,
		byID:     make(map[uint64]Resource, len(dump.Resources)),
		points:   make(map[uint64]*DumpPoint, len(dump.Points)),
		layouts:  make(map[uint64]*ReflectedBuffer),
		textures: make(map[uint64]*TextureInfo),
		uses:     make(map[uint64][]Use),
	}

	for _, res := range dump.Resources {
		if _, dup := r.byID[res.ID]; dup {
			return nil, errors.NewValidationError("replay.NewStaticReplay",
				"duplicate resource id").WithContext("id", res.ID)
		}
		if res.Kind == "" {
			res.Kind = KindUnknown
		}
		r.byID[res.ID] = res
		r.resources = append(r.resources, res)
	}

	for i := range dump.Layouts {
		dl := &dump.Layouts[i]
		if err := dl.Type.Validate(); err != nil {
			return nil, err
		}
		ref := &ReflectedBuffer{
			ShaderID:  dl.ShaderID,
			Stage:     dl.Stage,
			Set:       dl.Set,
			Slot:      dl.Slot,
			Name:      dl.Name,
			ReadWrite: dl.ReadWrite,
			Type:      dl.Type,
		}
		if dl.ResourceID == 0 {
			r.unbound = append(r.unbound, ref)
			continue
		}
		// First declaration wins when several shaders bind the same buffer.
		if _, seen := r.layouts[dl.ResourceID]; !seen {
			r.layouts[dl.ResourceID] = ref
		}
	}

	for i := range dump.Textures {
		tex := &dump.Textures[i]
		r.textures[tex.ResourceID] = tex
	}

	for i := range dump.Points {
		pt := &dump.Points[i]
		if _, dup := r.points[pt.ID]; dup {
			return nil, errors.NewValidationError("replay.NewStaticReplay",
				"duplicate point id").WithContext("id", pt.ID)
		}
		r.points[pt.ID] = pt
		r.pointIDs = append(r.pointIDs, pt.ID)
		r.deriveUses(pt)
	}

	return r, nil
}

// deriveUses turns a point's bound state, outputs and explicit uses into
// per-resource usage records, deduplicated per (point, kind).
func (r *StaticReplay) deriveUses(pt *DumpPoint) {
	type useKey struct {
		id   uint64
		kind UsageKind
	}
	seen := make(map[useKey]struct{})
	add := func(id uint64, kind UsageKind) {
		if id == 0 {
			return
		}
		key := useKey{id: id, kind: kind}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		r.uses[id] = append(r.uses[id], Use{Point: pt.ID, Kind: kind})
	}

	for _, b := range pt.Bindings {
		switch b.Bind {
		case BindResource:
			add(b.ResourceID, UsageResource)
		case BindRWResource:
			add(b.ResourceID, UsageRWResource)
		case BindConstants:
			add(b.ResourceID, UsageConstants)
		case BindColorTarget:
			add(b.ResourceID, UsageColorTarget)
		case BindDepthTarget:
			add(b.ResourceID, UsageDepthTarget)
		}
	}
	for _, out := range pt.Outputs {
		add(out, UsageColorTarget)
	}
	add(pt.DepthOut, UsageDepthTarget)
	for _, use := range pt.Uses {
		add(use.ResourceID, use.Kind)
	}
}

// Capture returns the capture label carried by the dump.
func (r *StaticReplay) Capture() string { return r.capture }

func (r *StaticReplay) Resources() []Resource { return r.resources }

func (r *StaticReplay) ResourceByID(id uint64) (Resource, bool) {
	res, ok := r.byID[id]
	return res, ok
}

func (r *StaticReplay) PointIDs() []uint64 { return r.pointIDs }

func (r *StaticReplay) Action(point uint64) (ActionInfo, bool) {
	pt, ok := r.points[point]
	if !ok {
		return ActionInfo{}, false
	}
	return ActionInfo{Label: pt.Label, Outputs: pt.Outputs, DepthOut: pt.DepthOut}, true
}

func (r *StaticReplay) ActivePipeline(point uint64) (uint64, bool) {
	pt, ok := r.points[point]
	if !ok || pt.Pipeline == 0 {
		return 0, false
	}
	return pt.Pipeline, true
}

func (r *StaticReplay) Bindings(point uint64) []Binding {
	pt, ok := r.points[point]
	if !ok {
		return nil
	}
	return pt.Bindings
}

func (r *StaticReplay) Uses(resourceID uint64) []Use {
	return r.uses[resourceID]
}

// ReflectedBuffer returns the layout directly declared for the buffer.
// When no shader binds it, recovery falls back to declared-but-unbound
// layouts whose name matches the resource's name; a unique match is good
// enough, anything else is schema-unavailable.
func (r *StaticReplay) ReflectedBuffer(resourceID uint64) (*ReflectedBuffer, error) {
	if ref, ok := r.layouts[resourceID]; ok {
		return ref, nil
	}

	res, ok := r.byID[resourceID]
	if !ok {
		return nil, errors.NewResourceNotFoundError("replay.ReflectedBuffer",
			"unknown resource").WithContext("id", resourceID)
	}

	var match *ReflectedBuffer
	for _, ref := range r.unbound {
		if ref.Name == "" || !nameMatches(res.Name, ref.Name) {
			continue
		}
		if match != nil {
			match = nil
			break
		}
		match = ref
	}
	if match == nil {
		return nil, errors.NewSchemaUnavailableError("replay.ReflectedBuffer",
			"no shader declares a layout for this buffer").
			WithContext("id", resourceID).
			WithContext("name", res.Name)
	}
	return match, nil
}

func nameMatches(resourceName, declaredName string) bool {
	a := strings.ToLower(resourceName)
	b := strings.ToLower(declaredName)
	return a != "" && (strings.Contains(a, b) || strings.Contains(b, a))
}

func (r *StaticReplay) Texture(resourceID uint64) (*TextureInfo, error) {
	tex, ok := r.textures[resourceID]
	if !ok {
		return nil, errors.NewSchemaUnavailableError("replay.Texture",
			"no texture description recorded").WithContext("id", resourceID)
	}
	return tex, nil
}

func (r *StaticReplay) ReadBuffer(point, resourceID, offset, size uint64) ([]byte, error) {
	pt, ok := r.points[point]
	if !ok {
		return nil, errors.NewReplayError("replay.ReadBuffer",
			"unknown observation point").WithContext("point", point)
	}
	data, ok := pt.Buffers[resourceID]
	if !ok {
		return nil, errors.NewReplayError("replay.ReadBuffer",
			"no contents recorded for resource at point").
			WithContext("point", point).
			WithContext("id", resourceID)
	}
	if offset >= uint64(len(data)) {
		return nil, nil
	}
	data = data[offset:]
	if size > 0 && size < uint64(len(data)) {
		data = data[:size]
	}
	return data, nil
}

func (r *StaticReplay) ReadTexture(point, resourceID uint64, mip, slice uint32) ([]byte, error) {
	pt, ok := r.points[point]
	if !ok {
		return nil, errors.NewReplayError("replay.ReadTexture",
			"unknown observation point").WithContext("point", point)
	}
	for i := range pt.Textures {
		t := &pt.Textures[i]
		if t.ResourceID == resourceID && t.Mip == mip && t.Slice == slice {
			return t.Data, nil
		}
	}
	return nil, errors.NewReplayError("replay.ReadTexture",
		"no subresource contents recorded").
		WithContext("point", point).
		WithContext("id", resourceID).
		WithContext("mip", mip).
		WithContext("slice", slice)
}
