// Package replay models the capture surface the inspection workflows read
// from: named resources, an ordered sequence of observation points, the
// pipeline state bound at each point, and the replayed contents of
// buffers and textures as each point completed.
package replay

import (
	"github.com/framesift/framesift/internal/decode"
	"github.com/framesift/framesift/internal/schema"
)

// ResourceKind classifies a capture resource.
type ResourceKind string

const (
	KindBuffer   ResourceKind = "buffer"
	KindTexture  ResourceKind = "texture"
	KindPipeline ResourceKind = "pipeline"
	KindShader   ResourceKind = "shader"
	KindSampler  ResourceKind = "sampler"
	KindUnknown  ResourceKind = "unknown"
)

// Resource is one named object in the capture.
type Resource struct {
	ID   uint64       `json:"id"`
	Name string       `json:"name"`
	Kind ResourceKind `json:"kind"`
}

// UsageKind says how an observation point touched a resource.
type UsageKind string

const (
	UsageVertexBuffer UsageKind = "vertex_buffer"
	UsageIndexBuffer  UsageKind = "index_buffer"
	UsageIndirect     UsageKind = "indirect"
	UsageConstants    UsageKind = "constants"
	UsageResource     UsageKind = "resource"
	UsageRWResource   UsageKind = "rw_resource"
	UsageColorTarget  UsageKind = "color_target"
	UsageDepthTarget  UsageKind = "depth_target"
	UsageCopySrc      UsageKind = "copy_src"
	UsageCopyDst      UsageKind = "copy_dst"
	UsageResolveSrc   UsageKind = "resolve_src"
	UsageResolveDst   UsageKind = "resolve_dst"
	UsageClear        UsageKind = "clear"
)

// MayWrite reports whether the usage is capable of modifying the
// resource's contents. Read-only usages never need a data comparison.
func (k UsageKind) MayWrite() bool {
	switch k {
	case UsageRWResource, UsageColorTarget, UsageDepthTarget,
		UsageCopyDst, UsageResolveDst, UsageClear:
		return true
	}
	return false
}

// Use is one point at which a resource was touched.
type Use struct {
	Point uint64    `json:"point_id"`
	Kind  UsageKind `json:"kind"`
}

// BindKind is the slot family a pipeline binding lives in.
type BindKind string

const (
	BindResource    BindKind = "resource"
	BindRWResource  BindKind = "rw_resource"
	BindConstants   BindKind = "constants"
	BindSampler     BindKind = "sampler"
	BindColorTarget BindKind = "color_target"
	BindDepthTarget BindKind = "depth_target"
)

// Binding is one bound slot of pipeline state at an observation point.
// ResourceID zero means the slot was declared but had nothing bound.
type Binding struct {
	Stage      string   `json:"stage"`
	Bind       BindKind `json:"bind"`
	Set        uint32   `json:"set"`
	Slot       uint32   `json:"slot"`
	Name       string   `json:"name,omitempty"`
	ResourceID uint64   `json:"resource_id"`
}

// ActionInfo describes the recorded action an observation point wraps.
type ActionInfo struct {
	Label    string   `json:"label,omitempty"`
	Outputs  []uint64 `json:"outputs,omitempty"`
	DepthOut uint64   `json:"depth_out,omitempty"`
}

// TextureInfo describes a texture's shape and texel format.
type TextureInfo struct {
	ResourceID uint64             `json:"resource_id"`
	Width      uint32             `json:"width"`
	Height     uint32             `json:"height"`
	Mips       uint32             `json:"mips,omitempty"`
	Slices     uint32             `json:"slices,omitempty"`
	Format     decode.TexelFormat `json:"format"`
}

// MipDims returns the dimensions of one mip level, clamped to 1 so the
// tail of a full chain stays addressable.
func (t *TextureInfo) MipDims(mip uint32) (w, h uint32) {
	w = t.Width >> mip
	h = t.Height >> mip
	if w == 0 {
		w = 1
	}
	if h == 0 {
		h = 1
	}
	return w, h
}

// ReflectedBuffer couples the type tree a shader declares for a buffer
// with where the shader binds it.
type ReflectedBuffer struct {
	ShaderID  uint64           `json:"shader_id,omitempty"`
	Stage     string           `json:"stage,omitempty"`
	Set       uint32           `json:"set,omitempty"`
	Slot      uint32           `json:"slot,omitempty"`
	Name      string           `json:"name,omitempty"`
	ReadWrite bool             `json:"read_write,omitempty"`
	Type      *schema.TypeNode `json:"type"`
}

// Controller is the replay surface the workflows run against. All methods
// must be safe for concurrent readers; the reference implementation is
// the fully materialized StaticReplay.
type Controller interface {
	// Resources lists every named resource in the capture.
	Resources() []Resource
	// ResourceByID looks one resource up.
	ResourceByID(id uint64) (Resource, bool)
	// PointIDs returns the observation points in replay order.
	PointIDs() []uint64
	// Action describes the action at a point.
	Action(point uint64) (ActionInfo, bool)
	// ActivePipeline returns the pipeline the point executed with.
	ActivePipeline(point uint64) (uint64, bool)
	// Bindings returns the pipeline state bound while the point ran.
	Bindings(point uint64) []Binding
	// Uses lists every point that touched the resource, in replay order.
	Uses(resourceID uint64) []Use
	// ReflectedBuffer returns the layout a shader declares for the
	// buffer. Failing to find one is the schema-unavailable condition:
	// structured decoding is impossible and callers fall back to raw
	// byte comparison.
	ReflectedBuffer(resourceID uint64) (*ReflectedBuffer, error)
	// Texture describes a texture resource.
	Texture(resourceID uint64) (*TextureInfo, error)
	// ReadBuffer returns size bytes of a buffer's contents at offset, as
	// replayed when the point completed. size zero reads to the end. The
	// returned slice is shared and must not be modified.
	ReadBuffer(point, resourceID, offset, size uint64) ([]byte, error)
	// ReadTexture returns one subresource's texel bytes at a point.
	ReadTexture(point, resourceID uint64, mip, slice uint32) ([]byte, error)
}
