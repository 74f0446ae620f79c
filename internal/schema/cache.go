package schema

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/framesift/framesift/internal/metrics"
)

// Fingerprint returns a stable 64-bit hash of a type tree's structure:
// names, kinds, shapes, offsets and strides all contribute. Two trees with
// the same fingerprint flatten identically.
func Fingerprint(node *TypeNode) uint64 {
	d := xxhash.New()
	writeNode(d, node)
	return d.Sum64()
}

func writeNode(d *xxhash.Digest, node *TypeNode) {
	if node == nil {
		_, _ = d.Write([]byte{0xff})
		return
	}
	var buf [18]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(node.Kind))
	buf[4] = node.Rows
	buf[5] = node.Columns
	binary.LittleEndian.PutUint32(buf[6:10], node.Elements)
	binary.LittleEndian.PutUint32(buf[10:14], node.ArrayStride)
	binary.LittleEndian.PutUint32(buf[14:18], uint32(len(node.Members)))
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(node.Name)
	for _, m := range node.Members {
		binary.LittleEndian.PutUint32(buf[0:4], m.Offset)
		_, _ = d.Write(buf[0:4])
		_, _ = d.WriteString(m.Name)
		writeNode(d, m.Type)
	}
}

// LayoutKey identifies one flattened layout: the shader that supplied the
// reflection, the resource it was bound to, and the type fingerprint.
func LayoutKey(shaderID, resourceID, fingerprint uint64) uint64 {
	d := xxhash.New()
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], shaderID)
	binary.LittleEndian.PutUint64(buf[8:16], resourceID)
	binary.LittleEndian.PutUint64(buf[16:24], fingerprint)
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

// LayoutCache memoizes flatten results per distinct shader/resource pairing
// so reflection trees are walked once, not per decode. Safe for concurrent
// use; cached layouts are shared read-only.
type LayoutCache struct {
	entries *lru.Cache[uint64, *Layout]
}

// NewLayoutCache builds a cache bounded to size layouts
func NewLayoutCache(size int) (*LayoutCache, error) {
	entries, err := lru.New[uint64, *Layout](size)
	if err != nil {
		return nil, err
	}
	return &LayoutCache{entries: entries}, nil
}

// Get returns the cached layout for key, if any
func (c *LayoutCache) Get(key uint64) (*Layout, bool) {
	layout, ok := c.entries.Get(key)
	if ok {
		metrics.SchemaCacheHitsTotal.Inc()
	} else {
		metrics.SchemaCacheMissesTotal.Inc()
	}
	return layout, ok
}

// GetOrFlatten returns the cached layout for key, flattening and caching
// root on a miss.
func (c *LayoutCache) GetOrFlatten(key uint64, root *TypeNode) (*Layout, error) {
	if layout, ok := c.Get(key); ok {
		return layout, nil
	}
	layout, err := Flatten(root)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, layout)
	return layout, nil
}

// Len returns the number of cached layouts
func (c *LayoutCache) Len() int {
	return c.entries.Len()
}
