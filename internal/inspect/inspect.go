// Package inspect implements the capture inspection workflows: resolving
// resources by name, summarizing buffer layouts, and distilling change
// timelines for buffer elements, texels and pipeline bindings.
package inspect

import (
	"strconv"
	"strings"
	"time"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/logging"
	"github.com/framesift/framesift/internal/metrics"
	"github.com/framesift/framesift/internal/replay"
	"github.com/framesift/framesift/internal/schema"
)

const (
	// defaultLayoutCacheSize bounds flattened layouts kept per inspector.
	defaultLayoutCacheSize = 256
	// maxListedCandidates bounds how many matches an ambiguity error names.
	maxListedCandidates = 10
)

// Inspector runs workflows against one capture's replay surface.
// Inspectors are safe for concurrent use: the controller is read-only and
// the layout cache locks internally.
type Inspector struct {
	ctrl   replay.Controller
	cache  *schema.LayoutCache
	logger *logging.StructuredLogger
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithLogger routes workflow logging somewhere other than the discard
// logger.
func WithLogger(logger *logging.StructuredLogger) Option {
	return func(ins *Inspector) {
		if logger != nil {
			ins.logger = logger.WithComponent("inspect")
		}
	}
}

// WithLayoutCache shares a layout cache between inspectors serving the
// same shaders.
func WithLayoutCache(cache *schema.LayoutCache) Option {
	return func(ins *Inspector) {
		if cache != nil {
			ins.cache = cache
		}
	}
}

// New returns an Inspector over the given replay surface.
func New(ctrl replay.Controller, opts ...Option) *Inspector {
	cache, _ := schema.NewLayoutCache(defaultLayoutCacheSize)
	ins := &Inspector{
		ctrl:   ctrl,
		cache:  cache,
		logger: logging.DiscardLogger(),
	}
	for _, opt := range opts {
		opt(ins)
	}
	return ins
}

// Resolve finds the single resource a query names. Lookup order: numeric
// resource id, exact name, then unique case-insensitive substring. More
// than one substring match is an ambiguity error naming the candidates;
// zero matches is not-found. kinds, when given, restricts every stage.
func (ins *Inspector) Resolve(query string, kinds ...replay.ResourceKind) (replay.Resource, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return replay.Resource{}, errors.NewValidationError("inspect.Resolve",
			"empty resource query")
	}

	kindOK := func(k replay.ResourceKind) bool {
		if len(kinds) == 0 {
			return true
		}
		for _, want := range kinds {
			if k == want {
				return true
			}
		}
		return false
	}

	if id, err := strconv.ParseUint(query, 10, 64); err == nil {
		if res, ok := ins.ctrl.ResourceByID(id); ok && kindOK(res.Kind) {
			return res, nil
		}
	}

	var substr []replay.Resource
	lower := strings.ToLower(query)
	for _, res := range ins.ctrl.Resources() {
		if !kindOK(res.Kind) {
			continue
		}
		if res.Name == query {
			return res, nil
		}
		if strings.Contains(strings.ToLower(res.Name), lower) {
			substr = append(substr, res)
		}
	}

	switch len(substr) {
	case 1:
		return substr[0], nil
	case 0:
		return replay.Resource{}, errors.NewResourceNotFoundError("inspect.Resolve",
			"no resource matches the query").WithContext("query", query)
	}

	names := make([]string, 0, maxListedCandidates)
	for i, res := range substr {
		if i == maxListedCandidates {
			names = append(names, "...")
			break
		}
		names = append(names, res.Name+"#"+strconv.FormatUint(res.ID, 10))
	}
	return replay.Resource{}, errors.NewAmbiguousResourceError("inspect.Resolve",
		"query matches several resources").
		WithContext("query", query).
		WithContext("matches", len(substr)).
		WithContext("candidates", names)
}

// Controller returns the replay surface this inspector reads from.
func (ins *Inspector) Controller() replay.Controller { return ins.ctrl }

// Layout resolves a buffer and returns its flattened layout, for callers
// that stream decoded instances somewhere other than a workflow result.
func (ins *Inspector) Layout(resource string) (replay.Resource, *schema.Layout, error) {
	res, err := ins.Resolve(resource, replay.KindBuffer)
	if err != nil {
		return replay.Resource{}, nil, err
	}
	_, layout, err := ins.layoutFor(res.ID)
	if err != nil {
		return replay.Resource{}, nil, err
	}
	return res, layout, nil
}

// layoutFor finds the shader-declared layout of a buffer and flattens it,
// via the fingerprint-keyed cache.
func (ins *Inspector) layoutFor(resourceID uint64) (*replay.ReflectedBuffer, *schema.Layout, error) {
	ref, err := ins.ctrl.ReflectedBuffer(resourceID)
	if err != nil {
		return nil, nil, err
	}
	key := schema.LayoutKey(ref.ShaderID, resourceID, schema.Fingerprint(ref.Type))
	layout, err := ins.cache.GetOrFlatten(key, ref.Type)
	if err != nil {
		return nil, nil, err
	}
	return ref, layout, nil
}

// observe records one workflow run's outcome and duration.
func observe(workflow string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.WorkflowOperationsTotal.WithLabelValues(workflow, status).Inc()
	metrics.WorkflowDurationSeconds.WithLabelValues(workflow).Observe(time.Since(start).Seconds())
}
