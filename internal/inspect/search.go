package inspect

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/replay"
)

const defaultSearchResults = 50

// SearchResourcesRequest filters the capture's resource table. An empty
// query matches everything (useful with a kind filter).
type SearchResourcesRequest struct {
	Query         string                `json:"query,omitempty"`
	Regex         bool                  `json:"regex,omitempty"`
	CaseSensitive bool                  `json:"case_sensitive,omitempty"`
	Kinds         []replay.ResourceKind `json:"kinds,omitempty"`
	MaxResults    int                   `json:"max_results,omitempty"`
}

// SearchResourcesResult lists the matches in capture order. Total counts
// every match even when the listing is truncated.
type SearchResourcesResult struct {
	Resources []replay.Resource `json:"resources"`
	Total     int               `json:"total"`
	Truncated bool              `json:"truncated,omitempty"`
}

// SearchResources scans every resource name against the query. The
// default match is a substring check, case-insensitive unless asked
// otherwise; Regex switches to full regular-expression matching.
func (ins *Inspector) SearchResources(ctx context.Context, req SearchResourcesRequest) (result *SearchResourcesResult, err error) {
	start := time.Now()
	defer func() { observe("search_resources", start, err) }()

	match, err := compileMatcher(req)
	if err != nil {
		return nil, err
	}

	var kinds map[replay.ResourceKind]bool
	if len(req.Kinds) > 0 {
		kinds = make(map[replay.ResourceKind]bool, len(req.Kinds))
		for _, k := range req.Kinds {
			kinds[k] = true
		}
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultSearchResults
	}

	result = &SearchResourcesResult{Resources: []replay.Resource{}}
	for _, res := range ins.ctrl.Resources() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if kinds != nil && !kinds[res.Kind] {
			continue
		}
		if !match(res.Name) {
			continue
		}
		result.Total++
		if len(result.Resources) < maxResults {
			result.Resources = append(result.Resources, res)
		} else {
			result.Truncated = true
		}
	}
	return result, nil
}

func compileMatcher(req SearchResourcesRequest) (func(string) bool, error) {
	if req.Regex {
		pattern := req.Query
		if !req.CaseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.WrapValidationError(err, "inspect.SearchResources",
				"invalid search pattern")
		}
		return re.MatchString, nil
	}
	if req.Query == "" {
		return func(string) bool { return true }, nil
	}
	if req.CaseSensitive {
		query := req.Query
		return func(name string) bool { return strings.Contains(name, query) }, nil
	}
	query := strings.ToLower(req.Query)
	return func(name string) bool {
		return strings.Contains(strings.ToLower(name), query)
	}, nil
}
