package service

import (
	"context"
	"strings"

	"github.com/tagworks/tagworks-api/internal/domain"
)

// URIListResolver resolves a config's work items from its inclusion
// filter directly, treating included_uris as a comma or newline separated
// list of asset URIs. Entries on the exclusion list are dropped.
// Resolvers backed by external catalogs satisfy the same interface.
type URIListResolver struct{}

// NewURIListResolver creates a URIListResolver.
func NewURIListResolver() *URIListResolver {
	return &URIListResolver{}
}

var _ WorkItemResolver = (*URIListResolver)(nil)

// Resolve implements WorkItemResolver.Resolve
func (r *URIListResolver) Resolve(ctx context.Context, cfg *domain.TagConfig) ([]domain.WorkItem, error) {
	excluded := make(map[string]struct{})
	for _, uri := range splitURIList(cfg.ExcludedURIs) {
		excluded[uri] = struct{}{}
	}

	var items []domain.WorkItem
	for _, uri := range splitURIList(cfg.IncludedURIs) {
		if _, skip := excluded[uri]; skip {
			continue
		}
		items = append(items, domain.WorkItem{URI: uri})
	}

	return items, nil
}

// splitURIList splits a filter string on commas and newlines, trimming
// whitespace and dropping empty entries and duplicates. Order is
// preserved so shard assignment is stable for a given filter.
func splitURIList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		uri := strings.TrimSpace(f)
		if uri == "" {
			continue
		}
		if _, dup := seen[uri]; dup {
			continue
		}
		seen[uri] = struct{}{}
		out = append(out, uri)
	}

	return out
}
