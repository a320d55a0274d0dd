package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Query selects items from the remote service. Filters are matched
// exactly; an absent filter matches everything.
type Query struct {
	Kind    ItemKind
	Filters map[string]string
}

// Filter keys understood by the remote service
const (
	FilterTeam    = "team"
	FilterRelease = "release"
	FilterParent  = "parent"
)

// NewQuery builds a query for one kind within a target
func NewQuery(kind ItemKind, target Target) Query {
	return Query{
		Kind: kind,
		Filters: map[string]string{
			FilterTeam:    target.Team,
			FilterRelease: target.Release,
		},
	}
}

// WithParent narrows the query to children of parentID
func (q Query) WithParent(parentID string) Query {
	filters := make(map[string]string, len(q.Filters)+1)
	for k, v := range q.Filters {
		filters[k] = v
	}
	filters[FilterParent] = parentID
	return Query{Kind: q.Kind, Filters: filters}
}

// Key is the cache key: the entity type plus the filters encoded in
// sorted key order, so maps with equal contents produce equal keys.
func (q Query) Key() string {
	values := url.Values{}
	for k, v := range q.Filters {
		values.Set(k, v)
	}
	return q.Kind.String() + "?" + values.Encode()
}

// Matches reports whether r would be returned by q
func (q Query) Matches(r ItemRecord) bool {
	if q.Kind != r.Kind {
		return false
	}
	for k, v := range q.Filters {
		switch k {
		case FilterTeam:
			if r.Team != v {
				return false
			}
		case FilterRelease:
			if r.Release != v {
				return false
			}
		case FilterParent:
			if r.ParentID != v {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// ParseQueryKey reverses Query.Key
func ParseQueryKey(key string) (Query, error) {
	kindPart, encoded, ok := strings.Cut(key, "?")
	if !ok {
		return Query{}, fmt.Errorf("malformed query key %q", key)
	}
	kind := ParseItemKind(kindPart)
	if kind == KindUnknown {
		return Query{}, fmt.Errorf("unknown entity %q in query key", kindPart)
	}
	values, err := url.ParseQuery(encoded)
	if err != nil {
		return Query{}, fmt.Errorf("malformed query key %q: %w", key, err)
	}
	filters := make(map[string]string, len(values))
	for k := range values {
		filters[k] = values.Get(k)
	}
	return Query{Kind: kind, Filters: filters}, nil
}
