package templates

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sahilm/fuzzy"
)

type templateNames []*Template

func (t templateNames) String(i int) string { return t[i].Name }
func (t templateNames) Len() int            { return len(t) }

// Find returns the templates whose name fuzzy-matches query, best match first.
// An empty query returns ts unchanged.
func Find(ts []*Template, query string) []*Template {
	query = strings.TrimSpace(query)
	if query == "" {
		return ts
	}
	matches := fuzzy.FindFrom(query, templateNames(ts))
	ret := make([]*Template, 0, len(matches))
	for _, m := range matches {
		ret = append(ret, ts[m.Index])
	}
	return ret
}

// Resolve looks a template up by exact id, then by case-insensitive name, then by the best
// fuzzy name match.
func Resolve(ctx context.Context, s Store, query string) (*Template, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("empty template query")
	}
	t, err := s.Get(ctx, query)
	if err != nil {
		return nil, err
	}
	if t != nil {
		return t, nil
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range all {
		if strings.EqualFold(t.Name, query) {
			return t, nil
		}
	}
	if found := Find(all, query); len(found) > 0 {
		return found[0], nil
	}
	return nil, errors.Errorf("no template matches %q", query)
}
