package templates

import (
	"context"
	"sort"
	"sync"
)

// InMemoryTemplateStore is a thread-safe Store that keeps templates in memory.
type InMemoryTemplateStore struct {
	mu        sync.RWMutex
	templates map[string]*Template
	closed    bool
}

var _ Store = (*InMemoryTemplateStore)(nil)

// NewInMemoryTemplateStore returns a store seeded with the builtins and the given templates.
func NewInMemoryTemplateStore(ts ...*Template) *InMemoryTemplateStore {
	s := &InMemoryTemplateStore{templates: map[string]*Template{}}
	for _, t := range Builtins() {
		s.templates[t.ID] = t
	}
	for _, t := range ts {
		if t != nil {
			s.templates[t.ID] = t.Clone()
		}
	}
	return s
}

func (s *InMemoryTemplateStore) List(_ context.Context) ([]*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return fileName(ids[i]) < fileName(ids[j]) })

	out := make([]*Template, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.templates[id].Clone())
	}
	return out, nil
}

func (s *InMemoryTemplateStore) Get(_ context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	t, ok := s.templates[id]
	if !ok {
		return nil, nil
	}
	return t.Clone(), nil
}

func (s *InMemoryTemplateStore) Save(_ context.Context, t *Template) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	stored, err := prepareForSave(t)
	if err != nil {
		return nil, err
	}
	s.templates[stored.ID] = stored
	return stored.Clone(), nil
}

func (s *InMemoryTemplateStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	if IsBuiltinID(id) {
		return false, ErrBuiltinTemplate
	}
	if _, ok := s.templates[id]; !ok {
		return false, nil
	}
	delete(s.templates, id)
	return true, nil
}

func (s *InMemoryTemplateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
