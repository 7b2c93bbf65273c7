package templates

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// JSONDirTemplateStore persists one JSON file per template in a directory.
// Files that cannot be parsed are skipped when listing.
type JSONDirTemplateStore struct {
	mu     sync.RWMutex
	dir    string
	closed bool
}

var _ Store = (*JSONDirTemplateStore)(nil)

func NewJSONDirTemplateStore(dir string) (*JSONDirTemplateStore, error) {
	if dir == "" {
		return nil, errors.New("template directory is required")
	}
	return &JSONDirTemplateStore{dir: dir}, nil
}

func (s *JSONDirTemplateStore) Dir() string {
	return s.dir
}

func (s *JSONDirTemplateStore) List(_ context.Context) ([]*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenAndSeeded(); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	out := make([]*Template, 0, len(matches))
	for _, path := range matches {
		t, err := readTemplateFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable template file")
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *JSONDirTemplateStore) Get(_ context.Context, id string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpenAndSeeded(); err != nil {
		return nil, err
	}
	if strings.ContainsAny(id, `/\`) || id == "" {
		return nil, nil
	}

	t, err := readTemplateFile(s.path(id))
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (s *JSONDirTemplateStore) Save(_ context.Context, t *Template) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	stored, err := prepareForSave(t)
	if err != nil {
		return nil, err
	}
	if err := s.writeLocked(stored); err != nil {
		return nil, err
	}
	log.Debug().Str("id", stored.ID).Str("name", stored.Name).Msg("Saved template")
	return stored.Clone(), nil
}

func (s *JSONDirTemplateStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	if IsBuiltinID(id) {
		return false, ErrBuiltinTemplate
	}
	if strings.ContainsAny(id, `/\`) || id == "" {
		return false, nil
	}
	err := os.Remove(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *JSONDirTemplateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *JSONDirTemplateStore) path(id string) string {
	return filepath.Join(s.dir, fileName(id))
}

// ensureOpenAndSeeded writes any builtin template that is missing on disk.
func (s *JSONDirTemplateStore) ensureOpenAndSeeded() error {
	if s.closed {
		return ErrStoreClosed
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	for _, t := range Builtins() {
		_, err := os.Stat(s.path(t.ID))
		if err == nil {
			continue
		}
		if !os.IsNotExist(err) {
			return err
		}
		if err := s.writeLocked(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *JSONDirTemplateStore) writeLocked(t *Template) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(t.ID)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func readTemplateFile(path string) (*Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	t := &Template{}
	if err := json.Unmarshal(b, t); err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", filepath.Base(path))
	}
	if t.ID == "" {
		t.ID = strings.TrimSuffix(filepath.Base(path), ".json")
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
