package templates

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeFactory struct {
	name string
	new  func(t *testing.T) Store
}

func storeFactories() []storeFactory {
	return []storeFactory{
		{"memory", func(t *testing.T) Store {
			return NewInMemoryTemplateStore()
		}},
		{"json-dir", func(t *testing.T) Store {
			s, err := NewJSONDirTemplateStore(filepath.Join(t.TempDir(), "templates"))
			require.NoError(t, err)
			return s
		}},
		{"sqlite", func(t *testing.T) Store {
			dsn, err := SQLiteTemplateDSNForFile(filepath.Join(t.TempDir(), "templates.db"))
			require.NoError(t, err)
			s, err := NewSQLiteTemplateStore(dsn)
			require.NoError(t, err)
			return s
		}},
	}
}

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s := f.new(t)
			defer func() { _ = s.Close() }()

			all, err := s.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "builtin-api-design", all[0].ID)
			assert.Equal(t, "builtin-code-review", all[1].ID)
			assert.Equal(t, "builtin-technical-writing", all[2].ID)

			missing, err := s.Get(ctx, "nope")
			require.NoError(t, err)
			assert.Nil(t, missing)

			saved, err := s.Save(ctx, &Template{Name: "Mine", SystemPrompt: "sp"})
			require.NoError(t, err)
			require.NotEmpty(t, saved.ID)
			assert.False(t, saved.Builtin)

			got, err := s.Get(ctx, saved.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "Mine", got.Name)
			assert.Equal(t, "sp", got.SystemPrompt)

			got.Name = "Renamed"
			updated, err := s.Save(ctx, got)
			require.NoError(t, err)
			assert.Equal(t, saved.ID, updated.ID)

			all, err = s.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 4)

			deleted, err := s.Delete(ctx, saved.ID)
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = s.Delete(ctx, saved.ID)
			require.NoError(t, err)
			assert.False(t, deleted)
		})
	}
}

func TestStoreRejectsBuiltinWrites(t *testing.T) {
	ctx := context.Background()
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s := f.new(t)
			defer func() { _ = s.Close() }()

			b, err := s.Get(ctx, "builtin-code-review")
			require.NoError(t, err)
			require.NotNil(t, b)
			assert.True(t, b.Builtin)

			b.Name = "hijacked"
			_, err = s.Save(ctx, b)
			assert.ErrorIs(t, err, ErrBuiltinTemplate)

			_, err = s.Delete(ctx, "builtin-code-review")
			assert.ErrorIs(t, err, ErrBuiltinTemplate)

			again, err := s.Get(ctx, "builtin-code-review")
			require.NoError(t, err)
			assert.Equal(t, "Code Review", again.Name)
		})
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s := f.new(t)
			defer func() { _ = s.Close() }()

			in := &Template{ID: "mine", Name: "Mine"}
			out, err := s.Save(ctx, in)
			require.NoError(t, err)
			out.Name = "changed"
			in.Name = "changed too"

			got, err := s.Get(ctx, "mine")
			require.NoError(t, err)
			assert.Equal(t, "Mine", got.Name)
		})
	}
}

func TestStoreValidation(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryTemplateStore()

	_, err := s.Save(ctx, &Template{Name: "  "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Save(ctx, &Template{ID: "../escape", Name: "x"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestJSONDirStoreSkipsCorruptFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	s, err := NewJSONDirTemplateStore(dir)
	require.NoError(t, err)

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestJSONDirStoreReseedsDeletedBuiltin(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewJSONDirTemplateStore(dir)
	require.NoError(t, err)

	_, err = s.List(ctx)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "builtin-api-design.json")))

	b, err := s.Get(ctx, "builtin-api-design")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "API Design", b.Name)
}

func TestJSONDirStoreFileFormat(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewJSONDirTemplateStore(dir)
	require.NoError(t, err)

	_, err = s.Save(ctx, &Template{ID: "abc", Name: "ABC", ThinkingSteps: "1. think"})
	require.NoError(t, err)

	b, err := os.ReadFile(filepath.Join(dir, "abc.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "abc",
		"name": "ABC",
		"system_prompt": "",
		"domain_knowledge": "",
		"thinking_steps": "1. think",
		"clarifying_instructions": "",
		"builtin": false
	}`, string(b))
}

func TestClosedStore(t *testing.T) {
	ctx := context.Background()
	for _, f := range storeFactories() {
		t.Run(f.name, func(t *testing.T) {
			s := f.new(t)
			require.NoError(t, s.Close())
			_, err := s.List(ctx)
			assert.ErrorIs(t, err, ErrStoreClosed)
		})
	}
}
