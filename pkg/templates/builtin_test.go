package templates

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltins(t *testing.T) {
	bs := Builtins()
	require.Len(t, bs, 3)

	names := map[string]string{}
	for _, b := range bs {
		assert.True(t, b.Builtin)
		assert.True(t, IsBuiltinID(b.ID))
		for _, f := range Fields {
			assert.NotEmpty(t, b.Get(f), "%s.%s", b.ID, f)
		}
		names[b.ID] = b.Name
	}
	assert.Equal(t, map[string]string{
		"builtin-code-review":       "Code Review",
		"builtin-technical-writing": "Technical Writing",
		"builtin-api-design":        "API Design",
	}, names)

	bs[0].Name = "mutated"
	assert.NotEqual(t, "mutated", Builtins()[0].Name)
}

func TestBuiltinThinkingStepsKeepLines(t *testing.T) {
	for _, b := range Builtins() {
		if b.ID == "builtin-code-review" {
			assert.Contains(t, b.ThinkingSteps, "1. Understand the code's purpose and context\n2. ")
			assert.NotContains(t, b.ThinkingSteps, "\n\n")
		}
	}
}

func TestFieldAccessors(t *testing.T) {
	tmpl := NewTemplate("x")
	for _, f := range Fields {
		require.True(t, tmpl.Set(f, string(f)+"-value"))
		assert.Equal(t, string(f)+"-value", tmpl.Get(f))
	}
	assert.False(t, tmpl.Set("unknown", "v"))

	f, ok := ParseField("Domain-Knowledge")
	assert.True(t, ok)
	assert.Equal(t, FieldDomainKnowledge, f)
	_, ok = ParseField("name")
	assert.False(t, ok)
}

func TestFindAndResolve(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryTemplateStore(&Template{ID: "u1", Name: "Release Notes"})

	all, err := s.List(ctx)
	require.NoError(t, err)

	found := Find(all, "cdrev")
	require.NotEmpty(t, found)
	assert.Equal(t, "Code Review", found[0].Name)
	assert.Len(t, Find(all, ""), len(all))

	tmpl, err := Resolve(ctx, s, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Release Notes", tmpl.Name)

	tmpl, err = Resolve(ctx, s, "api design")
	require.NoError(t, err)
	assert.Equal(t, "builtin-api-design", tmpl.ID)

	tmpl, err = Resolve(ctx, s, "relnotes")
	require.NoError(t, err)
	assert.Equal(t, "u1", tmpl.ID)

	_, err = Resolve(ctx, s, "zzzzqqq")
	assert.Error(t, err)
}
