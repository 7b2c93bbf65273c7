package wizard

import (
	"testing"

	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
	"github.com/stretchr/testify/assert"
)

func TestBuildSuggestionPromptFromScratch(t *testing.T) {
	p := BuildSuggestionPrompt(SuggestionRequest{
		TemplateName: "Foo",
		Field:        templates.FieldSystemPrompt,
	})
	assert.Equal(t, "Template name: \"Foo\"\n"+
		"Field to fill: System Prompt\n"+
		"Field description: "+FieldSteps[0].Description+"\n"+
		"\nGenerate 2-3 suggestions for this field from scratch.", p)
}

func TestBuildSuggestionPromptListsAcceptedInFieldOrder(t *testing.T) {
	p := BuildSuggestionPrompt(SuggestionRequest{
		TemplateName: "Foo",
		Field:        templates.FieldThinkingSteps,
		Accepted: map[templates.Field]string{
			templates.FieldDomainKnowledge: "dk",
			templates.FieldSystemPrompt:    "sp",
		},
		Current: "current value",
	})
	assert.Contains(t, p, "\nAlready completed fields:\n  System Prompt: sp\n  Domain Knowledge: dk\n")
	assert.Contains(t, p, "\nThe user's current value for this field is:\ncurrent value\n")
	assert.Contains(t, p, "Generate 2-3 refined/improved variations based on this value.")
	assert.NotContains(t, p, "from scratch")
}

func TestFieldCatalogue(t *testing.T) {
	assert.Len(t, FieldSteps, len(templates.Fields))
	for i, f := range templates.Fields {
		assert.Equal(t, f, FieldSteps[i].Field)
		assert.NotEmpty(t, FieldSteps[i].Description)
	}
	assert.Equal(t, "Domain Knowledge", Label(templates.FieldDomainKnowledge))
	assert.Equal(t, "unknown", Label(templates.Field("unknown")))
	assert.Equal(t, 2, StepSystemPrompt.Number())
	assert.Equal(t, 5, StepClarifyingInstructions.Number())
	assert.False(t, StepDone.IsField())
	assert.False(t, StepName.IsField())
}

func TestParseSuggestionsDropsBlankBlocks(t *testing.T) {
	got := parseSuggestions("<suggestion> a </suggestion>\n<suggestion>\n\n</suggestion><suggestion>b\nc</suggestion>")
	assert.Equal(t, []string{"a", "b\nc"}, got)
	assert.Empty(t, parseSuggestions("no tags here"))
}
