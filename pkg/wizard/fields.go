package wizard

import "github.com/cosmicshuai/prompt-enhancer/pkg/templates"

// FieldInfo describes one template field the wizard asks for.
type FieldInfo struct {
	Field       templates.Field
	Label       string
	Description string
}

const (
	// NameLabel is the label of the first step, before any field.
	NameLabel = "Template Name"
	// TotalSteps counts the name step and one step per field.
	TotalSteps = 5
)

// FieldSteps lists the fields in the order the wizard visits them.
var FieldSteps = []FieldInfo{
	{
		Field: templates.FieldSystemPrompt,
		Label: "System Prompt",
		Description: "The core instruction that defines the AI's role and behavior. " +
			"This sets the overall persona, expertise, and approach the AI should take " +
			"when enhancing prompts using this template.",
	},
	{
		Field: templates.FieldDomainKnowledge,
		Label: "Domain Knowledge",
		Description: "Background knowledge and context specific to the domain. " +
			"This includes terminology, best practices, common patterns, and reference " +
			"information the AI should be aware of when working in this area.",
	},
	{
		Field: templates.FieldThinkingSteps,
		Label: "Thinking Steps",
		Description: "A structured sequence of steps the AI should follow when analyzing " +
			"and enhancing a prompt. This guides the AI's reasoning process to ensure " +
			"thorough and consistent results.",
	},
	{
		Field: templates.FieldClarifyingInstructions,
		Label: "Clarifying Instructions",
		Description: "Guidelines for what clarifying questions the AI should ask the user. " +
			"This helps the AI gather the right information before producing the " +
			"enhanced prompt, such as audience, constraints, and goals.",
	},
}

// LookupField returns the catalogue entry for f.
func LookupField(f templates.Field) (FieldInfo, bool) {
	for _, fi := range FieldSteps {
		if fi.Field == f {
			return fi, true
		}
	}
	return FieldInfo{}, false
}

// Label falls back to the raw field identifier for unknown fields.
func Label(f templates.Field) string {
	if fi, ok := LookupField(f); ok {
		return fi.Label
	}
	return string(f)
}
