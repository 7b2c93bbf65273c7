package wizard

import (
	"fmt"
	"strings"

	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
)

// SuggestionSystemPrompt is sent with every suggestion request.
const SuggestionSystemPrompt = "You are helping a user create a template for a prompt enhancement tool. " +
	"The user will tell you the template name and which field they are filling in. " +
	"Generate exactly 2-3 high-quality suggestions for that field.\n\n" +
	"Wrap each suggestion in <suggestion> XML tags like this:\n" +
	"<suggestion>\nYour suggestion text here\n</suggestion>\n\n" +
	"Each suggestion should be substantive (several sentences) and distinct " +
	"from the others. Do not include any other text outside the tags."

// SuggestionRequest is everything the user message of a suggestion request is built from.
type SuggestionRequest struct {
	TemplateName string
	Field        templates.Field
	// Accepted holds the values of the fields already completed.
	Accepted map[templates.Field]string
	// Current, when non-empty, asks for refined variations of this value.
	Current string
}

// BuildSuggestionPrompt renders the user message. Accepted values are listed in field order.
func BuildSuggestionPrompt(r SuggestionRequest) string {
	fi, ok := LookupField(r.Field)
	if !ok {
		fi = FieldInfo{Field: r.Field, Label: string(r.Field)}
	}

	parts := []string{
		`Template name: "` + r.TemplateName + `"`,
		"Field to fill: " + fi.Label,
		"Field description: " + fi.Description,
	}

	if len(r.Accepted) > 0 {
		parts = append(parts, "\nAlready completed fields:")
		for _, step := range FieldSteps {
			if v, ok := r.Accepted[step.Field]; ok {
				parts = append(parts, fmt.Sprintf("  %s: %s", step.Label, v))
			}
		}
	}

	if r.Current != "" {
		parts = append(parts,
			"\nThe user's current value for this field is:\n"+r.Current,
			"Generate 2-3 refined/improved variations based on this value. "+
				"Keep the core intent but enhance clarity, detail, and effectiveness.",
		)
	} else {
		parts = append(parts, "\nGenerate 2-3 suggestions for this field from scratch.")
	}

	return strings.Join(parts, "\n")
}
