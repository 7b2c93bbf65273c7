// Package templates holds the conversation template record, the builtin starter templates,
// and the stores templates are persisted in.
package templates

import (
	"strings"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"
)

// Field identifies one of the four text fields of a template.
type Field string

const (
	FieldSystemPrompt           Field = "system_prompt"
	FieldDomainKnowledge        Field = "domain_knowledge"
	FieldThinkingSteps          Field = "thinking_steps"
	FieldClarifyingInstructions Field = "clarifying_instructions"
)

// Fields lists the template fields in wizard order.
var Fields = []Field{
	FieldSystemPrompt,
	FieldDomainKnowledge,
	FieldThinkingSteps,
	FieldClarifyingInstructions,
}

type Template struct {
	ID                     string `json:"id" yaml:"id"`
	Name                   string `json:"name" yaml:"name"`
	SystemPrompt           string `json:"system_prompt" yaml:"system_prompt"`
	DomainKnowledge        string `json:"domain_knowledge" yaml:"domain_knowledge"`
	ThinkingSteps          string `json:"thinking_steps" yaml:"thinking_steps"`
	ClarifyingInstructions string `json:"clarifying_instructions" yaml:"clarifying_instructions"`
	Builtin                bool   `json:"builtin" yaml:"builtin"`
}

// NewTemplate returns a user template with a fresh id.
func NewTemplate(name string) *Template {
	return &Template{
		ID:   uuid.NewString(),
		Name: name,
	}
}

func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	return clone.Clone(t).(*Template)
}

// Get returns the value of field f.
func (t *Template) Get(f Field) string {
	switch f {
	case FieldSystemPrompt:
		return t.SystemPrompt
	case FieldDomainKnowledge:
		return t.DomainKnowledge
	case FieldThinkingSteps:
		return t.ThinkingSteps
	case FieldClarifyingInstructions:
		return t.ClarifyingInstructions
	}
	return ""
}

// Set assigns the value of field f. Unknown fields are ignored and reported as false.
func (t *Template) Set(f Field, value string) bool {
	switch f {
	case FieldSystemPrompt:
		t.SystemPrompt = value
	case FieldDomainKnowledge:
		t.DomainKnowledge = value
	case FieldThinkingSteps:
		t.ThinkingSteps = value
	case FieldClarifyingInstructions:
		t.ClarifyingInstructions = value
	default:
		return false
	}
	return true
}

// ParseField accepts the field identifier, with dashes or underscores.
func ParseField(raw string) (Field, bool) {
	f := Field(strings.ReplaceAll(strings.TrimSpace(strings.ToLower(raw)), "-", "_"))
	for _, known := range Fields {
		if f == known {
			return f, true
		}
	}
	return "", false
}

// Validate checks the invariants every stored template satisfies.
func (t *Template) Validate() error {
	if t == nil {
		return &ValidationError{Reason: "template is nil"}
	}
	if strings.TrimSpace(t.ID) == "" {
		return &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if strings.ContainsAny(t.ID, `/\`) || t.ID == "." || t.ID == ".." {
		return &ValidationError{Field: "id", Reason: "must not contain path separators"}
	}
	if strings.TrimSpace(t.Name) == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return nil
}

// fileName is the name a template is stored under; listing order follows it.
func fileName(id string) string {
	return id + ".json"
}
