package enhancer

import (
	"strings"

	"github.com/cosmicshuai/prompt-enhancer/pkg/templates"
)

// ProcessInstructions describes the question-then-answer protocol and the tag wrapping the
// enhanced prompt. It closes every system prompt.
const ProcessInstructions = `You are helping the user craft a high-quality, detailed prompt. Follow this process:

1. The user will provide a rough prompt idea.
2. Ask ONE clarifying question at a time to better understand their needs. Wait for their response before asking the next question. Keep questions focused and specific.
3. After gathering enough context (typically 2-4 questions), generate the enhanced prompt.
4. When you produce the final enhanced prompt, wrap it in <enhanced_prompt> tags like this:
   <enhanced_prompt>
   Your enhanced prompt here...
   </enhanced_prompt>
5. After presenting the enhanced prompt, ask if the user wants any changes. If they do, produce a revised version (again wrapped in <enhanced_prompt> tags).

Important: Only wrap the final enhanced prompt in the tags, not your conversational responses or questions.`

const (
	headerDomainKnowledge        = "Domain Knowledge:\n"
	headerThinkingSteps          = "Thinking Steps:\n"
	headerClarifyingInstructions = "Clarifying Instructions:\n"
)

// BuildSystemPrompt derives the system prompt from t. Empty fields are left out; present
// sections are separated by a blank line and ProcessInstructions always comes last.
func BuildSystemPrompt(t *templates.Template) string {
	parts := make([]string, 0, 5)
	if t != nil {
		if t.SystemPrompt != "" {
			parts = append(parts, t.SystemPrompt)
		}
		if t.DomainKnowledge != "" {
			parts = append(parts, headerDomainKnowledge+t.DomainKnowledge)
		}
		if t.ThinkingSteps != "" {
			parts = append(parts, headerThinkingSteps+t.ThinkingSteps)
		}
		if t.ClarifyingInstructions != "" {
			parts = append(parts, headerClarifyingInstructions+t.ClarifyingInstructions)
		}
	}
	parts = append(parts, ProcessInstructions)
	return strings.Join(parts, "\n\n")
}
