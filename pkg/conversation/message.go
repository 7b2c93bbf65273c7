package conversation

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation: who said it and what was said.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Content: text}
}

func NewAssistantTurn(text string) Turn {
	return Turn{Role: RoleAssistant, Content: text}
}

func (t Turn) String() string {
	return t.Content
}

func (t Turn) View() string {
	return fmt.Sprintf("[%s]: %s", t.Role, strings.TrimRight(t.Content, "\n"))
}
