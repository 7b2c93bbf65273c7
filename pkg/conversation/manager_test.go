package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationTurnsReturnsCopy(t *testing.T) {
	c := NewConversation(NewUserTurn("hi"), NewAssistantTurn("hello"))

	turns := c.Turns()
	require.Len(t, turns, 2)
	turns[0].Content = "mutated"

	assert.Equal(t, "hi", c.Turns()[0].Content)
}

func TestConversationLastOfRole(t *testing.T) {
	c := NewConversation()
	_, ok := c.LastOfRole(RoleAssistant)
	assert.False(t, ok)

	c.Append(NewUserTurn("q1"), NewAssistantTurn("a1"), NewUserTurn("q2"))
	last, ok := c.LastOfRole(RoleAssistant)
	require.True(t, ok)
	assert.Equal(t, "a1", last.Content)

	c.Append(NewAssistantTurn("a2"))
	last, ok = c.LastOfRole(RoleAssistant)
	require.True(t, ok)
	assert.Equal(t, "a2", last.Content)
	assert.Equal(t, 4, c.Len())
}

func TestTurnView(t *testing.T) {
	assert.Equal(t, "[user]: hello", NewUserTurn("hello\n").View())
}
