// Package conversation holds the linear turn history of an enhancement session.
//
// A Conversation is append-only: turns are never edited or removed once added, and
// callers only ever get copies of the history so the owning session stays the single
// writer.
package conversation

import "sync"

type Conversation struct {
	mu    sync.RWMutex
	turns []Turn
}

func NewConversation(turns ...Turn) *Conversation {
	c := &Conversation{}
	c.Append(turns...)
	return c
}

func (c *Conversation) Append(turns ...Turn) {
	if len(turns) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turns...)
}

// Turns returns a copy of the history.
func (c *Conversation) Turns() []Turn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ret := make([]Turn, len(c.turns))
	copy(ret, c.turns)
	return ret
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.turns)
}

// LastOfRole returns the most recent turn with the given role.
func (c *Conversation) LastOfRole(role Role) (Turn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].Role == role {
			return c.turns[i], true
		}
	}
	return Turn{}, false
}
