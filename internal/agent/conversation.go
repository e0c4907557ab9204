package agent

import "github.com/chadiek/interview-voice/internal/llm"

const (
	// maxTurns is the history length that triggers a trim.
	maxTurns = 20
	// keepTurns is how many recent turns survive a trim, besides the system turn.
	keepTurns = 9
)

// Conversation is the bounded history of one interview. The first turn is
// always the system turn and is never evicted. A Conversation belongs to a
// single session and is not safe for concurrent use.
type Conversation struct {
	turns            []llm.Message
	introductionSent bool
}

func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{turns: []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}}
}

// Turns returns a copy of the history, system turn first.
func (c *Conversation) Turns() []llm.Message {
	out := make([]llm.Message, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Conversation) Len() int { return len(c.turns) }

func (c *Conversation) IntroductionSent() bool { return c.introductionSent }

func (c *Conversation) append(role llm.Role, content string) {
	c.turns = append(c.turns, llm.Message{Role: role, Content: content})
}

// trim keeps [system] + the last keepTurns turns once the history grows past maxTurns.
func (c *Conversation) trim() {
	if len(c.turns) <= maxTurns {
		return
	}
	kept := make([]llm.Message, 0, keepTurns+1)
	kept = append(kept, c.turns[0])
	kept = append(kept, c.turns[len(c.turns)-keepTurns:]...)
	c.turns = kept
}
