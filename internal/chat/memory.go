package chat

import (
	"sync"

	"github.com/sashabaranov/go-openai"
)

// Turn is one completed question and answer
type Turn struct {
	Question string
	Answer   string
}

// Memory is a per-session conversation buffer.
// With maxTurns > 0 only the most recent turns are kept.
type Memory struct {
	mu       sync.Mutex
	turns    []Turn
	maxTurns int
}

// NewMemory creates an empty buffer; maxTurns <= 0 keeps everything
func NewMemory(maxTurns int) *Memory {
	return &Memory{maxTurns: maxTurns}
}

// Append records a finished turn
func (m *Memory) Append(turn Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, turn)
	if m.maxTurns > 0 && len(m.turns) > m.maxTurns {
		m.turns = append(m.turns[:0:0], m.turns[len(m.turns)-m.maxTurns:]...)
	}
}

// Turns returns a copy of the buffered turns, oldest first
func (m *Memory) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Len returns the number of buffered turns
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// messages renders the history as alternating user/assistant messages
func (m *Memory) messages() []openai.ChatCompletionMessage {
	turns := m.Turns()
	msgs := make([]openai.ChatCompletionMessage, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: t.Question},
			openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: t.Answer},
		)
	}
	return msgs
}
