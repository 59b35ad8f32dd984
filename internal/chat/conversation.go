package chat

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Responder answers one question in the context of the conversation so far
type Responder interface {
	Reply(ctx context.Context, question string) (string, error)
}

// Conversation is the per-session agent: system prompt, history, then the new question
type Conversation struct {
	completer    Completer
	systemPrompt string
	memory       *Memory
}

// NewConversation binds a shared completer to a fresh memory
func NewConversation(completer Completer, systemPrompt string, memory *Memory) *Conversation {
	if memory == nil {
		memory = NewMemory(0)
	}
	return &Conversation{
		completer:    completer,
		systemPrompt: systemPrompt,
		memory:       memory,
	}
}

// Reply asks the model and records the turn only once an answer arrived
func (c *Conversation) Reply(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)

	answer, err := c.completer.Complete(ctx, c.prompt(question))
	if err != nil {
		return "", err
	}

	c.memory.Append(Turn{Question: question, Answer: answer})
	return answer, nil
}

// Memory exposes the conversation buffer
func (c *Conversation) Memory() *Memory {
	return c.memory
}

func (c *Conversation) prompt(question string) []openai.ChatCompletionMessage {
	history := c.memory.messages()
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if c.systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt})
	}
	msgs = append(msgs, history...)
	return append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: question})
}
