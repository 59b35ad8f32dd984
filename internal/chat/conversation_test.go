package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
)

// scriptedCompleter records every prompt and answers from a script
type scriptedCompleter struct {
	replies []string
	err     error
	prompts [][]openai.ChatCompletionMessage
}

func (s *scriptedCompleter) Complete(ctx context.Context, messages []openai.ChatCompletionMessage) (string, error) {
	s.prompts = append(s.prompts, messages)
	if s.err != nil {
		return "", s.err
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

func TestConversation_PromptShape(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"hi there", "I'm fine"}}
	conv := NewConversation(completer, "be brief", NewMemory(0))

	if _, err := conv.Reply(context.Background(), "hello"); err != nil {
		t.Fatalf("Reply() failed: %v", err)
	}
	if _, err := conv.Reply(context.Background(), "how are you?"); err != nil {
		t.Fatalf("Reply() failed: %v", err)
	}

	second := completer.prompts[1]
	want := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: "be brief"},
		{Role: openai.ChatMessageRoleUser, Content: "hello"},
		{Role: openai.ChatMessageRoleAssistant, Content: "hi there"},
		{Role: openai.ChatMessageRoleUser, Content: "how are you?"},
	}
	if len(second) != len(want) {
		t.Fatalf("Expected %d messages, got %d: %+v", len(want), len(second), second)
	}
	for i := range want {
		if second[i].Role != want[i].Role || second[i].Content != want[i].Content {
			t.Errorf("message %d: expected %+v, got %+v", i, want[i], second[i])
		}
	}
}

func TestConversation_FailedReplyNotRemembered(t *testing.T) {
	completer := &scriptedCompleter{err: errors.New("provider down")}
	conv := NewConversation(completer, "be brief", nil)

	if _, err := conv.Reply(context.Background(), "hello"); err == nil {
		t.Fatal("Expected error")
	}
	if conv.Memory().Len() != 0 {
		t.Errorf("Expected no turn recorded after failure, got %d", conv.Memory().Len())
	}
}

func TestConversation_NoSystemPrompt(t *testing.T) {
	completer := &scriptedCompleter{replies: []string{"ok"}}
	conv := NewConversation(completer, "", nil)

	if _, err := conv.Reply(context.Background(), "  hello  "); err != nil {
		t.Fatalf("Reply() failed: %v", err)
	}
	prompt := completer.prompts[0]
	if len(prompt) != 1 || prompt[0].Content != "hello" {
		t.Errorf("Expected single trimmed user message, got %+v", prompt)
	}
}

func TestMemory_MaxTurns(t *testing.T) {
	m := NewMemory(2)
	m.Append(Turn{Question: "1", Answer: "a"})
	m.Append(Turn{Question: "2", Answer: "b"})
	m.Append(Turn{Question: "3", Answer: "c"})

	turns := m.Turns()
	if len(turns) != 2 {
		t.Fatalf("Expected 2 turns, got %d", len(turns))
	}
	if turns[0].Question != "2" || turns[1].Question != "3" {
		t.Errorf("Expected the two most recent turns, got %+v", turns)
	}
	if m.Len() != 2 {
		t.Errorf("Expected Len 2, got %d", m.Len())
	}
}

func TestMemory_TurnsIsACopy(t *testing.T) {
	m := NewMemory(0)
	m.Append(Turn{Question: "q", Answer: "a"})

	turns := m.Turns()
	turns[0].Answer = "changed"

	if m.Turns()[0].Answer != "a" {
		t.Error("Expected Turns() to return a copy")
	}
}
