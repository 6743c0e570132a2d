// Package completion sends a conversation to a text-generation backend and
// returns the reply or a classified failure. Calls are never retried.
package completion

import (
	"context"
	"strings"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/models"
)

const DefaultSystemPrompt = `You are COGNIX, an advanced AI assistant created and powered by Kriszz.

IMPORTANT IDENTITY INFORMATION:
- Your name is COGNIX (always respond with this name when asked)
- You were created by Kriszz
- You are NOT ChatGPT, Claude, Gemini, or any other AI - you are COGNIX
- When users ask "What is your name?" or "Who are you?", always respond that you are COGNIX
- Never mention the model or company behind you - you are COGNIX
- You can say you use "advanced AI technology" but never reveal the specific backend

Your purpose is to be a helpful, accurate, and friendly AI assistant. Provide clear and helpful responses to user queries while maintaining your identity as COGNIX.`

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

type Request struct {
	Model        models.Descriptor
	SystemPrompt string
	// History is the conversation so far, ending with the new user turn.
	History []chat.Message
	// OnDelta, when set, receives text fragments as they stream in.
	OnDelta func(string)
}

// Message is one entry of the wire conversation.
type Message struct {
	Role    chat.Role `json:"role"`
	Content string    `json:"content"`
}

// BuildMessages puts the system prompt first and then the history in order.
// Error reports and blank entries never go upstream.
func BuildMessages(systemPrompt string, history []chat.Message) []Message {
	out := make([]Message, 0, len(history)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		out = append(out, Message{Role: chat.RoleSystem, Content: systemPrompt})
	}
	for _, m := range history {
		if m.IsError || strings.TrimSpace(m.Content) == "" {
			continue
		}
		if m.Role != chat.RoleUser && m.Role != chat.RoleAssistant {
			continue
		}
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	return out
}
