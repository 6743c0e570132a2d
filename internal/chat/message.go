package chat

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

const (
	InitialGreeting = "Hello! I'm COGNIX, your advanced AI assistant created by Kriszz. " +
		"I can help you with anything you need. Ask me anything! " +
		"You can also use voice input with the /voice command."
	ClearedGreeting = "Chat cleared! How can I help you today?"
)

type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	// IsError marks locally synthesised failure reports. They are shown to
	// the user but never sent upstream.
	IsError bool `json:"is_error"`
	// Greeting marks the synthetic assistant message that opens a transcript.
	Greeting bool `json:"greeting"`
}

func newMessage(role Role, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
}

func NewUserMessage(content string, at time.Time) Message {
	return newMessage(RoleUser, content, at)
}

func NewAssistantMessage(content string, at time.Time) Message {
	return newMessage(RoleAssistant, content, at)
}

func NewErrorMessage(content string, at time.Time) Message {
	m := newMessage(RoleAssistant, content, at)
	m.IsError = true
	return m
}

func NewGreeting(content string, at time.Time) Message {
	m := newMessage(RoleAssistant, content, at)
	m.Greeting = true
	return m
}
