package server

import (
	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/models"
	"github.com/bz888/cognix/internal/preferences"
	"github.com/bz888/cognix/internal/speech"
)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatResponse acknowledges a submitted message. For a premium model
// Reply carries the notice that was appended instead of a request.
type ChatResponse struct {
	State StateResponse `json:"state"`
	Reply *chat.Message `json:"reply,omitempty"`
}

type StateResponse struct {
	Phase     string `json:"phase"`
	Failure   string `json:"failure,omitempty"`
	Capturing bool   `json:"capturing"`
	Speaking  bool   `json:"speaking"`
}

type ModelsResponse struct {
	Models   []models.Descriptor `json:"models"`
	Selected string              `json:"selected"`
}

type TranscriptResponse struct {
	Messages []chat.Message `json:"messages"`
}

// PreferencesUpdate is the body of PUT /preferences. Absent fields are left
// unchanged.
type PreferencesUpdate struct {
	SelectedModel *string  `json:"selected_model,omitempty"`
	AutoSpeak     *bool    `json:"auto_speak,omitempty"`
	VoiceSpeed    *float64 `json:"voice_speed,omitempty"`
}

type PreferencesResponse struct {
	preferences.Preferences
	Capabilities speech.Capabilities `json:"capabilities"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
