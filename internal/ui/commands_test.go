package ui

import (
	"testing"
	"time"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/models"
	"github.com/bz888/cognix/internal/preferences"
	"github.com/bz888/cognix/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in, name, arg string
		ok            bool
	}{
		{"/help", "/help", "", true},
		{"  /speed 1.5 ", "/speed", "1.5", true},
		{"/QUIT", "/quit", "", true},
		{"/exit", "/exit", "", true},
		{"/models", "/models", "", true},
		{"/usr/bin is a path", "", "", false},
		{"hello /help", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		name, arg, ok := parseCommand(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.name, name, tt.in)
		assert.Equal(t, tt.arg, arg, tt.in)
	}
}

func TestAliasesResolve(t *testing.T) {
	bye := lookupCommand("/bye")
	require.NotNil(t, bye)
	assert.Same(t, bye, lookupCommand("/quit"))
	assert.Same(t, bye, lookupCommand("/exit"))
	assert.Nil(t, lookupCommand("/nope"))
}

func TestHelpListsEveryCommand(t *testing.T) {
	help := helpText()
	for _, c := range commands {
		assert.Contains(t, help, c.name)
	}
	assert.Contains(t, help, "/speed <0.5-2.0>")
}

func TestParseSpeed(t *testing.T) {
	v, err := parseSpeed("1.25")
	require.NoError(t, err)
	assert.Equal(t, 1.25, v)

	v, err = parseSpeed("2x")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	_, err = parseSpeed("fast")
	assert.ErrorContains(t, err, "usage: /speed")
}

func TestFormatMessage(t *testing.T) {
	now := time.Now()
	assert.Equal(t, "[red::]You:[-]\nhi [x[]]\n\n", formatMessage(chat.NewUserMessage("hi [x]", now)))
	assert.Equal(t, "[green::]COGNIX:[-]\nhello\n\n", formatMessage(chat.NewAssistantMessage("hello", now)))
	assert.Equal(t, "[yellow::]COGNIX:[-]\noops\n\n", formatMessage(chat.NewErrorMessage("oops", now)))
}

func TestStatusLine(t *testing.T) {
	model := models.Builtin().Default()
	prefs := preferences.Preferences{SelectedModelID: model.ID, AutoSpeak: true, VoiceSpeed: 1.5}

	line := statusLine(statusView{Model: model, Prefs: prefs})
	assert.Contains(t, line, "COGNIX AI")
	assert.Contains(t, line, "auto-speak on")
	assert.Contains(t, line, "speed 1.5x")

	line = statusLine(statusView{Model: model, Prefs: prefs, Phase: session.Pending, Capturing: true})
	assert.Contains(t, line, "thinking")
	assert.NotContains(t, line, "listening")

	premium, err := models.Builtin().Find("openai/gpt-4")
	require.NoError(t, err)
	prefs.AutoSpeak = false
	line = statusLine(statusView{Model: premium, Prefs: prefs, Speaking: true})
	assert.Contains(t, line, "(premium)")
	assert.Contains(t, line, "auto-speak off")
	assert.Contains(t, line, "speaking")
}
