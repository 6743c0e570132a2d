package ui

import (
	"fmt"
	"strings"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/models"
	"github.com/bz888/cognix/internal/preferences"
	"github.com/bz888/cognix/internal/session"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// onEvent runs on the session goroutine and must not touch widgets.
func (u *UI) onEvent(gen int, ev session.Event) {
	u.app.QueueUpdateDraw(func() {
		if u.ctl == nil || gen != u.gen {
			return
		}
		u.apply(ev)
	})
}

func (u *UI) apply(ev session.Event) {
	switch ev.Kind {
	case session.TranscriptChanged:
		if ev.Cleared {
			u.streaming = false
			u.conversation.Clear()
			u.renderTranscript()
			return
		}
		if u.streaming && ev.Message.Role == chat.RoleAssistant && !ev.Message.IsError {
			// already on screen
			u.streaming = false
			fmt.Fprint(u.conversation, "\n\n")
			return
		}
		if u.streaming {
			u.streaming = false
			fmt.Fprint(u.conversation, "\n\n")
		}
		fmt.Fprint(u.conversation, formatMessage(ev.Message))
	case session.ReplyDelta:
		if !u.streaming {
			u.streaming = true
			fmt.Fprint(u.conversation, speakerLabel(chat.RoleAssistant, false))
		}
		fmt.Fprint(u.conversation, tview.Escape(ev.Text))
	case session.InputChanged:
		if u.input.GetText() != ev.Text {
			u.input.SetText(ev.Text, true)
		}
		u.renderStatus()
	case session.Notice:
		u.note(ev.Text)
	case session.StateChanged:
		u.input.SetDisabled(ev.State.Phase == session.Pending)
		if ev.State.Phase == session.Idle {
			u.app.SetFocus(u.input)
		}
		u.renderStatus()
	default:
		u.renderStatus()
	}
	u.conversation.ScrollToEnd()
}

func speakerLabel(role chat.Role, isError bool) string {
	switch {
	case role == chat.RoleUser:
		return "[red::]You:[-]\n"
	case isError:
		return "[yellow::]COGNIX:[-]\n"
	}
	return "[green::]COGNIX:[-]\n"
}

func formatMessage(m chat.Message) string {
	return speakerLabel(m.Role, m.IsError) + tview.Escape(m.Content) + "\n\n"
}

func (u *UI) renderTranscript() {
	for _, m := range u.ctl.Transcript() {
		fmt.Fprint(u.conversation, formatMessage(m))
	}
	u.conversation.ScrollToEnd()
}

func (u *UI) note(text string) {
	fmt.Fprintf(u.conversation, "[gray::]%s[-:-:-]\n\n", tview.Escape(text))
	u.conversation.ScrollToEnd()
}

type statusView struct {
	Model     models.Descriptor
	Prefs     preferences.Preferences
	Phase     session.Phase
	Capturing bool
	Speaking  bool
}

func statusLine(s statusView) string {
	var b strings.Builder
	fmt.Fprintf(&b, " [::b]%s[::-]", tview.Escape(s.Model.DisplayName))
	if s.Model.IsPremium {
		b.WriteString(" [yellow::](premium)[-]")
	}
	auto := "off"
	if s.Prefs.AutoSpeak {
		auto = "on"
	}
	fmt.Fprintf(&b, " | auto-speak %s | speed %.2gx", auto, s.Prefs.VoiceSpeed)
	switch {
	case s.Phase == session.Pending:
		b.WriteString(" | [yellow::]thinking...[-]")
	case s.Capturing:
		b.WriteString(" | [red::]listening...[-]")
	case s.Speaking:
		b.WriteString(" | [green::]speaking (/stop)[-]")
	}
	return b.String()
}

func (u *UI) renderStatus() {
	if u.ctl == nil {
		return
	}
	u.status.SetText(statusLine(statusView{
		Model:     u.ctl.SelectedModel(),
		Prefs:     u.ctl.Preferences(),
		Phase:     u.ctl.State().Phase,
		Capturing: u.ctl.Capturing(),
		Speaking:  u.ctl.Speaking(),
	}))
}

func (u *UI) onInputKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyESC:
		if u.conversation.GetText(false) != "" {
			u.app.SetFocus(u.conversation)
		}
		return event
	case tcell.KeyEnter:
		if event.Modifiers()&tcell.ModAlt != 0 {
			// Alt+Enter inserts a newline
			return event
		}
	default:
		return event
	}

	content := u.input.GetText()
	if strings.TrimSpace(content) == "" || u.ctl == nil {
		return nil
	}
	u.input.SetText("", true)

	if name, arg, ok := parseCommand(content); ok {
		u.runCommand(name, arg)
		return nil
	}

	ctl := u.ctl
	go func() {
		if err := ctl.Submit(content); err != nil {
			u.app.QueueUpdateDraw(func() { u.note(err.Error()) })
		}
	}()
	return nil
}
