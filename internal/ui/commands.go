package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bz888/cognix/internal/chat"
	"github.com/bz888/cognix/internal/preferences"
	"github.com/bz888/cognix/internal/session"
	"github.com/rivo/tview"
)

type command struct {
	name    string
	aliases []string
	args    string
	help    string
	run     func(u *UI, arg string)
}

var commands []command

func init() {
	commands = []command{
		{name: "/help", help: "Display this help message", run: (*UI).showHelp},
		{name: "/bye", aliases: []string{"/quit", "/exit"}, help: "Exit the application", run: func(u *UI, _ string) { u.quit() }},
		{name: "/debug", help: "Toggle the debug console", run: func(u *UI, _ string) { u.toggleDebugConsole() }},
		{name: "/voice", help: "Start or stop voice input", run: (*UI).toggleVoice},
		{name: "/models", help: "Choose the assistant model", run: func(u *UI, _ string) { u.showModels() }},
		{name: "/clear", help: "Clear the conversation", run: (*UI).clearConversation},
		{name: "/speak", help: "Read the last reply aloud", run: (*UI).speakLast},
		{name: "/stop", help: "Stop reading aloud", run: (*UI).stopSpeaking},
		{name: "/autospeak", help: "Toggle reading replies aloud", run: (*UI).toggleAutoSpeak},
		{name: "/speed", args: "<0.5-2.0>", help: "Set the read-aloud speed", run: (*UI).setSpeed},
		{name: "/logout", help: "Sign out", run: func(u *UI, _ string) { u.signOut() }},
	}
}

// parseCommand splits "/name arg" input. Only known commands match, so a
// message that merely starts with a slash is sent as text.
func parseCommand(text string) (name, arg string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(text, " ")
	name = strings.ToLower(name)
	if lookupCommand(name) == nil {
		return "", "", false
	}
	return name, strings.TrimSpace(arg), true
}

func lookupCommand(name string) *command {
	for i, c := range commands {
		if c.name == name {
			return &commands[i]
		}
		for _, alias := range c.aliases {
			if alias == name {
				return &commands[i]
			}
		}
	}
	return nil
}

func (u *UI) runCommand(name, arg string) {
	u.log.Debug("command ", name, " ", arg)
	lookupCommand(name).run(u, arg)
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Here are some commands you can use:\n")
	for _, c := range commands {
		usage := c.name
		if c.args != "" {
			usage += " " + c.args
		}
		fmt.Fprintf(&b, "- %s: %s\n", tview.Escape(usage), c.help)
	}
	return b.String()
}

func (u *UI) showHelp(string) {
	fmt.Fprint(u.conversation, speakerLabel(chat.RoleAssistant, false)+helpText()+"\n")
	u.conversation.ScrollToEnd()
}

// async runs a controller call off the tview goroutine, which the session
// may be waiting on to draw.
func (u *UI) async(fn func(ctl *session.Controller) error) {
	ctl := u.ctl
	go func() {
		if err := fn(ctl); err != nil {
			u.app.QueueUpdateDraw(func() { u.note(err.Error()) })
		}
	}()
}

func (u *UI) toggleVoice(string) {
	u.async(func(ctl *session.Controller) error {
		err := ctl.ToggleCapture()
		if errors.Is(err, session.ErrCapabilityUnavailable) {
			// the session has already posted a notice
			return nil
		}
		return err
	})
}

func (u *UI) clearConversation(string) {
	u.async(func(ctl *session.Controller) error {
		ctl.ClearConversation()
		return nil
	})
}

func (u *UI) speakLast(string) {
	u.async(func(ctl *session.Controller) error {
		msgs := ctl.Transcript()
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == chat.RoleAssistant && !msgs[i].IsError {
				err := ctl.Speak(msgs[i].ID)
				if errors.Is(err, session.ErrCapabilityUnavailable) {
					return errors.New("Text-to-speech is not available on this system.")
				}
				return err
			}
		}
		return errors.New("Nothing to read aloud yet.")
	})
}

func (u *UI) stopSpeaking(string) {
	u.async(func(ctl *session.Controller) error {
		ctl.StopPlayback()
		return nil
	})
}

func (u *UI) toggleAutoSpeak(string) {
	u.async(func(ctl *session.Controller) error {
		on := ctl.ToggleAutoSpeak()
		u.app.QueueUpdateDraw(func() {
			if on {
				u.note("Replies will be read aloud.")
			} else {
				u.note("Replies will no longer be read aloud.")
			}
		})
		return nil
	})
}

func parseSpeed(arg string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(arg, "x"), 64)
	if err != nil {
		return 0, fmt.Errorf("usage: /speed <%.1f-%.1f>", preferences.MinVoiceSpeed, preferences.MaxVoiceSpeed)
	}
	return v, nil
}

func (u *UI) setSpeed(arg string) {
	v, err := parseSpeed(arg)
	if err != nil {
		u.note(err.Error())
		return
	}
	u.async(func(ctl *session.Controller) error {
		speed := ctl.SetVoiceSpeed(v)
		u.app.QueueUpdateDraw(func() { u.note(fmt.Sprintf("Voice speed set to %.2gx", speed)) })
		return nil
	})
}

func (u *UI) showModels() {
	ctl := u.ctl
	current := ctl.SelectedModel().ID

	list := tview.NewList()
	list.SetBorder(true).SetTitle("Models")
	closeModal := func() {
		u.pages.RemovePage(pageModels)
		u.app.SetFocus(u.input)
	}

	for i, m := range ctl.Models() {
		shortcut := rune(0)
		if i < 9 {
			shortcut = '1' + rune(i)
		}
		secondary := m.Description
		switch {
		case m.ID == current:
			secondary = "Current model"
		case m.IsPremium:
			secondary += " (Premium)"
		}
		id, name := m.ID, m.DisplayName
		list.AddItem(name, secondary, shortcut, func() {
			closeModal()
			if id == current {
				u.note("Already using model: " + name)
				return
			}
			u.async(func(ctl *session.Controller) error {
				err := ctl.SelectModel(id)
				if errors.Is(err, session.ErrPremiumGated) {
					return fmt.Errorf("%s requires a Premium subscription. Upgrade to COGNIX Premium to use it.", name)
				}
				if err == nil {
					u.app.QueueUpdateDraw(func() { u.note("Using model: " + name) })
				}
				return err
			})
		})
	}
	list.AddItem("Back", "", 'q', closeModal)

	u.pages.AddPage(pageModels, createModal(list, 60, 2*len(ctl.Models())+4), true, true)
	u.app.SetFocus(list)
}
