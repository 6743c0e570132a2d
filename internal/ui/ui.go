// Package ui is the terminal host for a chat session.
package ui

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bz888/cognix/internal/identity"
	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/session"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	pageLogin    = "login"
	pageRegister = "register"
	pageChat     = "chat"
	pageModels   = "models"
)

// OpenFunc starts a session for a signed-in user. notify must be passed on as
// the session's Options.Notify.
type OpenFunc func(user identity.User, notify func(session.Event)) (*session.Controller, error)

type UI struct {
	app   *tview.Application
	pages *tview.Pages

	debugConsole *tview.TextView
	conversation *tview.TextView
	input        *tview.TextArea
	status       *tview.TextView
	mainFlex     *tview.Flex
	debugShown   bool
	login        authForm

	ident identity.Provider
	open  OpenFunc
	log   *logger.Logger

	// owned by the tview goroutine
	ctl       *session.Controller
	user      identity.User
	cancel    context.CancelFunc
	gen       int
	streaming bool
	wg        sync.WaitGroup
}

// New builds the widgets. The debug console exists from the start so the
// logger can write into it before Run.
func New(ident identity.Provider, open OpenFunc, dev bool) *UI {
	u := &UI{
		app:        tview.NewApplication(),
		pages:      tview.NewPages(),
		ident:      ident,
		open:       open,
		debugShown: dev,
		log:        logger.NewLogger("views"),
	}
	u.app.EnablePaste(true)
	u.app.EnableMouse(true)

	u.debugConsole = u.newDebugConsole()
	u.conversation = u.newConversation()
	u.input = u.newInput()
	u.status = tview.NewTextView().SetDynamicColors(true)

	u.buildChat()
	u.buildLogin()
	u.buildRegister()
	u.pages.SwitchToPage(pageLogin)
	return u
}

// DebugConsole is the writer for the logger in dev mode.
func (u *UI) DebugConsole() *tview.TextView {
	return u.debugConsole
}

func (u *UI) newConversation() *tview.TextView {
	tv := tview.NewTextView().
		SetChangedFunc(func() {
			u.app.Draw()
		}).
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	tv.SetTitle("Conversation").SetBorder(true)
	tv.SetScrollable(true)
	tv.ScrollToEnd()
	return tv
}

func (u *UI) newInput() *tview.TextArea {
	ta := tview.NewTextArea()
	ta.SetTitle("Message (/help for commands)").SetBorder(true)
	return ta
}

func (u *UI) newDebugConsole() *tview.TextView {
	console := tview.NewTextView().
		SetChangedFunc(func() {
			u.app.Draw()
		}).
		SetDynamicColors(true).
		SetRegions(true).
		SetWordWrap(true)

	console.SetTitle("Debugger").SetBorder(true)
	console.ScrollToEnd()
	return console
}

func (u *UI) buildChat() {
	u.conversation.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEnter {
			u.app.SetFocus(u.input)
		}
		return event
	})
	u.input.SetInputCapture(u.onInputKey)

	subFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(u.conversation, 0, 1, false).
		AddItem(u.status, 1, 0, false).
		AddItem(u.input, 6, 0, true)
	u.mainFlex = tview.NewFlex().
		AddItem(subFlex, 0, 2, true)
	if u.debugShown {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
	}
	u.pages.AddPage(pageChat, u.mainFlex, true, false)
}

// Run shows the sign-in screen and blocks until the user quits.
func (u *UI) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		u.app.Stop()
	}()
	err := u.app.SetRoot(u.pages, true).Run()
	u.endSession()
	u.wg.Wait()
	return err
}

// startSession runs on the tview goroutine once a user has signed in.
func (u *UI) startSession(user identity.User) error {
	u.gen++
	gen := u.gen
	ctl, err := u.open(user, func(ev session.Event) { u.onEvent(gen, ev) })
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	u.ctl, u.user, u.cancel = ctl, user, cancel

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if err := ctl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			u.log.Error("session ended: ", err)
		}
	}()

	u.conversation.Clear()
	u.renderTranscript()
	u.renderStatus()
	fmt.Fprintf(u.conversation, "[gray::]Signed in as %s[-:-:-]\n\n", tview.Escape(user.DisplayName()))
	u.pages.SwitchToPage(pageChat)
	u.app.SetFocus(u.input)
	u.log.Info("session opened for ", user.ID)
	return nil
}

func (u *UI) endSession() {
	if u.ctl == nil {
		return
	}
	u.ctl.Close()
	u.cancel()
	u.ctl = nil
	u.gen++
	u.streaming = false
}

func (u *UI) signOut() {
	u.endSession()
	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		if err := u.ident.SignOut(context.Background()); err != nil {
			u.log.Warn("sign out: ", err)
		}
	}()
	u.showLoginMessage("[green::]Signed out.[-]")
	u.pages.SwitchToPage(pageLogin)
}

func (u *UI) quit() {
	fmt.Fprintf(u.conversation, "Bye bye\n")
	u.app.Stop()
}

func (u *UI) toggleDebugConsole() {
	if u.debugShown {
		u.mainFlex.RemoveItem(u.debugConsole)
		u.note("Debug console disabled")
	} else {
		u.mainFlex.AddItem(u.debugConsole, 0, 1, false)
		u.note("Debug console enabled")
	}
	u.debugShown = !u.debugShown
}

func createModal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}
