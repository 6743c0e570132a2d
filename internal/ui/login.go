package ui

import (
	"context"
	"time"

	"github.com/bz888/cognix/internal/identity"
	"github.com/rivo/tview"
)

const authTimeout = 15 * time.Second

type authForm struct {
	form    *tview.Form
	message *tview.TextView
}

func newAuthForm(title string) authForm {
	f := authForm{
		form:    tview.NewForm(),
		message: tview.NewTextView().SetDynamicColors(true).SetWordWrap(true),
	}
	f.form.SetBorder(true).SetTitle(title)
	return f
}

func (f authForm) layout() tview.Primitive {
	box := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(f.form, 0, 1, true).
		AddItem(f.message, 3, 0, false)
	return createModal(box, 60, 18)
}

func (f authForm) text(label string) string {
	if field, ok := f.form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return field.GetText()
	}
	return ""
}

func (f authForm) clear(labels ...string) {
	for _, label := range labels {
		if field, ok := f.form.GetFormItemByLabel(label).(*tview.InputField); ok {
			field.SetText("")
		}
	}
}

func (f authForm) show(text string) {
	f.message.SetText(text)
}

func (f authForm) fail(err error) {
	f.message.SetText("[red::]" + tview.Escape(err.Error()) + "[-]")
}

func (u *UI) buildLogin() {
	f := newAuthForm("Welcome to COGNIX - sign in")
	f.form.
		AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddButton("Sign in", func() { u.signIn(f) }).
		AddButton("Register", func() {
			u.pages.SwitchToPage(pageRegister)
		}).
		AddButton("Quit", u.app.Stop)
	u.login = f
	u.pages.AddPage(pageLogin, f.layout(), true, true)
}

func (u *UI) buildRegister() {
	f := newAuthForm("Create your COGNIX account")
	f.form.
		AddInputField("Full name", "", 40, nil, nil).
		AddInputField("Email", "", 40, nil, nil).
		AddPasswordField("Password", "", 40, '*', nil).
		AddPasswordField("Confirm password", "", 40, '*', nil).
		AddButton("Create account", func() { u.register(f) }).
		AddButton("Back", func() {
			f.show("")
			u.pages.SwitchToPage(pageLogin)
		})
	u.pages.AddPage(pageRegister, f.layout(), true, false)
}

func (u *UI) showLoginMessage(text string) {
	u.login.show(text)
	u.login.clear("Password")
}

func (u *UI) signIn(f authForm) {
	email, password := f.text("Email"), f.text("Password")
	if err := identity.ValidateSignIn(email, password); err != nil {
		f.fail(err)
		return
	}
	f.show("[yellow::]Signing in...[-]")

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()
		user, err := u.ident.SignIn(ctx, email, password)
		u.app.QueueUpdateDraw(func() {
			if err != nil {
				u.log.Warn("sign in failed: ", err)
				f.fail(err)
				return
			}
			f.clear("Password")
			f.show("")
			if err := u.startSession(user); err != nil {
				u.log.Error("opening session: ", err)
				f.fail(err)
			}
		})
	}()
}

func (u *UI) register(f authForm) {
	name, email := f.text("Full name"), f.text("Email")
	password, confirm := f.text("Password"), f.text("Confirm password")
	if err := identity.ValidateSignUp(name, email, password, confirm); err != nil {
		f.fail(err)
		return
	}
	f.show("[yellow::]Creating account...[-]")

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()
		_, err := u.ident.SignUp(ctx, email, password, name)
		u.app.QueueUpdateDraw(func() {
			if err != nil {
				f.fail(err)
				return
			}
			f.clear("Full name", "Password", "Confirm password")
			f.show("")
			u.showLoginMessage("[green::]Account created! Please sign in.[-]")
			u.pages.SwitchToPage(pageLogin)
		})
	}()
}
