// Package identity signs a user in before a chat session starts.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

const MinPasswordLength = 6

var (
	ErrMissingFields       = errors.New("please fill in all fields")
	ErrPasswordTooShort    = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrPasswordMismatch    = errors.New("passwords do not match")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAlreadyRegistered   = errors.New("an account with this email already exists")
	ErrNotSignedIn         = errors.New("not signed in")
	ErrUnavailable         = errors.New("sign-in service unavailable")
	ErrConfirmationPending = errors.New("check your inbox to confirm your email, then sign in")
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	// Remote is set for users signed in through a hosted identity service.
	Remote bool `json:"remote"`
	// AccessToken authorises per-user storage. Empty for local users.
	AccessToken string `json:"-"`
}

// DisplayName is the name to greet the user with.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if at := strings.IndexByte(u.Email, '@'); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}

type Provider interface {
	SignIn(ctx context.Context, email, password string) (User, error)
	// SignUp registers an account. It does not sign the user in.
	SignUp(ctx context.Context, email, password, name string) (User, error)
	SignOut(ctx context.Context) error
	Current() (User, bool)
	// Subscribe calls fn on every sign-in and sign-out until cancel is called.
	Subscribe(fn func(u User, signedIn bool)) (cancel func())
}

// ValidateSignIn checks a sign-in form before anything is sent.
func ValidateSignIn(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return ErrMissingFields
	}
	return nil
}

// ValidateSignUp checks a registration form before anything is sent.
func ValidateSignUp(name, email, password, confirm string) error {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" || confirm == "" {
		return ErrMissingFields
	}
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	return nil
}

// watchers tracks the signed-in user and its subscribers.
type watchers struct {
	mu      sync.Mutex
	current *User
	subs    map[int]func(User, bool)
	next    int
}

func (w *watchers) Current() (User, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return User{}, false
	}
	return *w.current, true
}

func (w *watchers) Subscribe(fn func(User, bool)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.subs == nil {
		w.subs = make(map[int]func(User, bool))
	}
	id := w.next
	w.next++
	w.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
		})
	}
}

// set records u (nil for signed out) and tells subscribers outside the lock.
func (w *watchers) set(u *User) {
	w.mu.Lock()
	w.current = u
	fns := make([]func(User, bool), 0, len(w.subs))
	for _, fn := range w.subs {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	var user User
	if u != nil {
		user = *u
	}
	for _, fn := range fns {
		fn(user, u != nil)
	}
}
