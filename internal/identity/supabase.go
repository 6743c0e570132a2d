package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bz888/cognix/internal/logger"
	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go/types"
	"github.com/supabase-community/supabase-go"
)

// Auth is the part of the GoTrue client the provider uses.
type Auth interface {
	Signup(req types.SignupRequest) (*types.SignupResponse, error)
	SignInWithEmailPassword(email, password string) (*types.TokenResponse, error)
	Logout() error
}

// SupabaseProvider signs users in against a Supabase project.
type SupabaseProvider struct {
	watchers
	auth Auth
	// scoped returns an auth client acting as the holder of token.
	scoped func(token string) Auth
	// onSession lets other clients pick up the user's access token.
	onSession func(types.Session)
	log       *logger.Logger
}

// NewSupabaseProvider signs in through client. After a sign-in the client's
// database requests carry the user's token.
func NewSupabaseProvider(client *supabase.Client) *SupabaseProvider {
	return newSupabaseProvider(
		client.Auth,
		func(token string) Auth { return client.Auth.WithToken(token) },
		client.UpdateAuthSession,
	)
}

func newSupabaseProvider(auth Auth, scoped func(string) Auth, onSession func(types.Session)) *SupabaseProvider {
	return &SupabaseProvider{
		auth:      auth,
		scoped:    scoped,
		onSession: onSession,
		log:       logger.NewLogger("identity"),
	}
}

func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (User, error) {
	if err := ValidateSignIn(email, password); err != nil {
		return User{}, err
	}
	email = strings.TrimSpace(email)

	resp, err := call(ctx, func() (*types.TokenResponse, error) {
		return p.auth.SignInWithEmailPassword(email, password)
	})
	if err != nil {
		p.log.Warn("sign in failed: ", err)
		return User{}, classify(err)
	}

	if p.onSession != nil {
		p.onSession(resp.Session)
	}
	u := fromGoTrue(resp.Session.User)
	u.AccessToken = resp.AccessToken
	p.set(&u)
	p.log.Info("signed in ", u.ID)
	return u, nil
}

func (p *SupabaseProvider) SignUp(ctx context.Context, email, password, name string) (User, error) {
	if err := ValidateSignUp(name, email, password, password); err != nil {
		return User{}, err
	}

	resp, err := call(ctx, func() (*types.SignupResponse, error) {
		return p.auth.Signup(types.SignupRequest{
			Email:    strings.TrimSpace(email),
			Password: password,
			Data:     map[string]interface{}{"full_name": strings.TrimSpace(name)},
		})
	})
	if err != nil {
		p.log.Warn("sign up failed: ", err)
		return User{}, classify(err)
	}
	return fromGoTrue(resp.User), nil
}

func (p *SupabaseProvider) SignOut(ctx context.Context) error {
	u, ok := p.Current()
	if !ok {
		return ErrNotSignedIn
	}
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, p.scoped(u.AccessToken).Logout()
	})
	// the local session ends even when revoking the token fails
	p.set(nil)
	if err != nil {
		p.log.Warn("sign out: ", err)
		return classify(err)
	}
	return nil
}

func fromGoTrue(u types.User) User {
	out := User{Email: u.Email, Remote: true}
	if u.ID != uuid.Nil {
		out.ID = u.ID.String()
	}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		out.Name = name
	}
	return out
}

// call runs fn, which takes no context, and gives up waiting when ctx ends.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// classify maps GoTrue's "response status code N: body" errors onto the
// package sentinels.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "already registered"), strings.Contains(msg, "user_already_exists"):
		return fmt.Errorf("%w: %v", ErrAlreadyRegistered, err)
	case strings.Contains(msg, "email_not_confirmed"), strings.Contains(msg, "Email not confirmed"):
		return fmt.Errorf("%w: %v", ErrConfirmationPending, err)
	case strings.Contains(msg, "status code 400"), strings.Contains(msg, "status code 401"),
		strings.Contains(msg, "invalid_grant"):
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	case strings.Contains(msg, "status code 5"), !strings.Contains(msg, "status code"):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
