package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Offline signs in any well-formed credentials without a network. IDs are
// stable per email so local preferences follow the user.
type Offline struct {
	watchers
}

func NewOffline() *Offline {
	return &Offline{}
}

func localID(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("cognix:"+strings.ToLower(strings.TrimSpace(email)))).String()
}

func (o *Offline) SignIn(ctx context.Context, email, password string) (User, error) {
	if err := ValidateSignIn(email, password); err != nil {
		return User{}, err
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	u := User{ID: localID(email), Email: strings.TrimSpace(email)}
	o.set(&u)
	return u, nil
}

func (o *Offline) SignUp(ctx context.Context, email, password, name string) (User, error) {
	if err := ValidateSignUp(name, email, password, password); err != nil {
		return User{}, err
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	return User{ID: localID(email), Email: strings.TrimSpace(email), Name: strings.TrimSpace(name)}, nil
}

func (o *Offline) SignOut(ctx context.Context) error {
	if _, ok := o.Current(); !ok {
		return ErrNotSignedIn
	}
	o.set(nil)
	return nil
}
