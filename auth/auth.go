// Package auth provides the authentication capability: account creation and
// sign-in backed by Redis, a process-wide current session, and token
// issuing/verification for the HTTP surface.
package auth

import (
	"context"
	"errors"
)

// Errors callers can distinguish. Everything else is a generic failure.
var (
	// ErrEmailInUse reports a sign-up collision with an existing account.
	ErrEmailInUse = errors.New("auth: email already in use")
	// ErrInvalidCredentials reports a failed sign-in.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Profile is the displayable part of an account.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Authenticator is the capability the controllers program against. The
// current user is process-wide and read at the moment a repository
// subscription opens; signing out does not redirect already-open
// subscriptions, so the layer above must tear them down and reopen.
type Authenticator interface {
	SignUp(ctx context.Context, name, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut()
	CurrentUserID() (string, bool)
	CurrentProfile() (Profile, bool)
	// SetDisplayName updates the signed-in account's display name.
	SetDisplayName(ctx context.Context, name string) error
}
