package controller

import (
	"context"
	"errors"
	"strings"
	"sync"

	"planity/auth"
)

// AuthEvent is the closed set of inputs the auth screen reacts to.
type AuthEvent interface{ isAuthEvent() }

// SignInSubmitted submits the sign-in form.
type SignInSubmitted struct {
	Email    string
	Password string
}

// SignUpSubmitted submits the sign-up form.
type SignUpSubmitted struct {
	Name     string
	Email    string
	Password string
}

func (SignInSubmitted) isAuthEvent() {}
func (SignUpSubmitted) isAuthEvent() {}

// authResult carries the outcome of a background auth call back into the
// fold loop so state transitions stay on one goroutine.
type authResult struct {
	err    error
	signUp bool
}

func (authResult) isAuthEvent() {}

// AuthState is the auth screen snapshot.
type AuthState struct {
	IsLoading        bool
	Err              string
	IsAuthSuccessful bool
}

// AuthController validates the auth forms and drives sign-in and sign-up
// through the authentication capability.
type AuthController struct {
	authn auth.Authenticator

	mu       sync.RWMutex
	state    AuthState
	events   chan AuthEvent
	notifier notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewAuthController starts the controller.
func NewAuthController(ctx context.Context, authn auth.Authenticator) *AuthController {
	ctx, cancel := context.WithCancel(ctx)
	c := &AuthController{
		authn:    authn,
		events:   make(chan AuthEvent, 16),
		notifier: newNotifier(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// State returns the current snapshot.
func (c *AuthController) State() AuthState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Changes signals after every state transition.
func (c *AuthController) Changes() <-chan struct{} { return c.notifier.Changes() }

// Dispatch hands an event to the fold loop.
func (c *AuthController) Dispatch(ev AuthEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close stops the loop.
func (c *AuthController) Close() {
	c.cancel()
	<-c.done
}

func (c *AuthController) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

func (c *AuthController) handle(ctx context.Context, ev AuthEvent) {
	switch e := ev.(type) {
	case SignInSubmitted:
		if !c.validate(e.Email, e.Password, nil) {
			return
		}
		c.setState(func(s *AuthState) { s.IsLoading = true; s.Err = "" })
		go func() {
			err := c.authn.SignIn(ctx, strings.TrimSpace(e.Email), strings.TrimSpace(e.Password))
			c.Dispatch(authResult{err: err})
		}()
	case SignUpSubmitted:
		if !c.validate(e.Email, e.Password, &e.Name) {
			return
		}
		c.setState(func(s *AuthState) { s.IsLoading = true; s.Err = "" })
		go func() {
			err := c.authn.SignUp(ctx, strings.TrimSpace(e.Name), strings.TrimSpace(e.Email), strings.TrimSpace(e.Password))
			c.Dispatch(authResult{err: err, signUp: true})
		}()
	case authResult:
		c.setState(func(s *AuthState) {
			s.IsLoading = false
			switch {
			case e.err == nil:
				s.IsAuthSuccessful = true
			case errors.Is(e.err, auth.ErrEmailInUse):
				s.Err = "This email is already in use."
			case e.signUp:
				s.Err = "Sign up failed."
			default:
				s.Err = "Login failed. Check credentials."
			}
		})
	}
}

// validate enforces the form rules: every field filled in, password at least
// six characters. Failures surface as an error message, not as an auth call.
func (c *AuthController) validate(email, password string, name *string) bool {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(password) == "" ||
		(name != nil && strings.TrimSpace(*name) == "") {
		c.setState(func(s *AuthState) { s.Err = "All fields are required." })
		return false
	}
	if len(password) < 6 {
		c.setState(func(s *AuthState) { s.Err = "Password must be at least 6 characters." })
		return false
	}
	c.setState(func(s *AuthState) { s.Err = "" })
	return true
}

func (c *AuthController) setState(mutate func(*AuthState)) {
	c.mu.Lock()
	mutate(&c.state)
	c.mu.Unlock()
	c.notifier.notify()
}
