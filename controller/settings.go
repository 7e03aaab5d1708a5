package controller

import (
	"context"
	"sync"

	"planity/auth"
)

// SettingsEvent is the closed set of inputs the settings screen reacts to.
type SettingsEvent interface{ isSettingsEvent() }

// SignOutClicked ends the current session.
type SignOutClicked struct{}

func (SignOutClicked) isSettingsEvent() {}

// SettingsState is the settings screen snapshot.
type SettingsState struct {
	UserName    string
	UserEmail   string
	IsSignedOut bool
}

// SettingsController shows the signed-in profile and performs sign-out. A
// sign-out only flags the state; tearing down and reopening the other
// controllers' subscriptions is the responsibility of the layer above.
type SettingsController struct {
	authn auth.Authenticator

	mu       sync.RWMutex
	state    SettingsState
	events   chan SettingsEvent
	notifier notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSettingsController starts the controller with the current profile.
func NewSettingsController(ctx context.Context, authn auth.Authenticator) *SettingsController {
	ctx, cancel := context.WithCancel(ctx)
	c := &SettingsController{
		authn:    authn,
		events:   make(chan SettingsEvent, 4),
		notifier: newNotifier(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if profile, ok := authn.CurrentProfile(); ok {
		c.state.UserName = profile.Name
		c.state.UserEmail = profile.Email
	}
	go c.run(ctx)
	return c
}

// State returns the current snapshot.
func (c *SettingsController) State() SettingsState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Changes signals after every state transition.
func (c *SettingsController) Changes() <-chan struct{} { return c.notifier.Changes() }

// Dispatch hands an event to the fold loop.
func (c *SettingsController) Dispatch(ev SettingsEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close stops the loop.
func (c *SettingsController) Close() {
	c.cancel()
	<-c.done
}

func (c *SettingsController) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			switch ev.(type) {
			case SignOutClicked:
				c.authn.SignOut()
				c.mu.Lock()
				c.state.IsSignedOut = true
				c.mu.Unlock()
				c.notifier.notify()
			}
		}
	}
}
