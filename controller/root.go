package controller

import (
	"context"
	"sync"

	"planity/auth"
	"planity/session"
)

// StartDestination is the screen the navigation layer should open with.
type StartDestination int

const (
	// DestinationUndecided means the controller has not resolved yet.
	DestinationUndecided StartDestination = iota
	// DestinationOnboarding shows the first-run walkthrough.
	DestinationOnboarding
	// DestinationAuth shows the sign-in screen.
	DestinationAuth
	// DestinationMainApp goes straight to the main screens.
	DestinationMainApp
)

// RootEvent is the closed set of inputs the root navigator reacts to.
type RootEvent interface{ isRootEvent() }

// OnboardingFinished persists the onboarding flag and moves on to auth.
type OnboardingFinished struct{}

func (OnboardingFinished) isRootEvent() {}

// RootState is the navigation snapshot.
type RootState struct {
	Destination StartDestination
}

// RootController picks the start destination: a signed-in user goes straight
// to the main app; otherwise the device-scoped onboarding flag decides
// between the walkthrough and the auth screen.
type RootController struct {
	authn   auth.Authenticator
	session *session.Manager
	log     loggerFunc

	mu       sync.RWMutex
	state    RootState
	events   chan RootEvent
	notifier notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

type loggerFunc func(format string, args ...any)

// NewRootController starts the controller and resolves the initial
// destination.
func NewRootController(ctx context.Context, authn auth.Authenticator, sess *session.Manager, logf func(format string, args ...any)) *RootController {
	ctx, cancel := context.WithCancel(ctx)
	if logf == nil {
		logf = func(string, ...any) {}
	}
	c := &RootController{
		authn:    authn,
		session:  sess,
		log:      logf,
		events:   make(chan RootEvent, 4),
		notifier: newNotifier(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	c.state.Destination = c.resolve()
	go c.run(ctx)
	return c
}

// State returns the current snapshot.
func (c *RootController) State() RootState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Changes signals after every state transition.
func (c *RootController) Changes() <-chan struct{} { return c.notifier.Changes() }

// Dispatch hands an event to the fold loop.
func (c *RootController) Dispatch(ev RootEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close stops the loop.
func (c *RootController) Close() {
	c.cancel()
	<-c.done
}

func (c *RootController) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			switch ev.(type) {
			case OnboardingFinished:
				if err := c.session.SetOnboardingComplete(); err != nil {
					c.log("persist onboarding flag: %v", err)
				}
				c.mu.Lock()
				c.state.Destination = c.resolve()
				c.mu.Unlock()
				c.notifier.notify()
			}
		}
	}
}

func (c *RootController) resolve() StartDestination {
	if _, ok := c.authn.CurrentUserID(); ok {
		return DestinationMainApp
	}
	if c.session.OnboardingComplete() {
		return DestinationAuth
	}
	return DestinationOnboarding
}
