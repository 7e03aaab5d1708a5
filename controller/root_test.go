package controller

import (
	"context"
	"path/filepath"
	"testing"

	"planity/session"
)

func newSessionManager(t *testing.T) (*session.Manager, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.json")
	m, err := session.NewManager(path)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	return m, path
}

func newRootController(t *testing.T, authn *stubAuthenticator, sess *session.Manager) *RootController {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := NewRootController(ctx, authn, sess, nil)
	t.Cleanup(c.Close)
	return c
}

func TestRootControllerSignedInGoesToMainApp(t *testing.T) {
	sess, _ := newSessionManager(t)
	c := newRootController(t, &stubAuthenticator{t: t, userID: "user-1"}, sess)

	if got := c.State().Destination; got != DestinationMainApp {
		t.Fatalf("expected main app, got %v", got)
	}
}

func TestRootControllerFreshDeviceStartsOnboarding(t *testing.T) {
	sess, _ := newSessionManager(t)
	c := newRootController(t, &stubAuthenticator{t: t}, sess)

	if got := c.State().Destination; got != DestinationOnboarding {
		t.Fatalf("expected onboarding, got %v", got)
	}
}

func TestRootControllerOnboardingFinishedPersists(t *testing.T) {
	sess, path := newSessionManager(t)
	c := newRootController(t, &stubAuthenticator{t: t}, sess)

	c.Dispatch(OnboardingFinished{})
	waitFor(t, "auth destination", func() bool {
		return c.State().Destination == DestinationAuth
	})

	// The flag survives a reload, and the next resolve skips onboarding.
	reloaded, err := session.NewManager(path)
	if err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if !reloaded.OnboardingComplete() {
		t.Fatalf("expected onboarding flag persisted")
	}
	c2 := newRootController(t, &stubAuthenticator{t: t}, reloaded)
	if got := c2.State().Destination; got != DestinationAuth {
		t.Fatalf("expected auth after onboarding, got %v", got)
	}
}
