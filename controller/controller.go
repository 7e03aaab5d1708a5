// Package controller holds the per-screen view-state controllers. Each
// controller owns one state snapshot and mutates it from a single event-loop
// goroutine: remote snapshots and user events are both funneled through that
// loop, so no state is ever written by two goroutines at once. Persisting
// writes are issued asynchronously and never awaited; the authoritative
// result arrives later through the live subscription and overwrites any
// optimistic value.
package controller

// notifier coalesces change signals for a single render-layer consumer. A
// pending signal that has not been consumed absorbs later ones.
type notifier struct {
	ch chan struct{}
}

func newNotifier() notifier {
	return notifier{ch: make(chan struct{}, 1)}
}

func (n notifier) notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// Changes signals after every state transition. Consumers read the current
// snapshot via the controller's State method.
func (n notifier) Changes() <-chan struct{} {
	return n.ch
}
