package controller

import (
	"context"
	"sync"

	"planity/domain"
	"planity/usecase"
)

// GraphState is the statistics screen snapshot.
type GraphState struct {
	Stats     *domain.TaskStats
	IsLoading bool
}

// GraphController subscribes to the weekly statistics sequence and replaces
// its snapshot wholesale on each emission.
type GraphController struct {
	mu       sync.RWMutex
	state    GraphState
	notifier notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewGraphController starts the controller and its subscription.
func NewGraphController(ctx context.Context, getStats usecase.GetWeeklyTaskStats) *GraphController {
	ctx, cancel := context.WithCancel(ctx)
	c := &GraphController{
		state:    GraphState{IsLoading: true},
		notifier: newNotifier(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run(ctx, getStats)
	return c
}

// State returns the current snapshot.
func (c *GraphController) State() GraphState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	if c.state.Stats != nil {
		stats := *c.state.Stats
		stats.Weekly = append([]domain.DayCount(nil), c.state.Stats.Weekly...)
		s.Stats = &stats
	}
	return s
}

// Changes signals after every state transition.
func (c *GraphController) Changes() <-chan struct{} { return c.notifier.Changes() }

// Close cancels the subscription and stops the loop.
func (c *GraphController) Close() {
	c.cancel()
	<-c.done
}

func (c *GraphController) run(ctx context.Context, getStats usecase.GetWeeklyTaskStats) {
	defer close(c.done)
	updates := getStats.Observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case stats, open := <-updates:
			if !open {
				return
			}
			c.mu.Lock()
			c.state = GraphState{Stats: &stats, IsLoading: false}
			c.mu.Unlock()
			c.notifier.notify()
		}
	}
}
