package controller

import (
	"context"
	"sync"

	"planity/domain"
	"planity/usecase"
)

// CategoryEvent is the closed set of inputs the category screen reacts to.
type CategoryEvent interface{ isCategoryEvent() }

// MoveCategory reorders the visible list by dragging one entry.
type MoveCategory struct {
	FromIndex int
	ToIndex   int
}

// DeleteCategory removes a category by id.
type DeleteCategory struct {
	CategoryID string
}

func (MoveCategory) isCategoryEvent()   {}
func (DeleteCategory) isCategoryEvent() {}

// CategoryState is the category screen snapshot.
type CategoryState struct {
	Categories []domain.Category
	IsLoading  bool
}

// CategoryController folds category events and live category snapshots into
// one state. Reorders are applied optimistically and persisted in the
// background; the remote-confirmed order arrives later via the subscription
// and wins.
type CategoryController struct {
	getCategories usecase.GetCategories
	updateOrder   usecase.UpdateCategoryOrder
	deleteUC      usecase.DeleteCategory

	mu       sync.RWMutex
	state    CategoryState
	events   chan CategoryEvent
	notifier notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCategoryController starts the controller and its subscription.
func NewCategoryController(ctx context.Context, getCategories usecase.GetCategories, updateOrder usecase.UpdateCategoryOrder, deleteUC usecase.DeleteCategory) *CategoryController {
	ctx, cancel := context.WithCancel(ctx)
	c := &CategoryController{
		getCategories: getCategories,
		updateOrder:   updateOrder,
		deleteUC:      deleteUC,
		state:         CategoryState{IsLoading: true},
		events:        make(chan CategoryEvent, 16),
		notifier:      newNotifier(),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// State returns the current snapshot.
func (c *CategoryController) State() CategoryState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	s.Categories = append([]domain.Category(nil), c.state.Categories...)
	return s
}

// Changes signals after every state transition.
func (c *CategoryController) Changes() <-chan struct{} { return c.notifier.Changes() }

// Dispatch hands an event to the fold loop.
func (c *CategoryController) Dispatch(ev CategoryEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close cancels the subscription and stops the loop.
func (c *CategoryController) Close() {
	c.cancel()
	<-c.done
}

func (c *CategoryController) run(ctx context.Context) {
	defer close(c.done)
	updates := c.getCategories.Observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case categories, open := <-updates:
			if !open {
				updates = nil
				continue
			}
			c.setState(func(s *CategoryState) {
				s.Categories = categories
				s.IsLoading = false
			})
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

func (c *CategoryController) handle(ctx context.Context, ev CategoryEvent) {
	switch e := ev.(type) {
	case MoveCategory:
		var reordered []domain.Category
		c.setState(func(s *CategoryState) {
			moved, ok := moveItem(s.Categories, e.FromIndex, e.ToIndex)
			if !ok {
				return
			}
			s.Categories = moved
			reordered = moved
		})
		if reordered != nil {
			go c.updateOrder.Update(ctx, reordered)
		}
	case DeleteCategory:
		go c.deleteUC.Delete(ctx, e.CategoryID)
	}
}

func (c *CategoryController) setState(mutate func(*CategoryState)) {
	c.mu.Lock()
	mutate(&c.state)
	c.mu.Unlock()
	c.notifier.notify()
}

// moveItem removes the item at fromIndex and reinserts it at toIndex,
// decrementing toIndex by one when fromIndex < toIndex because the removal
// shifts every subsequent position up. Out-of-range indexes leave the list
// untouched.
func moveItem(list []domain.Category, fromIndex, toIndex int) ([]domain.Category, bool) {
	if fromIndex < 0 || fromIndex >= len(list) || toIndex < 0 || toIndex > len(list) {
		return nil, false
	}
	out := make([]domain.Category, 0, len(list))
	out = append(out, list[:fromIndex]...)
	out = append(out, list[fromIndex+1:]...)
	moved := list[fromIndex]
	if fromIndex < toIndex {
		toIndex--
	}
	out = append(out[:toIndex], append([]domain.Category{moved}, out[toIndex:]...)...)
	return out, true
}
