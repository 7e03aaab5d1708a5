package controller

import (
	"context"
	"sync"

	"planity/usecase"
)

// CreateCategoryEvent is the closed set of inputs the category dialog reacts to.
type CreateCategoryEvent interface{ isCreateCategoryEvent() }

// CategoryNameChanged edits the draft category name.
type CategoryNameChanged struct{ Name string }

// CategorySaveClicked persists the draft category.
type CategorySaveClicked struct{}

func (CategoryNameChanged) isCreateCategoryEvent() {}
func (CategorySaveClicked) isCreateCategoryEvent() {}

// CreateCategoryState is the category dialog snapshot.
type CreateCategoryState struct {
	CategoryName string
	IsSaving     bool
	IsSaved      bool
}

// CreateCategoryController drives the small create-category dialog.
type CreateCategoryController struct {
	createCategory usecase.CreateCategory

	mu       sync.RWMutex
	state    CreateCategoryState
	events   chan CreateCategoryEvent
	notifier notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCreateCategoryController starts the controller.
func NewCreateCategoryController(ctx context.Context, createCategory usecase.CreateCategory) *CreateCategoryController {
	ctx, cancel := context.WithCancel(ctx)
	c := &CreateCategoryController{
		createCategory: createCategory,
		events:         make(chan CreateCategoryEvent, 16),
		notifier:       newNotifier(),
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// State returns the current snapshot.
func (c *CreateCategoryController) State() CreateCategoryState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Changes signals after every state transition.
func (c *CreateCategoryController) Changes() <-chan struct{} { return c.notifier.Changes() }

// Dispatch hands an event to the fold loop.
func (c *CreateCategoryController) Dispatch(ev CreateCategoryEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close stops the loop.
func (c *CreateCategoryController) Close() {
	c.cancel()
	<-c.done
}

func (c *CreateCategoryController) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.events:
			switch e := ev.(type) {
			case CategoryNameChanged:
				c.setState(func(s *CreateCategoryState) { s.CategoryName = e.Name })
			case CategorySaveClicked:
				var name string
				c.setState(func(s *CreateCategoryState) {
					name = s.CategoryName
					s.IsSaving = false
					s.IsSaved = true
				})
				go c.createCategory.Create(ctx, name)
			}
		}
	}
}

func (c *CreateCategoryController) setState(mutate func(*CreateCategoryState)) {
	c.mu.Lock()
	mutate(&c.state)
	c.mu.Unlock()
	c.notifier.notify()
}
