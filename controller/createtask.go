package controller

import (
	"context"
	"strings"
	"sync"
	"time"

	"planity/domain"
	"planity/usecase"
)

// CreateTaskEvent is the closed set of inputs the create-task screen reacts to.
type CreateTaskEvent interface{ isCreateTaskEvent() }

// DraftTitleChanged edits the draft title.
type DraftTitleChanged struct{ Title string }

// DraftCategoryChanged selects the draft category.
type DraftCategoryChanged struct{ Category string }

// DraftPriorityToggled flips the draft priority flag.
type DraftPriorityToggled struct{}

// DraftSaveClicked persists the draft as a new task dated today.
type DraftSaveClicked struct{}

func (DraftTitleChanged) isCreateTaskEvent()    {}
func (DraftCategoryChanged) isCreateTaskEvent() {}
func (DraftPriorityToggled) isCreateTaskEvent() {}
func (DraftSaveClicked) isCreateTaskEvent()     {}

// CreateTaskState is the create-task screen snapshot.
type CreateTaskState struct {
	Title               string
	SelectedCategory    string
	IsHighPriority      bool
	AvailableCategories []string
	IsSaving            bool
	IsSaved             bool
}

// CreateTaskController drives the new-task form. The category dropdown
// follows the live category list; when the current selection disappears the
// first available category is chosen, falling back to the default working
// category.
type CreateTaskController struct {
	createTask    usecase.CreateTask
	getCategories usecase.GetCategories
	now           func() time.Time

	mu       sync.RWMutex
	state    CreateTaskState
	events   chan CreateTaskEvent
	notifier notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCreateTaskController starts the controller and its category feed.
func NewCreateTaskController(ctx context.Context, createTask usecase.CreateTask, getCategories usecase.GetCategories) *CreateTaskController {
	ctx, cancel := context.WithCancel(ctx)
	c := &CreateTaskController{
		createTask:    createTask,
		getCategories: getCategories,
		now:           time.Now,
		state:         CreateTaskState{SelectedCategory: defaultCategory},
		events:        make(chan CreateTaskEvent, 16),
		notifier:      newNotifier(),
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// State returns the current snapshot.
func (c *CreateTaskController) State() CreateTaskState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	s.AvailableCategories = append([]string(nil), c.state.AvailableCategories...)
	return s
}

// Changes signals after every state transition.
func (c *CreateTaskController) Changes() <-chan struct{} { return c.notifier.Changes() }

// Dispatch hands an event to the fold loop.
func (c *CreateTaskController) Dispatch(ev CreateTaskEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close cancels the subscription and stops the loop.
func (c *CreateTaskController) Close() {
	c.cancel()
	<-c.done
}

func (c *CreateTaskController) run(ctx context.Context) {
	defer close(c.done)
	categories := c.getCategories.Observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case list, open := <-categories:
			if !open {
				categories = nil
				continue
			}
			names := make([]string, len(list))
			for i, cat := range list {
				names[i] = cat.Name
			}
			c.setState(func(s *CreateTaskState) {
				s.AvailableCategories = names
				if !contains(names, s.SelectedCategory) {
					if len(names) > 0 {
						s.SelectedCategory = names[0]
					} else {
						s.SelectedCategory = defaultCategory
					}
				}
			})
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

func (c *CreateTaskController) handle(ctx context.Context, ev CreateTaskEvent) {
	switch e := ev.(type) {
	case DraftTitleChanged:
		c.setState(func(s *CreateTaskState) { s.Title = e.Title })
	case DraftCategoryChanged:
		c.setState(func(s *CreateTaskState) { s.SelectedCategory = e.Category })
	case DraftPriorityToggled:
		c.setState(func(s *CreateTaskState) { s.IsHighPriority = !s.IsHighPriority })
	case DraftSaveClicked:
		c.save(ctx)
	}
}

func (c *CreateTaskController) save(ctx context.Context) {
	var draft *domain.Task
	c.setState(func(s *CreateTaskState) {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			s.IsSaving = false
			return
		}
		draft = &domain.Task{
			Title:          title,
			Date:           domain.FormatDate(c.now()),
			Category:       s.SelectedCategory,
			IsHighPriority: s.IsHighPriority,
		}
		s.IsSaving = false
		s.IsSaved = true
	})
	if draft != nil {
		go c.createTask.Create(ctx, *draft)
	}
}

func (c *CreateTaskController) setState(mutate func(*CreateTaskState)) {
	c.mu.Lock()
	mutate(&c.state)
	c.mu.Unlock()
	c.notifier.notify()
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
