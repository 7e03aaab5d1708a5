package controller

import (
	"context"
	"strings"
	"sync"

	"planity/domain"
	"planity/usecase"
)

// TaskInfoPhase tracks the load state machine of the detail screen.
type TaskInfoPhase int

const (
	// TaskInfoLoading means the first snapshot has not arrived yet.
	TaskInfoLoading TaskInfoPhase = iota
	// TaskInfoLoaded means the task exists and its fields are editable.
	TaskInfoLoaded
	// TaskInfoNotFound means the document does not exist (or the viewer is
	// unauthenticated).
	TaskInfoNotFound
)

// TaskInfoEvent is the closed set of inputs the detail screen reacts to.
type TaskInfoEvent interface{ isTaskInfoEvent() }

// TitleChanged edits the shadow title.
type TitleChanged struct{ Title string }

// DescriptionChanged edits the shadow description.
type DescriptionChanged struct{ Description string }

// CategoryChanged edits the shadow category.
type CategoryChanged struct{ Category string }

// PriorityToggled flips the shadow priority flag.
type PriorityToggled struct{}

// NotificationToggled flips the reminder flag.
type NotificationToggled struct{ Enabled bool }

// SaveClicked copies the edited fields into the authoritative task.
type SaveClicked struct{}

// DeleteClicked soft-deletes the task by moving it to the trash category.
type DeleteClicked struct{}

// CompletionToggled moves the task between the completed and working
// categories.
type CompletionToggled struct{}

func (TitleChanged) isTaskInfoEvent()        {}
func (DescriptionChanged) isTaskInfoEvent()  {}
func (CategoryChanged) isTaskInfoEvent()     {}
func (PriorityToggled) isTaskInfoEvent()     {}
func (NotificationToggled) isTaskInfoEvent() {}
func (SaveClicked) isTaskInfoEvent()         {}
func (DeleteClicked) isTaskInfoEvent()       {}
func (CompletionToggled) isTaskInfoEvent()   {}

// TaskInfoState is the detail screen snapshot. The edited fields shadow the
// loaded task until a save event copies them back through an update.
type TaskInfoState struct {
	Phase      TaskInfoPhase
	LoadedTask *domain.Task

	EditedTitle           string
	EditedDescription     string
	EditedCategory        string
	IsHighPriority        bool
	IsNotificationEnabled bool

	// IsDeleted tells the presentation layer to navigate away after a
	// soft delete; IsSaved after a successful save.
	IsDeleted bool
	IsSaved   bool
	Err       string
}

// TaskInfoController drives one task's detail screen.
type TaskInfoController struct {
	getTask  usecase.GetTaskByID
	update   usecase.UpdateTask
	moveTask usecase.MoveTaskToCategory
	taskID   string

	mu       sync.RWMutex
	state    TaskInfoState
	events   chan TaskInfoEvent
	notifier notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewTaskInfoController starts the controller for the given task id.
func NewTaskInfoController(ctx context.Context, taskID string, getTask usecase.GetTaskByID, update usecase.UpdateTask, moveTask usecase.MoveTaskToCategory) *TaskInfoController {
	ctx, cancel := context.WithCancel(ctx)
	c := &TaskInfoController{
		getTask:  getTask,
		update:   update,
		moveTask: moveTask,
		taskID:   taskID,
		state:    TaskInfoState{Phase: TaskInfoLoading},
		events:   make(chan TaskInfoEvent, 16),
		notifier: newNotifier(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// State returns the current snapshot.
func (c *TaskInfoController) State() TaskInfoState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	if c.state.LoadedTask != nil {
		t := *c.state.LoadedTask
		s.LoadedTask = &t
	}
	return s
}

// Changes signals after every state transition.
func (c *TaskInfoController) Changes() <-chan struct{} { return c.notifier.Changes() }

// Dispatch hands an event to the fold loop.
func (c *TaskInfoController) Dispatch(ev TaskInfoEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close cancels the subscription and stops the loop.
func (c *TaskInfoController) Close() {
	c.cancel()
	<-c.done
}

func (c *TaskInfoController) run(ctx context.Context) {
	defer close(c.done)
	updates := c.getTask.Observe(ctx, c.taskID)
	for {
		select {
		case <-ctx.Done():
			return
		case task, open := <-updates:
			if !open {
				updates = nil
				continue
			}
			c.applySnapshot(task)
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

// applySnapshot folds a remote emission into the state. The edited fields are
// seeded from the first loaded snapshot only; later snapshots refresh the
// authoritative copy without clobbering in-progress edits.
func (c *TaskInfoController) applySnapshot(task *domain.Task) {
	c.setState(func(s *TaskInfoState) {
		if task == nil {
			s.Phase = TaskInfoNotFound
			s.LoadedTask = nil
			s.Err = "Task not found."
			return
		}
		firstLoad := s.LoadedTask == nil
		s.LoadedTask = task
		s.Phase = TaskInfoLoaded
		s.Err = ""
		if firstLoad {
			s.EditedTitle = task.Title
			s.EditedCategory = task.Category
			s.IsHighPriority = task.IsHighPriority
		}
	})
}

func (c *TaskInfoController) handle(ctx context.Context, ev TaskInfoEvent) {
	switch e := ev.(type) {
	case TitleChanged:
		c.setState(func(s *TaskInfoState) { s.EditedTitle = e.Title })
	case DescriptionChanged:
		c.setState(func(s *TaskInfoState) { s.EditedDescription = e.Description })
	case CategoryChanged:
		c.setState(func(s *TaskInfoState) { s.EditedCategory = e.Category })
	case PriorityToggled:
		c.setState(func(s *TaskInfoState) { s.IsHighPriority = !s.IsHighPriority })
	case NotificationToggled:
		c.setState(func(s *TaskInfoState) { s.IsNotificationEnabled = e.Enabled })
	case SaveClicked:
		c.save(ctx)
	case DeleteClicked:
		go c.moveTask.Move(ctx, c.taskID, domain.CategoryTrash)
		c.setState(func(s *TaskInfoState) { s.IsDeleted = true })
	case CompletionToggled:
		c.toggleCompletion(ctx)
	}
}

func (c *TaskInfoController) save(ctx context.Context) {
	var updated *domain.Task
	c.setState(func(s *TaskInfoState) {
		if s.LoadedTask == nil {
			return
		}
		title := strings.TrimSpace(s.EditedTitle)
		if title == "" {
			s.Err = "Title cannot be empty."
			return
		}
		t := *s.LoadedTask
		t.Title = title
		t.Category = s.EditedCategory
		t.IsHighPriority = s.IsHighPriority
		updated = &t
		s.IsSaved = true
		s.Err = ""
	})
	if updated != nil {
		go c.update.Update(ctx, *updated)
	}
}

func (c *TaskInfoController) toggleCompletion(ctx context.Context) {
	c.mu.RLock()
	task := c.state.LoadedTask
	c.mu.RUnlock()
	if task == nil {
		return
	}
	target := domain.CategoryCompleted
	if task.Completed() {
		target = defaultCategory
	}
	go c.moveTask.Move(ctx, task.ID, target)
}

func (c *TaskInfoController) setState(mutate func(*TaskInfoState)) {
	c.mu.Lock()
	mutate(&c.state)
	c.mu.Unlock()
	c.notifier.notify()
}
