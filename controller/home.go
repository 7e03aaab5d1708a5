package controller

import (
	"context"
	"strings"
	"sync"

	"planity/domain"
	"planity/usecase"
)

// FilterAllTasks is the default filter chip: every task that is neither
// completed nor trashed.
const FilterAllTasks = "All Task"

// staticFilters always precede the dynamic category names in the filter row.
var staticFilters = []string{FilterAllTasks, domain.CategoryCompleted, domain.CategoryTrash}

// HomeEvent is the closed set of inputs the home screen reacts to.
type HomeEvent interface{ isHomeEvent() }

// SearchQueryChanged updates the title search substring.
type SearchQueryChanged struct{ Query string }

// FilterChanged selects a filter chip.
type FilterChanged struct{ Filter string }

// TaskCheckedChanged toggles a task's checkbox. Checking moves the task to
// the completed category; unchecking returns it to the default working
// category, since the original category is not retained.
type TaskCheckedChanged struct {
	Task    domain.Task
	Checked bool
}

// TaskDoneClicked marks a task completed.
type TaskDoneClicked struct{ Task domain.Task }

func (SearchQueryChanged) isHomeEvent() {}
func (FilterChanged) isHomeEvent()      {}
func (TaskCheckedChanged) isHomeEvent() {}
func (TaskDoneClicked) isHomeEvent()    {}

// defaultCategory is where unchecked and newly created tasks land.
const defaultCategory = "Work"

// HomeState is the home screen snapshot.
type HomeState struct {
	Tasks               []domain.Task
	IsLoading           bool
	SearchQuery         string
	SelectedFilter      string
	AvailableCategories []string
}

// HomeController folds the live task list, the filter chip row and search
// input into the home screen state.
type HomeController struct {
	getTasks      usecase.GetTasks
	getCategories usecase.GetCategories
	moveTask      usecase.MoveTaskToCategory

	mu       sync.RWMutex
	state    HomeState
	events   chan HomeEvent
	notifier notifier
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewHomeController starts the controller and its subscriptions.
func NewHomeController(ctx context.Context, getTasks usecase.GetTasks, getCategories usecase.GetCategories, moveTask usecase.MoveTaskToCategory) *HomeController {
	ctx, cancel := context.WithCancel(ctx)
	c := &HomeController{
		getTasks:      getTasks,
		getCategories: getCategories,
		moveTask:      moveTask,
		state: HomeState{
			IsLoading:           true,
			SelectedFilter:      FilterAllTasks,
			AvailableCategories: append([]string(nil), staticFilters...),
		},
		events:   make(chan HomeEvent, 16),
		notifier: newNotifier(),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// State returns the current snapshot.
func (c *HomeController) State() HomeState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.state
	s.Tasks = append([]domain.Task(nil), c.state.Tasks...)
	s.AvailableCategories = append([]string(nil), c.state.AvailableCategories...)
	return s
}

// Changes signals after every state transition.
func (c *HomeController) Changes() <-chan struct{} { return c.notifier.Changes() }

// Dispatch hands an event to the fold loop.
func (c *HomeController) Dispatch(ev HomeEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Close cancels the subscriptions and stops the loop.
func (c *HomeController) Close() {
	c.cancel()
	<-c.done
}

func (c *HomeController) run(ctx context.Context) {
	defer close(c.done)
	tasks := c.getTasks.Observe(ctx)
	categories := c.getCategories.Observe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case list, open := <-tasks:
			if !open {
				tasks = nil
				continue
			}
			c.setState(func(s *HomeState) {
				s.Tasks = list
				s.IsLoading = false
			})
		case list, open := <-categories:
			if !open {
				categories = nil
				continue
			}
			names := make([]string, 0, len(staticFilters)+len(list))
			names = append(names, staticFilters...)
			for _, cat := range list {
				names = append(names, cat.Name)
			}
			c.setState(func(s *HomeState) {
				s.AvailableCategories = distinct(names)
			})
		case ev := <-c.events:
			c.handle(ctx, ev)
		}
	}
}

func (c *HomeController) handle(ctx context.Context, ev HomeEvent) {
	switch e := ev.(type) {
	case SearchQueryChanged:
		c.setState(func(s *HomeState) { s.SearchQuery = e.Query })
	case FilterChanged:
		c.setState(func(s *HomeState) { s.SelectedFilter = e.Filter })
	case TaskCheckedChanged:
		target := defaultCategory
		if e.Checked {
			target = domain.CategoryCompleted
		}
		go c.moveTask.Move(ctx, e.Task.ID, target)
	case TaskDoneClicked:
		go c.moveTask.Move(ctx, e.Task.ID, domain.CategoryCompleted)
	}
}

func (c *HomeController) setState(mutate func(*HomeState)) {
	c.mu.Lock()
	mutate(&c.state)
	c.mu.Unlock()
	c.notifier.notify()
}

// VisibleTasks applies the selected filter and the search query to the
// current task list.
func (c *HomeController) VisibleTasks() []domain.Task {
	s := c.State()
	return FilterTasks(s.Tasks, s.SelectedFilter, s.SearchQuery)
}

// FilterTasks returns the tasks shown for a filter chip and search query. A
// task is visible iff its category matches the filter (the three static
// filters carry special meaning; any other chip matches its category name
// case-insensitively) and its title contains the query case-insensitively.
func FilterTasks(tasks []domain.Task, filter, query string) []domain.Task {
	query = strings.ToLower(query)
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		var match bool
		switch filter {
		case FilterAllTasks:
			match = t.Pending()
		case domain.CategoryCompleted:
			match = t.Completed()
		case domain.CategoryTrash:
			match = t.Trashed()
		default:
			match = strings.EqualFold(t.Category, filter)
		}
		if !match {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(t.Title), query) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func distinct(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
