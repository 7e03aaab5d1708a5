// Package usecase layers validation and derivation policy over repository
// calls. Every type here is stateless and safe to construct per invocation.
// Validation happens once, in this layer; blank input is silently rejected,
// never surfaced as an error, and never re-checked downstream.
package usecase

import (
	"context"
	"sort"
	"strings"

	"planity/domain"
	"planity/repository"
)

// GetTasks emits the live task list re-sorted by category name, then by the
// raw date string. Date strings sort lexicographically, not chronologically;
// the stored format makes the two differ and the behavior is kept as is.
type GetTasks struct {
	Repo *repository.Repository
}

// Observe opens a live sequence of sorted task lists.
func (uc GetTasks) Observe(ctx context.Context) <-chan []domain.Task {
	in := uc.Repo.ObserveTasks(ctx)
	out := make(chan []domain.Task, 1)
	go func() {
		defer close(out)
		for tasks := range in {
			sorted := append([]domain.Task(nil), tasks...)
			sort.SliceStable(sorted, func(i, j int) bool {
				if sorted[i].Category != sorted[j].Category {
					return sorted[i].Category < sorted[j].Category
				}
				return sorted[i].Date < sorted[j].Date
			})
			select {
			case out <- sorted:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// GetTaskByID emits the task, or nil while it does not exist.
type GetTaskByID struct {
	Repo *repository.Repository
}

// Observe opens a live sequence over one task. A blank id yields a single
// absent emission.
func (uc GetTaskByID) Observe(ctx context.Context, taskID string) <-chan *domain.Task {
	if strings.TrimSpace(taskID) == "" {
		out := make(chan *domain.Task, 1)
		out <- nil
		close(out)
		return out
	}
	return uc.Repo.ObserveTaskByID(ctx, taskID)
}

// CreateTask persists a new task unless its title is blank.
type CreateTask struct {
	Repo *repository.Repository
}

// Create stores the task. A blank or whitespace-only title is a silent no-op.
func (uc CreateTask) Create(ctx context.Context, task domain.Task) {
	if strings.TrimSpace(task.Title) == "" {
		return
	}
	uc.Repo.CreateTask(ctx, task)
}

// UpdateTask overwrites an existing task.
type UpdateTask struct {
	Repo *repository.Repository
}

// Update overwrites the stored task. A blank id is a silent no-op.
func (uc UpdateTask) Update(ctx context.Context, task domain.Task) {
	if strings.TrimSpace(task.ID) == "" {
		return
	}
	uc.Repo.UpdateTask(ctx, task)
}

// DeleteTask removes a task permanently. The normal flow soft-deletes by
// moving tasks to the trash category instead.
type DeleteTask struct {
	Repo *repository.Repository
}

// Delete removes the task. A blank id is a silent no-op.
func (uc DeleteTask) Delete(ctx context.Context, taskID string) {
	if strings.TrimSpace(taskID) == "" {
		return
	}
	uc.Repo.DeleteTask(ctx, taskID)
}

// MoveTaskToCategory reassigns a task's category.
type MoveTaskToCategory struct {
	Repo *repository.Repository
}

// Move reassigns the task. Blank id or target name is a silent no-op.
func (uc MoveTaskToCategory) Move(ctx context.Context, taskID, newCategory string) {
	if strings.TrimSpace(taskID) == "" || strings.TrimSpace(newCategory) == "" {
		return
	}
	uc.Repo.MoveTaskToCategory(ctx, taskID, newCategory)
}
