package usecase

import (
	"context"
	"strings"

	"planity/domain"
	"planity/repository"
)

// GetCategories joins the live category and task sequences, deriving each
// category's task count by name match. Either source updating re-emits the
// joined list; the two subscriptions carry no ordering guarantee relative to
// each other, so the join recomputes from both latest-known values.
type GetCategories struct {
	Repo *repository.Repository
}

// Observe opens the joined live sequence. The first emission waits until both
// sources have delivered at least one snapshot.
func (uc GetCategories) Observe(ctx context.Context) <-chan []domain.Category {
	categories := uc.Repo.ObserveCategories(ctx)
	tasks := uc.Repo.ObserveTasks(ctx)
	out := make(chan []domain.Category, 1)

	go func() {
		defer close(out)
		var latestCategories []domain.Category
		var latestTasks []domain.Task
		haveCategories, haveTasks := false, false

		for categories != nil || tasks != nil {
			select {
			case <-ctx.Done():
				return
			case c, open := <-categories:
				if !open {
					categories = nil
					continue
				}
				latestCategories = c
				haveCategories = true
			case t, open := <-tasks:
				if !open {
					tasks = nil
					continue
				}
				latestTasks = t
				haveTasks = true
			}
			if !haveCategories || !haveTasks {
				continue
			}
			select {
			case out <- withTaskCounts(latestCategories, latestTasks):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func withTaskCounts(categories []domain.Category, tasks []domain.Task) []domain.Category {
	counted := make([]domain.Category, len(categories))
	for i, c := range categories {
		n := 0
		for _, t := range tasks {
			if t.Category == c.Name {
				n++
			}
		}
		c.TaskCount = n
		counted[i] = c
	}
	return counted
}

// CreateCategory persists a new category with a trimmed name.
type CreateCategory struct {
	Repo *repository.Repository
}

// Create stores the category. A blank name is a silent no-op.
func (uc CreateCategory) Create(ctx context.Context, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	uc.Repo.CreateCategory(ctx, name)
}

// DeleteCategory removes a category.
type DeleteCategory struct {
	Repo *repository.Repository
}

// Delete removes the category. A blank id is a silent no-op. Tasks keep their
// category name string and silently detach.
func (uc DeleteCategory) Delete(ctx context.Context, categoryID string) {
	if strings.TrimSpace(categoryID) == "" {
		return
	}
	uc.Repo.DeleteCategory(ctx, categoryID)
}

// UpdateCategoryOrder persists a new display order.
type UpdateCategoryOrder struct {
	Repo *repository.Repository
}

// Update reassigns order indexes to match the supplied list order.
func (uc UpdateCategoryOrder) Update(ctx context.Context, categories []domain.Category) {
	uc.Repo.UpdateCategoryOrder(ctx, categories)
}
