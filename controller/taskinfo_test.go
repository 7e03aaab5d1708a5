package controller

import (
	"context"
	"testing"

	"planity/remote"
	"planity/usecase"
)

func newTaskInfoController(t *testing.T, taskID string) (*TaskInfoController, remote.Store) {
	t.Helper()
	repo, store := newTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := NewTaskInfoController(ctx, taskID,
		usecase.GetTaskByID{Repo: repo},
		usecase.UpdateTask{Repo: repo},
		usecase.MoveTaskToCategory{Repo: repo},
	)
	t.Cleanup(c.Close)
	return c, store
}

func TestTaskInfoLoadsAndSeedsEdits(t *testing.T) {
	c, store := newTaskInfoController(t, "t1")
	seedDoc(t, store, remote.TasksCollection, "t1", map[string]any{
		"title": "Draft", "category": "Work", "isHighPriority": true,
	})

	waitFor(t, "loaded state", func() bool {
		s := c.State()
		return s.Phase == TaskInfoLoaded &&
			s.EditedTitle == "Draft" && s.EditedCategory == "Work" && s.IsHighPriority
	})
}

func TestTaskInfoNotFound(t *testing.T) {
	c, _ := newTaskInfoController(t, "ghost")

	waitFor(t, "not found state", func() bool {
		s := c.State()
		return s.Phase == TaskInfoNotFound && s.Err == "Task not found."
	})
}

func TestTaskInfoEditAndSave(t *testing.T) {
	c, store := newTaskInfoController(t, "t1")
	seedDoc(t, store, remote.TasksCollection, "t1", map[string]any{
		"title": "Draft", "category": "Work",
	})
	waitFor(t, "loaded state", func() bool { return c.State().Phase == TaskInfoLoaded })

	c.Dispatch(TitleChanged{Title: "  Final  "})
	c.Dispatch(CategoryChanged{Category: "Personal"})
	c.Dispatch(SaveClicked{})

	waitFor(t, "saved flag", func() bool { return c.State().IsSaved })
	waitFor(t, "remote confirmation", func() bool {
		s := c.State()
		return s.LoadedTask != nil && s.LoadedTask.Title == "Final" && s.LoadedTask.Category == "Personal"
	})
}

func TestTaskInfoRejectsBlankTitle(t *testing.T) {
	c, store := newTaskInfoController(t, "t1")
	seedDoc(t, store, remote.TasksCollection, "t1", map[string]any{
		"title": "Draft", "category": "Work",
	})
	waitFor(t, "loaded state", func() bool { return c.State().Phase == TaskInfoLoaded })

	c.Dispatch(TitleChanged{Title: "   "})
	c.Dispatch(SaveClicked{})

	waitFor(t, "validation error", func() bool {
		s := c.State()
		return s.Err == "Title cannot be empty." && !s.IsSaved
	})
	if got := c.State().LoadedTask.Title; got != "Draft" {
		t.Fatalf("expected stored title untouched, got %q", got)
	}
}

func TestTaskInfoDeleteMovesToTrash(t *testing.T) {
	c, store := newTaskInfoController(t, "t1")
	seedDoc(t, store, remote.TasksCollection, "t1", map[string]any{
		"title": "Draft", "category": "Work",
	})
	waitFor(t, "loaded state", func() bool { return c.State().Phase == TaskInfoLoaded })

	c.Dispatch(DeleteClicked{})

	waitFor(t, "deleted flag", func() bool { return c.State().IsDeleted })
	waitFor(t, "soft delete persisted", func() bool {
		s := c.State()
		return s.LoadedTask != nil && s.LoadedTask.Trashed()
	})
}

func TestTaskInfoCompletionToggle(t *testing.T) {
	c, store := newTaskInfoController(t, "t1")
	seedDoc(t, store, remote.TasksCollection, "t1", map[string]any{
		"title": "Draft", "category": "Work",
	})
	waitFor(t, "loaded state", func() bool { return c.State().Phase == TaskInfoLoaded })

	c.Dispatch(CompletionToggled{})
	waitFor(t, "completed", func() bool {
		s := c.State()
		return s.LoadedTask != nil && s.LoadedTask.Completed() && s.LoadedTask.CompletedAt != nil
	})

	c.Dispatch(CompletionToggled{})
	waitFor(t, "reopened", func() bool {
		s := c.State()
		return s.LoadedTask != nil && s.LoadedTask.Category == defaultCategory && s.LoadedTask.CompletedAt == nil
	})
}

// Later remote snapshots refresh the authoritative task without clobbering
// an edit in progress.
func TestTaskInfoPreservesEditsAcrossSnapshots(t *testing.T) {
	c, store := newTaskInfoController(t, "t1")
	seedDoc(t, store, remote.TasksCollection, "t1", map[string]any{
		"title": "Draft", "category": "Work",
	})
	waitFor(t, "loaded state", func() bool { return c.State().Phase == TaskInfoLoaded })

	c.Dispatch(TitleChanged{Title: "In progress"})
	waitFor(t, "edit applied", func() bool { return c.State().EditedTitle == "In progress" })

	seedDoc(t, store, remote.TasksCollection, "t1", map[string]any{
		"title": "Renamed elsewhere", "category": "Work",
	})
	waitFor(t, "refreshed snapshot", func() bool {
		s := c.State()
		return s.LoadedTask != nil && s.LoadedTask.Title == "Renamed elsewhere"
	})
	if got := c.State().EditedTitle; got != "In progress" {
		t.Fatalf("expected edit preserved, got %q", got)
	}
}
