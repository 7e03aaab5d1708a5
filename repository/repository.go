// Package repository is the sole boundary between domain entities and the
// remote document store. It owns subscription lifecycle and the wire mapping;
// no other component constructs or mutates a document representation.
package repository

import (
	"context"

	log "github.com/sirupsen/logrus"

	"planity/domain"
	"planity/remote"
)

// Identity resolves the user a repository call acts for. It is re-evaluated
// at the moment each subscription opens or each mutation is issued; an
// already-open subscription is never redirected by an identity change.
type Identity interface {
	CurrentUserID() (string, bool)
}

// StaticIdentity is a fixed, always-authenticated identity. The gateway uses
// it to scope a repository to the user extracted from a request token.
type StaticIdentity string

// CurrentUserID returns the fixed user id.
func (s StaticIdentity) CurrentUserID() (string, bool) {
	return string(s), s != ""
}

// Repository exposes live entity sequences and fire-and-forget mutations over
// a remote store.
//
// Mutations never return errors to the caller: failures are logged and
// otherwise invisible, the caller's only signal being the absence of a
// subsequent snapshot. OnError, when set, additionally receives every
// mutation failure so a stricter integration can layer retries on top
// without changing this contract.
type Repository struct {
	store    remote.Store
	identity Identity
	log      *log.Logger

	OnError func(op string, err error)
}

// New creates a Repository bound to the given store and identity.
func New(store remote.Store, identity Identity, logger *log.Logger) *Repository {
	if store == nil {
		panic("repository.New: store is nil")
	}
	if identity == nil {
		panic("repository.New: identity is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Repository{store: store, identity: identity, log: logger}
}

// ForUser returns a repository over the same store scoped to a fixed user.
func (r *Repository) ForUser(userID string) *Repository {
	nr := New(r.store, StaticIdentity(userID), r.log)
	nr.OnError = r.OnError
	return nr
}

// ObserveTasks emits the user's full task list on every remote change. With
// no authenticated user it emits a single empty list and closes. The channel
// also closes when the remote subscription fails; the error is logged, and
// consumers must treat the sequence as possibly ending early.
func (r *Repository) ObserveTasks(ctx context.Context) <-chan []domain.Task {
	out := make(chan []domain.Task, 1)
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		out <- []domain.Task{}
		close(out)
		return out
	}

	sub, err := r.store.Collection(userID, remote.TasksCollection).Subscribe(ctx, nil)
	if err != nil {
		r.log.Errorf("subscribe tasks: %v", err)
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case docs, open := <-sub.Updates():
				if !open {
					if err := sub.Err(); err != nil {
						r.log.Errorf("task subscription terminated: %v", err)
					}
					return
				}
				select {
				case out <- r.mapTasks(docs):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// ObserveTaskByID emits the task, or nil when it does not exist, on every
// change to the document. Unauthenticated subscribers receive a single nil.
func (r *Repository) ObserveTaskByID(ctx context.Context, taskID string) <-chan *domain.Task {
	out := make(chan *domain.Task, 1)
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		out <- nil
		close(out)
		return out
	}

	sub, err := r.store.Collection(userID, remote.TasksCollection).
		Subscribe(ctx, &remote.SubscribeOptions{DocID: taskID})
	if err != nil {
		r.log.Errorf("subscribe task %s: %v", taskID, err)
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case docs, open := <-sub.Updates():
				if !open {
					if err := sub.Err(); err != nil {
						r.log.Errorf("task subscription terminated: %v", err)
					}
					return
				}
				var task *domain.Task
				if len(docs) > 0 {
					if t, err := taskFromDoc(docs[0]); err == nil {
						task = &t
					}
				}
				select {
				case out <- task:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// ObserveCategories emits the user's categories ordered by orderIndex
// ascending on every remote change.
func (r *Repository) ObserveCategories(ctx context.Context) <-chan []domain.Category {
	out := make(chan []domain.Category, 1)
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		out <- []domain.Category{}
		close(out)
		return out
	}

	sub, err := r.store.Collection(userID, remote.CategoriesCollection).
		Subscribe(ctx, &remote.SubscribeOptions{OrderBy: fieldOrderIndex})
	if err != nil {
		r.log.Errorf("subscribe categories: %v", err)
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case docs, open := <-sub.Updates():
				if !open {
					if err := sub.Err(); err != nil {
						r.log.Errorf("category subscription terminated: %v", err)
					}
					return
				}
				select {
				case out <- r.mapCategories(docs):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *Repository) mapTasks(docs []remote.Doc) []domain.Task {
	tasks := make([]domain.Task, 0, len(docs))
	for _, d := range docs {
		t, err := taskFromDoc(d)
		if err != nil {
			r.log.WithField("doc", d.ID).Debugf("dropping malformed task: %v", err)
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks
}

func (r *Repository) mapCategories(docs []remote.Doc) []domain.Category {
	categories := make([]domain.Category, 0, len(docs))
	for _, d := range docs {
		c, err := categoryFromDoc(d)
		if err != nil {
			r.log.WithField("doc", d.ID).Debugf("dropping malformed category: %v", err)
			continue
		}
		categories = append(categories, c)
	}
	return categories
}

// CreateTask stores a new task; the store assigns its id.
func (r *Repository) CreateTask(ctx context.Context, task domain.Task) {
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		return
	}
	_, err := r.store.Collection(userID, remote.TasksCollection).Add(ctx, taskToDoc(task))
	r.report("create task", err)
}

// UpdateTask overwrites the whole task document keyed by its id.
func (r *Repository) UpdateTask(ctx context.Context, task domain.Task) {
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		return
	}
	err := r.store.Collection(userID, remote.TasksCollection).Set(ctx, task.ID, taskToDoc(task))
	r.report("update task", err)
}

// DeleteTask removes the task document permanently.
func (r *Repository) DeleteTask(ctx context.Context, taskID string) {
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		return
	}
	err := r.store.Collection(userID, remote.TasksCollection).Delete(ctx, taskID)
	r.report("delete task", err)
}

// MoveTaskToCategory changes the task's category. Moving into the completed
// category stamps completedAt with the server clock; moving anywhere else
// clears it. Both field changes land in one atomic partial update.
func (r *Repository) MoveTaskToCategory(ctx context.Context, taskID, newCategory string) {
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		return
	}
	ops := []remote.UpdateOp{remote.SetField(fieldCategory, newCategory)}
	if newCategory == domain.CategoryCompleted {
		ops = append(ops, remote.ServerTimestamp(fieldCompletedAt))
	} else {
		ops = append(ops, remote.ClearField(fieldCompletedAt))
	}
	err := r.store.Collection(userID, remote.TasksCollection).Update(ctx, taskID, ops)
	r.report("move task", err)
}

// CreateCategory appends a category at the end of the display order. The new
// orderIndex is the current category count, read just before the write, so
// concurrent creations can collide on the same index.
func (r *Repository) CreateCategory(ctx context.Context, name string) {
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		return
	}
	coll := r.store.Collection(userID, remote.CategoriesCollection)
	docs, err := coll.Docs(ctx)
	if err != nil {
		r.report("create category", err)
		return
	}
	_, err = coll.Add(ctx, categoryToDoc(name, len(docs)))
	r.report("create category", err)
}

// DeleteCategory removes the category document. Tasks referencing it keep
// their now dangling category name.
func (r *Repository) DeleteCategory(ctx context.Context, categoryID string) {
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		return
	}
	err := r.store.Collection(userID, remote.CategoriesCollection).Delete(ctx, categoryID)
	r.report("delete category", err)
}

// UpdateCategoryOrder reassigns orderIndex as a dense 0..N-1 sequence matching
// the supplied display order, in one atomic batch so concurrent readers never
// observe a partial reorder.
func (r *Repository) UpdateCategoryOrder(ctx context.Context, categories []domain.Category) {
	userID, ok := r.identity.CurrentUserID()
	if !ok {
		return
	}
	writes := make([]remote.BatchWrite, len(categories))
	for i, c := range categories {
		writes[i] = remote.BatchWrite{
			Collection: remote.CategoriesCollection,
			ID:         c.ID,
			Ops:        []remote.UpdateOp{remote.SetField(fieldOrderIndex, i)},
		}
	}
	err := r.store.Batch(ctx, userID, writes)
	r.report("reorder categories", err)
}

func (r *Repository) report(op string, err error) {
	if err == nil {
		return
	}
	r.log.WithField("op", op).Errorf("mutation failed: %v", err)
	if r.OnError != nil {
		r.OnError(op, err)
	}
}
