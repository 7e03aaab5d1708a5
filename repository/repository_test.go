package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"planity/domain"
	"planity/remote"
)

type stubSubscription struct {
	ch     chan []remote.Doc
	closed bool
}

func newStubSubscription() *stubSubscription {
	return &stubSubscription{ch: make(chan []remote.Doc, 4)}
}

func (s *stubSubscription) Updates() <-chan []remote.Doc { return s.ch }
func (s *stubSubscription) Err() error                   { return nil }
func (s *stubSubscription) Close()                       { s.closed = true }

type stubCollection struct {
	docsFn      func(ctx context.Context) ([]remote.Doc, error)
	addFn       func(ctx context.Context, fields map[string]any) (string, error)
	setFn       func(ctx context.Context, id string, fields map[string]any) error
	updateFn    func(ctx context.Context, id string, ops []remote.UpdateOp) error
	deleteFn    func(ctx context.Context, id string) error
	subscribeFn func(ctx context.Context, opts *remote.SubscribeOptions) (remote.Subscription, error)
}

func (s *stubCollection) Docs(ctx context.Context) ([]remote.Doc, error) {
	if s.docsFn == nil {
		return nil, errors.New("unexpected Docs call")
	}
	return s.docsFn(ctx)
}

func (s *stubCollection) Add(ctx context.Context, fields map[string]any) (string, error) {
	if s.addFn == nil {
		return "", errors.New("unexpected Add call")
	}
	return s.addFn(ctx, fields)
}

func (s *stubCollection) Set(ctx context.Context, id string, fields map[string]any) error {
	if s.setFn == nil {
		return errors.New("unexpected Set call")
	}
	return s.setFn(ctx, id, fields)
}

func (s *stubCollection) Update(ctx context.Context, id string, ops []remote.UpdateOp) error {
	if s.updateFn == nil {
		return errors.New("unexpected Update call")
	}
	return s.updateFn(ctx, id, ops)
}

func (s *stubCollection) Delete(ctx context.Context, id string) error {
	if s.deleteFn == nil {
		return errors.New("unexpected Delete call")
	}
	return s.deleteFn(ctx, id)
}

func (s *stubCollection) Subscribe(ctx context.Context, opts *remote.SubscribeOptions) (remote.Subscription, error) {
	if s.subscribeFn == nil {
		return nil, errors.New("unexpected Subscribe call")
	}
	return s.subscribeFn(ctx, opts)
}

type stubStore struct {
	collection *stubCollection
	batchFn    func(ctx context.Context, userID string, writes []remote.BatchWrite) error
}

func (s *stubStore) Collection(userID, name string) remote.Collection {
	return s.collection
}

func (s *stubStore) Batch(ctx context.Context, userID string, writes []remote.BatchWrite) error {
	if s.batchFn == nil {
		return errors.New("unexpected Batch call")
	}
	return s.batchFn(ctx, userID, writes)
}

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger
}

func newStubRepo(store remote.Store) *Repository {
	return New(store, StaticIdentity("user-1"), quietLogger())
}

func recvTasks(t *testing.T, ch <-chan []domain.Task) ([]domain.Task, bool) {
	t.Helper()
	select {
	case tasks, open := <-ch:
		return tasks, open
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for task emission")
		return nil, false
	}
}

func TestObserveTasksUnauthenticated(t *testing.T) {
	repo := New(&stubStore{}, StaticIdentity(""), quietLogger())

	ch := repo.ObserveTasks(context.Background())
	tasks, open := recvTasks(t, ch)
	if !open {
		t.Fatalf("expected one emission before close")
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty list, got %#v", tasks)
	}
	if _, open := recvTasks(t, ch); open {
		t.Fatalf("expected channel closed after single emission")
	}
}

func TestObserveTasksMapsAndDropsMalformed(t *testing.T) {
	sub := newStubSubscription()
	store := &stubStore{collection: &stubCollection{
		subscribeFn: func(ctx context.Context, opts *remote.SubscribeOptions) (remote.Subscription, error) {
			return sub, nil
		},
	}}
	repo := newStubRepo(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := repo.ObserveTasks(ctx)

	sub.ch <- []remote.Doc{
		{ID: "t1", Fields: map[string]any{"title": "Buy milk", "category": "Work"}},
		{ID: "t2", Fields: map[string]any{"title": float64(7)}},
	}

	tasks, open := recvTasks(t, ch)
	if !open {
		t.Fatalf("expected emission")
	}
	want := []domain.Task{{ID: "t1", Title: "Buy milk", Category: "Work"}}
	if !reflect.DeepEqual(tasks, want) {
		t.Fatalf("unexpected tasks: %#v", tasks)
	}

	close(sub.ch)
	if _, open := recvTasks(t, ch); open {
		t.Fatalf("expected channel closed after subscription ends")
	}
}

func TestObserveTaskByIDNarrowsSubscription(t *testing.T) {
	sub := newStubSubscription()
	var gotOpts *remote.SubscribeOptions
	store := &stubStore{collection: &stubCollection{
		subscribeFn: func(ctx context.Context, opts *remote.SubscribeOptions) (remote.Subscription, error) {
			gotOpts = opts
			return sub, nil
		},
	}}
	repo := newStubRepo(store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := repo.ObserveTaskByID(ctx, "t1")

	if gotOpts == nil || gotOpts.DocID != "t1" {
		t.Fatalf("expected subscription narrowed to t1, got %#v", gotOpts)
	}

	sub.ch <- nil
	select {
	case task := <-ch:
		if task != nil {
			t.Fatalf("expected nil for absent task, got %#v", task)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for emission")
	}

	sub.ch <- []remote.Doc{{ID: "t1", Fields: map[string]any{"title": "Buy milk"}}}
	select {
	case task := <-ch:
		if task == nil || task.Title != "Buy milk" {
			t.Fatalf("unexpected task: %#v", task)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for emission")
	}
}

func TestMoveTaskToCategoryOps(t *testing.T) {
	var gotID string
	var gotOps []remote.UpdateOp
	store := &stubStore{collection: &stubCollection{
		updateFn: func(ctx context.Context, id string, ops []remote.UpdateOp) error {
			gotID = id
			gotOps = ops
			return nil
		},
	}}
	repo := newStubRepo(store)
	ctx := context.Background()

	repo.MoveTaskToCategory(ctx, "t1", domain.CategoryCompleted)
	if gotID != "t1" || len(gotOps) != 2 {
		t.Fatalf("unexpected update: id=%s ops=%#v", gotID, gotOps)
	}
	if gotOps[0] != remote.SetField(fieldCategory, domain.CategoryCompleted) {
		t.Fatalf("unexpected category op: %#v", gotOps[0])
	}
	if gotOps[1].Kind != remote.OpServerTimestamp || gotOps[1].Field != fieldCompletedAt {
		t.Fatalf("expected server timestamp on completedAt, got %#v", gotOps[1])
	}

	repo.MoveTaskToCategory(ctx, "t1", "Work")
	if gotOps[1].Kind != remote.OpClear || gotOps[1].Field != fieldCompletedAt {
		t.Fatalf("expected completedAt cleared, got %#v", gotOps[1])
	}
}

func TestCreateCategoryAppendsAtEnd(t *testing.T) {
	var gotFields map[string]any
	store := &stubStore{collection: &stubCollection{
		docsFn: func(ctx context.Context) ([]remote.Doc, error) {
			return []remote.Doc{{ID: "c1"}, {ID: "c2"}}, nil
		},
		addFn: func(ctx context.Context, fields map[string]any) (string, error) {
			gotFields = fields
			return "c3", nil
		},
	}}
	repo := newStubRepo(store)

	repo.CreateCategory(context.Background(), "Chores")
	want := map[string]any{fieldName: "Chores", fieldOrderIndex: 2}
	if !reflect.DeepEqual(gotFields, want) {
		t.Fatalf("unexpected fields: %#v", gotFields)
	}
}

func TestUpdateCategoryOrderWritesDenseIndexes(t *testing.T) {
	var gotWrites []remote.BatchWrite
	store := &stubStore{batchFn: func(ctx context.Context, userID string, writes []remote.BatchWrite) error {
		if userID != "user-1" {
			t.Fatalf("unexpected user id: %s", userID)
		}
		gotWrites = writes
		return nil
	}}
	repo := newStubRepo(store)

	repo.UpdateCategoryOrder(context.Background(), []domain.Category{
		{ID: "c2"}, {ID: "c1"}, {ID: "c3"},
	})

	if len(gotWrites) != 3 {
		t.Fatalf("expected 3 writes, got %d", len(gotWrites))
	}
	wantIDs := []string{"c2", "c1", "c3"}
	for i, w := range gotWrites {
		if w.Collection != remote.CategoriesCollection || w.ID != wantIDs[i] {
			t.Fatalf("unexpected write %d: %#v", i, w)
		}
		if !reflect.DeepEqual(w.Ops, []remote.UpdateOp{remote.SetField(fieldOrderIndex, i)}) {
			t.Fatalf("unexpected ops for %s: %#v", w.ID, w.Ops)
		}
	}
}

func TestMutationFailureInvokesOnError(t *testing.T) {
	boom := errors.New("write failed")
	store := &stubStore{collection: &stubCollection{
		deleteFn: func(ctx context.Context, id string) error { return boom },
	}}
	repo := newStubRepo(store)

	var gotOp string
	var gotErr error
	repo.OnError = func(op string, err error) { gotOp, gotErr = op, err }

	repo.DeleteTask(context.Background(), "t1")
	if gotOp != "delete task" || !errors.Is(gotErr, boom) {
		t.Fatalf("unexpected report: op=%q err=%v", gotOp, gotErr)
	}
}
