package usecase

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"planity/remote"
	"planity/repository"
)

// newTestRepo wires a repository over a miniredis-backed store for the
// observe tests.
func newTestRepo(t *testing.T) (*repository.Repository, remote.Store) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	store := remote.NewRedisStore(client, logger)
	return repository.New(store, repository.StaticIdentity("user-1"), logger), store
}

func seedDoc(t *testing.T, store remote.Store, collection, id string, fields map[string]any) {
	t.Helper()
	if err := store.Collection("user-1", collection).Set(context.Background(), id, fields); err != nil {
		t.Fatalf("seed %s/%s: %v", collection, id, err)
	}
}

// untouchedStore fails the test on any access; it backs the input-guard
// tests, where a blank input must never reach the store.
type untouchedStore struct{ t *testing.T }

func (s untouchedStore) Collection(userID, name string) remote.Collection {
	s.t.Errorf("unexpected store access: collection %s", name)
	return nil
}

func (s untouchedStore) Batch(ctx context.Context, userID string, writes []remote.BatchWrite) error {
	s.t.Errorf("unexpected store access: batch")
	return nil
}

func guardRepo(t *testing.T) *repository.Repository {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return repository.New(untouchedStore{t: t}, repository.StaticIdentity("user-1"), logger)
}

func deadline(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}
