package controller

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

// newTestRepo wires a repository over a miniredis-backed store. The
// controller tests drive real subscriptions end to end.
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

// waitFor polls until the condition holds. Controller state is eventually
// consistent with the store, so assertions on it go through here.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
