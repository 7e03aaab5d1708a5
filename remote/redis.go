package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ErrNotFound reports a partial update against a document that does not exist.
var ErrNotFound = errors.New("remote: document not found")

// RedisStore keeps each collection as a hash of JSON documents and notifies
// subscribers through a pub/sub channel per collection. All writes go through
// a MULTI/EXEC pipeline followed by a single publish, so a snapshot fetched
// after the notification never observes a half-applied batch.
type RedisStore struct {
	rdb *redis.Client
	log *log.Logger
}

// NewRedisStore creates a RedisStore on the given client.
func NewRedisStore(client *redis.Client, logger *log.Logger) *RedisStore {
	if client == nil {
		panic("remote.NewRedisStore: redis client is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RedisStore{rdb: client, log: logger}
}

func collectionKey(userID, name string) string {
	return "planity:" + userID + ":" + name
}

func updatesChannel(userID, name string) string {
	return collectionKey(userID, name) + ":updates"
}

// Collection returns the named collection in the user's namespace.
func (s *RedisStore) Collection(userID, name string) Collection {
	return &redisCollection{store: s, userID: userID, name: name}
}

// Batch applies all writes in one MULTI/EXEC and notifies each affected
// collection once.
func (s *RedisStore) Batch(ctx context.Context, userID string, writes []BatchWrite) error {
	if len(writes) == 0 {
		return nil
	}

	type pending struct {
		key   string
		docID string
		data  []byte
	}
	staged := make([]pending, 0, len(writes))
	channels := make(map[string]struct{})
	for _, w := range writes {
		coll := &redisCollection{store: s, userID: userID, name: w.Collection}
		fields, err := coll.fetchFields(ctx, w.ID)
		if err != nil {
			return err
		}
		if err := s.applyOps(ctx, fields, w.Ops); err != nil {
			return err
		}
		data, err := sonic.Marshal(fields)
		if err != nil {
			return err
		}
		staged = append(staged, pending{key: collectionKey(userID, w.Collection), docID: w.ID, data: data})
		channels[updatesChannel(userID, w.Collection)] = struct{}{}
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range staged {
			pipe.HSet(ctx, p.key, p.docID, p.data)
		}
		for ch := range channels {
			pipe.Publish(ctx, ch, "batch")
		}
		return nil
	})
	return err
}

// applyOps mutates fields in place according to the update operations.
func (s *RedisStore) applyOps(ctx context.Context, fields map[string]any, ops []UpdateOp) error {
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			fields[op.Field] = op.Value
		case OpClear:
			delete(fields, op.Field)
		case OpServerTimestamp:
			now, err := s.serverTime(ctx)
			if err != nil {
				return err
			}
			fields[op.Field] = now.UTC().Format(time.RFC3339Nano)
		default:
			return fmt.Errorf("remote: unknown update op %d", op.Kind)
		}
	}
	return nil
}

func (s *RedisStore) serverTime(ctx context.Context) (time.Time, error) {
	return s.rdb.Time(ctx).Result()
}

type redisCollection struct {
	store  *RedisStore
	userID string
	name   string
}

func (c *redisCollection) key() string     { return collectionKey(c.userID, c.name) }
func (c *redisCollection) channel() string { return updatesChannel(c.userID, c.name) }

func (c *redisCollection) Docs(ctx context.Context) ([]Doc, error) {
	raw, err := c.store.rdb.HGetAll(ctx, c.key()).Result()
	if err != nil {
		return nil, err
	}
	docs := make([]Doc, 0, len(raw))
	for id, data := range raw {
		var fields map[string]any
		if err := sonic.Unmarshal([]byte(data), &fields); err != nil {
			c.store.log.WithFields(log.Fields{"collection": c.name, "doc": id}).
				Warnf("skipping undecodable document: %v", err)
			continue
		}
		docs = append(docs, Doc{ID: id, Fields: fields})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (c *redisCollection) fetchFields(ctx context.Context, id string) (map[string]any, error) {
	data, err := c.store.rdb.HGet(ctx, c.key(), id).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (c *redisCollection) write(ctx context.Context, id string, fields map[string]any) error {
	data, err := sonic.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = c.store.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, c.key(), id, data)
		pipe.Publish(ctx, c.channel(), id)
		return nil
	})
	return err
}

func (c *redisCollection) Add(ctx context.Context, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := c.write(ctx, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (c *redisCollection) Set(ctx context.Context, id string, fields map[string]any) error {
	return c.write(ctx, id, fields)
}

func (c *redisCollection) Update(ctx context.Context, id string, ops []UpdateOp) error {
	fields, err := c.fetchFields(ctx, id)
	if err != nil {
		return err
	}
	if err := c.store.applyOps(ctx, fields, ops); err != nil {
		return err
	}
	return c.write(ctx, id, fields)
}

func (c *redisCollection) Delete(ctx context.Context, id string) error {
	_, err := c.store.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, c.key(), id)
		pipe.Publish(ctx, c.channel(), id)
		return nil
	})
	return err
}

func (c *redisCollection) Subscribe(ctx context.Context, opts *SubscribeOptions) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := c.store.rdb.Subscribe(subCtx, c.channel())
	// Force the subscription handshake so a transport failure surfaces here
	// instead of as a silent empty stream.
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, err
	}

	sub := &redisSubscription{
		updates: make(chan []Doc, 1),
		cancel:  cancel,
		pubsub:  pubsub,
	}
	go sub.run(subCtx, c, opts)
	return sub, nil
}

type redisSubscription struct {
	updates chan []Doc
	cancel  context.CancelFunc
	pubsub  *redis.PubSub

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

func (s *redisSubscription) Updates() <-chan []Doc { return s.updates }

func (s *redisSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *redisSubscription) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.pubsub.Close()
	})
}

func (s *redisSubscription) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *redisSubscription) run(ctx context.Context, c *redisCollection, opts *SubscribeOptions) {
	defer close(s.updates)
	defer s.Close()

	emit := func() bool {
		docs, err := c.Docs(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.fail(err)
			}
			return false
		}
		docs = applySubscribeOptions(docs, opts)
		select {
		case s.updates <- docs:
		case <-ctx.Done():
			return false
		}
		return true
	}

	if !emit() {
		return
	}

	msgs := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-msgs:
			if !ok {
				if ctx.Err() == nil {
					s.fail(errors.New("remote: pubsub channel closed"))
				}
				return
			}
			if !emit() {
				return
			}
		}
	}
}

// applySubscribeOptions narrows and orders a snapshot.
func applySubscribeOptions(docs []Doc, opts *SubscribeOptions) []Doc {
	if opts == nil {
		return docs
	}
	if opts.DocID != "" {
		narrowed := docs[:0]
		for _, d := range docs {
			if d.ID == opts.DocID {
				narrowed = append(narrowed, d)
				break
			}
		}
		docs = narrowed
	}
	if opts.OrderBy != "" {
		field := opts.OrderBy
		sort.SliceStable(docs, func(i, j int) bool {
			return numericField(docs[i], field) < numericField(docs[j], field)
		})
	}
	return docs
}

func numericField(d Doc, field string) float64 {
	switch v := d.Fields[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}
