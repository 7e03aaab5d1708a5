package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultPollInterval is how often TableStore subscriptions refresh when no
// interval is configured. Azure Tables has no change feed, so live
// subscriptions are polled.
const DefaultPollInterval = 2 * time.Second

// TableStore is an Azure Table Storage backend. Each collection maps to one
// table; documents are entities keyed by (userID, docID) with the field map
// serialized into a single Data property. Subscriptions poll and emit only
// when the serialized snapshot changes.
type TableStore struct {
	tables       map[string]*aztables.Client
	pollInterval time.Duration
	log          *log.Logger
}

// NewTableStore connects to table storage and binds the named collections to
// their tables.
func NewTableStore(connStr string, tableNames map[string]string, pollInterval time.Duration, logger *log.Logger) (*TableStore, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	tables := make(map[string]*aztables.Client, len(tableNames))
	for collection, table := range tableNames {
		tables[collection] = svc.NewClient(table)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &TableStore{tables: tables, pollInterval: pollInterval, log: logger}, nil
}

type docEntity struct {
	aztables.Entity
	Data string `json:"Data"`
}

func (s *TableStore) table(name string) (*aztables.Client, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("remote: no table bound for collection %q", name)
	}
	return t, nil
}

// Collection returns the named collection in the user's namespace.
func (s *TableStore) Collection(userID, name string) Collection {
	return &tableCollection{store: s, userID: userID, name: name}
}

// Batch submits all writes as one table transaction. Table transactions are
// scoped to a single partition of a single table, so every write must target
// the same collection; the category reorder path satisfies this.
func (s *TableStore) Batch(ctx context.Context, userID string, writes []BatchWrite) error {
	if len(writes) == 0 {
		return nil
	}
	collection := writes[0].Collection
	for _, w := range writes[1:] {
		if w.Collection != collection {
			return errors.New("remote: batch writes must target one collection")
		}
	}
	table, err := s.table(collection)
	if err != nil {
		return err
	}
	coll := &tableCollection{store: s, userID: userID, name: collection}
	actions := make([]aztables.TransactionAction, 0, len(writes))
	for _, w := range writes {
		fields, err := coll.fetchFields(ctx, w.ID)
		if err != nil {
			return err
		}
		applyLocalOps(fields, w.Ops)
		data, err := encodeDocEntity(userID, w.ID, fields)
		if err != nil {
			return err
		}
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeInsertReplace,
			Entity:     data,
		})
	}
	_, err = table.SubmitTransaction(ctx, actions, nil)
	return err
}

// applyLocalOps resolves update operations with the process clock standing in
// for the server timestamp, since table storage offers no write-time sentinel.
func applyLocalOps(fields map[string]any, ops []UpdateOp) {
	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			fields[op.Field] = op.Value
		case OpClear:
			delete(fields, op.Field)
		case OpServerTimestamp:
			fields[op.Field] = time.Now().UTC().Format(time.RFC3339Nano)
		}
	}
}

func encodeDocEntity(userID, docID string, fields map[string]any) ([]byte, error) {
	data, err := sonic.Marshal(fields)
	if err != nil {
		return nil, err
	}
	return json.Marshal(docEntity{
		Entity: aztables.Entity{PartitionKey: userID, RowKey: docID},
		Data:   string(data),
	})
}

type tableCollection struct {
	store  *TableStore
	userID string
	name   string
}

func (c *tableCollection) Docs(ctx context.Context) ([]Doc, error) {
	table, err := c.store.table(c.name)
	if err != nil {
		return nil, err
	}
	filter := "PartitionKey eq '" + c.userID + "'"
	pager := table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	docs := []Doc{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent docEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			var fields map[string]any
			if err := sonic.Unmarshal([]byte(ent.Data), &fields); err != nil {
				c.store.log.WithFields(log.Fields{"collection": c.name, "doc": ent.RowKey}).
					Warnf("skipping undecodable document: %v", err)
				continue
			}
			docs = append(docs, Doc{ID: ent.RowKey, Fields: fields})
		}
	}
	return docs, nil
}

func (c *tableCollection) fetchFields(ctx context.Context, id string) (map[string]any, error) {
	table, err := c.store.table(c.name)
	if err != nil {
		return nil, err
	}
	resp, err := table.GetEntity(ctx, c.userID, id, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == 404 {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var ent docEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := sonic.Unmarshal([]byte(ent.Data), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (c *tableCollection) upsert(ctx context.Context, id string, fields map[string]any) error {
	table, err := c.store.table(c.name)
	if err != nil {
		return err
	}
	data, err := encodeDocEntity(c.userID, id, fields)
	if err != nil {
		return err
	}
	_, err = table.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (c *tableCollection) Add(ctx context.Context, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := c.upsert(ctx, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (c *tableCollection) Set(ctx context.Context, id string, fields map[string]any) error {
	return c.upsert(ctx, id, fields)
}

func (c *tableCollection) Update(ctx context.Context, id string, ops []UpdateOp) error {
	fields, err := c.fetchFields(ctx, id)
	if err != nil {
		return err
	}
	applyLocalOps(fields, ops)
	return c.upsert(ctx, id, fields)
}

func (c *tableCollection) Delete(ctx context.Context, id string) error {
	table, err := c.store.table(c.name)
	if err != nil {
		return err
	}
	_, err = table.DeleteEntity(ctx, c.userID, id, nil)
	return err
}

func (c *tableCollection) Subscribe(ctx context.Context, opts *SubscribeOptions) (Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	sub := &tableSubscription{
		updates: make(chan []Doc, 1),
		cancel:  cancel,
	}
	go sub.run(subCtx, c, opts)
	return sub, nil
}

type tableSubscription struct {
	updates chan []Doc
	cancel  context.CancelFunc

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

func (s *tableSubscription) Updates() <-chan []Doc { return s.updates }

func (s *tableSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *tableSubscription) Close() {
	s.closeOnce.Do(s.cancel)
}

func (s *tableSubscription) run(ctx context.Context, c *tableCollection, opts *SubscribeOptions) {
	defer close(s.updates)
	defer s.Close()

	var lastFingerprint string
	emit := func() bool {
		docs, err := c.Docs(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
			}
			return false
		}
		docs = applySubscribeOptions(docs, opts)
		fp := fingerprint(docs)
		if fp == lastFingerprint {
			return true
		}
		select {
		case s.updates <- docs:
			lastFingerprint = fp
		case <-ctx.Done():
			return false
		}
		return true
	}

	if !emit() {
		return
	}
	ticker := time.NewTicker(c.store.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !emit() {
				return
			}
		}
	}
}

func fingerprint(docs []Doc) string {
	data, err := sonic.Marshal(docs)
	if err != nil {
		return ""
	}
	return string(data)
}
