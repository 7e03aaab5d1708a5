// Package remote defines the document-store capability the sync layer runs
// against: per-user collections of schemaless documents with live
// subscriptions, partial field updates and atomic multi-document batches.
package remote

import "context"

// Collection names used by the application.
const (
	TasksCollection      = "tasks"
	CategoriesCollection = "categories"
)

// Doc is one stored document.
type Doc struct {
	ID     string
	Fields map[string]any
}

// OpKind tags an UpdateOp variant.
type OpKind int

const (
	// OpSet writes a literal value to the field.
	OpSet OpKind = iota
	// OpClear removes the field from the document.
	OpClear
	// OpServerTimestamp stamps the field with the store's own clock at
	// commit time.
	OpServerTimestamp
)

// UpdateOp is a single field change inside a partial update.
type UpdateOp struct {
	Kind  OpKind
	Field string
	Value any
}

// SetField writes a literal value.
func SetField(field string, value any) UpdateOp {
	return UpdateOp{Kind: OpSet, Field: field, Value: value}
}

// ClearField deletes the field.
func ClearField(field string) UpdateOp {
	return UpdateOp{Kind: OpClear, Field: field}
}

// ServerTimestamp stamps the field with the server clock.
func ServerTimestamp(field string) UpdateOp {
	return UpdateOp{Kind: OpServerTimestamp, Field: field}
}

// BatchWrite is one partial update inside an atomic batch.
type BatchWrite struct {
	Collection string
	ID         string
	Ops        []UpdateOp
}

// SubscribeOptions tunes a live subscription.
type SubscribeOptions struct {
	// OrderBy sorts snapshots ascending by the named numeric field.
	OrderBy string
	// DocID narrows the subscription to a single document. Snapshots then
	// carry zero or one documents.
	DocID string
}

// Subscription is a live view over a collection. Updates delivers the full
// current snapshot on every change until the subscription is closed or the
// transport fails; after the channel closes, Err reports the terminal error,
// nil for a clean close.
type Subscription interface {
	Updates() <-chan []Doc
	Err() error
	Close()
}

// Collection is one document collection in a user's namespace.
type Collection interface {
	Docs(ctx context.Context) ([]Doc, error)
	Add(ctx context.Context, fields map[string]any) (string, error)
	Set(ctx context.Context, id string, fields map[string]any) error
	Update(ctx context.Context, id string, ops []UpdateOp) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, opts *SubscribeOptions) (Subscription, error)
}

// Store provides access to per-user collections and atomic batches. A batch
// is applied so that no concurrent reader or subscriber observes a partial
// result.
type Store interface {
	Collection(userID, name string) Collection
	Batch(ctx context.Context, userID string, writes []BatchWrite) error
}
