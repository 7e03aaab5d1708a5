package repository

import (
	"fmt"
	"time"

	"planity/domain"
	"planity/remote"
)

// Wire field names for task and category documents.
const (
	fieldTitle          = "title"
	fieldDate           = "date"
	fieldCategory       = "category"
	fieldIsHighPriority = "isHighPriority"
	fieldCompletedAt    = "completedAt"
	fieldName           = "name"
	fieldOrderIndex     = "orderIndex"
)

// Defaults supplied when an optional field is absent from a document.
const (
	defaultTitle        = "Untitled"
	defaultCategory     = "Uncategorized"
	defaultCategoryName = "Unnamed"
)

// taskFromDoc maps a wire document to a Task, supplying defaults for absent
// fields. A present field of the wrong type fails the mapping; callers drop
// such documents from emitted snapshots.
func taskFromDoc(d remote.Doc) (domain.Task, error) {
	t := domain.Task{ID: d.ID}
	var err error
	if t.Title, err = stringField(d.Fields, fieldTitle, defaultTitle); err != nil {
		return domain.Task{}, err
	}
	if t.Date, err = stringField(d.Fields, fieldDate, ""); err != nil {
		return domain.Task{}, err
	}
	if t.Category, err = stringField(d.Fields, fieldCategory, defaultCategory); err != nil {
		return domain.Task{}, err
	}
	if t.IsHighPriority, err = boolField(d.Fields, fieldIsHighPriority); err != nil {
		return domain.Task{}, err
	}
	if t.CompletedAt, err = timeField(d.Fields, fieldCompletedAt); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// taskToDoc maps a Task to its wire representation. CompletedAt is written
// only when set; clearing it is the business of partial updates.
func taskToDoc(t domain.Task) map[string]any {
	fields := map[string]any{
		fieldTitle:          t.Title,
		fieldDate:           t.Date,
		fieldCategory:       t.Category,
		fieldIsHighPriority: t.IsHighPriority,
	}
	if t.CompletedAt != nil {
		fields[fieldCompletedAt] = t.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return fields
}

func categoryFromDoc(d remote.Doc) (domain.Category, error) {
	c := domain.Category{ID: d.ID}
	var err error
	if c.Name, err = stringField(d.Fields, fieldName, defaultCategoryName); err != nil {
		return domain.Category{}, err
	}
	if c.OrderIndex, err = intField(d.Fields, fieldOrderIndex); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

func categoryToDoc(name string, orderIndex int) map[string]any {
	return map[string]any{
		fieldName:       name,
		fieldOrderIndex: orderIndex,
	}
}

func stringField(fields map[string]any, name, fallback string) (string, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s: expected string, got %T", name, v)
	}
	return s, nil
}

func boolField(fields map[string]any, name string) (bool, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %s: expected bool, got %T", name, v)
	}
	return b, nil
}

func intField(fields map[string]any, name string) (int, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("field %s: expected number, got %T", name, v)
	}
}

func timeField(fields map[string]any, name string) (*time.Time, error) {
	v, ok := fields[name]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("field %s: expected timestamp string, got %T", name, v)
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return &ts, nil
}
