package domain

// Category is a named, orderable bucket of tasks.
//
// TaskCount is derived at read time by counting tasks whose category field
// equals Name; it is never persisted. Tasks reference categories by name, not
// by id, so renaming a category detaches its tasks.
type Category struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OrderIndex int    `json:"orderIndex"`
	TaskCount  int    `json:"taskCount,omitempty"`
}
