package domain

import "time"

// Reserved category names that carry lifecycle meaning beyond plain grouping.
// Moving a task into CategoryCompleted stamps its completion time; moving it
// into CategoryTrash is the soft form of deletion.
const (
	CategoryCompleted = "Completed"
	CategoryTrash     = "Trash"
)

// DateLayout is the layout tasks store their calendar day in, e.g. "7,June,2023".
// The value is a display string, not a timestamp; sorting it is lexicographic.
const DateLayout = "2,January,2006"

// Task represents a single to-do item.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Date           string     `json:"date"`
	Category       string     `json:"category"`
	IsHighPriority bool       `json:"isHighPriority,omitempty"`
	CompletedAt    *time.Time `json:"completedAt,omitempty"`
}

// Completed reports whether the task sits in the completed category.
func (t Task) Completed() bool {
	return t.Category == CategoryCompleted
}

// Trashed reports whether the task has been soft-deleted.
func (t Task) Trashed() bool {
	return t.Category == CategoryTrash
}

// Pending reports whether the task is neither completed nor trashed.
func (t Task) Pending() bool {
	return !t.Completed() && !t.Trashed()
}

// ParseDate parses the task's date string. The boolean is false when the
// string does not match DateLayout.
func (t Task) ParseDate() (time.Time, bool) {
	d, err := time.Parse(DateLayout, t.Date)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// FormatDate renders a point in time as a task date string.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
