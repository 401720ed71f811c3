package domain

import "time"

// Priority ranks how urgent a task is.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Status tracks the progress of a task.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Category is the tag a task is filed under.
type Category string

const (
	CategoryGeneral Category = "General"
	CategoryWork    Category = "Work"
	CategoryHome    Category = "Home"
	CategoryUrgent  Category = "Urgent"
)

// All disables a filter when used as its value.
const All = "All"

// DateLayout is the wire format of due dates.
const DateLayout = "2006-01-02"

var (
	Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}
	Statuses   = []Status{StatusPending, StatusInProgress, StatusCompleted}
	Categories = []Category{CategoryGeneral, CategoryWork, CategoryHome, CategoryUrgent}
)

// Task represents a single item held by the remote task store.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	DueDate     *string   `json:"due_date"`
	Category    Category  `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

// Due returns the parsed due date. The second result is false when the task
// has no due date or the stored value does not parse.
func (t Task) Due() (time.Time, bool) {
	if t.DueDate == nil || *t.DueDate == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(DateLayout, *t.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Overdue reports whether an unfinished task's due date is before the day of now.
func (t Task) Overdue(now time.Time) bool {
	if t.Status == StatusCompleted {
		return false
	}
	due, ok := t.Due()
	if !ok {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return due.Before(today)
}

// DueString returns the due date or "" when absent.
func (t Task) DueString() string {
	if t.DueDate == nil {
		return ""
	}
	return *t.DueDate
}

// TaskInput is the create payload sent to the store.
type TaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`
	DueDate     *string  `json:"due_date"`
	Category    Category `json:"category"`
}

// NextPriority cycles High -> Medium -> Low -> High.
func NextPriority(p Priority) Priority {
	return next(Priorities, p)
}

// NextStatus cycles Pending -> In Progress -> Completed -> Pending.
func NextStatus(s Status) Status {
	return next(Statuses, s)
}

// NextCategory cycles through Categories in display order.
func NextCategory(c Category) Category {
	return next(Categories, c)
}

func next[T comparable](values []T, cur T) T {
	for i, v := range values {
		if v == cur {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}
