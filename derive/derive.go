// Package derive computes the dashboard counters and the visible task list
// from client state. Every function is pure.
package derive

import (
	"strings"

	"taskflow/domain"
)

// Stats counts tasks per known status.
func Stats(tasks []domain.Task) domain.Stats {
	s := domain.Stats{Total: len(tasks)}
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusPending:
			s.Pending++
		case domain.StatusInProgress:
			s.Progress++
		case domain.StatusCompleted:
			s.Done++
		}
	}
	return s
}

// FilterTasks returns the tasks matching f in their original order.
func FilterTasks(tasks []domain.Task, f domain.Filters) []domain.Task {
	search := strings.ToLower(f.Search)
	out := make([]domain.Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(t, search, f) {
			out = append(out, t)
		}
	}
	return out
}

// Match reports whether t is visible under f.
func Match(t domain.Task, f domain.Filters) bool {
	return matches(t, strings.ToLower(f.Search), f)
}

func matches(t domain.Task, search string, f domain.Filters) bool {
	if search != "" &&
		!strings.Contains(strings.ToLower(t.Title), search) &&
		!strings.Contains(strings.ToLower(t.Description), search) {
		return false
	}
	return allows(f.Priority, string(t.Priority)) &&
		allows(f.Status, string(t.Status)) &&
		allows(f.Category, string(t.Category))
}

// allows treats an empty filter like All so a zero Filters matches everything.
func allows(filter, value string) bool {
	return filter == "" || filter == domain.All || filter == value
}
