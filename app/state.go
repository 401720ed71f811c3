package app

import (
	"sort"

	"taskflow/derive"
	"taskflow/domain"
)

// State is everything the client shows. Update methods return a new State
// and never write through to slices shared with the receiver.
type State struct {
	Tasks   []domain.Task  `json:"tasks"`
	Draft   domain.Draft   `json:"draft"`
	Filters domain.Filters `json:"filters"`
	Dark    bool           `json:"dark"`
}

// NewState returns the startup state: no tasks, default draft and filters.
func NewState() State {
	return State{
		Tasks:   []domain.Task{},
		Draft:   domain.NewDraft(),
		Filters: domain.NewFilters(),
	}
}

// WithTasks replaces the list, ordered newest id first.
func (s State) WithTasks(tasks []domain.Task) State {
	sorted := make([]domain.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	s.Tasks = sorted
	return s
}

// Index returns the position of the task with id, or -1.
func (s State) Index(id int64) int {
	for i, t := range s.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Task looks up a task by id.
func (s State) Task(id int64) (domain.Task, bool) {
	if i := s.Index(id); i >= 0 {
		return s.Tasks[i], true
	}
	return domain.Task{}, false
}

// Without drops the task with id. The removed task and its index are
// returned so the removal can be undone.
func (s State) Without(id int64) (State, domain.Task, int, bool) {
	i := s.Index(id)
	if i < 0 {
		return s, domain.Task{}, -1, false
	}
	removed := s.Tasks[i]
	tasks := make([]domain.Task, 0, len(s.Tasks)-1)
	tasks = append(tasks, s.Tasks[:i]...)
	tasks = append(tasks, s.Tasks[i+1:]...)
	s.Tasks = tasks
	return s, removed, i, true
}

// Inserted puts t back at index i, clamped to the list bounds.
func (s State) Inserted(t domain.Task, i int) State {
	if i < 0 {
		i = 0
	}
	if i > len(s.Tasks) {
		i = len(s.Tasks)
	}
	tasks := make([]domain.Task, 0, len(s.Tasks)+1)
	tasks = append(tasks, s.Tasks[:i]...)
	tasks = append(tasks, t)
	tasks = append(tasks, s.Tasks[i:]...)
	s.Tasks = tasks
	return s
}

// WithField sets one field of the task with id. Order is unchanged.
func (s State) WithField(id int64, f domain.Field, value string) (State, error) {
	i := s.Index(id)
	if i < 0 {
		return s, ErrTaskNotFound
	}
	updated, err := domain.ApplyField(s.Tasks[i], f, value)
	if err != nil {
		return s, err
	}
	tasks := make([]domain.Task, len(s.Tasks))
	copy(tasks, s.Tasks)
	tasks[i] = updated
	s.Tasks = tasks
	return s, nil
}

// Moved places the task fromID at the current position of toID, shifting
// the tasks in between. Unknown ids leave the state unchanged.
func (s State) Moved(fromID, toID int64) State {
	from, to := s.Index(fromID), s.Index(toID)
	if from < 0 || to < 0 || from == to {
		return s
	}
	tasks := make([]domain.Task, 0, len(s.Tasks))
	moving := s.Tasks[from]
	for i, t := range s.Tasks {
		if i == from {
			continue
		}
		if i == to && from > to {
			tasks = append(tasks, moving)
		}
		tasks = append(tasks, t)
		if i == to && from < to {
			tasks = append(tasks, moving)
		}
	}
	s.Tasks = tasks
	return s
}

// WithDraft replaces the form.
func (s State) WithDraft(d domain.Draft) State {
	s.Draft = d
	return s
}

// WithFilters replaces the filters.
func (s State) WithFilters(f domain.Filters) State {
	s.Filters = f
	return s
}

// ToggledTheme flips between light and dark.
func (s State) ToggledTheme() State {
	s.Dark = !s.Dark
	return s
}

// Visible is the filtered list shown to the user.
func (s State) Visible() []domain.Task {
	return derive.FilterTasks(s.Tasks, s.Filters)
}

// Stats are the dashboard counters over the full list.
func (s State) Stats() domain.Stats {
	return derive.Stats(s.Tasks)
}
