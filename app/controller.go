// Package app owns the client state and applies user intents to it,
// talking to the remote task store where an intent needs persistence.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"taskflow/domain"
)

var (
	// ErrTitleRequired is returned by Create when the draft has no title.
	ErrTitleRequired = errors.New("title is required")
	// ErrTaskNotFound is returned for ids missing from the local list.
	ErrTaskNotFound = errors.New("task not found")
)

// Store is the remote task store.
type Store interface {
	List(ctx context.Context) ([]domain.Task, error)
	Create(ctx context.Context, in domain.TaskInput) (domain.Task, error)
	Patch(ctx context.Context, id int64, p domain.Patch) (domain.Task, error)
	Delete(ctx context.Context, id int64) error
}

// notFoundError is implemented by store errors for ids the store does not know.
type notFoundError interface {
	error
	NotFound() bool
}

// Controller holds the current State and swaps it on every change. Methods
// are safe to call from multiple goroutines.
type Controller struct {
	store Store
	log   *log.Logger

	mu      sync.Mutex
	state   State
	changes chan struct{}

	// latest holds the generation of the newest Patch per task field.
	gen    uint64
	latest map[patchKey]uint64
}

type patchKey struct {
	id    int64
	field domain.Field
}

// NewController creates a controller with the startup state.
func NewController(store Store, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Controller{
		store:   store,
		log:     logger,
		state:   NewState(),
		changes: make(chan struct{}, 1),
		latest:  map[patchKey]uint64{},
	}
}

// Changes receives a value after state changes. Bursts coalesce into one signal.
func (c *Controller) Changes() <-chan struct{} {
	return c.changes
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Visible returns the filtered list.
func (c *Controller) Visible() []domain.Task {
	return c.Snapshot().Visible()
}

// Stats returns the dashboard counters.
func (c *Controller) Stats() domain.Stats {
	return c.Snapshot().Stats()
}

func (c *Controller) update(fn func(State) State) State {
	c.mu.Lock()
	c.state = fn(c.state)
	s := c.state
	c.mu.Unlock()

	select {
	case c.changes <- struct{}{}:
	default:
	}
	return s
}

// Load replaces the local list with the store's, newest first.
func (c *Controller) Load(ctx context.Context) error {
	tasks, err := c.store.List(ctx)
	if err != nil {
		c.log.WithError(err).Error("tasks.load.failed")
		return fmt.Errorf("load tasks: %w", err)
	}
	s := c.update(func(s State) State { return s.WithTasks(tasks) })
	c.log.WithField("tasks", len(s.Tasks)).Debug("tasks.loaded")
	return nil
}

// Create submits the draft and returns the stored task. A draft without a
// title is rejected before any request is made. On success the draft is
// reset and the list reloaded; on failure the draft is kept for another
// attempt. A failed reload does not fail the create: the stored task is
// added to the local list instead.
func (c *Controller) Create(ctx context.Context) (domain.Task, error) {
	draft := c.Snapshot().Draft
	if !draft.HasTitle() {
		return domain.Task{}, ErrTitleRequired
	}

	created, err := c.store.Create(ctx, draft.Input())
	if err != nil {
		c.log.WithError(err).WithField("title", draft.Title).Error("task.create.failed")
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	c.log.WithField("task_id", created.ID).Info("task.created")

	c.update(func(s State) State { return s.WithDraft(domain.NewDraft()) })
	if err := c.Load(ctx); err != nil {
		c.log.WithError(err).WithField("task_id", created.ID).Warn("task.create.reload_failed")
		c.update(func(s State) State {
			if s.Index(created.ID) >= 0 {
				return s
			}
			return s.WithTasks(append(append([]domain.Task(nil), s.Tasks...), created))
		})
	}
	return created, nil
}

// Remove drops the task locally, then deletes it in the store. If the
// delete fails the task is put back where it was.
func (c *Controller) Remove(ctx context.Context, id int64) error {
	var (
		removed domain.Task
		index   int
		found   bool
	)
	c.update(func(s State) State {
		next, t, i, ok := s.Without(id)
		removed, index, found = t, i, ok
		return next
	})
	if !found {
		return ErrTaskNotFound
	}

	err := c.store.Delete(ctx, id)
	if err == nil {
		c.log.WithField("task_id", id).Info("task.deleted")
		return nil
	}
	var nf notFoundError
	if errors.As(err, &nf) && nf.NotFound() {
		c.log.WithField("task_id", id).Warn("task.delete.already_gone")
		return nil
	}

	c.update(func(s State) State {
		if s.Index(id) >= 0 {
			return s
		}
		return s.Inserted(removed, index)
	})
	c.log.WithError(err).WithField("task_id", id).Error("task.delete.failed")
	return fmt.Errorf("delete task %d: %w", id, err)
}

// Patch sets one field locally and sends it to the store. A blank due date
// is sent as null. If the request fails the previous value is restored,
// unless a newer Patch of the same field was issued or the value changed
// in the meantime.
func (c *Controller) Patch(ctx context.Context, id int64, f domain.Field, value string) error {
	if _, err := domain.ParseField(string(f)); err != nil {
		return err
	}

	key := patchKey{id: id, field: f}
	var (
		prev  string
		gen   uint64
		found bool
	)
	c.update(func(s State) State {
		t, ok := s.Task(id)
		if !ok {
			return s
		}
		found = true
		c.gen++
		gen = c.gen
		c.latest[key] = gen
		prev, _ = domain.FieldValue(t, f)
		next, _ := s.WithField(id, f, value)
		return next
	})
	if !found {
		return ErrTaskNotFound
	}

	_, err := c.store.Patch(ctx, id, domain.NewPatch(f, value))
	if err == nil {
		c.mu.Lock()
		if c.latest[key] == gen {
			delete(c.latest, key)
		}
		c.mu.Unlock()
		c.log.WithFields(log.Fields{"task_id": id, "field": string(f)}).Debug("task.patched")
		return nil
	}

	c.update(func(s State) State {
		if c.latest[key] != gen {
			return s
		}
		delete(c.latest, key)
		t, ok := s.Task(id)
		if !ok {
			return s
		}
		if cur, _ := domain.FieldValue(t, f); cur != value {
			return s
		}
		next, _ := s.WithField(id, f, prev)
		return next
	})
	c.log.WithError(err).WithFields(log.Fields{"task_id": id, "field": string(f)}).Error("task.patch.failed")
	return fmt.Errorf("update task %d %s: %w", id, f, err)
}

// ToggleComplete marks a task Completed, or Pending if it already is.
func (c *Controller) ToggleComplete(ctx context.Context, id int64) error {
	t, ok := c.Snapshot().Task(id)
	if !ok {
		return ErrTaskNotFound
	}
	next := domain.StatusCompleted
	if t.Status == domain.StatusCompleted {
		next = domain.StatusPending
	}
	return c.Patch(ctx, id, domain.FieldStatus, string(next))
}

// Reorder moves fromID to the position of toID in the full list. The order
// only lives in memory; the next Load restores id order.
func (c *Controller) Reorder(fromID, toID int64) {
	c.update(func(s State) State { return s.Moved(fromID, toID) })
}

// SetSearch sets the free-text search.
func (c *Controller) SetSearch(q string) {
	c.update(func(s State) State {
		f := s.Filters
		f.Search = q
		return s.WithFilters(f)
	})
}

// SetPriorityFilter restricts the list to one priority, or All.
func (c *Controller) SetPriorityFilter(v string) {
	c.update(func(s State) State {
		f := s.Filters
		f.Priority = v
		return s.WithFilters(f)
	})
}

// SetStatusFilter restricts the list to one status, or All.
func (c *Controller) SetStatusFilter(v string) {
	c.update(func(s State) State {
		f := s.Filters
		f.Status = v
		return s.WithFilters(f)
	})
}

// SetCategoryFilter restricts the list to one category, or All.
func (c *Controller) SetCategoryFilter(v string) {
	c.update(func(s State) State {
		f := s.Filters
		f.Category = v
		return s.WithFilters(f)
	})
}

// ToggleTheme flips the dark theme flag.
func (c *Controller) ToggleTheme() {
	c.update(State.ToggledTheme)
}

// SetDraftField edits one field of the creation form.
func (c *Controller) SetDraftField(f domain.Field, value string) error {
	var err error
	c.update(func(s State) State {
		d, e := s.Draft.With(f, value)
		if e != nil {
			err = e
			return s
		}
		return s.WithDraft(d)
	})
	return err
}

// ResetDraft restores the form defaults.
func (c *Controller) ResetDraft() {
	c.update(func(s State) State { return s.WithDraft(domain.NewDraft()) })
}
