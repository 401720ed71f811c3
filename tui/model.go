// Package tui renders the task dashboard in the terminal and turns key
// presses into controller intents.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskflow/app"
	"taskflow/domain"
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeForm
	modeDue
)

const (
	opCreate = "create"
	opPatch  = "update"
	opRemove = "delete"
)

// loadedMsg and doneMsg carry the outcome of a store round trip.
type loadedMsg struct{ err error }

type doneMsg struct {
	op  string
	err error
}

// changedMsg is sent whenever the controller state moves.
type changedMsg struct{}

var formFields = []domain.Field{
	domain.FieldTitle,
	domain.FieldDescription,
	domain.FieldCategory,
	domain.FieldPriority,
	domain.FieldStatus,
	domain.FieldDueDate,
}

// Model is the bubbletea model for the dashboard. All task data is read
// from the controller on render; the model only keeps view state.
type Model struct {
	ctx  context.Context
	ctrl *app.Controller
	keys Keymap
	help help.Model
	now  func() time.Time

	mode    mode
	cursor  int
	editing int64

	search textinput.Model
	due    textinput.Model
	inputs map[domain.Field]*textinput.Model
	focus  int

	width  int
	status string
	err    error
}

// New builds the dashboard model around ctrl.
func New(ctx context.Context, ctrl *app.Controller) Model {
	search := textinput.New()
	search.Placeholder = "Search tasks..."
	search.Prompt = ""

	due := textinput.New()
	due.Placeholder = domain.DateLayout
	due.CharLimit = len(domain.DateLayout)
	due.Prompt = ""

	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200
	title.Prompt = ""

	desc := textinput.New()
	desc.Placeholder = "Description"
	desc.Prompt = ""

	draftDue := textinput.New()
	draftDue.Placeholder = domain.DateLayout
	draftDue.CharLimit = len(domain.DateLayout)
	draftDue.Prompt = ""

	return Model{
		ctx:    ctx,
		ctrl:   ctrl,
		keys:   DefaultKeymap(),
		help:   help.New(),
		now:    time.Now,
		search: search,
		due:    due,
		inputs: map[domain.Field]*textinput.Model{
			domain.FieldTitle:       &title,
			domain.FieldDescription: &desc,
			domain.FieldDueDate:     &draftDue,
		},
	}
}

// Init loads the list and starts listening for state changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitForChange())
}

func (m Model) load() tea.Cmd {
	return func() tea.Msg {
		return loadedMsg{err: m.ctrl.Load(m.ctx)}
	}
}

func (m Model) waitForChange() tea.Cmd {
	changes := m.ctrl.Changes()
	return func() tea.Msg {
		<-changes
		return changedMsg{}
	}
}

func (m Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{op: op, err: fn(m.ctx)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case changedMsg:
		m.clampCursor()
		return m, m.waitForChange()
	case loadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = "synced"
		}
		m.clampCursor()
		return m, nil
	case doneMsg:
		return m.finished(msg), nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeForm:
			return m.updateForm(msg)
		case modeDue:
			return m.updateDue(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m Model) finished(msg doneMsg) Model {
	m.err = msg.err
	if msg.err != nil {
		m.status = ""
		return m
	}
	m.status = msg.op + " ok"
	if msg.op == opCreate {
		m.resetForm()
		m.mode = modeList
	}
	m.clampCursor()
	return m
}

func (m Model) selected() (domain.Task, bool) {
	visible := m.ctrl.Visible()
	if m.cursor < 0 || m.cursor >= len(visible) {
		return domain.Task{}, false
	}
	return visible[m.cursor], true
}

func (m *Model) clampCursor() {
	n := len(m.ctrl.Visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m, tea.Quit
	case key.Matches(msg, k.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, k.Down):
		if m.cursor < len(m.ctrl.Visible())-1 {
			m.cursor++
		}
	case key.Matches(msg, k.MoveUp):
		return m.move(-1), nil
	case key.Matches(msg, k.MoveDown):
		return m.move(1), nil
	case key.Matches(msg, k.New):
		m.mode = modeForm
		m.syncForm()
		cmd := m.focusField(0)
		return m, cmd
	case key.Matches(msg, k.Search):
		m.mode = modeSearch
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, k.FilterPriority):
		m.ctrl.SetPriorityFilter(cycleFilter(names(domain.Priorities), m.ctrl.Snapshot().Filters.Priority))
	case key.Matches(msg, k.FilterStatus):
		m.ctrl.SetStatusFilter(cycleFilter(names(domain.Statuses), m.ctrl.Snapshot().Filters.Status))
	case key.Matches(msg, k.FilterCategory):
		m.ctrl.SetCategoryFilter(cycleFilter(names(domain.Categories), m.ctrl.Snapshot().Filters.Category))
	case key.Matches(msg, k.ClearFilters):
		m.search.SetValue("")
		m.ctrl.SetSearch("")
		m.ctrl.SetPriorityFilter(domain.All)
		m.ctrl.SetStatusFilter(domain.All)
		m.ctrl.SetCategoryFilter(domain.All)
	case key.Matches(msg, k.Theme):
		m.ctrl.ToggleTheme()
	case key.Matches(msg, k.Reload):
		return m, m.load()
	default:
		return m.updateTask(msg)
	}
	m.clampCursor()
	return m, nil
}

// updateTask handles the keys that act on the task under the cursor.
func (m Model) updateTask(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	t, ok := m.selected()
	if !ok {
		return m, nil
	}
	k := m.keys
	id := t.ID
	switch {
	case key.Matches(msg, k.Toggle):
		return m, m.run(opPatch, func(ctx context.Context) error {
			return m.ctrl.ToggleComplete(ctx, id)
		})
	case key.Matches(msg, k.CyclePriority):
		return m, m.patch(id, domain.FieldPriority, string(domain.NextPriority(t.Priority)))
	case key.Matches(msg, k.CycleStatus):
		return m, m.patch(id, domain.FieldStatus, string(domain.NextStatus(t.Status)))
	case key.Matches(msg, k.CycleCategory):
		return m, m.patch(id, domain.FieldCategory, string(domain.NextCategory(t.Category)))
	case key.Matches(msg, k.EditDue):
		m.mode = modeDue
		m.editing = id
		m.due.SetValue(t.DueString())
		m.due.CursorEnd()
		cmd := m.due.Focus()
		return m, cmd
	case key.Matches(msg, k.Delete):
		return m, m.run(opRemove, func(ctx context.Context) error {
			return m.ctrl.Remove(ctx, id)
		})
	}
	return m, nil
}

func (m Model) patch(id int64, f domain.Field, value string) tea.Cmd {
	return m.run(opPatch, func(ctx context.Context) error {
		return m.ctrl.Patch(ctx, id, f, value)
	})
}

// move swaps the selected task with its visible neighbour.
func (m Model) move(step int) Model {
	visible := m.ctrl.Visible()
	to := m.cursor + step
	if m.cursor >= len(visible) || to < 0 || to >= len(visible) {
		return m
	}
	m.ctrl.Reorder(visible[m.cursor].ID, visible[to].ID)
	m.cursor = to
	return m
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.mode = modeList
		m.search.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.ctrl.SetSearch(m.search.Value())
	m.cursor = 0
	return m, cmd
}

func (m Model) updateDue(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeList
		m.due.Blur()
		return m, nil
	case tea.KeyEnter:
		m.mode = modeList
		m.due.Blur()
		return m, m.patch(m.editing, domain.FieldDueDate, strings.TrimSpace(m.due.Value()))
	}
	var cmd tea.Cmd
	m.due, cmd = m.due.Update(msg)
	return m, cmd
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	field := formFields[m.focus]
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeList
		m.blurForm()
		return m, nil
	case tea.KeyEnter:
		return m, m.run(opCreate, func(ctx context.Context) error {
			_, err := m.ctrl.Create(ctx)
			return err
		})
	case tea.KeyTab, tea.KeyDown:
		cmd := m.focusField((m.focus + 1) % len(formFields))
		return m, cmd
	case tea.KeyShiftTab, tea.KeyUp:
		cmd := m.focusField((m.focus + len(formFields) - 1) % len(formFields))
		return m, cmd
	case tea.KeyLeft, tea.KeyRight:
		if values := enumValues(field); values != nil {
			step := 1
			if msg.Type == tea.KeyLeft {
				step = -1
			}
			cur, _ := formValue(m.ctrl.Snapshot().Draft, field)
			m.err = m.ctrl.SetDraftField(field, cycle(values, cur, step))
			return m, nil
		}
	}

	in, ok := m.inputs[field]
	if !ok {
		return m, nil
	}
	var cmd tea.Cmd
	*in, cmd = in.Update(msg)
	m.err = m.ctrl.SetDraftField(field, in.Value())
	return m, cmd
}

func (m *Model) focusField(i int) tea.Cmd {
	m.blurForm()
	m.focus = i
	if in, ok := m.inputs[formFields[i]]; ok {
		return in.Focus()
	}
	return nil
}

func (m *Model) blurForm() {
	for _, in := range m.inputs {
		in.Blur()
	}
}

// syncForm copies the draft into the text inputs.
func (m *Model) syncForm() {
	d := m.ctrl.Snapshot().Draft
	for f, in := range m.inputs {
		v, _ := formValue(d, f)
		in.SetValue(v)
	}
}

func (m *Model) resetForm() {
	m.blurForm()
	for _, in := range m.inputs {
		in.Reset()
	}
	m.focus = 0
}

func formValue(d domain.Draft, f domain.Field) (string, bool) {
	switch f {
	case domain.FieldTitle:
		return d.Title, true
	case domain.FieldDescription:
		return d.Description, true
	case domain.FieldPriority:
		return string(d.Priority), true
	case domain.FieldStatus:
		return string(d.Status), true
	case domain.FieldDueDate:
		return d.DueDate, true
	case domain.FieldCategory:
		return string(d.Category), true
	}
	return "", false
}

func enumValues(f domain.Field) []string {
	switch f {
	case domain.FieldPriority:
		return names(domain.Priorities)
	case domain.FieldStatus:
		return names(domain.Statuses)
	case domain.FieldCategory:
		return names(domain.Categories)
	}
	return nil
}

func names[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

// cycle steps through values, wrapping at both ends.
func cycle(values []string, cur string, step int) string {
	for i, v := range values {
		if v == cur {
			return values[(i+step+len(values))%len(values)]
		}
	}
	return values[0]
}

// cycleFilter steps a filter through All followed by values.
func cycleFilter(values []string, cur string) string {
	return cycle(append([]string{domain.All}, values...), cur, 1)
}
