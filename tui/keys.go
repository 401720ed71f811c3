package tui

import "github.com/charmbracelet/bubbles/key"

// Keymap holds the list-mode bindings.
type Keymap struct {
	Up             key.Binding
	Down           key.Binding
	MoveUp         key.Binding
	MoveDown       key.Binding
	Toggle         key.Binding
	CyclePriority  key.Binding
	CycleStatus    key.Binding
	CycleCategory  key.Binding
	EditDue        key.Binding
	Delete         key.Binding
	New            key.Binding
	Search         key.Binding
	FilterPriority key.Binding
	FilterStatus   key.Binding
	FilterCategory key.Binding
	ClearFilters   key.Binding
	Theme          key.Binding
	Reload         key.Binding
	Quit           key.Binding
}

// DefaultKeymap returns the standard bindings.
func DefaultKeymap() Keymap {
	return Keymap{
		Up:             key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:           key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		MoveUp:         key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move up")),
		MoveDown:       key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move down")),
		Toggle:         key.NewBinding(key.WithKeys("x", " "), key.WithHelp("x", "done")),
		CyclePriority:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "priority")),
		CycleStatus:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "status")),
		CycleCategory:  key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "tag")),
		EditDue:        key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "deadline")),
		Delete:         key.NewBinding(key.WithKeys("D", "delete"), key.WithHelp("D", "delete")),
		New:            key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new")),
		Search:         key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		FilterPriority: key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "filter priority")),
		FilterStatus:   key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "filter status")),
		FilterCategory: key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "filter tag")),
		ClearFilters:   key.NewBinding(key.WithKeys("0"), key.WithHelp("0", "clear filters")),
		Theme:          key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "theme")),
		Reload:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Quit:           key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp lists the bindings shown in the footer.
func (k Keymap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.New, k.Toggle, k.CyclePriority, k.CycleStatus, k.CycleCategory, k.EditDue,
		k.Delete, k.MoveUp, k.MoveDown, k.Search, k.FilterPriority, k.FilterStatus,
		k.FilterCategory, k.Theme, k.Quit,
	}
}
