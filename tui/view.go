package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"taskflow/domain"
)

var formLabels = map[domain.Field]string{
	domain.FieldTitle:       "Title",
	domain.FieldDescription: "Description",
	domain.FieldCategory:    "Tag",
	domain.FieldPriority:    "Priority",
	domain.FieldStatus:      "Status",
	domain.FieldDueDate:     "Deadline",
}

// View implements tea.Model.
func (m Model) View() string {
	state := m.ctrl.Snapshot()
	st := stylesFor(state.Dark)

	sections := []string{
		m.viewHeader(st, state.Dark),
		m.viewStats(st, state.Stats()),
		m.viewFilters(st, state.Filters),
		m.viewForm(st, state.Draft),
		m.viewTasks(st, state.Visible()),
		m.viewFooter(st),
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) viewHeader(st styles, dark bool) string {
	theme := "☀ light"
	if dark {
		theme = "☾ dark"
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom,
		st.title.Render("TaskFlow Pro"),
		"  ",
		st.muted.Render("Productivity dashboard · "+theme),
	) + "\n"
}

func (m Model) viewStats(st styles, s domain.Stats) string {
	card := func(label string, n int, c lipgloss.Color) string {
		value := lipgloss.NewStyle().Bold(true).Foreground(c).Render(strconv.Itoa(n))
		return st.card.Render(st.muted.Render(label) + "\n" + value)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		card("Total", s.Total, blue),
		card("Pending", s.Pending, red),
		card("Active", s.Progress, orange),
		card("Done", s.Done, emerald),
	)
}

func (m Model) viewFilters(st styles, f domain.Filters) string {
	label := st.muted
	if m.mode == modeSearch {
		label = st.focused
	}
	search := label.Render("Search: ") + m.search.View()
	filters := fmt.Sprintf("Priority: %s  Status: %s  Tag: %s", f.Priority, f.Status, f.Category)
	return search + "\n" + st.muted.Render(filters) + "\n"
}

func (m Model) viewForm(st styles, d domain.Draft) string {
	if m.mode != modeForm {
		return st.muted.Render("n  new task") + "\n"
	}
	var b strings.Builder
	b.WriteString(st.subtitle.Render("New task") + "\n")
	for i, f := range formFields {
		label := st.muted
		marker := "  "
		if i == m.focus {
			label = st.focused
			marker = "> "
		}
		b.WriteString(marker + label.Render(fmt.Sprintf("%-12s", formLabels[f])))
		if in, ok := m.inputs[f]; ok {
			b.WriteString(in.View())
		} else {
			v, _ := formValue(d, f)
			b.WriteString(st.input.Render("‹ " + v + " ›"))
		}
		b.WriteString("\n")
	}
	b.WriteString(st.muted.Render("tab next · ←/→ change · enter create · esc close"))
	return b.String() + "\n"
}

func (m Model) viewTasks(st styles, tasks []domain.Task) string {
	if len(tasks) == 0 {
		return st.muted.Render("No tasks match.") + "\n"
	}
	now := m.now()
	cards := make([]string, 0, len(tasks))
	for i, t := range tasks {
		cards = append(cards, m.viewTask(st, t, i == m.cursor, t.Overdue(now)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, cards...) + "\n"
}

func (m Model) viewTask(st styles, t domain.Task, selected, overdue bool) string {
	done := t.Status == domain.StatusCompleted

	check := "[ ]"
	if done {
		check = "[x]"
	}
	title := lipgloss.NewStyle().Bold(true)
	switch {
	case done:
		title = title.Strikethrough(true).Inherit(st.muted)
	case overdue:
		title = title.Foreground(red)
	}

	badge := func(text string, c lipgloss.Color) string {
		return lipgloss.NewStyle().Foreground(c).Render(strings.ToUpper(text))
	}

	var deadline string
	switch {
	case m.mode == modeDue && m.editing == t.ID:
		deadline = st.focused.Render("Deadline: ") + m.due.View()
	case t.DueString() == "":
		deadline = st.muted.Render("No deadline")
	case overdue:
		deadline = lipgloss.NewStyle().Foreground(red).Render("Overdue: " + t.DueString())
	default:
		deadline = st.muted.Render("Deadline: " + t.DueString())
	}

	head := strings.Join([]string{
		check,
		title.Render(t.Title),
		badge(string(t.Priority), priorityColor(t.Priority)),
		badge(string(t.Status), statusColor(t.Status)),
		st.muted.Render("#" + string(t.Category)),
		deadline,
	}, "  ")

	desc := t.Description
	if desc == "" {
		desc = st.muted.Italic(true).Render("No description provided.")
	}

	card := taskBorder(t.Priority).Render(head + "\n" + desc)
	if selected {
		return st.selected.Render(card)
	}
	return card
}

func (m Model) viewFooter(st styles) string {
	var line string
	switch {
	case m.err != nil:
		line = st.errText.Render("error: " + m.err.Error())
	case m.status != "":
		line = st.status.Render(m.status)
	}
	return line + "\n" + m.help.ShortHelpView(m.keys.ShortHelp())
}
