package tui

import (
	"github.com/charmbracelet/lipgloss"

	"taskflow/domain"
)

type palette struct {
	fg     lipgloss.Color
	muted  lipgloss.Color
	accent lipgloss.Color
	border lipgloss.Color
	cursor lipgloss.Color
}

var (
	lightPalette = palette{fg: "#0F172A", muted: "#64748B", accent: "#2563EB", border: "#E2E8F0", cursor: "#F1F5F9"}
	darkPalette  = palette{fg: "#F1F5F9", muted: "#94A3B8", accent: "#60A5FA", border: "#1E293B", cursor: "#1E293B"}
)

var (
	red     = lipgloss.Color("#DC2626")
	orange  = lipgloss.Color("#F97316")
	emerald = lipgloss.Color("#10B981")
	slate   = lipgloss.Color("#94A3B8")
	blue    = lipgloss.Color("#3B82F6")
)

type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	muted    lipgloss.Style
	card     lipgloss.Style
	input    lipgloss.Style
	focused  lipgloss.Style
	selected lipgloss.Style
	errText  lipgloss.Style
	status   lipgloss.Style
}

func stylesFor(dark bool) styles {
	p := lightPalette
	if dark {
		p = darkPalette
	}
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Italic(true).Foreground(p.fg),
		subtitle: lipgloss.NewStyle().Foreground(p.accent),
		muted:    lipgloss.NewStyle().Foreground(p.muted),
		card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Padding(0, 2).
			Align(lipgloss.Center),
		input:    lipgloss.NewStyle().Foreground(p.fg),
		focused:  lipgloss.NewStyle().Foreground(p.accent).Bold(true),
		selected: lipgloss.NewStyle().Background(p.cursor),
		errText:  lipgloss.NewStyle().Foreground(red),
		status:   lipgloss.NewStyle().Foreground(p.muted).Italic(true),
	}
}

func priorityColor(p domain.Priority) lipgloss.Color {
	switch p {
	case domain.PriorityHigh:
		return red
	case domain.PriorityMedium:
		return orange
	case domain.PriorityLow:
		return emerald
	}
	return slate
}

func statusColor(s domain.Status) lipgloss.Color {
	switch s {
	case domain.StatusPending:
		return red
	case domain.StatusInProgress:
		return orange
	case domain.StatusCompleted:
		return emerald
	}
	return slate
}

// taskBorder draws the priority-colored bar on the left of a task card.
func taskBorder(p domain.Priority) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(priorityColor(p)).
		PaddingLeft(1)
}
