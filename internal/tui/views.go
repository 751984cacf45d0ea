package tui

import (
	"fmt"
	"strings"

	"github.com/Veraticus/fintracker/internal/chat"
	"github.com/charmbracelet/lipgloss"
)

type theme struct {
	Title    lipgloss.Style
	Selected lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style
}

func defaultTheme() theme {
	primary := lipgloss.Color("#2EC4B6")
	muted := lipgloss.Color("#666666")
	return theme{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(primary),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#000000")).Background(primary),
		Normal:   lipgloss.NewStyle(),
		Muted:    lipgloss.NewStyle().Foreground(muted),
		Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("#8AC926")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF595E")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
	}
}

// View renders the current screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var body string
	switch {
	case m.state == StateLoading:
		body = m.spinner.View() + " Loading open decisions..."
	case m.err != nil:
		body = m.theme.Error.Render("Failed to load decisions: " + m.err.Error())
	case m.state == StateChoosing:
		body = m.renderChooser()
	default:
		body = m.renderList()
	}

	sections := []string{
		m.theme.Title.Render(fmt.Sprintf("Open decisions (%d)", len(m.pending))),
		body,
	}
	if m.status != "" {
		sections = append(sections, m.theme.Status.Render(m.status))
	}
	if m.busy {
		sections = append(sections, m.spinner.View()+" Saving...")
	}
	sections = append(sections, m.help.View(m.keymap))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderList() string {
	if len(m.pending) == 0 {
		return m.theme.Muted.Render("Nothing to review. Press q to quit.")
	}

	rows := make([]string, 0, len(m.pending))
	for i, p := range m.pending {
		suggestion := "no suggestion"
		if p.PredictedSubcategory != "" {
			suggestion = fmt.Sprintf("%s %.2f", m.tax.SubcategoryLabel(p.PredictedSubcategory), p.PredictedConfidence)
		}
		line := fmt.Sprintf("#%-5d %14s  %-20s %s",
			p.ID, chat.FormatAmount(p.Amount, m.currency), truncate(p.Note, 20), suggestion)

		style := m.theme.Normal
		if i == m.cursor {
			style = m.theme.Selected
		}
		rows = append(rows, style.Render(line))
	}
	return m.theme.Box.Render(strings.Join(rows, "\n"))
}

func (m Model) renderChooser() string {
	current := m.current()
	if current == nil {
		return ""
	}

	header := fmt.Sprintf("%s  %s", chat.FormatAmount(current.Amount, m.currency), current.Note)
	rows := []string{m.theme.Title.Render(header), ""}
	for i, c := range m.tax.Categories() {
		line := "  " + c.Label
		if c.Key == current.PredictedCategory {
			line += m.theme.Muted.Render("  (suggested)")
		}
		if i == m.catCursor {
			line = m.theme.Selected.Render("> " + c.Label)
		}
		rows = append(rows, line)
	}
	return m.theme.Box.Render(strings.Join(rows, "\n"))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
