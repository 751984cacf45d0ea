package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const operationTimeout = 10 * time.Second

func (m Model) loadPending() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, operationTimeout)
		defer cancel()

		pending, err := m.loader(ctx)
		return pendingLoadedMsg{pending: pending, err: err}
	}
}

func (m Model) resolve(id, author int64, category string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, operationTimeout)
		defer cancel()

		expense, err := m.resolver.ResolvePending(ctx, id, author, category)
		return resolvedMsg{id: id, expense: expense, err: err}
	}
}

func (m Model) discard(id, author int64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, operationTimeout)
		defer cancel()

		return discardedMsg{id: id, err: m.resolver.DiscardPending(ctx, id, author)}
	}
}
