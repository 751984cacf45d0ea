// Package tui is a full-screen review of open pending decisions.
package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/fintracker/internal/chat"
	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// State is the screen the review is on.
type State int

// Review states.
const (
	StateLoading State = iota
	StateList
	StateChoosing
)

// Resolver finalizes pending decisions.
type Resolver interface {
	ResolvePending(ctx context.Context, pendingID, resolverID int64, chosen string) (*model.Expense, error)
	DiscardPending(ctx context.Context, pendingID, resolverID int64) error
}

// Loader fetches the decisions to review.
type Loader func(ctx context.Context) ([]model.PendingDecision, error)

// Stats counts what the session did.
type Stats struct {
	Accepted  int
	Corrected int
	Discarded int
	Stale     int
}

// Model holds the review state.
type Model struct {
	ctx       context.Context
	err       error
	resolver  Resolver
	loader    Loader
	tax       *taxonomy.Taxonomy
	keymap    KeyMap
	status    string
	currency  string
	theme     theme
	pending   []model.PendingDecision
	help      help.Model
	spinner   spinner.Model
	stats     Stats
	cursor    int
	catCursor int
	width     int
	height    int
	state     State
	busy      bool
	quitting  bool
}

func newModel(ctx context.Context, cfg Config) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		resolver: cfg.Resolver,
		loader:   cfg.Loader,
		tax:      cfg.Taxonomy,
		currency: cfg.Currency,
		keymap:   DefaultKeyMap(),
		theme:    defaultTheme(),
		help:     help.New(),
		spinner:  s,
		state:    StateLoading,
		width:    80,
		height:   24,
	}
}

// Init starts loading.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadPending())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.state != StateLoading && !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pendingLoadedMsg:
		m.state = StateList
		m.err = msg.err
		if msg.err == nil {
			m.pending = msg.pending
			m.clampCursor()
		}
		return m, nil

	case resolvedMsg:
		m.busy = false
		return m.onResolved(msg), nil

	case discardedMsg:
		m.busy = false
		return m.onDiscarded(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keymap.ForceQuit) {
		m.quitting = true
		return m, tea.Quit
	}
	if m.busy || m.state == StateLoading {
		return m, nil
	}
	if m.state == StateChoosing {
		return m.handleChooserKey(msg)
	}

	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keymap.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keymap.Down):
		if m.cursor < len(m.pending)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keymap.Refresh):
		m.state = StateLoading
		return m, tea.Batch(m.spinner.Tick, m.loadPending())
	}

	current := m.current()
	if current == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keymap.Accept):
		if current.PredictedCategory == "" {
			m.status = "No suggestion for this one; press Enter to choose"
			return m, nil
		}
		m.busy = true
		return m, m.resolve(current.ID, current.UserID, current.PredictedCategory)
	case key.Matches(msg, m.keymap.Choose):
		m.state = StateChoosing
		m.catCursor = m.categoryIndex(current.PredictedCategory)
	case key.Matches(msg, m.keymap.Discard):
		m.busy = true
		return m, m.discard(current.ID, current.UserID)
	}
	return m, nil
}

func (m Model) handleChooserKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	categories := m.tax.Categories()
	switch {
	case key.Matches(msg, m.keymap.Back):
		m.state = StateList
	case key.Matches(msg, m.keymap.Up):
		if m.catCursor > 0 {
			m.catCursor--
		}
	case key.Matches(msg, m.keymap.Down):
		if m.catCursor < len(categories)-1 {
			m.catCursor++
		}
	case key.Matches(msg, m.keymap.Choose):
		current := m.current()
		m.state = StateList
		if current == nil {
			return m, nil
		}
		m.busy = true
		return m, m.resolve(current.ID, current.UserID, categories[m.catCursor].Key)
	}
	return m, nil
}

func (m Model) onResolved(msg resolvedMsg) Model {
	d := m.find(msg.id)
	switch {
	case errors.Is(msg.err, common.ErrNotFound):
		m.stats.Stale++
		m.status = fmt.Sprintf("#%d was already processed", msg.id)
	case msg.err != nil:
		m.status = "Error: " + msg.err.Error()
		return m
	default:
		if d != nil && msg.expense.Category == d.PredictedCategory {
			m.stats.Accepted++
		} else {
			m.stats.Corrected++
		}
		m.status = fmt.Sprintf("Recorded #%d: %s -> %s",
			msg.expense.ID,
			chat.FormatAmount(msg.expense.Amount, m.currency),
			chat.ExpenseLabel(m.tax, msg.expense.Category, msg.expense.Subcategory))
	}
	m.remove(msg.id)
	return m
}

func (m Model) onDiscarded(msg discardedMsg) Model {
	switch {
	case errors.Is(msg.err, common.ErrNotFound):
		m.stats.Stale++
		m.status = fmt.Sprintf("#%d was already processed", msg.id)
	case msg.err != nil:
		m.status = "Error: " + msg.err.Error()
		return m
	default:
		m.stats.Discarded++
		m.status = fmt.Sprintf("Discarded #%d", msg.id)
	}
	m.remove(msg.id)
	return m
}

func (m *Model) current() *model.PendingDecision {
	if m.cursor < 0 || m.cursor >= len(m.pending) {
		return nil
	}
	return &m.pending[m.cursor]
}

func (m *Model) find(id int64) *model.PendingDecision {
	for i := range m.pending {
		if m.pending[i].ID == id {
			return &m.pending[i]
		}
	}
	return nil
}

// remove drops a decision without aliasing the previous slice.
func (m *Model) remove(id int64) {
	kept := make([]model.PendingDecision, 0, len(m.pending))
	for _, p := range m.pending {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	m.pending = kept
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.pending) {
		m.cursor = len(m.pending) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) categoryIndex(key string) int {
	for i, c := range m.tax.Categories() {
		if c.Key == key {
			return i
		}
	}
	return 0
}

// Stats returns what the session did.
func (m Model) Stats() Stats {
	return m.stats
}
