package tui

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	resolveErr error
	discardErr error
	chosen     []string
}

func (s *stubResolver) ResolvePending(_ context.Context, id, _ int64, chosen string) (*model.Expense, error) {
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	s.chosen = append(s.chosen, chosen)
	return &model.Expense{ID: id * 10, Category: chosen, Amount: decimal.NewFromInt(700)}, nil
}

func (s *stubResolver) DiscardPending(context.Context, int64, int64) error {
	return s.discardErr
}

func decisions() []model.PendingDecision {
	return []model.PendingDecision{
		{ID: 1, UserID: 9, Amount: decimal.NewFromInt(700), Note: "такси", PredictedCategory: "transport", PredictedSubcategory: "transport_taxi", PredictedConfidence: 0.71},
		{ID: 2, UserID: 9, Amount: decimal.NewFromInt(300), Note: "круассан и кофе"},
	}
}

func loadedModel(t *testing.T, resolver Resolver) Model {
	t.Helper()
	m := newModel(context.Background(), Config{
		Resolver: resolver,
		Loader:   func(context.Context) ([]model.PendingDecision, error) { return decisions(), nil },
		Taxonomy: taxonomy.Default(),
		Currency: "RUB",
	})
	next, _ := m.Update(pendingLoadedMsg{pending: decisions()})
	return next.(Model)
}

func press(t *testing.T, m Model, keys string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch keys {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// run executes a command and feeds its message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestLoadPending(t *testing.T) {
	m := newModel(context.Background(), Config{
		Loader:   func(context.Context) ([]model.PendingDecision, error) { return decisions(), nil },
		Taxonomy: taxonomy.Default(),
	})
	assert.Equal(t, StateLoading, m.state)
	assert.Contains(t, m.View(), "Loading")

	next, _ := m.Update(m.loadPending()())
	m = next.(Model)
	assert.Equal(t, StateList, m.state)
	assert.Len(t, m.pending, 2)
	assert.Contains(t, m.View(), "Такси 0.71")
}

func TestLoadPending_Error(t *testing.T) {
	m := newModel(context.Background(), Config{Taxonomy: taxonomy.Default()})
	next, _ := m.Update(pendingLoadedMsg{err: fmt.Errorf("disk on fire")})

	assert.Contains(t, next.(Model).View(), "disk on fire")
}

func TestAcceptSuggestion(t *testing.T) {
	resolver := &stubResolver{}
	m := loadedModel(t, resolver)

	m, cmd := press(t, m, "a")
	assert.True(t, m.busy)
	m = run(t, m, cmd)

	assert.False(t, m.busy)
	assert.Equal(t, []string{"transport"}, resolver.chosen)
	assert.Equal(t, Stats{Accepted: 1}, m.Stats())
	require.Len(t, m.pending, 1)
	assert.Equal(t, int64(2), m.pending[0].ID)
	assert.Contains(t, m.status, "Recorded #10")
}

func TestAcceptWithoutSuggestion(t *testing.T) {
	resolver := &stubResolver{}
	m := loadedModel(t, resolver)

	m, _ = press(t, m, "down")
	m, cmd := press(t, m, "a")

	assert.Nil(t, cmd)
	assert.Contains(t, m.status, "No suggestion")
	assert.Empty(t, resolver.chosen)
}

func TestChooseCategory(t *testing.T) {
	resolver := &stubResolver{}
	m := loadedModel(t, resolver)

	m, _ = press(t, m, "enter")
	assert.Equal(t, StateChoosing, m.state)
	assert.Equal(t, 1, m.catCursor)
	assert.Contains(t, m.View(), "(suggested)")

	m, _ = press(t, m, "down")
	m, cmd := press(t, m, "enter")
	m = run(t, m, cmd)

	assert.Equal(t, []string{"home"}, resolver.chosen)
	assert.Equal(t, Stats{Corrected: 1}, m.Stats())
	assert.Equal(t, StateList, m.state)
}

func TestChooserBack(t *testing.T) {
	m := loadedModel(t, &stubResolver{})

	m, _ = press(t, m, "enter")
	m, cmd := press(t, m, "esc")

	assert.Nil(t, cmd)
	assert.Equal(t, StateList, m.state)
	assert.Len(t, m.pending, 2)
}

func TestDiscard(t *testing.T) {
	m := loadedModel(t, &stubResolver{})

	m, cmd := press(t, m, "d")
	m = run(t, m, cmd)

	assert.Equal(t, Stats{Discarded: 1}, m.Stats())
	assert.Len(t, m.pending, 1)
}

func TestStaleDecisionIsDropped(t *testing.T) {
	resolver := &stubResolver{resolveErr: fmt.Errorf("pending 1: %w", common.ErrNotFound)}
	m := loadedModel(t, resolver)

	m, cmd := press(t, m, "a")
	m = run(t, m, cmd)

	assert.Equal(t, Stats{Stale: 1}, m.Stats())
	assert.Len(t, m.pending, 1)
	assert.Contains(t, m.status, "already processed")
}

func TestFailureKeepsDecision(t *testing.T) {
	resolver := &stubResolver{discardErr: fmt.Errorf("database is locked")}
	m := loadedModel(t, resolver)

	m, cmd := press(t, m, "d")
	m = run(t, m, cmd)

	assert.Len(t, m.pending, 2)
	assert.Contains(t, m.status, "database is locked")
}

func TestCursorStaysInRange(t *testing.T) {
	m := loadedModel(t, &stubResolver{})

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "down")
	assert.Equal(t, 1, m.cursor)

	m, cmd := press(t, m, "d")
	m = run(t, m, cmd)
	assert.Equal(t, 0, m.cursor)
}

func TestQuit(t *testing.T) {
	m := loadedModel(t, &stubResolver{})

	m, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}
