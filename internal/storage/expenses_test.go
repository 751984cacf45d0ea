package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/fintracker/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertExpense(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	spent := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	expense := newTestExpense(7, "199.99", "food", "food_out", spent)
	expense.AutoCategory = "food"
	expense.AutoSubcategory = "food_out"
	expense.AutoConfidence = 0.89
	expense.IsAutoApplied = true
	expense.NormalizedNote = "кофе"

	require.NoError(t, store.InsertExpense(ctx, expense))
	require.NotZero(t, expense.ID)

	got, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("199.99")))
	assert.Equal(t, "food_out", got.Subcategory)
	assert.Equal(t, "food_out", got.AutoSubcategory)
	assert.InDelta(t, 0.89, got.AutoConfidence, 1e-9)
	assert.True(t, got.IsAutoApplied)
	assert.True(t, got.SpentAt.Equal(spent))

	_, err = store.GetExpense(ctx, expense.ID+100)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestInsertExpense_RejectsInconsistentCategory(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	err := store.InsertExpense(context.Background(), newTestExpense(7, "10", "home", "food_out", time.Now()))
	require.ErrorIs(t, err, ErrInconsistentCategory)
}

func TestGetSummary(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, e := range []struct {
		amount, category, sub string
		offset                time.Duration
	}{
		{"100.10", "food", "food_out", time.Hour},
		{"0.20", "food", "", 2 * time.Hour},
		{"500", "transport", "transport_taxi", 3 * time.Hour},
		{"999", "home", "", 30 * time.Hour}, // next day
	} {
		require.NoError(t, store.InsertExpense(ctx, newTestExpense(1, e.amount, e.category, e.sub, day.Add(e.offset))))
	}

	summary, err := store.GetSummary(ctx, testGroupID, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Count)
	assert.True(t, summary.Total.Equal(decimal.RequireFromString("600.30")), "total %s", summary.Total)
	require.Len(t, summary.Categories, 2)
	assert.Equal(t, "transport", summary.Categories[0].Category)
	assert.Equal(t, "food", summary.Categories[1].Category)
	assert.True(t, summary.Categories[1].Amount.Equal(decimal.RequireFromString("100.30")))

	count, err := store.CountExpenses(ctx, testGroupID, day.Add(24*time.Hour), day.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.GetSummary(ctx, testGroupID, day, day.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestGetLastExpensesAndUndo(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.InsertExpense(ctx, newTestExpense(1, "1", "food", "", now)))
	require.NoError(t, store.InsertExpense(ctx, newTestExpense(2, "2", "food", "", now)))
	require.NoError(t, store.InsertExpense(ctx, newTestExpense(1, "3", "food", "", now)))

	last, err := store.GetLastExpenses(ctx, testGroupID, 2)
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.True(t, last[0].Amount.Equal(decimal.NewFromInt(3)))

	deleted, err := store.DeleteLastExpense(ctx, testGroupID, 1)
	require.NoError(t, err)
	assert.True(t, deleted.Amount.Equal(decimal.NewFromInt(3)))

	deleted, err = store.DeleteLastExpense(ctx, testGroupID, 1)
	require.NoError(t, err)
	assert.True(t, deleted.Amount.Equal(decimal.NewFromInt(1)))

	_, err = store.DeleteLastExpense(ctx, testGroupID, 1)
	require.ErrorIs(t, err, common.ErrNotFound)

	remaining, err := store.GetLastExpenses(ctx, testGroupID, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, int64(2), remaining[0].UserID)
}

func TestGetExpensesByPeriod(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	moscow, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	start := time.Date(2024, 6, 1, 0, 0, 0, 0, moscow)

	inside := newTestExpense(1, "5", "fun", "fun_events", start.Add(time.Minute))
	before := newTestExpense(1, "6", "fun", "", start.Add(-time.Minute))
	require.NoError(t, store.InsertExpense(ctx, inside))
	require.NoError(t, store.InsertExpense(ctx, before))

	got, err := store.GetExpensesByPeriod(ctx, testGroupID, start, start.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inside.ID, got[0].ID)
}
