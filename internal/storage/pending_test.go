package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPending(userID int64) *model.PendingDecision {
	return &model.PendingDecision{
		GroupID:              testGroupID,
		UserID:               userID,
		Amount:               decimal.RequireFromString("450.50"),
		Note:                 "Кофе и круассан",
		NormalizedNote:       "кофе и круассан",
		PredictedCategory:    "food",
		PredictedSubcategory: "food_out",
		PredictedConfidence:  0.71,
		SourceMessageID:      99,
	}
}

func TestPendingLifecycle(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	pending := newTestPending(7)
	require.NoError(t, store.CreatePending(ctx, pending))
	require.NotZero(t, pending.ID)

	got, err := store.GetPending(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.UserID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("450.5")), "amount %s", got.Amount)
	assert.Equal(t, "food_out", got.PredictedSubcategory)
	assert.InDelta(t, 0.71, got.PredictedConfidence, 1e-9)
	assert.Equal(t, int64(99), got.SourceMessageID)

	list, err := store.ListPending(ctx, testGroupID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, store.DeletePending(ctx, pending.ID))

	_, err = store.GetPending(ctx, pending.ID)
	require.ErrorIs(t, err, common.ErrNotFound)

	err = store.DeletePending(ctx, pending.ID)
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreatePending_KeepsSpendingDate(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	spentAt := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	createdAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	dated := newTestPending(7)
	dated.SpentAt = spentAt
	dated.CreatedAt = createdAt
	require.NoError(t, store.CreatePending(ctx, dated))

	got, err := store.GetPending(ctx, dated.ID)
	require.NoError(t, err)
	assert.True(t, spentAt.Equal(got.SpentAt), "spent_at %v", got.SpentAt)
	assert.True(t, createdAt.Equal(got.CreatedAt), "created_at %v", got.CreatedAt)

	undated := newTestPending(7)
	undated.CreatedAt = createdAt
	require.NoError(t, store.CreatePending(ctx, undated))

	got, err = store.GetPending(ctx, undated.ID)
	require.NoError(t, err)
	assert.True(t, createdAt.Equal(got.SpentAt), "spent_at defaults to created_at, got %v", got.SpentAt)
}

func TestCreatePending_WithoutPrediction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	pending := newTestPending(7)
	pending.PredictedCategory = ""
	pending.PredictedSubcategory = ""
	pending.PredictedConfidence = 0
	require.NoError(t, store.CreatePending(ctx, pending))

	got, err := store.GetPending(ctx, pending.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Prediction())
}

func TestCreatePending_RejectsInconsistentPrediction(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	pending := newTestPending(7)
	pending.PredictedCategory = "transport"
	err := store.CreatePending(context.Background(), pending)
	require.ErrorIs(t, err, ErrInvalidPending)
	require.ErrorIs(t, err, ErrInconsistentCategory)
}

func TestListPending_AllGroups(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	first := newTestPending(1)
	second := newTestPending(2)
	second.GroupID = -2002
	require.NoError(t, store.CreatePending(ctx, first))
	require.NoError(t, store.CreatePending(ctx, second))

	all, err := store.ListPending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)

	only, err := store.ListPending(ctx, -2002)
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, second.ID, only[0].ID)
}
