package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/fintracker/internal/classification"
	"github.com/Veraticus/fintracker/internal/common"
	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/service"
	"github.com/Veraticus/fintracker/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testGroup  int64 = -100500
	testAuthor int64 = 42
	testOther  int64 = 43
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	events []service.Event
	mu     sync.Mutex
}

func (n *recordingNotifier) Notify(_ context.Context, event service.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *recordingNotifier) types() []service.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]service.EventType, len(n.events))
	for i, e := range n.events {
		out[i] = e.Type
	}
	return out
}

func setupEngine(t *testing.T) (*Engine, *storage.SQLiteStorage, *recordingNotifier) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { _ = store.Close() })

	notifier := &recordingNotifier{}
	config := DefaultConfig()
	config.Now = func() time.Time { return testNow }
	return NewWithConfig(store, notifier, config), store, notifier
}

func entry(amount, note string) Entry {
	return Entry{
		GroupID:         testGroup,
		UserID:          testAuthor,
		Amount:          decimal.RequireFromString(amount),
		Note:            note,
		SourceMessageID: 7,
	}
}

func TestClassifyAndRoute_AutoApply(t *testing.T) {
	eng, store, notifier := setupEngine(t)
	ctx := context.Background()

	result, err := eng.ClassifyAndRoute(ctx, entry("350", "Кофе латте"))
	require.NoError(t, err)
	require.NotNil(t, result.AutoApplied)
	assert.Nil(t, result.Pending)
	assert.Equal(t, classification.DecisionAutoApply, result.Decision)

	expense, err := store.GetExpense(ctx, result.AutoApplied.ID)
	require.NoError(t, err)
	assert.Equal(t, "food", expense.Category)
	assert.Equal(t, "food_out", expense.Subcategory)
	assert.Equal(t, "food_out", expense.AutoSubcategory)
	assert.InDelta(t, 0.83, expense.AutoConfidence, 1e-9)
	assert.True(t, expense.IsAutoApplied)
	assert.Equal(t, "кофе латте", expense.NormalizedNote)
	assert.Equal(t, "Кофе латте", expense.Note)
	assert.True(t, expense.SpentAt.Equal(testNow))

	assert.Equal(t, []service.EventType{service.EventExpenseCreated}, notifier.types())
}

func TestClassifyAndRoute_LowConfidenceOpensPending(t *testing.T) {
	eng, store, notifier := setupEngine(t)
	ctx := context.Background()

	result, err := eng.ClassifyAndRoute(ctx, entry("250", "такси"))
	require.NoError(t, err)
	require.NotNil(t, result.Pending)
	assert.Nil(t, result.AutoApplied)
	assert.Equal(t, classification.DecisionAskUser, result.Decision)
	assert.Len(t, result.Choices, 8)

	pending, err := store.GetPending(ctx, result.Pending.ID)
	require.NoError(t, err)
	assert.Equal(t, "transport_taxi", pending.PredictedSubcategory)
	assert.InDelta(t, 0.71, pending.PredictedConfidence, 1e-9)
	assert.Equal(t, testAuthor, pending.UserID)

	expenses, err := store.GetLastExpenses(ctx, testGroup, 10)
	require.NoError(t, err)
	assert.Empty(t, expenses)

	assert.Equal(t, []service.EventType{service.EventPendingOpened}, notifier.types())
}

func TestClassifyAndRoute_FallbackToOther(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	for _, note := range []string{"круассан", "", "!!!"} {
		result, err := eng.ClassifyAndRoute(ctx, entry("99.90", note))
		require.NoError(t, err, note)
		require.NotNil(t, result.AutoApplied, note)
		assert.Equal(t, classification.DecisionFallback, result.Decision)

		expense, err := store.GetExpense(ctx, result.AutoApplied.ID)
		require.NoError(t, err)
		assert.Equal(t, "other", expense.Category)
		assert.Empty(t, expense.Subcategory)
		assert.Empty(t, expense.AutoCategory)
		assert.Empty(t, expense.AutoSubcategory)
		assert.Zero(t, expense.AutoConfidence)
		assert.True(t, expense.IsAutoApplied)
		assert.True(t, expense.Amount.Equal(decimal.RequireFromString("99.9")))
	}
}

func TestClassifyAndRoute_ManualCategory(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	e := entry("1200", "обед с командой")
	e.Category = "fun"
	result, err := eng.ClassifyAndRoute(ctx, e)
	require.NoError(t, err)
	assert.True(t, result.Manual)

	expense, err := store.GetExpense(ctx, result.AutoApplied.ID)
	require.NoError(t, err)
	assert.Equal(t, "fun", expense.Category)
	assert.Empty(t, expense.Subcategory)
	assert.Equal(t, "fun", expense.AutoCategory)
	assert.InDelta(t, 1.0, expense.AutoConfidence, 1e-9)
	assert.False(t, expense.IsAutoApplied)

	e.Category = "snacks"
	_, err = eng.ClassifyAndRoute(ctx, e)
	require.ErrorIs(t, err, common.ErrInvalidCategory)
}

func TestClassifyAndRoute_RejectsBadEntries(t *testing.T) {
	eng, _, _ := setupEngine(t)
	ctx := context.Background()

	_, err := eng.ClassifyAndRoute(ctx, entry("0", "кофе"))
	require.ErrorIs(t, err, common.ErrInvalidAmount)

	bad := entry("10", "кофе")
	bad.GroupID = 0
	_, err = eng.ClassifyAndRoute(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidEntry)
}

func openPending(t *testing.T, eng *Engine, note string) *model.PendingDecision {
	t.Helper()
	result, err := eng.ClassifyAndRoute(context.Background(), entry("500", note))
	require.NoError(t, err)
	require.NotNil(t, result.Pending, "note %q should need confirmation", note)
	return result.Pending
}

func TestResolvePending_KeepsMatchingSubcategory(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	pending := openPending(t, eng, "такси")
	expense, err := eng.ResolvePending(ctx, pending.ID, testAuthor, "transport")
	require.NoError(t, err)
	assert.NotZero(t, expense.ID)
	assert.Equal(t, "transport", expense.Category)
	assert.Equal(t, "transport_taxi", expense.Subcategory)
	assert.Equal(t, "transport_taxi", expense.AutoSubcategory)
	assert.InDelta(t, 0.71, expense.AutoConfidence, 1e-9)
	assert.False(t, expense.IsAutoApplied)
	assert.True(t, expense.Amount.Equal(decimal.NewFromInt(500)))

	stats, err := store.GetFeedbackStats(ctx, testGroup, "такси", "transport_taxi")
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackStats{Total: 1, Agree: 1}, stats)
}

func TestResolvePending_InconsistentChoiceDropsSubcategory(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	pending := openPending(t, eng, "такси")
	expense, err := eng.ResolvePending(ctx, pending.ID, testAuthor, "food")
	require.NoError(t, err)
	assert.Equal(t, "food", expense.Category)
	assert.Empty(t, expense.Subcategory)
	assert.Equal(t, "transport_taxi", expense.AutoSubcategory, "audit keeps the prediction")

	stats, err := store.GetFeedbackStats(ctx, testGroup, "такси", "transport_taxi")
	require.NoError(t, err)
	assert.Zero(t, stats.Total, "no feedback without a resolved subcategory")
}

func TestResolvePending_ExplicitSubcategory(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	pending := openPending(t, eng, "такси")
	expense, err := eng.ResolvePending(ctx, pending.ID, testAuthor, "transport_public")
	require.NoError(t, err)
	assert.Equal(t, "transport", expense.Category)
	assert.Equal(t, "transport_public", expense.Subcategory)

	stats, err := store.GetFeedbackStats(ctx, testGroup, "такси", "transport_public")
	require.NoError(t, err)
	assert.Equal(t, model.FeedbackStats{Total: 1, Agree: 1}, stats)
}

func TestResolvePending_CrossParentSubcategoryTeachesNothing(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	for range 3 {
		pending := openPending(t, eng, "такси")
		require.Equal(t, "transport_taxi", pending.PredictedSubcategory)

		expense, err := eng.ResolvePending(ctx, pending.ID, testAuthor, "food_out")
		require.NoError(t, err)
		assert.Equal(t, "food", expense.Category)
		assert.Equal(t, "food_out", expense.Subcategory)
	}

	stats, err := store.GetFeedbackStats(ctx, testGroup, "такси", "food_out")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	_, err = store.LookupAlias(ctx, testGroup, "такси")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolvePending_KeepsSpendingDate(t *testing.T) {
	eng, _, _ := setupEngine(t)
	ctx := context.Background()

	spentAt := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	dated := entry("300", "такси")
	dated.SpentAt = spentAt

	result, err := eng.ClassifyAndRoute(ctx, dated)
	require.NoError(t, err)
	require.NotNil(t, result.Pending)
	assert.True(t, spentAt.Equal(result.Pending.SpentAt))
	assert.True(t, testNow.Equal(result.Pending.CreatedAt))

	expense, err := eng.ResolvePending(ctx, result.Pending.ID, testAuthor, "transport")
	require.NoError(t, err)
	assert.True(t, spentAt.Equal(expense.SpentAt), "spent_at %v", expense.SpentAt)
}

func TestResolvePending_Twice(t *testing.T) {
	eng, _, _ := setupEngine(t)
	ctx := context.Background()

	pending := openPending(t, eng, "такси")
	first, err := eng.ResolvePending(ctx, pending.ID, testAuthor, "transport")
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	_, err = eng.ResolvePending(ctx, pending.ID, testAuthor, "transport")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolvePending_ForbiddenLeavesStateUntouched(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	pending := openPending(t, eng, "такси")
	_, err := eng.ResolvePending(ctx, pending.ID, testOther, "transport")
	require.ErrorIs(t, err, common.ErrForbidden)

	still, err := store.GetPending(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, still.ID)

	expenses, err := store.GetLastExpenses(ctx, testGroup, 10)
	require.NoError(t, err)
	assert.Empty(t, expenses)

	stats, err := store.GetFeedbackStats(ctx, testGroup, "такси", "transport_taxi")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestResolvePending_InvalidCategory(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	pending := openPending(t, eng, "такси")
	_, err := eng.ResolvePending(ctx, pending.ID, testAuthor, "snacks")
	require.ErrorIs(t, err, common.ErrInvalidCategory)

	_, err = store.GetPending(ctx, pending.ID)
	require.NoError(t, err, "pending decision stays open")

	_, err = eng.ResolvePending(ctx, pending.ID+999, testAuthor, "snacks")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestResolvePending_ConcurrentExactlyOnce(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	pending := openPending(t, eng, "такси")

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		notFound  int
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.ResolvePending(ctx, pending.ID, testAuthor, "transport")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case assert.ErrorIs(t, err, common.ErrNotFound):
				notFound++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, attempts-1, notFound)

	expenses, err := store.GetLastExpenses(ctx, testGroup, 10)
	require.NoError(t, err)
	assert.Len(t, expenses, 1)
}

func TestFeedbackLoopPromotesAlias(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	for i := range 3 {
		pending := openPending(t, eng, "Подписка Нетфликс")
		assert.Equal(t, "subscriptions_digital", pending.PredictedSubcategory)
		_, err := eng.ResolvePending(ctx, pending.ID, testAuthor, "subscriptions")
		require.NoError(t, err)

		_, err = store.LookupAlias(ctx, testGroup, "подписка нетфликс")
		if i < 2 {
			require.ErrorIs(t, err, common.ErrNotFound, "no alias after %d events", i+1)
		} else {
			require.NoError(t, err)
		}
	}

	alias, err := store.LookupAlias(ctx, testGroup, "подписка нетфликс")
	require.NoError(t, err)
	assert.Equal(t, "subscriptions_digital", alias.Subcategory)
	assert.InDelta(t, 0.97, alias.Confidence, 1e-9)
	assert.Equal(t, model.SourceFeedback, alias.Source)

	result, err := eng.ClassifyAndRoute(ctx, entry("599", "подписка нетфликс"))
	require.NoError(t, err)
	require.NotNil(t, result.AutoApplied)
	assert.Equal(t, model.ReasonAlias, result.Prediction.Reason)
	assert.Equal(t, "subscriptions_digital", result.AutoApplied.Subcategory)
	assert.InDelta(t, 0.97, result.AutoApplied.AutoConfidence, 1e-9)

	// Aliases never cross groups.
	other := entry("599", "подписка нетфликс")
	other.GroupID = testGroup - 1
	result, err = eng.ClassifyAndRoute(ctx, other)
	require.NoError(t, err)
	assert.NotNil(t, result.Pending)
}

func TestDiscardPending(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	pending := openPending(t, eng, "такси")
	require.ErrorIs(t, eng.DiscardPending(ctx, pending.ID, testOther), common.ErrForbidden)
	require.NoError(t, eng.DiscardPending(ctx, pending.ID, testAuthor))
	require.ErrorIs(t, eng.DiscardPending(ctx, pending.ID, testAuthor), common.ErrNotFound)

	_, err := eng.ResolvePending(ctx, pending.ID, testAuthor, "transport")
	require.ErrorIs(t, err, common.ErrNotFound)

	expenses, err := store.GetLastExpenses(ctx, testGroup, 10)
	require.NoError(t, err)
	assert.Empty(t, expenses)
}

func TestPredictUsesGroupAliases(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertAlias(ctx, &model.MerchantAlias{
		GroupID: testGroup, Pattern: "кофе", Subcategory: "fun_events", Confidence: 0.97,
	}))

	got := eng.Predict(ctx, testGroup, "Кофе")
	require.NotNil(t, got)
	assert.Equal(t, "fun_events", got.Subcategory)
	assert.Equal(t, model.ReasonAlias, got.Reason)

	got = eng.Predict(ctx, testGroup+1, "Кофе")
	require.NotNil(t, got)
	assert.Equal(t, "food_out", got.Subcategory)
}
