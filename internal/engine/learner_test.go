package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/Veraticus/fintracker/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLearner_PromotionThreshold(t *testing.T) {
	eng, store, _ := setupEngine(t)
	learner := eng.Learner()
	ctx := context.Background()
	note := "бургер кинг"

	record := func(chosen string) {
		t.Helper()
		require.NoError(t, learner.RecordFeedback(ctx, testGroup, note, "food_out", chosen))
	}
	hasAlias := func() (string, bool) {
		alias, err := store.LookupAlias(ctx, testGroup, note)
		if err != nil {
			require.ErrorIs(t, err, common.ErrNotFound)
			return "", false
		}
		return alias.Subcategory, true
	}

	record("food_out")
	record("food_out")
	record("fun_events")
	_, ok := hasAlias()
	assert.False(t, ok, "2 of 3 agreeing is below 0.8")

	record("food_out")
	_, ok = hasAlias()
	assert.False(t, ok, "3 of 4 agreeing is below 0.8")

	record("food_out")
	sub, ok := hasAlias()
	require.True(t, ok, "4 of 5 agreeing reaches 0.8")
	assert.Equal(t, "food_out", sub)

	// History without decay keeps the alias until a new majority forms.
	record("fun_events")
	record("fun_events")
	sub, _ = hasAlias()
	assert.Equal(t, "food_out", sub)
}

func TestLearner_IgnoresEmptyInput(t *testing.T) {
	eng, store, _ := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Learner().RecordFeedback(ctx, testGroup, "", "food_out", "food_out"))
	require.NoError(t, eng.Learner().RecordFeedback(ctx, testGroup, "кофе", "food_out", ""))

	stats, err := store.GetFeedbackStats(ctx, testGroup, "кофе", "food_out")
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestLearner_OverwritesAliasOnNewMajority(t *testing.T) {
	eng, store, _ := setupEngine(t)
	learner := eng.Learner()
	ctx := context.Background()
	note := "ozon"

	for range 3 {
		require.NoError(t, learner.RecordFeedback(ctx, testGroup, note, "", "shopping_other"))
	}
	for range 12 {
		require.NoError(t, learner.RecordFeedback(ctx, testGroup, note, "", "shopping_clothes"))
	}

	alias, err := store.LookupAlias(ctx, testGroup, note)
	require.NoError(t, err)
	assert.Equal(t, "shopping_clothes", alias.Subcategory)
}

func TestLearner_ConcurrentFeedbackKeepsEveryEvent(t *testing.T) {
	eng, store, _ := setupEngine(t)
	learner := eng.Learner()
	ctx := context.Background()
	note := "самокат"

	const calls = 12
	var wg sync.WaitGroup
	errs := make(chan error, calls)
	for range calls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- learner.RecordFeedback(ctx, testGroup, note, "transport_taxi", "transport_taxi")
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stats, err := store.GetFeedbackStats(ctx, testGroup, note, "transport_taxi")
	require.NoError(t, err)
	assert.Equal(t, calls, stats.Total)
	assert.Equal(t, calls, stats.Agree)

	aliases, err := store.GetAliases(ctx, testGroup)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	assert.Equal(t, note, aliases[0].Pattern)
	assert.Equal(t, "transport_taxi", aliases[0].Subcategory)
}
