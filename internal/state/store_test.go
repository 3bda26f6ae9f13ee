package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/treasury-sim/internal/types"
)

func TestStore_SaveAndQuery(t *testing.T) {
	store := NewStore()
	store.Reset("run-1")

	for m := 0; m < 5; m++ {
		require.NoError(t, store.SaveMonthSnapshot(types.MonthSnapshot{RunID: "run-1", Month: m, Price: float64(m)}))
	}

	recent := store.GetRecentMonths(2)
	require.Len(t, recent, 2)
	assert.Equal(t, 4, recent[0].Month)
	assert.Equal(t, 3, recent[1].Month)

	all := store.GetAllMonths()
	require.Len(t, all, 5)
	assert.Equal(t, 0, all[0].Month)

	snapshot, err := store.GetMonth(2)
	require.NoError(t, err)
	assert.Equal(t, 2.0, snapshot.Price)

	_, err = store.GetMonth(9)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	latest, err := store.GetLatestMonth()
	require.NoError(t, err)
	assert.Equal(t, 4, latest.Month)
}

func TestStore_RejectsForeignRun(t *testing.T) {
	store := NewStore()
	store.Reset("run-1")
	assert.Error(t, store.SaveMonthSnapshot(types.MonthSnapshot{RunID: "run-2", Month: 0}))
	assert.Error(t, store.SaveMonthSnapshot(types.MonthSnapshot{RunID: "run-1", Month: -1}))
}

func TestStore_SummaryAndParameters(t *testing.T) {
	store := NewStore()
	_, err := store.GetRunSummary()
	assert.ErrorIs(t, err, ErrNoSummary)
	_, ok := store.GetParameters()
	assert.False(t, ok)

	store.SaveRunSummary(types.RunSummary{RunID: "run-1", Months: 60})
	summary, err := store.GetRunSummary()
	require.NoError(t, err)
	assert.Equal(t, 60, summary.Months)

	store.SaveParameters(types.SimulationParameters{Months: 60})
	params, ok := store.GetParameters()
	require.True(t, ok)
	assert.Equal(t, 60, params.Months)

	store.Reset("run-2")
	_, err = store.GetRunSummary()
	assert.ErrorIs(t, err, ErrNoSummary)
	assert.Empty(t, store.GetAllMonths())
	assert.Equal(t, "run-2", store.RunID())
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup
	for m := 0; m < 50; m++ {
		wg.Add(2)
		go func(month int) {
			defer wg.Done()
			_ = store.SaveMonthSnapshot(types.MonthSnapshot{Month: month})
		}(m)
		go func() {
			defer wg.Done()
			_ = store.GetRecentMonths(5)
		}()
	}
	wg.Wait()
	assert.Len(t, store.GetAllMonths(), 50)
}
