package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/treasury-sim/internal/types"
)

var deep = types.LiquidityDepth{Token: 100_000, Numeraire: 100_000}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultConfig())
	require.NoError(t, err)
	return engine
}

func TestNewEngine_RejectsBadConfig(t *testing.T) {
	bad := []Config{
		{InitialPrice: 1, MinPrice: 0, MaxPrice: 10, ImpactThreshold: 0.1},
		{InitialPrice: 1, MinPrice: 2, MaxPrice: 1, ImpactThreshold: 0.1},
		{InitialPrice: 50, MinPrice: 0.01, MaxPrice: 10, ImpactThreshold: 0.1},
		{InitialPrice: 1, MinPrice: 0.01, MaxPrice: 10, ImpactThreshold: 0},
	}
	for _, cfg := range bad {
		_, err := NewEngine(cfg)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.ErrorIs(t, err, types.ErrInvalidInput)
	}
}

func TestApplyTrade_MovesPrice(t *testing.T) {
	engine := newEngine(t)

	// depth value at price 1 is 200,000, so 10,000 is a 5% move
	price, err := engine.ApplyTrade(1, deep, 10_000)
	require.NoError(t, err)
	assert.InDelta(t, 1.05, price, 1e-12)
	assert.InDelta(t, 1.05, engine.CurrentPrice(), 1e-12)

	price, err = engine.ApplyTrade(1, deep, -5_000)
	require.NoError(t, err)
	assert.Less(t, price, 1.05)
	assert.Len(t, engine.History(1), 2)
}

func TestApplyTrade_SequentialDiffersFromBatched(t *testing.T) {
	sequential := newEngine(t)
	_, err := sequential.ApplyTrade(1, deep, 8_000)
	require.NoError(t, err)
	seqPrice, err := sequential.ApplyTrade(1, deep, 8_000)
	require.NoError(t, err)

	batched := newEngine(t)
	batchPrice, err := batched.ApplyTrade(1, deep, 16_000)
	require.NoError(t, err)

	assert.NotEqual(t, seqPrice, batchPrice)
}

func TestApplyTrade_ImpactExceeded(t *testing.T) {
	engine := newEngine(t)

	price, err := engine.ApplyTrade(1, deep, 30_000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrImpactExceeded))
	assert.True(t, errors.Is(err, types.ErrInvalidState))
	assert.Equal(t, 1.0, price)
	assert.Empty(t, engine.History(1))
}

func TestApplyTrade_InvalidLiquidity(t *testing.T) {
	engine := newEngine(t)

	_, err := engine.ApplyTrade(1, types.LiquidityDepth{Token: -1, Numeraire: 10}, 1)
	assert.ErrorIs(t, err, ErrNegativeLiquidity)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = engine.ApplyTrade(1, types.LiquidityDepth{}, 1)
	assert.ErrorIs(t, err, ErrNoDepth)
}

func TestApplyTrade_ClampsToBounds(t *testing.T) {
	engine, err := NewEngine(Config{InitialPrice: 1, MinPrice: 0.6, MaxPrice: 1.02, ImpactThreshold: 0.5})
	require.NoError(t, err)

	price, err := engine.ApplyTrade(1, deep, 20_000)
	require.NoError(t, err)
	assert.Equal(t, 1.02, price)

	price, err = engine.ApplyTrade(1, deep, -90_000)
	require.NoError(t, err)
	assert.Equal(t, 0.6, price)
}

func TestFinalize_LocksMonth(t *testing.T) {
	engine := newEngine(t)

	_, err := engine.ApplyTrade(3, deep, 10_000)
	require.NoError(t, err)
	final, err := engine.Finalize(3)
	require.NoError(t, err)
	assert.True(t, engine.IsLocked(3))

	_, err = engine.ApplyTrade(3, deep, 1_000)
	assert.ErrorIs(t, err, ErrMonthLocked)
	assert.ErrorIs(t, err, types.ErrInvalidState)

	_, err = engine.Finalize(3)
	assert.ErrorIs(t, err, ErrMonthLocked)

	_, err = engine.ApplyDrift(3, -0.01)
	assert.ErrorIs(t, err, ErrMonthLocked)

	recorded, ok := engine.PriceAt(3)
	require.True(t, ok)
	assert.Equal(t, final, recorded)
}

func TestFinalize_CarriesPriceWithoutTrades(t *testing.T) {
	engine := newEngine(t)

	final, err := engine.Finalize(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, final)

	_, ok := engine.PriceAt(1)
	assert.False(t, ok)
}

func TestApplyDrift(t *testing.T) {
	engine := newEngine(t)

	price, err := engine.ApplyDrift(0, -0.02)
	require.NoError(t, err)
	assert.InDelta(t, 0.98, price, 1e-12)

	_, err = engine.ApplyDrift(0, -1)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestMonthEndPrices_Ordered(t *testing.T) {
	engine := newEngine(t)
	for month := 0; month < 4; month++ {
		_, err := engine.ApplyTrade(month, deep, 2_000)
		require.NoError(t, err)
		_, err = engine.Finalize(month)
		require.NoError(t, err)
	}

	prices := engine.MonthEndPrices()
	require.Len(t, prices, 4)
	for i, p := range prices {
		assert.Equal(t, i, p.Month)
	}
	assert.Greater(t, prices[3].Price, prices[0].Price)
}

func TestApplyTrade_RejectsMonthBeforeLatestFinalized(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.ApplyTrade(5, deep, 2_000)
	require.NoError(t, err)
	final, err := engine.Finalize(5)
	require.NoError(t, err)

	_, err = engine.ApplyTrade(3, deep, 10_000)
	assert.ErrorIs(t, err, ErrMonthLocked)
	assert.ErrorIs(t, err, types.ErrInvalidState)

	_, err = engine.ApplyDrift(3, -0.01)
	assert.ErrorIs(t, err, ErrMonthLocked)

	_, err = engine.Finalize(3)
	assert.ErrorIs(t, err, ErrMonthLocked)

	assert.Equal(t, final, engine.CurrentPrice())
	assert.Empty(t, engine.History(3))
	assert.False(t, engine.IsLocked(3))

	// later months stay open
	_, err = engine.ApplyTrade(6, deep, 2_000)
	assert.NoError(t, err)
}
