package reserve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/treasury-sim/internal/types"
)

func position(t *testing.T, counterparty string, notional, target, base, max float64) types.LiquidityPosition {
	t.Helper()
	p, err := NewLiquidityPosition(counterparty, notional, target, base, max, 1, 12, 1.0)
	require.NoError(t, err)
	return p
}

func TestNewLiquidityPosition_InitialBalances(t *testing.T) {
	p := position(t, "Deal1", 1_000_000, 0.25, 0.5, 1.0)
	assert.InDelta(t, 250_000, p.TokenBalance, 1e-9)
	assert.InDelta(t, 750_000, p.NumeraireBalance, 1e-9)
	assert.True(t, p.IsActive(1))
	assert.True(t, p.IsActive(12))
	assert.False(t, p.IsActive(13))
	assert.False(t, p.IsActive(0))
}

func TestNewLiquidityPosition_Validation(t *testing.T) {
	_, err := NewLiquidityPosition("x", 1_000, 0.6, 0.1, 0.2, 0, 12, 1)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = NewLiquidityPosition("x", 1_000, 0.3, 0.5, 0.2, 0, 12, 1)
	assert.ErrorIs(t, err, ErrInvalidPosition)
	_, err = NewLiquidityPosition("x", 1_000, 0.3, 0.1, 0.2, 0, 0, 1)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	_, err = NewLiquidityPosition("x", 1_000, 0.3, 0.1, 0.2, 0, 12, 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)
}

func TestPositionBook_RejectsDuplicates(t *testing.T) {
	p := position(t, "Deal1", 1_000, 0.25, 0.5, 1.0)
	_, err := NewPositionBook([]types.LiquidityPosition{p, p})
	assert.ErrorIs(t, err, ErrDuplicatePosition)
}

func TestResolveBranch_Deadband(t *testing.T) {
	base := types.LiquidityPosition{TargetRatio: 0.25}

	cases := []struct {
		name      string
		token     float64
		numeraire float64
		expected  types.ConcentrationBranch
	}{
		{"well below", 10, 90, types.BelowTarget},
		{"just below cutoff", 22.4, 77.6, types.BelowTarget},
		{"at lower cutoff", 22.5, 77.5, types.Balanced},
		{"on target", 25, 75, types.Balanced},
		{"at upper cutoff", 27.5, 72.5, types.Balanced},
		{"just above cutoff", 27.6, 72.4, types.AboveTarget},
		{"well above", 50, 50, types.AboveTarget},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			p.TokenBalance = tc.token
			p.NumeraireBalance = tc.numeraire
			assert.Equal(t, tc.expected, ResolveBranch(p, 1.0))
		})
	}
}

func TestConcentrationFor_Branches(t *testing.T) {
	p := position(t, "Deal2", 2_000_000, 0.3, 0.4, 0.8)

	c, branch, err := ConcentrationFor(p, 1.0)
	require.NoError(t, err)
	assert.Equal(t, types.Balanced, branch)
	assert.InDelta(t, c.Token, c.Numeraire, 1e-12)

	// token doubles in price: token heavy
	c, branch, err = ConcentrationFor(p, 2.0)
	require.NoError(t, err)
	assert.Equal(t, types.AboveTarget, branch)
	assert.Greater(t, c.Token, c.Numeraire)

	// token halves: token light
	c, branch, err = ConcentrationFor(p, 0.5)
	require.NoError(t, err)
	assert.Equal(t, types.BelowTarget, branch)
	assert.Greater(t, c.Numeraire, c.Token)
}

func TestPositionBook_LiquidityWithin(t *testing.T) {
	book, err := NewPositionBook([]types.LiquidityPosition{
		position(t, "Deal1", 1_000_000, 0.25, 0.5, 1.0),
		position(t, "Deal2", 2_000_000, 0.3, 0.4, 0.8),
	})
	require.NoError(t, err)

	for _, price := range []float64{0.5, 1.0, 2.0} {
		depth, err := book.LiquidityWithin(1, 5, price)
		require.NoError(t, err)
		assert.Greater(t, depth.Token, 0.0)
		assert.Greater(t, depth.Numeraire, 0.0)
	}

	one, _, err := book.PositionLiquidityWithin("Deal1", 5, 1.0)
	require.NoError(t, err)
	two, _, err := book.PositionLiquidityWithin("Deal2", 5, 1.0)
	require.NoError(t, err)
	all, err := book.LiquidityWithin(1, 5, 1.0)
	require.NoError(t, err)
	assert.InDelta(t, one.Token+two.Token, all.Token, 1e-6)

	inactive, err := book.LiquidityWithin(40, 5, 1.0)
	require.NoError(t, err)
	assert.Equal(t, types.LiquidityDepth{}, inactive)

	_, _, err = book.PositionLiquidityWithin("missing", 5, 1.0)
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestPositionBook_TotalLiquidity(t *testing.T) {
	book, err := NewPositionBook([]types.LiquidityPosition{position(t, "Deal1", 1_000_000, 0.25, 0.5, 1.0)})
	require.NoError(t, err)

	assert.InDelta(t, 1_000_000, book.TotalLiquidity(1, 1.0), 1e-6)
	assert.InDelta(t, 1_250_000, book.TotalLiquidity(1, 2.0), 1e-6)
	assert.Equal(t, 0.0, book.TotalLiquidity(0, 1.0))
}

func TestPositionBook_TokenNeeded(t *testing.T) {
	empty := types.LiquidityPosition{
		Counterparty: "empty", Notional: 100_000, NumeraireBalance: 100_000,
		TargetRatio: 0.25, StartMonth: 0, DurationMonths: 12,
	}
	onTarget := position(t, "onTarget", 1_000_000, 0.25, 0.5, 1.0)
	book, err := NewPositionBook([]types.LiquidityPosition{empty, onTarget})
	require.NoError(t, err)

	deficits, total := book.TokenNeeded(1, 1.0)
	// no token held: target*numeraire/(1-target)
	require.Contains(t, deficits, "empty")
	assert.InDelta(t, 0.25*100_000/0.75, deficits["empty"], 1e-6)
	assert.NotContains(t, deficits, "onTarget")
	assert.InDelta(t, deficits["empty"], total, 1e-9)

	// after the price halves the on-target position is short too
	deficits, total = book.TokenNeeded(1, 0.5)
	require.Contains(t, deficits, "onTarget")
	assert.InDelta(t, deficits["empty"]+deficits["onTarget"], total, 1e-6)
}

func TestPositionBook_DistributePurchased(t *testing.T) {
	a := types.LiquidityPosition{Counterparty: "a", Notional: 100, NumeraireBalance: 100, TargetRatio: 0.2, DurationMonths: 12}
	b := types.LiquidityPosition{Counterparty: "b", Notional: 300, NumeraireBalance: 300, TargetRatio: 0.2, DurationMonths: 12}
	book, err := NewPositionBook([]types.LiquidityPosition{a, b})
	require.NoError(t, err)

	deficits, total := book.TokenNeeded(0, 1.0)
	require.InDelta(t, 100.0, total, 1e-9)

	credited, err := book.DistributePurchased(40, deficits)
	require.NoError(t, err)
	assert.InDelta(t, 10, credited["a"], 1e-9)
	assert.InDelta(t, 30, credited["b"], 1e-9)

	pa, _ := book.Position("a")
	assert.InDelta(t, 10, pa.TokenBalance, 1e-9)

	credited, err = book.DistributePurchased(10, map[string]float64{})
	require.NoError(t, err)
	assert.Empty(t, credited)

	_, err = book.DistributePurchased(10, map[string]float64{"ghost": 1})
	assert.ErrorIs(t, err, ErrUnknownPosition)
}

func TestPositionBook_RecordMonth(t *testing.T) {
	book, err := NewPositionBook([]types.LiquidityPosition{position(t, "Deal1", 1_000, 0.25, 0.5, 1.0)})
	require.NoError(t, err)

	book.RecordMonth(1)
	book.RecordMonth(20)
	assert.Len(t, book.BalanceHistory(1), 1)
	assert.Empty(t, book.BalanceHistory(20))
}
