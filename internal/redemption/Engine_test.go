package redemption

import (
	"math"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/treasury-sim/internal/reserve"
	"github.com/elys-network/treasury-sim/internal/types"
	"github.com/elys-network/treasury-sim/internal/utils"
)

type recordingPool struct {
	balances types.ReserveBalances
	rates    map[int]float64
}

func newRecordingPool() *recordingPool {
	return &recordingPool{
		balances: types.ReserveBalances{Token: 1_000_000, Numeraire: 500_000},
		rates:    make(map[int]float64),
	}
}

func (p *recordingPool) Balances() types.ReserveBalances { return p.balances }

func (p *recordingPool) Redeem(month int, rate float64) (types.ReserveBalances, error) {
	p.rates[month] = rate
	paid := types.ReserveBalances{Token: p.balances.Token * rate, Numeraire: p.balances.Numeraire * rate}
	p.balances.Token -= paid.Token
	p.balances.Numeraire -= paid.Numeraire
	return paid, nil
}

func dec(v int64) sdkmath.LegacyDec { return sdkmath.LegacyNewDec(v) }

func allocation(counterparty string, amount int64, start, vesting int, threshold float64) types.BondAllocation {
	return types.BondAllocation{
		Counterparty:  counterparty,
		TotalAmount:   dec(amount),
		StartMonth:    start,
		VestingMonths: vesting,
		IRRThreshold:  threshold,
	}
}

func newEngine(t *testing.T, allocations ...types.BondAllocation) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{TotalSupply: dec(500_000), Window: window}, allocations)
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := NewEngine(Config{TotalSupply: dec(100), Window: window}, []types.BondAllocation{
		allocation("a", 60, 0, 0, 10),
		allocation("b", 50, 0, 0, 10),
	})
	assert.ErrorIs(t, err, ErrOverAllocated)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = NewEngine(Config{TotalSupply: dec(100), Window: window}, []types.BondAllocation{
		allocation("a", 10, 0, 0, 10),
		allocation("a", 10, 0, 0, 10),
	})
	assert.ErrorIs(t, err, ErrDuplicateAllocation)

	_, err = NewEngine(Config{TotalSupply: dec(100), Window: Window{StartMonth: 10, EndMonth: 10}}, nil)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewEngine(Config{TotalSupply: sdkmath.LegacyZeroDec(), Window: window}, nil)
	assert.ErrorIs(t, err, ErrInvalidSupply)

	bad := allocation("a", 10, 5, 6, 10)
	bad.UnlockMonth = 8
	_, err = NewEngine(Config{TotalSupply: dec(100), Window: window}, []types.BondAllocation{bad})
	assert.ErrorIs(t, err, ErrInvalidAllocation)

	_, err = NewEngine(Config{TotalSupply: dec(100), Window: window}, []types.BondAllocation{allocation("a", -1, 0, 0, 10)})
	assert.ErrorIs(t, err, ErrInvalidAllocation)
}

func TestDistribute_Cliff(t *testing.T) {
	engine := newEngine(t, allocation("a", 100_000, 1, 6, 10))

	for month := 0; month < 7; month++ {
		distributed := engine.Distribute(month)
		assert.Empty(t, distributed)
		a, _ := engine.Allocation("a")
		assert.True(t, a.DistributedAmount.IsZero(), "month %d", month)
		assert.Equal(t, types.AllocationPending, a.Status)
	}

	distributed := engine.Distribute(7)
	require.Contains(t, distributed, "a")
	a, _ := engine.Allocation("a")
	assert.True(t, a.DistributedAmount.Equal(dec(100_000)))
	assert.Equal(t, types.AllocationDistributed, a.Status)

	assert.Empty(t, engine.Distribute(8))
	assert.Len(t, engine.DistributionHistory(), 1)
}

func runUntil(t *testing.T, engine *Engine, pool ReservePool, months ...int) []StepResult {
	t.Helper()
	results := make([]StepResult, 0, len(months))
	for _, m := range months {
		result, err := engine.Step(m, pool, 1.0)
		require.NoError(t, err)
		results = append(results, result)
	}
	return results
}

func TestStep_RedeemsWhenIRRBelowThreshold(t *testing.T) {
	engine := newEngine(t, allocation("a", 100_000, 1, 6, 75))
	pool := newRecordingPool()

	runUntil(t, engine, pool, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11)
	results := runUntil(t, engine, pool, 25)

	assert.InDelta(t, 70.1, results[0].ExpectedIRR, 0.1)
	require.Contains(t, results[0].Redeemed, "a")
	assert.True(t, results[0].RedeemedTotal.Equal(dec(100_000)))
	assert.InDelta(t, 1.0, pool.rates[25], 1e-12)
	assert.InDelta(t, 1_000_000, results[0].Settlement.Token, 1e-6)

	a, _ := engine.Allocation("a")
	assert.True(t, a.IsRedeemed())
	assert.True(t, a.DistributedAmount.IsZero())

	later := runUntil(t, engine, pool, 26, 30, 40, 48)
	for _, r := range later {
		assert.Empty(t, r.Redeemed)
	}
	assert.True(t, engine.RedeemedTotal().Equal(dec(100_000)))
}

func TestStep_HoldsWhenIRRAboveThreshold(t *testing.T) {
	engine := newEngine(t, allocation("a", 100_000, 1, 6, 65))
	pool := newRecordingPool()

	runUntil(t, engine, pool, 7)
	results := runUntil(t, engine, pool, 25)

	assert.Empty(t, results[0].Redeemed)
	assert.NotContains(t, pool.rates, 25)
	a, _ := engine.Allocation("a")
	assert.Equal(t, types.AllocationDistributed, a.Status)
}

func TestStep_KnownMonthsAgainstThreshold(t *testing.T) {
	engine := newEngine(t, allocation("a", 100_000, 0, 0, 60))
	pool := newRecordingPool()

	results := runUntil(t, engine, pool, 15)
	assert.InDelta(t, 146.8, results[0].ExpectedIRR, 0.1)
	assert.Empty(t, results[0].Redeemed)

	results = runUntil(t, engine, pool, 40)
	assert.InDelta(t, 45.8, results[0].ExpectedIRR, 0.1)
	assert.Contains(t, results[0].Redeemed, "a")
}

func TestStep_OutsideWindowNotEvaluated(t *testing.T) {
	engine := newEngine(t, allocation("a", 100_000, 0, 0, 1_000))
	pool := newRecordingPool()

	results := runUntil(t, engine, pool, 0, 5, 11, 49, 55)
	for _, r := range results {
		assert.False(t, r.Evaluated)
		assert.Empty(t, r.Redeemed)
	}
	assert.Empty(t, pool.rates)
}

func TestStep_RejectsReplayedMonth(t *testing.T) {
	engine := newEngine(t, allocation("a", 100, 0, 0, 10))
	pool := newRecordingPool()

	runUntil(t, engine, pool, 3)
	_, err := engine.Step(3, pool, 1.0)
	assert.ErrorIs(t, err, ErrMonthAlreadyProcessed)
	assert.ErrorIs(t, err, types.ErrInvalidState)
	_, err = engine.Step(2, pool, 1.0)
	assert.ErrorIs(t, err, ErrMonthAlreadyProcessed)
}

func TestStep_PartialSettlementAgainstDeepPool(t *testing.T) {
	engine := newEngine(t,
		allocation("low", 100_000, 0, 0, 120),
		allocation("high", 300_000, 0, 0, 10),
	)
	pool, err := reserve.NewDeepPool(reserve.DeepPoolConfig{InitialTokenBalance: 1_000_000, InitialNumeraireBalance: 400_000})
	require.NoError(t, err)

	runUntil(t, engine, pool, 0)
	results := runUntil(t, engine, pool, 25)

	assert.Contains(t, results[0].Redeemed, "low")
	assert.NotContains(t, results[0].Redeemed, "high")
	// a quarter of outstanding units redeemed
	assert.InDelta(t, 250_000, results[0].Settlement.Token, 1e-6)
	assert.InDelta(t, 100_000, results[0].Settlement.Numeraire, 1e-6)
	assert.InDelta(t, 300_000, pool.Balances().Numeraire, 1e-6)
	assert.Equal(t, map[int]float64{25: 0.25}, pool.RedemptionHistory())
}

func TestStep_SupplyConservation(t *testing.T) {
	engine := newEngine(t,
		allocation("a", 123_457, 0, 3, 200),
		allocation("b", 98_765, 2, 10, 80),
		allocation("c", 77_777, 4, 20, 50),
		allocation("d", 50_001, 0, 30, 0),
	)
	pool := newRecordingPool()

	total := engine.TotalSupply()
	for month := 0; month < 60; month++ {
		if month == 12 {
			// the window start month redeems everything outstanding; skip it to exercise partial redemptions
			continue
		}
		_, err := engine.Step(month, pool, 1.0)
		require.NoError(t, err)

		redeemed := sdkmath.LegacyZeroDec()
		for _, byCounterparty := range engine.RedemptionHistory() {
			for _, amount := range byCounterparty {
				redeemed = redeemed.Add(amount)
			}
		}
		assert.True(t, engine.RemainingSupply().Equal(total.Sub(redeemed)), "month %d", month)
	}

	history := engine.SupplyHistory()
	require.NotEmpty(t, history)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].Remaining.LTE(history[i-1].Remaining))
	}
	assert.True(t, engine.RemainingSupply().Equal(total.Sub(engine.RedeemedTotal())))
}

func TestWeightedAvgIRRThreshold(t *testing.T) {
	engine := newEngine(t,
		allocation("a", 100_000, 0, 0, 10),
		allocation("b", 200_000, 0, 0, 20),
		allocation("pending", 100_000, 0, 50, 90),
	)
	avg, err := engine.WeightedAvgIRRThreshold()
	require.NoError(t, err)
	assert.Equal(t, 0.0, avg)

	engine.Distribute(0)
	avg, err = engine.WeightedAvgIRRThreshold()
	require.NoError(t, err)
	assert.InDelta(t, 16.67, avg, 0.01)
}

func TestBestCaseIRR(t *testing.T) {
	a := allocation("a", 100, 0, 6, 10)
	a.UnlockMonth = 24
	engine := newEngine(t, a)

	irr, err := engine.BestCaseIRR(1.0, 1.21, 12)
	require.NoError(t, err)
	assert.InDelta(t, 21.0, irr, 1e-9)

	irr, err = engine.BestCaseIRR(1.0, 1.21, 30)
	require.NoError(t, err)
	assert.Equal(t, 0.0, irr)

	irr, err = newEngine(t).BestCaseIRR(1.0, 2.0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, irr)
}

func TestEvaluateRedemptions_NoOutstandingIsRedeemNow(t *testing.T) {
	engine := newEngine(t)
	redeemed, irr, err := engine.EvaluateRedemptions(20, types.ReserveBalances{Token: 10, Numeraire: 10}, 1.0)
	require.NoError(t, err)
	assert.Empty(t, redeemed)
	assert.True(t, math.IsInf(irr, -1))
}

func TestWeightedAvgIRRThreshold_ReportsConversionFailure(t *testing.T) {
	engine := newEngine(t, allocation("a", 100_000, 0, 0, 10))
	engine.Distribute(0)
	engine.allocations[0].DistributedAmount = sdkmath.LegacyDec{}

	_, err := engine.WeightedAvgIRRThreshold()
	assert.ErrorIs(t, err, utils.ErrAmountNil)

	engine.allocations[0].TotalAmount = sdkmath.LegacyDec{}
	_, err = engine.BestCaseIRR(1.0, 1.1, 0)
	assert.ErrorIs(t, err, utils.ErrAmountNil)
}

func TestStep_FailedSettlementLeavesEngineUntouched(t *testing.T) {
	engine := newEngine(t, allocation("a", 100, 0, 12, 1_000))
	pool, err := reserve.NewDeepPool(reserve.DeepPoolConfig{InitialTokenBalance: 1_000, InitialNumeraireBalance: 1_000})
	require.NoError(t, err)

	// another caller already redeemed against the pool this month
	_, err = pool.Redeem(12, 0.1)
	require.NoError(t, err)
	before := pool.Balances()

	_, err = engine.Step(12, pool, 1.0)
	require.ErrorIs(t, err, reserve.ErrAlreadyRedeemed)
	assert.ErrorIs(t, err, types.ErrInvalidState)

	a, ok := engine.Allocation("a")
	require.True(t, ok)
	assert.Equal(t, types.AllocationPending, a.Status)
	assert.True(t, a.DistributedAmount.IsZero())
	assert.True(t, engine.RemainingSupply().Equal(dec(500_000)))
	assert.True(t, engine.RedeemedTotal().IsZero())
	assert.Empty(t, engine.RedemptionHistory())
	assert.Empty(t, engine.DistributionHistory())
	assert.Equal(t, before, pool.Balances())

	// the next month distributes, redeems and pays out in full
	result, err := engine.Step(13, pool, 1.0)
	require.NoError(t, err)
	assert.Contains(t, result.Distributed, "a")
	require.Contains(t, result.Redeemed, "a")
	assert.True(t, engine.RemainingSupply().Equal(dec(499_900)))
	assert.InDelta(t, before.Token, result.Settlement.Token, 1e-9)
	assert.InDelta(t, before.Numeraire, result.Settlement.Numeraire, 1e-9)
	assert.Zero(t, pool.Balances().Token)
}
