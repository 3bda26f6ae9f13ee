/*
This file contains the bond redemption engine.

Allocations move Pending -> Distributed on their cliff month and Distributed -> Redeemed when
the expected IRR of holding to the end of the redemption window drops below the allocation's
threshold. Supply is tracked in LegacyDec so remaining supply always equals total supply minus
every redemption to date.
*/

package redemption

import (
	"fmt"
	"math"
	"sort"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/types"
	"github.com/elys-network/treasury-sim/internal/utils"
)

var bondLogger = logger.GetForComponent("bond_redemption")

var (
	ErrOverAllocated         = fmt.Errorf("%w: allocated total exceeds bond supply", types.ErrInvalidInput)
	ErrDuplicateAllocation   = fmt.Errorf("%w: duplicate allocation counterparty", types.ErrInvalidInput)
	ErrInvalidAllocation     = fmt.Errorf("%w: invalid bond allocation", types.ErrInvalidInput)
	ErrInvalidWindow         = fmt.Errorf("%w: redemption window end must be after start", types.ErrInvalidInput)
	ErrInvalidSupply         = fmt.Errorf("%w: bond supply must be positive", types.ErrInvalidInput)
	ErrMonthAlreadyProcessed = fmt.Errorf("%w: month already processed or earlier than last processed month", types.ErrInvalidState)
)

// ReservePool is the pool redemptions are settled against.
type ReservePool interface {
	Balances() types.ReserveBalances
	Redeem(month int, rate float64) (types.ReserveBalances, error)
}

// Config holds the bond supply and the redemption window.
type Config struct {
	TotalSupply sdkmath.LegacyDec
	Window      Window
}

// StepResult is everything one month of the engine produced.
type StepResult struct {
	Month           int                          `json:"month"`
	Distributed     map[string]sdkmath.LegacyDec `json:"distributed"`
	Redeemed        map[string]sdkmath.LegacyDec `json:"redeemed"`
	RedeemedTotal   sdkmath.LegacyDec            `json:"redeemed_total"`
	ExpectedIRR     float64                      `json:"expected_irr"`
	Evaluated       bool                         `json:"evaluated"` // month was inside the redemption window
	Settlement      types.ReserveBalances        `json:"settlement"`
	RemainingSupply sdkmath.LegacyDec            `json:"remaining_supply"`
}

// Engine is not safe for concurrent use.
type Engine struct {
	config      Config
	allocations []*types.BondAllocation
	index       map[string]int

	remaining     sdkmath.LegacyDec
	redeemedTotal sdkmath.LegacyDec

	distributionHistory map[int]map[string]sdkmath.LegacyDec
	redemptionHistory   map[int]map[string]sdkmath.LegacyDec
	supplyHistory       map[int]sdkmath.LegacyDec
	distributedAt       map[string]int // counterparty -> month its distribution was recorded

	lastMonth int
	stepped   bool
}

// NewEngine validates every allocation and the supply before accepting them.
func NewEngine(config Config, allocations []types.BondAllocation) (*Engine, error) {
	if config.TotalSupply.IsNil() || !config.TotalSupply.IsPositive() {
		return nil, ErrInvalidSupply
	}
	if config.Window.EndMonth <= config.Window.StartMonth {
		return nil, fmt.Errorf("%w: [%d, %d]", ErrInvalidWindow, config.Window.StartMonth, config.Window.EndMonth)
	}

	engine := &Engine{
		config:              config,
		index:               make(map[string]int),
		remaining:           config.TotalSupply,
		redeemedTotal:       sdkmath.LegacyZeroDec(),
		distributionHistory: make(map[int]map[string]sdkmath.LegacyDec),
		redemptionHistory:   make(map[int]map[string]sdkmath.LegacyDec),
		supplyHistory:       make(map[int]sdkmath.LegacyDec),
		distributedAt:       make(map[string]int),
	}

	allocated := sdkmath.LegacyZeroDec()
	for _, a := range allocations {
		if err := validateAllocation(a); err != nil {
			return nil, err
		}
		if _, exists := engine.index[a.Counterparty]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAllocation, a.Counterparty)
		}
		allocation := a
		allocation.DistributedAmount = sdkmath.LegacyZeroDec()
		allocation.Status = types.AllocationPending
		engine.index[a.Counterparty] = len(engine.allocations)
		engine.allocations = append(engine.allocations, &allocation)
		allocated = allocated.Add(a.TotalAmount)
	}

	if allocated.GT(config.TotalSupply) {
		return nil, fmt.Errorf("%w: allocated %s, supply %s", ErrOverAllocated, allocated, config.TotalSupply)
	}

	bondLogger.Debug().
		Str("supply", config.TotalSupply.String()).
		Str("allocated", allocated.String()).
		Int("allocations", len(engine.allocations)).
		Msg("Redemption engine initialized")

	return engine, nil
}

func validateAllocation(a types.BondAllocation) error {
	switch {
	case a.Counterparty == "":
		return fmt.Errorf("%w: counterparty is empty", ErrInvalidAllocation)
	case a.TotalAmount.IsNil() || a.TotalAmount.IsNegative():
		return fmt.Errorf("%w: %s amount must be non-negative", ErrInvalidAllocation, a.Counterparty)
	case a.StartMonth < 0 || a.VestingMonths < 0:
		return fmt.Errorf("%w: %s start %d, vesting %d", ErrInvalidAllocation, a.Counterparty, a.StartMonth, a.VestingMonths)
	case a.UnlockMonth != 0 && a.UnlockMonth < a.VestMonth():
		return fmt.Errorf("%w: %s unlock month %d before vest month %d", ErrInvalidAllocation, a.Counterparty, a.UnlockMonth, a.VestMonth())
	case math.IsNaN(a.IRRThreshold):
		return fmt.Errorf("%w: %s threshold is NaN", ErrInvalidAllocation, a.Counterparty)
	}
	return nil
}

// Window returns the redemption window.
func (e *Engine) Window() Window {
	return e.config.Window
}

// TotalSupply is the fixed bond supply.
func (e *Engine) TotalSupply() sdkmath.LegacyDec {
	return e.config.TotalSupply
}

// RemainingSupply is total supply minus every redemption to date.
func (e *Engine) RemainingSupply() sdkmath.LegacyDec {
	return e.remaining
}

// RedeemedTotal is the sum of every redemption to date.
func (e *Engine) RedeemedTotal() sdkmath.LegacyDec {
	return e.redeemedTotal
}

// Allocations returns copies in construction order.
func (e *Engine) Allocations() []types.BondAllocation {
	out := make([]types.BondAllocation, 0, len(e.allocations))
	for _, a := range e.allocations {
		out = append(out, *a)
	}
	return out
}

// Allocation returns a copy of the counterparty's allocation.
func (e *Engine) Allocation(counterparty string) (types.BondAllocation, bool) {
	i, ok := e.index[counterparty]
	if !ok {
		return types.BondAllocation{}, false
	}
	return *e.allocations[i], true
}

// OutstandingDistributed is the amount distributed and not yet redeemed.
func (e *Engine) OutstandingDistributed() sdkmath.LegacyDec {
	total := sdkmath.LegacyZeroDec()
	for _, a := range e.allocations {
		if a.Status == types.AllocationDistributed {
			total = total.Add(a.DistributedAmount)
		}
	}
	return total
}

// Distribute moves every allocation whose cliff has passed from Pending to Distributed.
// An allocation is distributed at most once.
func (e *Engine) Distribute(month int) map[string]sdkmath.LegacyDec {
	distributed := make(map[string]sdkmath.LegacyDec)
	for _, a := range e.allocations {
		if a.Status != types.AllocationPending || month < a.VestMonth() {
			continue
		}
		if _, done := e.distributedAt[a.Counterparty]; done {
			continue
		}
		a.DistributedAmount = a.TotalAmount
		a.Status = types.AllocationDistributed
		e.distributedAt[a.Counterparty] = month
		distributed[a.Counterparty] = a.TotalAmount

		bondLogger.Debug().
			Int("month", month).
			Str("counterparty", a.Counterparty).
			Str("amount", a.TotalAmount.String()).
			Msg("Allocation distributed")
	}
	if len(distributed) > 0 {
		e.distributionHistory[month] = distributed
	}
	return distributed
}

// ExpectedIRR values the outstanding units against the reserve at price.
func (e *Engine) ExpectedIRR(month int, reserves types.ReserveBalances, price float64) (float64, error) {
	outstanding, err := utils.DecToFloat64(e.OutstandingDistributed())
	if err != nil {
		return 0, err
	}
	valuePerUnit := ValuePerUnit(reserves.Value(price), outstanding)
	return ExpectedIRR(e.config.Window, month, valuePerUnit), nil
}

// EvaluateRedemptions redeems every distributed allocation whose threshold is above the
// expected IRR. Outside the redemption window nothing is evaluated. It does not touch a pool;
// Step is the entry point that settles and commits together.
func (e *Engine) EvaluateRedemptions(month int, reserves types.ReserveBalances, price float64) (map[string]sdkmath.LegacyDec, float64, error) {
	due, irr, err := e.dueRedemptions(month, reserves, price)
	if err != nil {
		return nil, 0, err
	}
	return e.commitRedemptions(month, due, irr), irr, nil
}

// dueRedemptions selects the allocations that redeem this month without mutating them.
func (e *Engine) dueRedemptions(month int, reserves types.ReserveBalances, price float64) ([]*types.BondAllocation, float64, error) {
	if !e.config.Window.Contains(month) {
		return nil, 0, nil
	}

	irr, err := e.ExpectedIRR(month, reserves, price)
	if err != nil {
		return nil, 0, err
	}

	var due []*types.BondAllocation
	for _, a := range e.allocations {
		if a.Status != types.AllocationDistributed {
			continue
		}
		if !(irr < a.IRRThreshold) {
			continue
		}
		due = append(due, a)
	}
	return due, irr, nil
}

// commitRedemptions zeroes the due allocations and moves their units out of the supply.
func (e *Engine) commitRedemptions(month int, due []*types.BondAllocation, irr float64) map[string]sdkmath.LegacyDec {
	redeemed := make(map[string]sdkmath.LegacyDec, len(due))
	for _, a := range due {
		amount := a.DistributedAmount
		a.DistributedAmount = sdkmath.LegacyZeroDec()
		a.Status = types.AllocationRedeemed
		redeemed[a.Counterparty] = amount

		e.redeemedTotal = e.redeemedTotal.Add(amount)
		e.remaining = e.remaining.Sub(amount)

		bondLogger.Info().
			Int("month", month).
			Str("counterparty", a.Counterparty).
			Str("amount", amount.String()).
			Float64("expectedIRR", irr).
			Float64("threshold", a.IRRThreshold).
			Msg("Allocation redeemed")
	}
	if len(redeemed) > 0 {
		e.redemptionHistory[month] = redeemed
	}
	return redeemed
}

// Settle debits the pool by the share of outstanding units that redeemed this month.
func (e *Engine) Settle(month int, pool ReservePool, redeemed, outstandingBefore sdkmath.LegacyDec) (types.ReserveBalances, error) {
	if redeemed.IsNil() || !redeemed.IsPositive() || !outstandingBefore.IsPositive() {
		return types.ReserveBalances{}, nil
	}
	rate, err := utils.DecToFloat64(redeemed.Quo(outstandingBefore))
	if err != nil {
		return types.ReserveBalances{}, err
	}
	rate = math.Min(rate, 1)
	return pool.Redeem(month, rate)
}

// Step runs one month in order: distribute, evaluate redemptions against the pool at price,
// then settle. Months must strictly increase across calls.
func (e *Engine) Step(month int, pool ReservePool, price float64) (StepResult, error) {
	if e.stepped && month <= e.lastMonth {
		return StepResult{}, fmt.Errorf("%w: month %d, last %d", ErrMonthAlreadyProcessed, month, e.lastMonth)
	}

	result := StepResult{Month: month, RedeemedTotal: sdkmath.LegacyZeroDec()}
	result.Distributed = e.Distribute(month)

	outstandingBefore := e.OutstandingDistributed()
	result.Evaluated = e.config.Window.Contains(month)
	due, irr, err := e.dueRedemptions(month, pool.Balances(), price)
	if err != nil {
		e.undoDistribution(month, result.Distributed)
		return StepResult{}, err
	}
	result.ExpectedIRR = irr
	for _, a := range due {
		result.RedeemedTotal = result.RedeemedTotal.Add(a.DistributedAmount)
	}

	// the pool pays out before any allocation or supply counter changes
	settlement, err := e.Settle(month, pool, result.RedeemedTotal, outstandingBefore)
	if err != nil {
		e.undoDistribution(month, result.Distributed)
		return StepResult{}, fmt.Errorf("settling month %d: %w", month, err)
	}
	result.Redeemed = e.commitRedemptions(month, due, irr)
	result.Settlement = settlement

	e.supplyHistory[month] = e.remaining
	result.RemainingSupply = e.remaining
	e.lastMonth = month
	e.stepped = true

	return result, nil
}

// undoDistribution returns allocations distributed by a failed Step to Pending so a retry
// of the same month sees the engine exactly as before.
func (e *Engine) undoDistribution(month int, distributed map[string]sdkmath.LegacyDec) {
	for counterparty := range distributed {
		a := e.allocations[e.index[counterparty]]
		a.DistributedAmount = sdkmath.LegacyZeroDec()
		a.Status = types.AllocationPending
		delete(e.distributedAt, counterparty)
	}
	if len(distributed) > 0 {
		delete(e.distributionHistory, month)
	}
}

// WeightedAvgIRRThreshold is the distributed-amount weighted mean threshold, 0 with nothing distributed.
func (e *Engine) WeightedAvgIRRThreshold() (float64, error) {
	var weighted, total float64
	for _, a := range e.allocations {
		if a.Status != types.AllocationDistributed {
			continue
		}
		amount, err := utils.DecToFloat64(a.DistributedAmount)
		if err != nil {
			return 0, fmt.Errorf("%s distributed amount: %w", a.Counterparty, err)
		}
		weighted += amount * a.IRRThreshold
		total += amount
	}
	if total == 0 {
		return 0, nil
	}
	return weighted / total, nil
}

// BestCaseIRR annualizes the move from acquisitionPrice to currentPrice over the time left
// until the amount-weighted unlock month of unredeemed allocations.
func (e *Engine) BestCaseIRR(acquisitionPrice, currentPrice float64, month int) (float64, error) {
	var weighted, total float64
	for _, a := range e.allocations {
		if a.IsRedeemed() {
			continue
		}
		amount, err := utils.DecToFloat64(a.TotalAmount)
		if err != nil {
			return 0, fmt.Errorf("%s total amount: %w", a.Counterparty, err)
		}
		unlock := a.UnlockMonth
		if unlock == 0 {
			unlock = a.VestMonth()
		}
		weighted += amount * float64(unlock)
		total += amount
	}
	if total == 0 {
		return 0, nil
	}
	years := (weighted/total - float64(month)) / monthsPerYear
	return AnnualizedReturn(acquisitionPrice, currentPrice, years), nil
}

// DistributionHistory returns month -> counterparty -> amount distributed.
func (e *Engine) DistributionHistory() map[int]map[string]sdkmath.LegacyDec {
	return copyHistory(e.distributionHistory)
}

// RedemptionHistory returns month -> counterparty -> amount redeemed.
func (e *Engine) RedemptionHistory() map[int]map[string]sdkmath.LegacyDec {
	return copyHistory(e.redemptionHistory)
}

// SupplyHistory returns remaining supply after each processed month, in month order.
func (e *Engine) SupplyHistory() []SupplyPoint {
	months := make([]int, 0, len(e.supplyHistory))
	for m := range e.supplyHistory {
		months = append(months, m)
	}
	sort.Ints(months)
	out := make([]SupplyPoint, 0, len(months))
	for _, m := range months {
		out = append(out, SupplyPoint{Month: m, Remaining: e.supplyHistory[m]})
	}
	return out
}

// SupplyPoint is the remaining supply after a month.
type SupplyPoint struct {
	Month     int               `json:"month"`
	Remaining sdkmath.LegacyDec `json:"remaining"`
}

func copyHistory(in map[int]map[string]sdkmath.LegacyDec) map[int]map[string]sdkmath.LegacyDec {
	out := make(map[int]map[string]sdkmath.LegacyDec, len(in))
	for m, byCounterparty := range in {
		inner := make(map[string]sdkmath.LegacyDec, len(byCounterparty))
		for c, amount := range byCounterparty {
			inner[c] = amount
		}
		out[m] = inner
	}
	return out
}
