/*

This file contains the default parameters of a treasury simulation.

They reproduce the reference scenario: a token launched at 1 numeraire, a deep
pool seeded with a large token float, counterparty liquidity positions from the
first month and bond redemptions allowed between months 12 and 48.

*/

package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/elys-network/treasury-sim/internal/types"
)

// DefaultSimulationParameters is used when no scenario file is given, and as the base a
// scenario file overrides.
var DefaultSimulationParameters = types.SimulationParameters{
	// --- Run shape ---
	Months: 60, // Five years of monthly steps.
	// Rationale: Covers the whole redemption window plus the tail where remaining bonds settle.

	Denoms: types.DefaultDenoms,

	// --- Activation months ---
	PositionsStartMonth: 1, // Counterparty positions go live first.
	DeepPoolStartMonth:  3, // Deep pool starts serving redemptions after the positions are seeded.
	BondStartMonth:      4, // Bond distributions and redemption checks.
	PriceStartMonth:     5, // Trades move the price only once every reserve is live.
	// Rationale: Staggered activation keeps early months free of price noise while reserves fill.

	// --- Price engine ---
	InitialPrice:         1.0,
	MinPrice:             0.01, // Floor; a trade can never push the price below this.
	MaxPrice:             100.0,
	PriceImpactThreshold: 0.10, // Reject any single trade moving the price by more than 10%.
	// Rationale: A larger move is a liquidity failure, not a price discovery event. The driver
	// resizes such trades instead of letting them through.

	MonthlyPriceDrift: -0.005, // 0.5% monthly decay of the mid price.
	// Rationale: Models sell pressure from emissions that the explicit trade list does not capture.

	// --- Trading ---
	LiquidityRangePercent: 10.0, // Depth is measured within +/-10% of the mid price.
	SimulatedTrades:       []float64{10_000, -5_000, 15_000},
	// Rationale: Net buy flow of 20k numeraire per month, with one sell in between so the
	// intra-month price path is not monotonic.

	MaxTradeResizes:   3,   // Halve an oversized trade at most 3 times before skipping it.
	TradeResizeFactor: 0.5, // Each retry uses half the previous size.

	// --- Deep pool ---
	DeepPoolTokenBalance:     1_000_000_000,
	DeepPoolNumeraireBalance: 500_000,

	// --- Bonds ---
	BondTotalSupply: 1_500_000, // Must cover the catalog allocations (1,485,000 by default).
	// Rationale: Leaves a small unallocated buffer so a new deal can be added without resizing supply.

	RedemptionStartMonth: 12,
	RedemptionEndMonth:   48,

	// --- Liquidity positions ---
	RebalancePositions: true, // Buy token each month to close position deficits against their target ratio.

	// --- Boosted TVL ---
	MinBoostRate:          0.10,
	MaxBoostRate:          0.50,
	BaseBoostIRRThreshold: 30.0,
	// Rationale: A counterparty asking for a 30% IRR gets the full 50% boost; higher asks get
	// proportionally less, never below 10%.
}

// Parameter validation errors.
var (
	ErrInvalidMonths     = fmt.Errorf("%w: months must be positive", types.ErrInvalidInput)
	ErrInvalidPriceBound = fmt.Errorf("%w: price bounds must satisfy 0 < min <= initial <= max", types.ErrInvalidInput)
	ErrInvalidThreshold  = fmt.Errorf("%w: price impact threshold must be in (0, 1]", types.ErrInvalidInput)
	ErrInvalidRange      = fmt.Errorf("%w: liquidity range percent must be in (0, 100)", types.ErrInvalidInput)
	ErrInvalidResize     = fmt.Errorf("%w: trade resize factor must be in (0, 1) and resizes non-negative", types.ErrInvalidInput)
	ErrInvalidBalances   = fmt.Errorf("%w: deep pool balances must be non-negative", types.ErrInvalidInput)
	ErrInvalidSupply     = fmt.Errorf("%w: bond total supply must be positive", types.ErrInvalidInput)
	ErrInvalidWindow     = fmt.Errorf("%w: redemption end month must be after start month", types.ErrInvalidInput)
	ErrInvalidBoost      = fmt.Errorf("%w: boost rates must satisfy 0 <= min <= max and threshold > 0", types.ErrInvalidInput)
	ErrInvalidDrift      = fmt.Errorf("%w: monthly price drift must be greater than -1", types.ErrInvalidInput)
	ErrInvalidDenoms     = fmt.Errorf("%w: denoms must be distinct and non-empty", types.ErrInvalidInput)
	ErrInvalidActivation = fmt.Errorf("%w: activation months must be non-negative", types.ErrInvalidInput)
)

// ValidateSimulationParameters checks every field and reports all problems at once.
func ValidateSimulationParameters(p types.SimulationParameters) error {
	var errs []error

	if p.Months <= 0 {
		errs = append(errs, ErrInvalidMonths)
	}
	if p.Denoms.Token == "" || p.Denoms.Numeraire == "" || p.Denoms.Token == p.Denoms.Numeraire {
		errs = append(errs, ErrInvalidDenoms)
	}
	if p.PositionsStartMonth < 0 || p.DeepPoolStartMonth < 0 || p.BondStartMonth < 0 || p.PriceStartMonth < 0 {
		errs = append(errs, ErrInvalidActivation)
	}
	if !(p.MinPrice > 0 && p.MinPrice <= p.InitialPrice && p.InitialPrice <= p.MaxPrice) {
		errs = append(errs, ErrInvalidPriceBound)
	}
	if !(p.PriceImpactThreshold > 0 && p.PriceImpactThreshold <= 1) {
		errs = append(errs, ErrInvalidThreshold)
	}
	if !(p.LiquidityRangePercent > 0 && p.LiquidityRangePercent < 100) {
		errs = append(errs, ErrInvalidRange)
	}
	if p.MaxTradeResizes < 0 || !(p.TradeResizeFactor > 0 && p.TradeResizeFactor < 1) {
		errs = append(errs, ErrInvalidResize)
	}
	if p.DeepPoolTokenBalance < 0 || p.DeepPoolNumeraireBalance < 0 {
		errs = append(errs, ErrInvalidBalances)
	}
	if !(p.BondTotalSupply > 0) || math.IsInf(p.BondTotalSupply, 0) {
		errs = append(errs, ErrInvalidSupply)
	}
	if p.RedemptionEndMonth <= p.RedemptionStartMonth {
		errs = append(errs, ErrInvalidWindow)
	}
	if p.MinBoostRate < 0 || p.MinBoostRate > p.MaxBoostRate || p.BaseBoostIRRThreshold <= 0 {
		errs = append(errs, ErrInvalidBoost)
	}
	if p.MonthlyPriceDrift <= -1 {
		errs = append(errs, ErrInvalidDrift)
	}
	for i, trade := range p.SimulatedTrades {
		if math.IsNaN(trade) || math.IsInf(trade, 0) {
			errs = append(errs, fmt.Errorf("%w: simulated trade %d is not finite", types.ErrInvalidInput, i))
		}
	}

	return errors.Join(errs...)
}
