/*
This file contains the concentrated-liquidity depth calculator shared by every reserve pool.

Reserves are mapped onto virtual constant-product reserves that reproduce the mid price,
the closed-form range formula gives the depth inside [mid*(1-r), mid*(1+r)], and per-side
concentration multipliers then scale that depth before it is clamped to the real reserves.
*/

package liquidity

import (
	"errors"
	"fmt"
	"math"

	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/types"
	"github.com/elys-network/treasury-sim/internal/utils"
)

// Decimals kept on calculator outputs.
const outputDecimals = 8

var calculatorLogger = logger.GetForComponent("liquidity_calculator")

var (
	ErrInvalidRange         = fmt.Errorf("%w: range percent must be within (0, 100)", types.ErrInvalidInput)
	ErrInvalidPrice         = fmt.Errorf("%w: mid price must be positive and finite", types.ErrInvalidInput)
	ErrNegativeReserve      = fmt.Errorf("%w: reserves must be non-negative and finite", types.ErrInvalidInput)
	ErrInvalidConcentration = fmt.Errorf("%w: concentration multipliers must be finite and >= 1", types.ErrInvalidInput)
)

// PriceBand returns the lower and upper price of the symmetric range around mid.
func PriceBand(midPrice, rangePercent float64) (lower, upper float64) {
	return midPrice * (1 - rangePercent/100), midPrice * (1 + rangePercent/100)
}

// WithinRange returns how much of each reserve can be traded before the price leaves
// [mid*(1-r/100), mid*(1+r/100)]. A multiplier of 1 on both sides is plain constant-product depth.
func WithinRange(reserves types.ReserveBalances, midPrice, rangePercent float64, concentration types.Concentration) (types.LiquidityDepth, error) {
	if err := validate(reserves, midPrice, rangePercent, concentration); err != nil {
		return types.LiquidityDepth{}, err
	}

	if reserves.Token == 0 || reserves.Numeraire == 0 {
		return types.LiquidityDepth{}, nil
	}

	virtualToken := math.Sqrt(reserves.Token * reserves.Numeraire / midPrice)
	virtualNumeraire := virtualToken * midPrice
	invariant := math.Sqrt(virtualToken * virtualNumeraire)

	priceLower, priceUpper := PriceBand(midPrice, rangePercent)

	tokenInRange := invariant * (1/math.Sqrt(priceLower) - 1/math.Sqrt(priceUpper))
	numeraireInRange := invariant * (math.Sqrt(priceUpper) - math.Sqrt(priceLower))

	tokenInRange *= concentration.Token
	numeraireInRange *= concentration.Numeraire

	// Back from virtual to actual reserves, then into token / numeraire units.
	tokenInRange *= reserves.Token / virtualToken
	numeraireInRange *= reserves.Numeraire / virtualNumeraire
	sqrtMid := math.Sqrt(midPrice)
	tokenInRange /= sqrtMid
	numeraireInRange *= sqrtMid

	if math.IsNaN(tokenInRange) || math.IsInf(tokenInRange, 0) || math.IsNaN(numeraireInRange) || math.IsInf(numeraireInRange, 0) {
		calculatorLogger.Warn().
			Float64("tokenReserve", reserves.Token).
			Float64("numeraireReserve", reserves.Numeraire).
			Float64("midPrice", midPrice).
			Msg("Non-finite liquidity result, treating as empty")
		return types.LiquidityDepth{}, nil
	}

	depth := types.LiquidityDepth{
		Token:     math.Min(utils.RoundTo(tokenInRange, outputDecimals), reserves.Token),
		Numeraire: math.Min(utils.RoundTo(numeraireInRange, outputDecimals), reserves.Numeraire),
	}
	depth.Token = math.Max(depth.Token, 0)
	depth.Numeraire = math.Max(depth.Numeraire, 0)

	calculatorLogger.Debug().
		Float64("midPrice", midPrice).
		Float64("rangePercent", rangePercent).
		Float64("tokenConcentration", concentration.Token).
		Float64("numeraireConcentration", concentration.Numeraire).
		Float64("tokenDepth", depth.Token).
		Float64("numeraireDepth", depth.Numeraire).
		Msg("Calculated liquidity within range")

	return depth, nil
}

func validate(reserves types.ReserveBalances, midPrice, rangePercent float64, concentration types.Concentration) error {
	var errs []error
	if !(rangePercent > 0 && rangePercent < 100) {
		errs = append(errs, fmt.Errorf("%w: got %f", ErrInvalidRange, rangePercent))
	}
	if !(midPrice > 0) || math.IsInf(midPrice, 0) {
		errs = append(errs, fmt.Errorf("%w: got %f", ErrInvalidPrice, midPrice))
	}
	if !finiteNonNegative(reserves.Token) || !finiteNonNegative(reserves.Numeraire) {
		errs = append(errs, fmt.Errorf("%w: token %f, numeraire %f", ErrNegativeReserve, reserves.Token, reserves.Numeraire))
	}
	if !(concentration.Token >= 1) || !(concentration.Numeraire >= 1) ||
		math.IsInf(concentration.Token, 0) || math.IsInf(concentration.Numeraire, 0) {
		errs = append(errs, fmt.Errorf("%w: token %f, numeraire %f", ErrInvalidConcentration, concentration.Token, concentration.Numeraire))
	}
	return errors.Join(errs...)
}

func finiteNonNegative(x float64) bool {
	return x >= 0 && !math.IsInf(x, 0)
}

// MaxConcentration is the multiplier a concentration fraction of 1 maps to, the same
// density the deep pool gives its numeraire side.
const MaxConcentration = 5.0

// ConcentrationFromFraction maps a catalog concentration fraction f in [0, 1] linearly onto
// a depth multiplier in [1, MaxConcentration]: 0 is plain depth, 1 is the densest band.
func ConcentrationFromFraction(fraction float64) (float64, error) {
	if !(fraction >= 0 && fraction <= 1) {
		return 0, fmt.Errorf("%w: concentration fraction must be within [0, 1], got %f", types.ErrInvalidInput, fraction)
	}
	return 1 + (MaxConcentration-1)*fraction, nil
}
