/*
This file contains common utility functions for converting between float64 model values
and SDK decimal types, plus rounding helpers shared by the liquidity math.
*/

package utils

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidPrecision = errors.New("precision is invalid")
	ErrAmountNil        = errors.New("amount is nil")
	ErrAmountNegative   = errors.New("amount is negative")
	ErrNotFinite        = errors.New("value is not finite")
	ErrConversionFailed = errors.New("conversion failed")
)

// DecToFloat64 converts a LegacyDec to float64, rejecting nil and non-finite results
func DecToFloat64(amount sdkmath.LegacyDec) (float64, error) {
	if amount.IsNil() {
		return 0, ErrAmountNil
	}

	result, err := amount.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrConversionFailed, err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}

	return result, nil
}

// Float64ToDec converts a non-negative float64 to LegacyDec, rounded to the given number of decimals
func Float64ToDec(amount float64, precision int) (sdkmath.LegacyDec, error) {
	if precision < 0 || precision > sdkmath.LegacyPrecision {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: %d (must be between 0 and %d)", ErrInvalidPrecision, precision, sdkmath.LegacyPrecision)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: amount is %f", ErrNotFinite, amount)
	}
	if amount < 0 {
		return sdkmath.LegacyZeroDec(), ErrAmountNegative
	}
	if amount == 0 {
		return sdkmath.LegacyZeroDec(), nil
	}

	// Use string conversion to avoid floating point precision issues
	amountStr := strconv.FormatFloat(amount, 'f', precision, 64)

	decAmount, err := sdkmath.LegacyNewDecFromStr(amountStr)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("%w: failed to create decimal from string: %w", ErrConversionFailed, err)
	}

	return decAmount, nil
}

// RoundTo rounds x half away from zero to the given number of decimals
func RoundTo(x float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(x*factor) / factor
}

// ToDecCoins renders a pair of float balances as sorted DecCoins, dropping zero amounts.
func ToDecCoins(amounts map[string]float64, precision int) (sdktypes.DecCoins, error) {
	coins := sdktypes.DecCoins{}
	for denom, amount := range amounts {
		if err := sdktypes.ValidateDenom(denom); err != nil {
			return nil, fmt.Errorf("%w: denom %q: %w", ErrConversionFailed, denom, err)
		}
		dec, err := Float64ToDec(amount, precision)
		if err != nil {
			return nil, fmt.Errorf("denom %s: %w", denom, err)
		}
		if dec.IsZero() {
			continue
		}
		coins = coins.Add(sdktypes.NewDecCoinFromDec(denom, dec))
	}
	return coins.Sort(), nil
}
