package redemption

import (
	"math"
)

const monthsPerYear = 12.0

// RedeemNow is the expected IRR reported when the remaining value or time is exhausted.
// It is below every threshold, so every outstanding allocation redeems.
var RedeemNow = math.Inf(-1)

// Window is the inclusive month range in which redemptions are evaluated.
type Window struct {
	StartMonth int `json:"start_month" yaml:"start_month"`
	EndMonth   int `json:"end_month" yaml:"end_month"`
}

// Contains reports whether month falls inside the window.
func (w Window) Contains(month int) bool {
	return w.StartMonth <= month && month <= w.EndMonth
}

// Progress is the elapsed share of the window, clamped to [0, 1].
func (w Window) Progress(month int) float64 {
	span := float64(w.EndMonth - w.StartMonth)
	if span <= 0 {
		return 1
	}
	progress := float64(month-w.StartMonth) / span
	return math.Min(math.Max(progress, 0), 1)
}

// YearsRemaining is the time left until the window closes.
func (w Window) YearsRemaining(month int) float64 {
	return float64(w.EndMonth-month) / monthsPerYear
}

// ValuePerUnit is the reserve value backing each outstanding bond unit, 0 with no units.
func ValuePerUnit(reserveValue, outstandingUnits float64) float64 {
	if outstandingUnits <= 0 {
		return 0
	}
	return reserveValue / outstandingUnits
}

// ExpectedIRR is the annualized percentage return from holding a unit from month to the end of
// the window, where a unit is currently worth valuePerUnit*progress and finally valuePerUnit.
func ExpectedIRR(window Window, month int, valuePerUnit float64) float64 {
	currentValue := valuePerUnit * window.Progress(month)
	futureValue := valuePerUnit
	years := window.YearsRemaining(month)
	if currentValue <= 0 || years <= 0 {
		return RedeemNow
	}

	irr := (math.Pow(futureValue/currentValue, 1/years) - 1) * 100
	if math.IsNaN(irr) {
		return RedeemNow
	}
	return irr
}

// AnnualizedReturn is (current/acquisition)^(1/years)-1 in percent, 0 when undefined.
func AnnualizedReturn(acquisitionPrice, currentPrice, years float64) float64 {
	if acquisitionPrice <= 0 || currentPrice < 0 || years <= 0 {
		return 0
	}
	irr := (math.Pow(currentPrice/acquisitionPrice, 1/years) - 1) * 100
	if math.IsNaN(irr) || math.IsInf(irr, 0) {
		return 0
	}
	return irr
}
