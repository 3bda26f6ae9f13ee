package analyzer

import (
	"errors"
	"math"
	"sort"

	"github.com/elys-network/treasury-sim/internal/types"
)

// MonthsPerYear annualizes volatility computed from month-end prices.
const MonthsPerYear = 12.0

// ErrInsufficientData indicates that not enough data points were provided
// to calculate volatility (need at least 2 points for 1 return).
var ErrInsufficientData = errors.New("insufficient data points to calculate volatility")

// CalculateVolatility calculates the annualized historical volatility from a series of month-end prices.
// Prices are sorted by month first. It uses logarithmic returns and population standard deviation.
// The annualizationFactor should match the frequency of the data (12 for monthly).
func CalculateVolatility(prices []types.MonthPrice, annualizationFactor float64) (float64, error) {
	n := len(prices)
	if n < 2 {
		return 0, ErrInsufficientData
	}

	sorted := append([]types.MonthPrice(nil), prices...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Month < sorted[j].Month
	})

	logReturns := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		current := sorted[i].Price
		previous := sorted[i-1].Price

		// Non-positive prices break math.Log
		if previous <= 0 || current <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(current/previous))
	}

	numReturns := len(logReturns)
	if numReturns == 0 {
		return 0, ErrInsufficientData
	}

	var sum float64
	for _, r := range logReturns {
		sum += r
	}
	mean := sum / float64(numReturns)

	var sumSqDiff float64
	for _, r := range logReturns {
		sumSqDiff += math.Pow(r-mean, 2)
	}
	variance := sumSqDiff / float64(numReturns)

	return math.Sqrt(variance) * math.Sqrt(annualizationFactor), nil
}

// PriceRange returns the lowest and highest price in the series.
func PriceRange(prices []types.MonthPrice) (low, high float64, err error) {
	if len(prices) == 0 {
		return 0, 0, ErrInsufficientData
	}
	low, high = math.Inf(1), math.Inf(-1)
	for _, p := range prices {
		low = math.Min(low, p.Price)
		high = math.Max(high, p.Price)
	}
	return low, high, nil
}
