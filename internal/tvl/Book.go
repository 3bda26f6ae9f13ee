/*
This file contains the TVL book: aggregation of deal deposits into monthly totals by category
and by type, the revenue they earn, and the boosted TVL attributed to bond-incentivised deals.
*/

package tvl

import (
	"fmt"
	"math"
	"sort"

	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/types"
)

const monthsPerYear = 12.0

var tvlLogger = logger.GetForComponent("tvl_book")

var (
	ErrInvalidBoostConfig = fmt.Errorf("%w: invalid boost config", types.ErrInvalidInput)
	ErrMonthProcessed     = fmt.Errorf("%w: tvl month already processed", types.ErrInvalidState)
)

// BoostConfig bounds the boost rate granted to deals carrying bonds.
type BoostConfig struct {
	MinRate          float64 `json:"min_rate" yaml:"min_rate"`
	MaxRate          float64 `json:"max_rate" yaml:"max_rate"`
	BaseIRRThreshold float64 `json:"base_irr_threshold" yaml:"base_irr_threshold"`
}

// DefaultBoostConfig grants between 10% and 50% boost, 50% at a 30% threshold or below.
func DefaultBoostConfig() BoostConfig {
	return BoostConfig{MinRate: 0.10, MaxRate: 0.50, BaseIRRThreshold: 30.0}
}

// Validate checks the bounds.
func (c BoostConfig) Validate() error {
	if !(c.MinRate >= 0 && c.MinRate <= c.MaxRate) || !(c.BaseIRRThreshold > 0) {
		return fmt.Errorf("%w: min %f, max %f, base threshold %f", ErrInvalidBoostConfig, c.MinRate, c.MaxRate, c.BaseIRRThreshold)
	}
	return nil
}

// BoostRate is max*base/threshold clamped to [min, max]; a higher threshold earns less boost.
// Deals without a threshold get no boost.
func (c BoostConfig) BoostRate(irrThreshold float64) float64 {
	if irrThreshold <= 0 {
		return 0
	}
	rate := c.MaxRate * c.BaseIRRThreshold / irrThreshold
	return math.Max(c.MinRate, math.Min(c.MaxRate, rate))
}

// MonthTotals is the TVL and revenue picture of one month.
type MonthTotals struct {
	Month                 int                           `json:"month"`
	Total                 float64                       `json:"total"`
	ByCategory            map[types.TVLCategory]float64 `json:"by_category"`
	ByType                map[types.TVLType]float64     `json:"by_type"`
	Boosted               float64                       `json:"boosted"`
	BoostedByCounterparty map[string]float64            `json:"boosted_by_counterparty,omitempty"`
	RevenueByType         map[types.TVLType]float64     `json:"revenue_by_type"`
	MonthlyRevenue        float64                       `json:"monthly_revenue"`
	CumulativeRevenue     float64                       `json:"cumulative_revenue"`
}

// Book is not safe for concurrent use.
type Book struct {
	contributions []types.TVLContribution
	boost         BoostConfig
	history       map[int]MonthTotals
	cumulative    float64
	lastMonth     int
	stepped       bool
}

// NewBook takes the contributions the catalog produced.
func NewBook(contributions []types.TVLContribution, boost BoostConfig) (*Book, error) {
	if err := boost.Validate(); err != nil {
		return nil, err
	}
	for _, c := range contributions {
		if c.AmountUSD < 0 || c.RevenueRate < 0 || c.EndMonth < c.StartMonth || !c.Category.IsValid() {
			return nil, fmt.Errorf("%w: contribution from %s", types.ErrInvalidInput, c.Counterparty)
		}
	}
	return &Book{
		contributions: append([]types.TVLContribution(nil), contributions...),
		boost:         boost,
		history:       make(map[int]MonthTotals),
	}, nil
}

// RampFactor scales a ramped contribution linearly from 0 at its start month to 1 after
// LinearRampMonths.
func RampFactor(c types.TVLContribution, month int) float64 {
	if c.LinearRampMonths <= 0 {
		return 1
	}
	return math.Min(1, float64(month-c.StartMonth)/float64(c.LinearRampMonths))
}

// EffectiveAmount is the contribution's amount counted in month, 0 when inactive.
func EffectiveAmount(c types.TVLContribution, month int) float64 {
	if !c.IsActive(month) {
		return 0
	}
	return c.AmountUSD * RampFactor(c, month)
}

// Calculate computes the month's totals without recording them.
func (b *Book) Calculate(month int) MonthTotals {
	totals := MonthTotals{
		Month:                 month,
		ByCategory:            map[types.TVLCategory]float64{types.CategoryVolatile: 0, types.CategoryLending: 0},
		ByType:                make(map[types.TVLType]float64, len(types.AllTVLTypes)),
		BoostedByCounterparty: make(map[string]float64),
		RevenueByType:         make(map[types.TVLType]float64, len(types.AllTVLTypes)),
	}
	for _, t := range types.AllTVLTypes {
		totals.ByType[t] = 0
		totals.RevenueByType[t] = 0
	}

	for _, c := range b.contributions {
		amount := EffectiveAmount(c, month)
		if amount <= 0 {
			continue
		}
		totals.Total += amount
		totals.ByCategory[c.Category] += amount
		totals.ByType[c.Type] += amount

		revenue := amount * c.RevenueRate / monthsPerYear
		totals.RevenueByType[c.Type] += revenue
		totals.MonthlyRevenue += revenue

		if c.IRRThreshold > 0 {
			boosted := amount * b.boost.BoostRate(c.IRRThreshold)
			totals.BoostedByCounterparty[c.Counterparty] += boosted
			totals.Boosted += boosted
		}
	}
	return totals
}

// Step records the month and accumulates its revenue. Months must strictly increase.
func (b *Book) Step(month int) (MonthTotals, error) {
	if b.stepped && month <= b.lastMonth {
		return MonthTotals{}, fmt.Errorf("%w: month %d, last %d", ErrMonthProcessed, month, b.lastMonth)
	}

	totals := b.Calculate(month)
	b.cumulative += totals.MonthlyRevenue
	totals.CumulativeRevenue = b.cumulative

	b.history[month] = totals
	b.lastMonth = month
	b.stepped = true

	tvlLogger.Debug().
		Int("month", month).
		Float64("total", totals.Total).
		Float64("boosted", totals.Boosted).
		Float64("revenue", totals.MonthlyRevenue).
		Msg("TVL month recorded")

	return totals, nil
}

// At returns the recorded totals for month.
func (b *Book) At(month int) (MonthTotals, bool) {
	totals, ok := b.history[month]
	return totals, ok
}

// History returns recorded months in order.
func (b *Book) History() []MonthTotals {
	months := make([]int, 0, len(b.history))
	for m := range b.history {
		months = append(months, m)
	}
	sort.Ints(months)
	out := make([]MonthTotals, 0, len(months))
	for _, m := range months {
		out = append(out, b.history[m])
	}
	return out
}

// CumulativeRevenue is the revenue accumulated over every recorded month.
func (b *Book) CumulativeRevenue() float64 {
	return b.cumulative
}
