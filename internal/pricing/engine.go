/*
This file contains the per-month price impact engine.

Each month is Open until Finalize locks it. Trades inside an Open month compound on the
price left by the previous trade; the locked month-end price is what downstream valuation reads.
*/

package pricing

import (
	"fmt"
	"math"
	"sort"

	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/types"
)

var priceLogger = logger.GetForComponent("price_engine")

var (
	ErrImpactExceeded    = fmt.Errorf("%w: trade exceeds price impact threshold", types.ErrInvalidState)
	ErrMonthLocked       = fmt.Errorf("%w: month price already finalized", types.ErrInvalidState)
	ErrNegativeLiquidity = fmt.Errorf("%w: liquidity must be non-negative", types.ErrInvalidInput)
	ErrNoDepth           = fmt.Errorf("%w: combined liquidity depth must be positive", types.ErrInvalidInput)
	ErrInvalidConfig     = fmt.Errorf("%w: invalid price engine config", types.ErrInvalidInput)
)

// Config bounds the price model.
type Config struct {
	InitialPrice    float64 `json:"initial_price" yaml:"initial_price"`
	MinPrice        float64 `json:"min_price" yaml:"min_price"`
	MaxPrice        float64 `json:"max_price" yaml:"max_price"`
	ImpactThreshold float64 `json:"impact_threshold" yaml:"impact_threshold"` // max |impact| per trade, as a fraction
}

// DefaultConfig returns the bounds used when a scenario does not override them.
func DefaultConfig() Config {
	return Config{
		InitialPrice:    1.0,
		MinPrice:        0.01,
		MaxPrice:        100.0,
		ImpactThreshold: 0.10,
	}
}

// Validate checks the bounds are usable.
func (c Config) Validate() error {
	switch {
	case !(c.MinPrice > 0):
		return fmt.Errorf("%w: min price %f must be positive", ErrInvalidConfig, c.MinPrice)
	case !(c.MaxPrice >= c.MinPrice):
		return fmt.Errorf("%w: max price %f below min price %f", ErrInvalidConfig, c.MaxPrice, c.MinPrice)
	case c.InitialPrice < c.MinPrice || c.InitialPrice > c.MaxPrice:
		return fmt.Errorf("%w: initial price %f outside [%f, %f]", ErrInvalidConfig, c.InitialPrice, c.MinPrice, c.MaxPrice)
	case !(c.ImpactThreshold > 0):
		return fmt.Errorf("%w: impact threshold %f must be positive", ErrInvalidConfig, c.ImpactThreshold)
	}
	return nil
}

// Engine tracks the mid price across months. It is not safe for concurrent use.
type Engine struct {
	config  Config
	current float64
	history map[int][]float64 // month -> prices in the order they were produced
	locked  map[int]bool

	// months before the latest finalized one are closed even if never finalized
	latestFinalized int
	finalizedAny    bool
}

// NewEngine creates an engine starting at the configured initial price.
func NewEngine(config Config) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		config:  config,
		current: config.InitialPrice,
		history: make(map[int][]float64),
		locked:  make(map[int]bool),
	}, nil
}

// Config returns the engine bounds.
func (e *Engine) Config() Config {
	return e.config
}

// CurrentPrice is the latest price, provisional or finalized.
func (e *Engine) CurrentPrice() float64 {
	return e.current
}

// Impact previews the fractional price move a trade would cause against the given depth.
func (e *Engine) Impact(liquidity types.LiquidityDepth, tradeValue float64) (float64, error) {
	if liquidity.Token < 0 || liquidity.Numeraire < 0 {
		return 0, fmt.Errorf("%w: token %f, numeraire %f", ErrNegativeLiquidity, liquidity.Token, liquidity.Numeraire)
	}
	depth := liquidity.Value(e.current)
	if !(depth > 0) {
		return 0, fmt.Errorf("%w: got %f", ErrNoDepth, depth)
	}
	return tradeValue / depth, nil
}

// ApplyTrade moves the price by tradeValue / (numeraire depth + token depth * price).
// Positive values buy the token. The result is clamped to the configured bounds.
func (e *Engine) ApplyTrade(month int, liquidity types.LiquidityDepth, tradeValue float64) (float64, error) {
	if e.closed(month) {
		return e.current, fmt.Errorf("%w: month %d", ErrMonthLocked, month)
	}

	impact, err := e.Impact(liquidity, tradeValue)
	if err != nil {
		return e.current, err
	}
	if math.Abs(impact) > e.config.ImpactThreshold {
		priceLogger.Debug().
			Int("month", month).
			Float64("tradeValue", tradeValue).
			Float64("impact", impact).
			Float64("threshold", e.config.ImpactThreshold).
			Msg("Trade rejected, impact above threshold")
		return e.current, fmt.Errorf("%w: impact %.4f > %.4f", ErrImpactExceeded, math.Abs(impact), e.config.ImpactThreshold)
	}

	return e.move(month, e.current*(1+impact)), nil
}

// ApplyDrift scales the price by (1+rate), subject to the same lock and bounds as a trade.
func (e *Engine) ApplyDrift(month int, rate float64) (float64, error) {
	if e.closed(month) {
		return e.current, fmt.Errorf("%w: month %d", ErrMonthLocked, month)
	}
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= -1 {
		return e.current, fmt.Errorf("%w: drift rate %f", types.ErrInvalidInput, rate)
	}
	if rate == 0 {
		return e.current, nil
	}
	return e.move(month, e.current*(1+rate)), nil
}

func (e *Engine) move(month int, target float64) float64 {
	newPrice := math.Min(math.Max(target, e.config.MinPrice), e.config.MaxPrice)
	if newPrice != target {
		priceLogger.Debug().
			Int("month", month).
			Float64("target", target).
			Float64("clamped", newPrice).
			Msg("Price clamped to bounds")
	}
	e.current = newPrice
	e.history[month] = append(e.history[month], newPrice)
	return newPrice
}

// Finalize locks the month. Its last recorded price, or the carried-over price when the
// month saw no trades, becomes the immutable month-end price.
func (e *Engine) Finalize(month int) (float64, error) {
	if e.closed(month) {
		return e.current, fmt.Errorf("%w: month %d", ErrMonthLocked, month)
	}
	if len(e.history[month]) == 0 {
		e.history[month] = []float64{e.current}
	}
	e.locked[month] = true
	if !e.finalizedAny || month > e.latestFinalized {
		e.latestFinalized = month
		e.finalizedAny = true
	}

	final := e.history[month][len(e.history[month])-1]
	priceLogger.Debug().Int("month", month).Float64("price", final).Msg("Month price finalized")
	return final, nil
}

// closed reports whether the month is finalized or precedes a finalized month.
func (e *Engine) closed(month int) bool {
	return e.locked[month] || (e.finalizedAny && month < e.latestFinalized)
}

// IsLocked reports whether the month has been finalized.
func (e *Engine) IsLocked(month int) bool {
	return e.locked[month]
}

// PriceAt returns the month-end price of a finalized month.
func (e *Engine) PriceAt(month int) (float64, bool) {
	if !e.locked[month] {
		return 0, false
	}
	prices := e.history[month]
	return prices[len(prices)-1], true
}

// History returns a copy of every price recorded in the month.
func (e *Engine) History(month int) []float64 {
	return append([]float64(nil), e.history[month]...)
}

// MonthEndPrices returns finalized month-end prices in month order.
func (e *Engine) MonthEndPrices() []types.MonthPrice {
	months := make([]int, 0, len(e.locked))
	for m := range e.locked {
		months = append(months, m)
	}
	sort.Ints(months)

	out := make([]types.MonthPrice, 0, len(months))
	for _, m := range months {
		price, _ := e.PriceAt(m)
		out = append(out, types.MonthPrice{Month: m, Price: price})
	}
	return out
}
