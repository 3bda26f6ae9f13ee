/*
This file contains the book of per-counterparty liquidity positions.

Each position resolves to one of three concentration branches on every query, by comparing
its token value share with its target ratio through a +/-10% deadband.
*/

package reserve

import (
	"fmt"
	"math"
	"sort"

	"github.com/elys-network/treasury-sim/internal/liquidity"
	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/types"
)

var positionLogger = logger.GetForComponent("liquidity_positions")

// Deadband around the target ratio, as a fraction of the target.
const (
	lowerBandFactor = 0.9
	upperBandFactor = 1.1
	maxTargetRatio  = 0.5
)

var (
	ErrDuplicatePosition = fmt.Errorf("%w: duplicate position counterparty", types.ErrInvalidInput)
	ErrInvalidPosition   = fmt.Errorf("%w: invalid liquidity position", types.ErrInvalidInput)
	ErrUnknownPosition   = fmt.Errorf("%w: unknown position counterparty", types.ErrInvalidInput)
)

// PositionBalance is a recorded balance pair for one counterparty.
type PositionBalance struct {
	Counterparty string  `json:"counterparty"`
	Token        float64 `json:"token"`
	Numeraire    float64 `json:"numeraire"`
}

// PositionBook owns the positions in catalog order. Not safe for concurrent use.
type PositionBook struct {
	positions []*types.LiquidityPosition
	index     map[string]int
	history   map[int][]PositionBalance
}

// NewLiquidityPosition seeds a position from its notional: target*notional of value is held in
// token bought at initialPrice, the rest in numeraire.
func NewLiquidityPosition(counterparty string, notional, targetRatio, baseConcentration, maxConcentration float64, startMonth, durationMonths int, initialPrice float64) (types.LiquidityPosition, error) {
	if !(initialPrice > 0) {
		return types.LiquidityPosition{}, fmt.Errorf("%w: initial price %f", ErrInvalidPrice, initialPrice)
	}
	tokenInvestment := notional * targetRatio
	position := types.LiquidityPosition{
		Counterparty:      counterparty,
		Notional:          notional,
		TokenBalance:      tokenInvestment / initialPrice,
		NumeraireBalance:  notional - tokenInvestment,
		TargetRatio:       targetRatio,
		BaseConcentration: baseConcentration,
		MaxConcentration:  maxConcentration,
		StartMonth:        startMonth,
		DurationMonths:    durationMonths,
	}
	return position, validatePosition(position)
}

func validatePosition(p types.LiquidityPosition) error {
	switch {
	case p.Counterparty == "":
		return fmt.Errorf("%w: counterparty is empty", ErrInvalidPosition)
	case !validAmount(p.Notional) || !validAmount(p.TokenBalance) || !validAmount(p.NumeraireBalance):
		return fmt.Errorf("%w: %s has negative amounts", ErrInvalidPosition, p.Counterparty)
	case !(p.TargetRatio >= 0 && p.TargetRatio <= maxTargetRatio):
		return fmt.Errorf("%w: %s target ratio %f outside [0, %.1f]", ErrInvalidPosition, p.Counterparty, p.TargetRatio, maxTargetRatio)
	case !(p.BaseConcentration >= 0 && p.BaseConcentration <= p.MaxConcentration && p.MaxConcentration <= 1):
		return fmt.Errorf("%w: %s concentration base %f, max %f must satisfy 0 <= base <= max <= 1", ErrInvalidPosition, p.Counterparty, p.BaseConcentration, p.MaxConcentration)
	case p.StartMonth < 0 || p.DurationMonths <= 0:
		return fmt.Errorf("%w: %s start %d, duration %d", ErrInvalidPosition, p.Counterparty, p.StartMonth, p.DurationMonths)
	}
	return nil
}

// NewPositionBook validates and takes ownership of copies of the given positions.
func NewPositionBook(positions []types.LiquidityPosition) (*PositionBook, error) {
	book := &PositionBook{
		index:   make(map[string]int),
		history: make(map[int][]PositionBalance),
	}
	for _, p := range positions {
		if err := book.Add(p); err != nil {
			return nil, err
		}
	}
	return book, nil
}

// Add appends a position, rejecting duplicates and malformed terms.
func (b *PositionBook) Add(position types.LiquidityPosition) error {
	if err := validatePosition(position); err != nil {
		return err
	}
	if _, exists := b.index[position.Counterparty]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicatePosition, position.Counterparty)
	}
	p := position
	b.index[p.Counterparty] = len(b.positions)
	b.positions = append(b.positions, &p)
	return nil
}

// Positions returns copies of every position in insertion order.
func (b *PositionBook) Positions() []types.LiquidityPosition {
	out := make([]types.LiquidityPosition, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out
}

// Position returns a copy of the counterparty's position.
func (b *PositionBook) Position(counterparty string) (types.LiquidityPosition, bool) {
	i, ok := b.index[counterparty]
	if !ok {
		return types.LiquidityPosition{}, false
	}
	return *b.positions[i], true
}

func (b *PositionBook) active(month int) []*types.LiquidityPosition {
	var out []*types.LiquidityPosition
	for _, p := range b.positions {
		if p.IsActive(month) {
			out = append(out, p)
		}
	}
	return out
}

// Active returns copies of the positions active in month.
func (b *PositionBook) Active(month int) []types.LiquidityPosition {
	active := b.active(month)
	out := make([]types.LiquidityPosition, 0, len(active))
	for _, p := range active {
		out = append(out, *p)
	}
	return out
}

// TokenRatio is the token share of the position value at price, 0 for an empty position.
func TokenRatio(p types.LiquidityPosition, price float64) float64 {
	tokenValue := p.TokenBalance * price
	total := tokenValue + p.NumeraireBalance
	if total <= 0 {
		return 0
	}
	return tokenValue / total
}

// ResolveBranch places the position's token ratio against the deadband. The cutoffs are strict:
// a ratio exactly at target*0.9 or target*1.1 is Balanced.
func ResolveBranch(p types.LiquidityPosition, price float64) types.ConcentrationBranch {
	ratio := TokenRatio(p, price)
	switch {
	case ratio < p.TargetRatio*lowerBandFactor:
		return types.BelowTarget
	case ratio > p.TargetRatio*upperBandFactor:
		return types.AboveTarget
	default:
		return types.Balanced
	}
}

// ConcentrationFor resolves the branch and converts the position's concentration fractions
// into calculator multipliers. A token-light position concentrates its numeraire side and a
// token-heavy one its token side.
func ConcentrationFor(p types.LiquidityPosition, price float64) (types.Concentration, types.ConcentrationBranch, error) {
	base, err := liquidity.ConcentrationFromFraction(p.BaseConcentration)
	if err != nil {
		return types.Concentration{}, types.Balanced, err
	}
	favoured, err := liquidity.ConcentrationFromFraction(p.MaxConcentration)
	if err != nil {
		return types.Concentration{}, types.Balanced, err
	}

	branch := ResolveBranch(p, price)
	switch branch {
	case types.BelowTarget:
		return types.Concentration{Token: base, Numeraire: favoured}, branch, nil
	case types.AboveTarget:
		return types.Concentration{Token: favoured, Numeraire: base}, branch, nil
	default:
		return types.Concentration{Token: base, Numeraire: base}, branch, nil
	}
}

// PositionLiquidityWithin returns one position's depth inside +/- percent of price.
func (b *PositionBook) PositionLiquidityWithin(counterparty string, percent, price float64) (types.LiquidityDepth, types.ConcentrationBranch, error) {
	p, ok := b.Position(counterparty)
	if !ok {
		return types.LiquidityDepth{}, types.Balanced, fmt.Errorf("%w: %s", ErrUnknownPosition, counterparty)
	}
	concentration, branch, err := ConcentrationFor(p, price)
	if err != nil {
		return types.LiquidityDepth{}, branch, err
	}
	depth, err := liquidity.WithinRange(p.Balances(), price, percent, concentration)
	return depth, branch, err
}

// LiquidityWithin aggregates the depth of every position active in month.
func (b *PositionBook) LiquidityWithin(month int, percent, price float64) (types.LiquidityDepth, error) {
	var total types.LiquidityDepth
	for _, p := range b.active(month) {
		depth, branch, err := b.PositionLiquidityWithin(p.Counterparty, percent, price)
		if err != nil {
			return types.LiquidityDepth{}, fmt.Errorf("position %s: %w", p.Counterparty, err)
		}
		positionLogger.Debug().
			Int("month", month).
			Str("counterparty", p.Counterparty).
			Str("branch", branch.String()).
			Float64("tokenDepth", depth.Token).
			Float64("numeraireDepth", depth.Numeraire).
			Msg("Position depth")
		total = total.Add(depth)
	}
	return total, nil
}

// Branches returns the resolved branch per active position.
func (b *PositionBook) Branches(month int, price float64) map[string]types.ConcentrationBranch {
	out := make(map[string]types.ConcentrationBranch)
	for _, p := range b.active(month) {
		out[p.Counterparty] = ResolveBranch(*p, price)
	}
	return out
}

// TotalLiquidity is the combined value of active positions at price.
func (b *PositionBook) TotalLiquidity(month int, price float64) float64 {
	var total float64
	for _, p := range b.active(month) {
		total += p.Balances().Value(price)
	}
	return total
}

// TokenNeeded returns, per active position, the numeraire value of token that must be added
// for the position to reach its target ratio, plus the aggregate.
// Positions at or above target are omitted.
func (b *PositionBook) TokenNeeded(month int, price float64) (map[string]float64, float64) {
	deficits := make(map[string]float64)
	var total float64
	for _, p := range b.active(month) {
		tokenValue := p.TokenBalance * price
		// Solves (tokenValue+d) / (tokenValue+d+numeraire) = target for d.
		deficit := (p.TargetRatio*p.NumeraireBalance - (1-p.TargetRatio)*tokenValue) / (1 - p.TargetRatio)
		if !(deficit > 0) || math.IsInf(deficit, 0) {
			continue
		}
		deficits[p.Counterparty] = deficit
		total += deficit
	}
	return deficits, total
}

// DistributePurchased splits amount of token across positions in proportion to each
// position's share of the total deficit and credits their token balances.
// Returns the amount credited per counterparty.
func (b *PositionBook) DistributePurchased(amount float64, deficits map[string]float64) (map[string]float64, error) {
	if !validAmount(amount) {
		return nil, fmt.Errorf("%w: got %f", ErrInvalidAmount, amount)
	}

	counterparties := make([]string, 0, len(deficits))
	var total float64
	for c, d := range deficits {
		if _, ok := b.index[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPosition, c)
		}
		if d <= 0 {
			continue
		}
		counterparties = append(counterparties, c)
		total += d
	}
	credited := make(map[string]float64, len(counterparties))
	if amount == 0 || total <= 0 {
		return credited, nil
	}
	sort.Strings(counterparties)

	for _, c := range counterparties {
		share := amount * deficits[c] / total
		b.positions[b.index[c]].TokenBalance += share
		credited[c] = share
	}

	positionLogger.Debug().
		Float64("amount", amount).
		Int("positions", len(credited)).
		Msg("Distributed purchased token to positions")

	return credited, nil
}

// RecordMonth stores the balances of positions active in month.
func (b *PositionBook) RecordMonth(month int) {
	active := b.active(month)
	balances := make([]PositionBalance, 0, len(active))
	for _, p := range active {
		balances = append(balances, PositionBalance{
			Counterparty: p.Counterparty,
			Token:        p.TokenBalance,
			Numeraire:    p.NumeraireBalance,
		})
	}
	b.history[month] = balances
}

// BalanceHistory returns the balances recorded for month.
func (b *PositionBook) BalanceHistory(month int) []PositionBalance {
	return append([]PositionBalance(nil), b.history[month]...)
}
