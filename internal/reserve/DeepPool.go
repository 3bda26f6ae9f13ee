/*
This file contains the deep reserve pool: the single protocol-owned token/numeraire pool
that backs bond redemptions and provides most of the depth the price engine trades against.
*/

package reserve

import (
	"fmt"
	"math"
	"sort"

	sdktypes "github.com/cosmos/cosmos-sdk/types"

	"github.com/elys-network/treasury-sim/internal/liquidity"
	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/types"
	"github.com/elys-network/treasury-sim/internal/utils"
)

var deepPoolLogger = logger.GetForComponent("deep_pool")

// DeepPoolConcentration keeps the token side at plain depth and the numeraire side
// five times denser near the peg.
var DeepPoolConcentration = types.Concentration{Token: 1, Numeraire: 5}

// coinPrecision is the number of decimals kept when rendering balances as coins.
const coinPrecision = 6

var (
	ErrAlreadyRedeemed = fmt.Errorf("%w: redemption already processed for month", types.ErrInvalidState)
	ErrInvalidRate     = fmt.Errorf("%w: redemption rate must be within [0, 1]", types.ErrInvalidInput)
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be non-negative and finite", types.ErrInvalidInput)
	ErrInvalidPrice    = fmt.Errorf("%w: price must be positive", types.ErrInvalidInput)
)

// DeepPoolConfig seeds the pool.
type DeepPoolConfig struct {
	Denoms                  types.Denoms `yaml:"denoms"`
	InitialTokenBalance     float64      `yaml:"initial_token_balance"`
	InitialNumeraireBalance float64      `yaml:"initial_numeraire_balance"`
}

// DeepPool is not safe for concurrent use; the simulator serializes access.
type DeepPool struct {
	denoms      types.Denoms
	balances    types.ReserveBalances
	redemptions map[int]float64 // month -> rate applied
	history     map[int]types.ReserveBalances
}

// NewDeepPool validates the config and returns a pool holding the initial balances.
func NewDeepPool(config DeepPoolConfig) (*DeepPool, error) {
	if !validAmount(config.InitialTokenBalance) || !validAmount(config.InitialNumeraireBalance) {
		return nil, fmt.Errorf("%w: initial balances token %f, numeraire %f", ErrInvalidAmount, config.InitialTokenBalance, config.InitialNumeraireBalance)
	}
	denoms := config.Denoms
	if denoms.Token == "" || denoms.Numeraire == "" {
		denoms = types.DefaultDenoms
	}
	return &DeepPool{
		denoms: denoms,
		balances: types.ReserveBalances{
			Token:     config.InitialTokenBalance,
			Numeraire: config.InitialNumeraireBalance,
		},
		redemptions: make(map[int]float64),
		history:     make(map[int]types.ReserveBalances),
	}, nil
}

// Balances returns the current balances.
func (p *DeepPool) Balances() types.ReserveBalances {
	return p.balances
}

// LiquidityWithin returns the depth inside +/- percent of price.
func (p *DeepPool) LiquidityWithin(percent, price float64) (types.LiquidityDepth, error) {
	return liquidity.WithinRange(p.balances, price, percent, DeepPoolConcentration)
}

// Redeem pays out rate of each balance. Only one redemption event is allowed per month.
func (p *DeepPool) Redeem(month int, rate float64) (types.ReserveBalances, error) {
	if _, done := p.redemptions[month]; done {
		return types.ReserveBalances{}, fmt.Errorf("%w: month %d", ErrAlreadyRedeemed, month)
	}
	if !(rate >= 0 && rate <= 1) {
		return types.ReserveBalances{}, fmt.Errorf("%w: got %f", ErrInvalidRate, rate)
	}

	paid := types.ReserveBalances{
		Token:     p.balances.Token * rate,
		Numeraire: p.balances.Numeraire * rate,
	}
	p.balances.Token -= paid.Token
	p.balances.Numeraire -= paid.Numeraire
	p.redemptions[month] = rate

	deepPoolLogger.Info().
		Int("month", month).
		Float64("rate", rate).
		Float64("tokenPaid", paid.Token).
		Float64("numerairePaid", paid.Numeraire).
		Msg("Processed deep pool redemption")

	return paid, nil
}

// SellToken converts token to numeraire at price. Amounts above the token balance are
// clamped to the balance. Returns the numeraire received.
func (p *DeepPool) SellToken(amount, price float64) (float64, error) {
	if !validAmount(amount) {
		return 0, fmt.Errorf("%w: got %f", ErrInvalidAmount, amount)
	}
	if !(price > 0) {
		return 0, fmt.Errorf("%w: got %f", ErrInvalidPrice, price)
	}

	if amount > p.balances.Token {
		deepPoolLogger.Warn().
			Float64("requested", amount).
			Float64("available", p.balances.Token).
			Msg("Token sale clamped to available balance")
		amount = p.balances.Token
	}

	proceeds := amount * price
	p.balances.Token -= amount
	p.balances.Numeraire += proceeds
	return proceeds, nil
}

// Debit removes balances outside of a redemption event, clamping each side at zero.
// Returns what was actually removed.
func (p *DeepPool) Debit(amounts types.ReserveBalances) (types.ReserveBalances, error) {
	if !validAmount(amounts.Token) || !validAmount(amounts.Numeraire) {
		return types.ReserveBalances{}, fmt.Errorf("%w: token %f, numeraire %f", ErrInvalidAmount, amounts.Token, amounts.Numeraire)
	}

	debited := types.ReserveBalances{
		Token:     math.Min(amounts.Token, p.balances.Token),
		Numeraire: math.Min(amounts.Numeraire, p.balances.Numeraire),
	}
	if debited != amounts {
		deepPoolLogger.Warn().
			Float64("requestedToken", amounts.Token).
			Float64("requestedNumeraire", amounts.Numeraire).
			Float64("debitedToken", debited.Token).
			Float64("debitedNumeraire", debited.Numeraire).
			Msg("Debit clamped to available balances")
	}
	p.balances.Token -= debited.Token
	p.balances.Numeraire -= debited.Numeraire
	return debited, nil
}

// RecordMonth stores the month-end balances.
func (p *DeepPool) RecordMonth(month int) {
	p.history[month] = p.balances
}

// BalanceHistory returns recorded month-end balances in month order.
func (p *DeepPool) BalanceHistory() []types.MonthBalances {
	months := make([]int, 0, len(p.history))
	for m := range p.history {
		months = append(months, m)
	}
	sort.Ints(months)

	out := make([]types.MonthBalances, 0, len(months))
	for _, m := range months {
		out = append(out, types.MonthBalances{Month: m, Balances: p.history[m]})
	}
	return out
}

// RedemptionHistory returns a copy of the month -> rate map.
func (p *DeepPool) RedemptionHistory() map[int]float64 {
	out := make(map[int]float64, len(p.redemptions))
	for m, r := range p.redemptions {
		out[m] = r
	}
	return out
}

// Coins renders the balances as DecCoins in the pool denoms.
func (p *DeepPool) Coins() (sdktypes.DecCoins, error) {
	return utils.ToDecCoins(map[string]float64{
		p.denoms.Token:     p.balances.Token,
		p.denoms.Numeraire: p.balances.Numeraire,
	}, coinPrecision)
}

func validAmount(x float64) bool {
	return x >= 0 && !math.IsInf(x, 0)
}
