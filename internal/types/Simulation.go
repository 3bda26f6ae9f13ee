/*

This file contains the tunable parameters of a simulation run and the
per-month snapshot every run produces.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
)

// SimulationParameters holds everything the driver needs besides the deal catalog.
type SimulationParameters struct {
	// --- Run shape ---
	Months int    `json:"months" yaml:"months"` // Number of monthly steps, months 0..Months-1
	Denoms Denoms `json:"denoms" yaml:"denoms"`

	// --- Activation months ---
	PositionsStartMonth int `json:"positions_start_month" yaml:"positions_start_month"`
	DeepPoolStartMonth  int `json:"deep_pool_start_month" yaml:"deep_pool_start_month"`
	BondStartMonth      int `json:"bond_start_month" yaml:"bond_start_month"`
	PriceStartMonth     int `json:"price_start_month" yaml:"price_start_month"`

	// --- Price engine ---
	InitialPrice         float64 `json:"initial_price" yaml:"initial_price"`
	MinPrice             float64 `json:"min_price" yaml:"min_price"`
	MaxPrice             float64 `json:"max_price" yaml:"max_price"`
	PriceImpactThreshold float64 `json:"price_impact_threshold" yaml:"price_impact_threshold"` // fraction, 0.10 = 10%
	MonthlyPriceDrift    float64 `json:"monthly_price_drift" yaml:"monthly_price_drift"`       // fraction applied at month end, negative decays

	// --- Trading ---
	LiquidityRangePercent float64   `json:"liquidity_range_percent" yaml:"liquidity_range_percent"` // band used to size depth, 0 < r < 100
	SimulatedTrades       []float64 `json:"simulated_trades" yaml:"simulated_trades"`               // signed numeraire values, applied in order each month
	MaxTradeResizes       int       `json:"max_trade_resizes" yaml:"max_trade_resizes"`
	TradeResizeFactor     float64   `json:"trade_resize_factor" yaml:"trade_resize_factor"`

	// --- Deep pool ---
	DeepPoolTokenBalance     float64 `json:"deep_pool_token_balance" yaml:"deep_pool_token_balance"`
	DeepPoolNumeraireBalance float64 `json:"deep_pool_numeraire_balance" yaml:"deep_pool_numeraire_balance"`

	// --- Bonds ---
	BondTotalSupply      float64 `json:"bond_total_supply" yaml:"bond_total_supply"`
	RedemptionStartMonth int     `json:"redemption_start_month" yaml:"redemption_start_month"`
	RedemptionEndMonth   int     `json:"redemption_end_month" yaml:"redemption_end_month"`

	// --- Liquidity positions ---
	RebalancePositions bool `json:"rebalance_positions" yaml:"rebalance_positions"` // buy token to close position deficits each month

	// --- Boosted TVL ---
	MinBoostRate          float64 `json:"min_boost_rate" yaml:"min_boost_rate"`
	MaxBoostRate          float64 `json:"max_boost_rate" yaml:"max_boost_rate"`
	BaseBoostIRRThreshold float64 `json:"base_boost_irr_threshold" yaml:"base_boost_irr_threshold"`
}

// MonthSnapshot is the full record of one simulated month.
type MonthSnapshot struct {
	RunID string `json:"run_id"`
	Month int    `json:"month"`

	// Price
	Price         float64   `json:"price"`          // finalized month-end price
	TradePrices   []float64 `json:"trade_prices"`   // intra-month prices, in order
	SkippedTrades int       `json:"skipped_trades"` // trades dropped after resizing
	PriceLocked   bool      `json:"price_locked"`

	// Reserves
	DeepPool         ReserveBalances   `json:"deep_pool"`
	DeepPoolCoins    sdktypes.DecCoins `json:"deep_pool_coins"`
	DeepPoolDepth    LiquidityDepth    `json:"deep_pool_depth"`
	PositionDepth    LiquidityDepth    `json:"position_depth"`
	PositionValue    float64           `json:"position_value"`
	ActivePositions  int               `json:"active_positions"`
	PositionBranches map[string]string `json:"position_branches,omitempty"`
	TokenPurchased   float64           `json:"token_purchased,omitempty"`

	// Bonds
	Distributed             map[string]sdkmath.LegacyDec `json:"distributed,omitempty"`
	Redeemed                map[string]sdkmath.LegacyDec `json:"redeemed,omitempty"`
	RedeemedTotal           sdkmath.LegacyDec            `json:"redeemed_total"`
	RemainingSupply         sdkmath.LegacyDec            `json:"remaining_supply"`
	Settlement              ReserveBalances              `json:"settlement"`
	ExpectedIRR             float64                      `json:"expected_irr"` // percent; 0 when RedeemNow
	RedeemNow               bool                         `json:"redeem_now"`   // reserves worth nothing per outstanding bond
	WeightedAvgIRRThreshold float64                      `json:"weighted_avg_irr_threshold"`

	// TVL and revenue
	TotalTVL          float64            `json:"total_tvl"`
	TVLByCategory     map[string]float64 `json:"tvl_by_category"`
	TVLByType         map[string]float64 `json:"tvl_by_type"`
	BoostedTVL        float64            `json:"boosted_tvl"`
	RevenueByType     map[string]float64 `json:"revenue_by_type"`
	MonthlyRevenue    float64            `json:"monthly_revenue"`
	CumulativeRevenue float64            `json:"cumulative_revenue"`
}

// RunSummary aggregates a finished run.
type RunSummary struct {
	RunID             string            `json:"run_id"`
	Months            int               `json:"months"`
	FinalPrice        float64           `json:"final_price"`
	MinPrice          float64           `json:"min_price"`
	MaxPrice          float64           `json:"max_price"`
	PriceVolatility   float64           `json:"price_volatility"` // annualized, from month-end prices
	TotalRedeemed     sdkmath.LegacyDec `json:"total_redeemed"`
	RemainingSupply   sdkmath.LegacyDec `json:"remaining_supply"`
	FinalDeepPool     ReserveBalances   `json:"final_deep_pool"`
	CumulativeRevenue float64           `json:"cumulative_revenue"`
	SkippedTrades     int               `json:"skipped_trades"`
}

// MonthPrice is one finalized month-end price.
type MonthPrice struct {
	Month int     `json:"month"`
	Price float64 `json:"price"`
}

// MonthBalances is one recorded month-end balance pair.
type MonthBalances struct {
	Month    int             `json:"month"`
	Balances ReserveBalances `json:"balances"`
}
