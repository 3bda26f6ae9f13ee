/*

This file contains the reserve pool types shared by the liquidity calculator,
the deep pool and the per-counterparty liquidity positions.

*/

package types

// Denoms names the two assets of every pool in the model.
type Denoms struct {
	Token     string `json:"token" yaml:"token"`         // e.g., "leaf" (volatile)
	Numeraire string `json:"numeraire" yaml:"numeraire"` // e.g., "usdc"
}

// DefaultDenoms is used when a scenario does not name its assets.
var DefaultDenoms = Denoms{Token: "leaf", Numeraire: "usdc"}

// ReserveBalances holds the two balances of a pool. Both are kept >= 0.
type ReserveBalances struct {
	Token     float64 `json:"token"`
	Numeraire float64 `json:"numeraire"`
}

// Value returns the numeraire value of the balances at price.
func (b ReserveBalances) Value(price float64) float64 {
	return b.Numeraire + b.Token*price
}

// IsEmpty reports whether either side is zero.
func (b ReserveBalances) IsEmpty() bool {
	return b.Token <= 0 || b.Numeraire <= 0
}

// LiquidityDepth holds the quantities tradable within a price band.
type LiquidityDepth struct {
	Token     float64 `json:"token"`
	Numeraire float64 `json:"numeraire"`
}

// Add returns the component-wise sum.
func (d LiquidityDepth) Add(other LiquidityDepth) LiquidityDepth {
	return LiquidityDepth{Token: d.Token + other.Token, Numeraire: d.Numeraire + other.Numeraire}
}

// Value returns the numeraire value of the depth at price.
func (d LiquidityDepth) Value(price float64) float64 {
	return d.Numeraire + d.Token*price
}

// Concentration holds per-side multipliers for the liquidity calculator.
// 1 means plain constant-product depth.
type Concentration struct {
	Token     float64 `json:"token"`
	Numeraire float64 `json:"numeraire"`
}

// ConcentrationBranch is the discrete policy a liquidity position resolves to
// on each query.
type ConcentrationBranch int

const (
	Balanced ConcentrationBranch = iota
	BelowTarget
	AboveTarget
)

func (b ConcentrationBranch) String() string {
	switch b {
	case BelowTarget:
		return "below_target"
	case AboveTarget:
		return "above_target"
	default:
		return "balanced"
	}
}
