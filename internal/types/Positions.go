/*

This file contains the types for per-counterparty liquidity positions and bond
allocations, which carry the state needed by the reserve and redemption engines.

*/

package types

import (
	sdkmath "cosmossdk.io/math"
)

// LiquidityPosition is a counterparty-owned token/numeraire position.
// It is active for start_month <= month < start_month+duration_months.
type LiquidityPosition struct {
	Counterparty      string  `json:"counterparty"`
	Notional          float64 `json:"notional"`           // Fixed numeraire notional committed at initiation
	TokenBalance      float64 `json:"token_balance"`      // Token units held
	NumeraireBalance  float64 `json:"numeraire_balance"`  // Numeraire units held
	TargetRatio       float64 `json:"target_ratio"`       // Target token value share, 0 to 0.5
	BaseConcentration float64 `json:"base_concentration"` // Concentration fraction in [0, 1] used when balanced
	MaxConcentration  float64 `json:"max_concentration"`  // Fraction used on the favoured side, >= base
	StartMonth        int     `json:"start_month"`
	DurationMonths    int     `json:"duration_months"`
}

// IsActive reports whether the position participates in the given month.
func (p LiquidityPosition) IsActive(month int) bool {
	return p.StartMonth <= month && month < p.StartMonth+p.DurationMonths
}

// Balances returns the position's balances as a pool.
func (p LiquidityPosition) Balances() ReserveBalances {
	return ReserveBalances{Token: p.TokenBalance, Numeraire: p.NumeraireBalance}
}

// AllocationStatus is the lifecycle of a bond allocation.
type AllocationStatus string

const (
	AllocationPending     AllocationStatus = "PENDING"
	AllocationDistributed AllocationStatus = "DISTRIBUTED"
	AllocationRedeemed    AllocationStatus = "REDEEMED" // terminal
)

// BondAllocation is one counterparty's share of the bond supply.
// DistributedAmount is either zero or TotalAmount (cliff vesting).
type BondAllocation struct {
	Counterparty      string            `json:"counterparty"`
	TotalAmount       sdkmath.LegacyDec `json:"total_amount"`
	StartMonth        int               `json:"start_month"`
	VestingMonths     int               `json:"vesting_months"`
	IRRThreshold      float64           `json:"irr_threshold"` // percent, e.g. 15.0
	UnlockMonth       int               `json:"unlock_month,omitempty"`
	DistributedAmount sdkmath.LegacyDec `json:"distributed_amount"`
	Status            AllocationStatus  `json:"status"`
}

// VestMonth is the first month the allocation can be distributed.
func (a BondAllocation) VestMonth() int {
	return a.StartMonth + a.VestingMonths
}

// IsRedeemed reports whether the allocation reached its terminal state.
func (a BondAllocation) IsRedeemed() bool {
	return a.Status == AllocationRedeemed
}
