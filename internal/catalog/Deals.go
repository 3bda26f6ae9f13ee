/*
This file contains the deal catalog: one record per counterparty agreement, carrying any mix
of bond, TVL and liquidity-pair terms. The catalog is owned by the driver and converted into
the typed inputs of each engine.
*/

package catalog

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/elys-network/treasury-sim/internal/reserve"
	"github.com/elys-network/treasury-sim/internal/types"
	"github.com/elys-network/treasury-sim/internal/utils"
)

// Decimals kept when converting bond amounts to LegacyDec.
const bondPrecision = 6

var ErrInvalidDeal = fmt.Errorf("%w: invalid deal", types.ErrInvalidInput)

// BondTerms is the redeemable allocation granted by a deal.
type BondTerms struct {
	Amount        float64 `json:"amount" yaml:"amount"`
	VestingMonths int     `json:"vesting_months" yaml:"vesting_months"`
	IRRThreshold  float64 `json:"irr_threshold" yaml:"irr_threshold"` // percent
	UnlockMonth   int     `json:"unlock_month,omitempty" yaml:"unlock_month,omitempty"`
}

// TVLTerms is a revenue-bearing deposit.
type TVLTerms struct {
	Amount           float64           `json:"amount" yaml:"amount"`
	RevenueRate      float64           `json:"revenue_rate" yaml:"revenue_rate"` // annual
	DurationMonths   int               `json:"duration_months" yaml:"duration_months"`
	Category         types.TVLCategory `json:"category" yaml:"category"`
	LinearRampMonths int               `json:"linear_ramp_months,omitempty" yaml:"linear_ramp_months,omitempty"`
}

// PairTerms is a protocol-seeded token/numeraire liquidity position.
type PairTerms struct {
	Notional          float64 `json:"notional" yaml:"notional"`
	TargetRatio       float64 `json:"target_ratio" yaml:"target_ratio"`
	BaseConcentration float64 `json:"base_concentration" yaml:"base_concentration"`
	MaxConcentration  float64 `json:"max_concentration" yaml:"max_concentration"`
	DurationMonths    int     `json:"duration_months" yaml:"duration_months"`
}

// Deal is one counterparty agreement. Nil terms are absent.
type Deal struct {
	ID           string     `json:"id" yaml:"id"`
	Counterparty string     `json:"counterparty" yaml:"counterparty"`
	StartMonth   int        `json:"start_month" yaml:"start_month"`
	Bond         *BondTerms `json:"bond,omitempty" yaml:"bond,omitempty"`
	TVL          *TVLTerms  `json:"tvl,omitempty" yaml:"tvl,omitempty"`
	Pair         *PairTerms `json:"pair,omitempty" yaml:"pair,omitempty"`
}

// Validate checks a single deal's terms.
func (d Deal) Validate() error {
	if strings.TrimSpace(d.Counterparty) == "" {
		return fmt.Errorf("%w: counterparty is empty", ErrInvalidDeal)
	}
	if d.StartMonth < 0 {
		return fmt.Errorf("%w: %s start month %d", ErrInvalidDeal, d.Counterparty, d.StartMonth)
	}
	if d.Bond == nil && d.TVL == nil && d.Pair == nil {
		return fmt.Errorf("%w: %s has no terms", ErrInvalidDeal, d.Counterparty)
	}

	if b := d.Bond; b != nil {
		switch {
		case !nonNegative(b.Amount):
			return fmt.Errorf("%w: %s bond amount %f", ErrInvalidDeal, d.Counterparty, b.Amount)
		case b.VestingMonths < 0:
			return fmt.Errorf("%w: %s bond vesting %d", ErrInvalidDeal, d.Counterparty, b.VestingMonths)
		case b.UnlockMonth != 0 && b.UnlockMonth < d.StartMonth+b.VestingMonths:
			return fmt.Errorf("%w: %s unlock month %d before vesting ends", ErrInvalidDeal, d.Counterparty, b.UnlockMonth)
		}
	}

	if t := d.TVL; t != nil {
		switch {
		case !nonNegative(t.Amount) || !nonNegative(t.RevenueRate):
			return fmt.Errorf("%w: %s tvl amount %f, rate %f", ErrInvalidDeal, d.Counterparty, t.Amount, t.RevenueRate)
		case t.DurationMonths <= 0 || t.LinearRampMonths < 0:
			return fmt.Errorf("%w: %s tvl duration %d, ramp %d", ErrInvalidDeal, d.Counterparty, t.DurationMonths, t.LinearRampMonths)
		case !t.Category.IsValid():
			return fmt.Errorf("%w: %s tvl category %q", ErrInvalidDeal, d.Counterparty, t.Category)
		}
	}

	if p := d.Pair; p != nil {
		switch {
		case !nonNegative(p.Notional):
			return fmt.Errorf("%w: %s pair notional %f", ErrInvalidDeal, d.Counterparty, p.Notional)
		case !(p.TargetRatio >= 0 && p.TargetRatio <= 0.5):
			return fmt.Errorf("%w: %s target ratio %f outside [0, 0.5]", ErrInvalidDeal, d.Counterparty, p.TargetRatio)
		case !(p.BaseConcentration >= 0 && p.BaseConcentration <= p.MaxConcentration && p.MaxConcentration <= 1):
			return fmt.Errorf("%w: %s concentration base %f, max %f", ErrInvalidDeal, d.Counterparty, p.BaseConcentration, p.MaxConcentration)
		case p.DurationMonths <= 0:
			return fmt.Errorf("%w: %s pair duration %d", ErrInvalidDeal, d.Counterparty, p.DurationMonths)
		}
	}
	return nil
}

// IsActive reports whether any of the deal's terms are live in month.
// Bond terms count from the start month until the allocation is handed out.
func (d Deal) IsActive(month int) bool {
	if month < d.StartMonth {
		return false
	}
	if d.Bond != nil && d.Bond.Amount > 0 && month < d.StartMonth+d.Bond.VestingMonths {
		return true
	}
	if d.TVL != nil && d.TVL.Category != types.CategoryNone && month < d.StartMonth+d.TVL.DurationMonths {
		return true
	}
	if d.Pair != nil && d.Pair.Notional > 0 && month < d.StartMonth+d.Pair.DurationMonths {
		return true
	}
	return false
}

// TVLType classifies the deal's TVL: pair deals are protocol locked, ramped deals are
// contracted, bond-incentivised deals are boosted and the rest organic.
func (d Deal) TVLType() types.TVLType {
	switch {
	case d.Pair != nil && d.Pair.Notional > 0:
		return types.TVLProtocolLocked
	case d.TVL != nil && d.TVL.LinearRampMonths > 0:
		return types.TVLContracted
	case d.Bond != nil && d.Bond.Amount > 0:
		return types.TVLBoosted
	default:
		return types.TVLOrganic
	}
}

// Catalog is an ordered collection of deals.
type Catalog []Deal

// Validate checks every deal and rejects a counterparty appearing twice for the same kind of terms.
func (c Catalog) Validate() error {
	seen := map[string]map[string]bool{"bond": {}, "tvl": {}, "pair": {}}
	ids := make(map[string]bool)
	for _, d := range c {
		if err := d.Validate(); err != nil {
			return err
		}
		if d.ID != "" {
			if ids[d.ID] {
				return fmt.Errorf("%w: duplicate deal id %s", ErrInvalidDeal, d.ID)
			}
			ids[d.ID] = true
		}
		for kind, present := range map[string]bool{"bond": d.Bond != nil, "tvl": d.TVL != nil, "pair": d.Pair != nil} {
			if !present {
				continue
			}
			if seen[kind][d.Counterparty] {
				return fmt.Errorf("%w: duplicate %s terms for %s", ErrInvalidDeal, kind, d.Counterparty)
			}
			seen[kind][d.Counterparty] = true
		}
	}
	return nil
}

// Active returns the deals live in month.
func (c Catalog) Active(month int) Catalog {
	var out Catalog
	for _, d := range c {
		if d.IsActive(month) {
			out = append(out, d)
		}
	}
	return out
}

// ByCounterparty returns every deal with the given counterparty.
func (c Catalog) ByCounterparty(counterparty string) Catalog {
	var out Catalog
	for _, d := range c {
		if d.Counterparty == counterparty {
			out = append(out, d)
		}
	}
	return out
}

// BondAllocations builds one allocation per deal with bond terms.
func (c Catalog) BondAllocations() ([]types.BondAllocation, error) {
	var out []types.BondAllocation
	for _, d := range c {
		if d.Bond == nil {
			continue
		}
		amount, err := utils.Float64ToDec(d.Bond.Amount, bondPrecision)
		if err != nil {
			return nil, fmt.Errorf("bond amount for %s: %w", d.Counterparty, err)
		}
		out = append(out, types.BondAllocation{
			Counterparty:  d.Counterparty,
			TotalAmount:   amount,
			StartMonth:    d.StartMonth,
			VestingMonths: d.Bond.VestingMonths,
			IRRThreshold:  d.Bond.IRRThreshold,
			UnlockMonth:   d.Bond.UnlockMonth,
			Status:        types.AllocationPending,
		})
	}
	return out, nil
}

// LiquidityPositions seeds one position per deal with pair terms at initialPrice.
func (c Catalog) LiquidityPositions(initialPrice float64) ([]types.LiquidityPosition, error) {
	var out []types.LiquidityPosition
	for _, d := range c {
		if d.Pair == nil {
			continue
		}
		p, err := reserve.NewLiquidityPosition(d.Counterparty, d.Pair.Notional, d.Pair.TargetRatio,
			d.Pair.BaseConcentration, d.Pair.MaxConcentration, d.StartMonth, d.Pair.DurationMonths, initialPrice)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// TVLContributions converts every deal with TVL terms into a contribution.
func (c Catalog) TVLContributions() []types.TVLContribution {
	var out []types.TVLContribution
	for _, d := range c {
		if d.TVL == nil || d.TVL.Amount <= 0 || d.TVL.Category == types.CategoryNone {
			continue
		}
		contribution := types.TVLContribution{
			Counterparty:     d.Counterparty,
			AmountUSD:        d.TVL.Amount,
			RevenueRate:      d.TVL.RevenueRate,
			StartMonth:       d.StartMonth,
			EndMonth:         d.StartMonth + d.TVL.DurationMonths,
			LinearRampMonths: d.TVL.LinearRampMonths,
			Type:             d.TVLType(),
			Category:         d.TVL.Category,
		}
		if d.Bond != nil && d.Bond.Amount > 0 {
			contribution.IRRThreshold = d.Bond.IRRThreshold
		}
		out = append(out, contribution)
	}
	return out
}

// TotalBondAmount sums bond terms across the catalog.
func (c Catalog) TotalBondAmount() float64 {
	var total float64
	for _, d := range c {
		if d.Bond != nil {
			total += d.Bond.Amount
		}
	}
	return total
}

// GenerateDealID builds "<first 10 alphanumerics>_<seq>" for a counterparty.
func GenerateDealID(counterparty string, sequence int) string {
	var b strings.Builder
	for _, r := range counterparty {
		if b.Len() >= 10 {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return fmt.Sprintf("%s_%03d", b.String(), sequence)
}

// AssignIDs fills in missing deal ids, numbering deals per counterparty in catalog order.
func (c Catalog) AssignIDs() {
	sequence := make(map[string]int)
	for i := range c {
		sequence[c[i].Counterparty]++
		if c[i].ID == "" {
			c[i].ID = GenerateDealID(c[i].Counterparty, sequence[c[i].Counterparty])
		}
	}
}

func nonNegative(x float64) bool {
	return x >= 0 && !math.IsInf(x, 0)
}
