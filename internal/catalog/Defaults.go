package catalog

import (
	"fmt"

	"github.com/elys-network/treasury-sim/internal/types"
)

// DefaultDeals returns the baseline launch scenario: two anchor TVL deals with bond incentives,
// team and investor bonds, one protocol liquidity pair, monthly boost bonds and a ramped
// TVL schedule over the first quarter.
func DefaultDeals() Catalog {
	deals := Catalog{
		// Anchor TVL with bond incentives
		{
			Counterparty: "AlphaTrading LLC",
			StartMonth:   0,
			TVL:          &TVLTerms{Amount: 20_000_000, RevenueRate: 0.04, DurationMonths: 12, Category: types.CategoryVolatile},
			Bond:         &BondTerms{Amount: 800_000, VestingMonths: 12, IRRThreshold: 15.0},
		},
		{
			Counterparty: "BetaLend Finance",
			StartMonth:   0,
			TVL:          &TVLTerms{Amount: 80_000_000, RevenueRate: 0.005, DurationMonths: 12, Category: types.CategoryLending},
			Bond:         &BondTerms{Amount: 400_000, VestingMonths: 12, IRRThreshold: 15.0},
		},

		// Team and investors
		{Counterparty: "Team", StartMonth: 3, Bond: &BondTerms{Amount: 175_000, VestingMonths: 12, IRRThreshold: 10.0}},
		{Counterparty: "Seed Investors", StartMonth: 3, Bond: &BondTerms{Amount: 25_000, VestingMonths: 12, IRRThreshold: 25.0}},
		{Counterparty: "Advisors", StartMonth: 3, Bond: &BondTerms{Amount: 25_000, VestingMonths: 12, IRRThreshold: 15.0}},

		// Protocol liquidity pair
		{
			Counterparty: "Move",
			StartMonth:   1,
			Pair:         &PairTerms{Notional: 1_500_000, TargetRatio: 0.35, BaseConcentration: 0.5, MaxConcentration: 0.8, DurationMonths: 60},
			TVL:          &TVLTerms{Amount: 1_500_000, RevenueRate: 0.02, DurationMonths: 60, Category: types.CategoryVolatile},
		},
	}

	boostThresholds := map[int]float64{5: 55.0, 6: 50.0, 7: 45.0, 8: 40.0, 9: 35.0, 10: 30.0}
	for month := 5; month <= 10; month++ {
		deals = append(deals, Deal{
			Counterparty: fmt.Sprintf("Month %d - Boost", month),
			StartMonth:   month,
			Bond:         &BondTerms{Amount: 10_000, VestingMonths: 0, IRRThreshold: boostThresholds[month]},
		})
	}

	ramp := []struct {
		counterparty string
		start        int
		amount       float64
		rate         float64
		category     types.TVLCategory
	}{
		{"KappaFi Protocol", 1, 43_000_000, 0.04, types.CategoryVolatile},
		{"LambdaVest", 1, 57_000_000, 0.005, types.CategoryLending},
		{"MuTrading Co", 2, 44_000_000, 0.04, types.CategoryVolatile},
		{"NuLend Finance", 2, 56_000_000, 0.005, types.CategoryLending},
		{"OmegaX Capital", 3, 43_000_000, 0.04, types.CategoryVolatile},
		{"PiVault Solutions", 3, 57_000_000, 0.005, types.CategoryLending},
	}
	for _, r := range ramp {
		deals = append(deals, Deal{
			Counterparty: r.counterparty,
			StartMonth:   r.start,
			TVL:          &TVLTerms{Amount: r.amount, RevenueRate: r.rate, DurationMonths: 12, Category: r.category, LinearRampMonths: 3},
		})
	}

	deals.AssignIDs()
	return deals
}
