package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/treasury-sim/internal/types"
)

func TestDefaultDeals_Valid(t *testing.T) {
	deals := DefaultDeals()
	require.NoError(t, deals.Validate())
	assert.Len(t, deals, 18)
	assert.InDelta(t, 1_485_000, deals.TotalBondAmount(), 1e-9)

	for _, d := range deals {
		assert.NotEmpty(t, d.ID)
	}
	assert.Equal(t, "AlphaTradi_001", deals[0].ID)
}

func TestGenerateDealID(t *testing.T) {
	assert.Equal(t, "Month5Boos_002", GenerateDealID("Month 5 - Boost", 2))
	assert.Equal(t, "Team_001", GenerateDealID("Team", 1))
}

func TestDeal_ValidateRejects(t *testing.T) {
	cases := map[string]Deal{
		"no counterparty":   {TVL: &TVLTerms{Amount: 1, DurationMonths: 1, Category: types.CategoryLending}},
		"no terms":          {Counterparty: "x"},
		"negative bond":     {Counterparty: "x", Bond: &BondTerms{Amount: -1}},
		"unknown category":  {Counterparty: "x", TVL: &TVLTerms{Amount: 1, DurationMonths: 1, Category: "stable"}},
		"zero tvl duration": {Counterparty: "x", TVL: &TVLTerms{Amount: 1, Category: types.CategoryLending}},
		"target too high":   {Counterparty: "x", Pair: &PairTerms{Notional: 1, TargetRatio: 0.6, DurationMonths: 1}},
		"base above max":    {Counterparty: "x", Pair: &PairTerms{Notional: 1, TargetRatio: 0.2, BaseConcentration: 0.9, MaxConcentration: 0.5, DurationMonths: 1}},
		"unlock too early":  {Counterparty: "x", StartMonth: 2, Bond: &BondTerms{Amount: 1, VestingMonths: 6, UnlockMonth: 4}},
	}
	for name, d := range cases {
		t.Run(name, func(t *testing.T) {
			err := d.Validate()
			assert.ErrorIs(t, err, ErrInvalidDeal)
			assert.ErrorIs(t, err, types.ErrInvalidInput)
		})
	}
}

func TestCatalog_RejectsDuplicateTerms(t *testing.T) {
	deals := Catalog{
		{Counterparty: "x", Bond: &BondTerms{Amount: 1}},
		{Counterparty: "x", TVL: &TVLTerms{Amount: 1, DurationMonths: 1, Category: types.CategoryLending}},
	}
	require.NoError(t, deals.Validate())

	deals = append(deals, Deal{Counterparty: "x", Bond: &BondTerms{Amount: 2}})
	assert.ErrorIs(t, deals.Validate(), ErrInvalidDeal)
}

func TestDeal_TVLType(t *testing.T) {
	deals := DefaultDeals()
	byCounterparty := map[string]types.TVLType{}
	for _, c := range deals.TVLContributions() {
		byCounterparty[c.Counterparty] = c.Type
	}
	assert.Equal(t, types.TVLBoosted, byCounterparty["AlphaTrading LLC"])
	assert.Equal(t, types.TVLProtocolLocked, byCounterparty["Move"])
	assert.Equal(t, types.TVLContracted, byCounterparty["KappaFi Protocol"])

	organic := Deal{Counterparty: "o", TVL: &TVLTerms{Amount: 1, DurationMonths: 1, Category: types.CategoryLending}}
	assert.Equal(t, types.TVLOrganic, organic.TVLType())
}

func TestCatalog_Builders(t *testing.T) {
	deals := DefaultDeals()

	allocations, err := deals.BondAllocations()
	require.NoError(t, err)
	assert.Len(t, allocations, 11)
	assert.Equal(t, "800000.000000000000000000", allocations[0].TotalAmount.String())
	assert.Equal(t, types.AllocationPending, allocations[0].Status)

	positions, err := deals.LiquidityPositions(1.0)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.InDelta(t, 525_000, positions[0].TokenBalance, 1e-6)
	assert.InDelta(t, 975_000, positions[0].NumeraireBalance, 1e-6)

	contributions := deals.TVLContributions()
	assert.Len(t, contributions, 9)
	assert.Equal(t, 15.0, contributions[0].IRRThreshold)
	assert.Equal(t, 12, contributions[0].EndMonth)
}

func TestCatalog_Active(t *testing.T) {
	deals := DefaultDeals()

	active := deals.Active(0)
	names := map[string]bool{}
	for _, d := range active {
		names[d.Counterparty] = true
	}
	assert.True(t, names["AlphaTrading LLC"])
	assert.False(t, names["Move"])
	assert.False(t, names["Team"])

	assert.Len(t, deals.ByCounterparty("Move"), 1)
	assert.Empty(t, deals.Active(100))
}
