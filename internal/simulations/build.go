package simulations

import (
	"fmt"

	"github.com/elys-network/treasury-sim/internal/config"
	"github.com/elys-network/treasury-sim/internal/pricing"
	"github.com/elys-network/treasury-sim/internal/redemption"
	"github.com/elys-network/treasury-sim/internal/reserve"
	"github.com/elys-network/treasury-sim/internal/tvl"
	"github.com/elys-network/treasury-sim/internal/utils"
)

// bondSupplyPrecision is the number of decimals kept for the bond supply.
const bondSupplyPrecision = 6

// FromScenario builds every engine from a validated scenario and wires them into a Simulator.
func FromScenario(scenario config.Scenario, store SnapshotSink, observer MonthObserver) (*Simulator, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}
	params := scenario.Parameters

	deepPool, err := reserve.NewDeepPool(reserve.DeepPoolConfig{
		Denoms:                  params.Denoms,
		InitialTokenBalance:     params.DeepPoolTokenBalance,
		InitialNumeraireBalance: params.DeepPoolNumeraireBalance,
	})
	if err != nil {
		return nil, fmt.Errorf("deep pool: %w", err)
	}

	positions, err := scenario.Deals.LiquidityPositions(params.InitialPrice)
	if err != nil {
		return nil, fmt.Errorf("liquidity positions: %w", err)
	}
	book, err := reserve.NewPositionBook(positions)
	if err != nil {
		return nil, fmt.Errorf("position book: %w", err)
	}

	price, err := pricing.NewEngine(pricing.Config{
		InitialPrice:    params.InitialPrice,
		MinPrice:        params.MinPrice,
		MaxPrice:        params.MaxPrice,
		ImpactThreshold: params.PriceImpactThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("price engine: %w", err)
	}

	supply, err := utils.Float64ToDec(params.BondTotalSupply, bondSupplyPrecision)
	if err != nil {
		return nil, fmt.Errorf("bond supply: %w", err)
	}
	allocations, err := scenario.Deals.BondAllocations()
	if err != nil {
		return nil, fmt.Errorf("bond allocations: %w", err)
	}
	bonds, err := redemption.NewEngine(redemption.Config{
		TotalSupply: supply,
		Window: redemption.Window{
			StartMonth: params.RedemptionStartMonth,
			EndMonth:   params.RedemptionEndMonth,
		},
	}, allocations)
	if err != nil {
		return nil, fmt.Errorf("redemption engine: %w", err)
	}

	tvlBook, err := tvl.NewBook(scenario.Deals.TVLContributions(), tvl.BoostConfig{
		MinRate:          params.MinBoostRate,
		MaxRate:          params.MaxBoostRate,
		BaseIRRThreshold: params.BaseBoostIRRThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("tvl book: %w", err)
	}

	return NewSimulator(Config{
		Parameters: params,
		DeepPool:   deepPool,
		Positions:  book,
		Price:      price,
		Bonds:      bonds,
		TVL:        tvlBook,
		Store:      store,
		Observer:   observer,
	})
}
